package logger

import (
	"sync"
	"time"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// PerformanceConfig controls how much the context log builder lets through
type PerformanceConfig struct {
	MinLogLevel     zapcore.Level
	MaxLogPerSecond int
	EnableRateLimit bool
}

// ProductionConfig drops debug output and caps log volume
func ProductionConfig() PerformanceConfig {
	return PerformanceConfig{
		MinLogLevel:     zapcore.InfoLevel,
		MaxLogPerSecond: 500,
		EnableRateLimit: true,
	}
}

// DevelopmentConfig logs everything
func DevelopmentConfig() PerformanceConfig {
	return PerformanceConfig{
		MinLogLevel:     zapcore.DebugLevel,
		MaxLogPerSecond: 10000,
		EnableRateLimit: false,
	}
}

func PerformanceConfigFor(environment string) PerformanceConfig {
	if environment == constants.EnvProduction {
		return ProductionConfig()
	}
	return DevelopmentConfig()
}

// OptimizedLogger gates builder output by level and a per-second budget
type OptimizedLogger struct {
	config      PerformanceConfig
	logger      *zap.Logger
	rateLimiter *RateLimiter
}

// RateLimiter caps the number of log records per second
type RateLimiter struct {
	maxLogs   int
	current   int
	lastReset time.Time
	mu        sync.Mutex
}

func NewRateLimiter(maxLogs int) *RateLimiter {
	return &RateLimiter{
		maxLogs:   maxLogs,
		lastReset: time.Now(),
	}
}

func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	if now.Sub(rl.lastReset) >= time.Second {
		rl.current = 0
		rl.lastReset = now
	}

	if rl.current >= rl.maxLogs {
		return false
	}

	rl.current++
	return true
}

func NewOptimizedLogger(base *zap.Logger, config PerformanceConfig) *OptimizedLogger {
	if base == nil {
		base = zap.NewNop()
	}
	return &OptimizedLogger{
		config:      config,
		logger:      base,
		rateLimiter: NewRateLimiter(config.MaxLogPerSecond),
	}
}

// ShouldLog reports whether a record at level passes the gate. The per-second
// budget only applies below warn; warnings and errors are never dropped and do
// not use up the budget.
func (ol *OptimizedLogger) ShouldLog(level zapcore.Level) bool {
	if level < ol.config.MinLogLevel {
		return false
	}
	if level >= zapcore.WarnLevel {
		return true
	}
	if ol.config.EnableRateLimit && !ol.rateLimiter.Allow() {
		return false
	}
	return true
}

var (
	optimizedLogger *OptimizedLogger
	fallbackOnce    sync.Once
	fallbackLogger  *OptimizedLogger
)

// GetOptimizedLogger returns the logger installed by InitLogger, or a no-op
// one so packages can log from tests without initialization.
func GetOptimizedLogger() *OptimizedLogger {
	if optimizedLogger != nil {
		return optimizedLogger
	}
	fallbackOnce.Do(func() {
		fallbackLogger = NewOptimizedLogger(zap.NewNop(), DevelopmentConfig())
	})
	return fallbackLogger
}
