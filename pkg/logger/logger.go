package logger

import (
	"os"
	"path/filepath"

	"github.com/Payphone-Digital/storefront/config"
	"github.com/Payphone-Digital/storefront/internal/constants"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger
)

// InitLogger initializes Zap logger with configuration.
// Records always go to stdout/stderr; when LOG_DIR is set they are also
// appended to info.log and error.log inside it.
func InitLogger(cfg *config.Config) error {
	zapLevel := levelFor(cfg.App.Environment, cfg.Log.Level)

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "timestamp",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "message",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	encoder := zapcore.NewJSONEncoder(encoderConfig)
	if cfg.App.Environment == constants.EnvDevelopment {
		devConfig := encoderConfig
		devConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(devConfig)
	}

	infoSinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stdout)}
	errorSinks := []zapcore.WriteSyncer{zapcore.AddSync(os.Stderr)}

	if cfg.Log.Dir != "" {
		if err := os.MkdirAll(cfg.Log.Dir, 0755); err != nil {
			return err
		}

		infoFile, err := os.OpenFile(filepath.Join(cfg.Log.Dir, "info.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		errorFile, err := os.OpenFile(filepath.Join(cfg.Log.Dir, "error.log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			infoFile.Close()
			return err
		}

		// files always get JSON regardless of the console encoder
		fileEncoder := zapcore.NewJSONEncoder(encoderConfig)
		fileCore := zapcore.NewTee(
			zapcore.NewCore(fileEncoder, zapcore.AddSync(infoFile), zapLevel),
			zapcore.NewCore(fileEncoder, zapcore.AddSync(errorFile), zapcore.ErrorLevel),
		)
		consoleCore := zapcore.NewTee(
			zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(infoSinks...), belowError(zapLevel)),
			zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(errorSinks...), zapcore.ErrorLevel),
		)
		setLogger(zapcore.NewTee(consoleCore, fileCore), cfg.App.Environment)
		return nil
	}

	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(infoSinks...), belowError(zapLevel)),
		zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(errorSinks...), zapcore.ErrorLevel),
	)
	setLogger(core, cfg.App.Environment)
	return nil
}

func setLogger(core zapcore.Core, environment string) {
	Logger = zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)).
		With(zap.String("service", constants.AppName))
	Sugar = Logger.Sugar()
	optimizedLogger = NewOptimizedLogger(Logger, PerformanceConfigFor(environment))
}

// ReplaceCore routes every logger in this package through core and returns a
// function that restores the previous loggers.
func ReplaceCore(core zapcore.Core, environment string) func() {
	prevLogger, prevSugar, prevOptimized := Logger, Sugar, optimizedLogger
	setLogger(core, environment)
	return func() {
		Logger, Sugar, optimizedLogger = prevLogger, prevSugar, prevOptimized
	}
}

func levelFor(environment, explicit string) zapcore.Level {
	if explicit != "" {
		if lvl, err := zapcore.ParseLevel(explicit); err == nil {
			return lvl
		}
	}
	if environment == constants.EnvProduction {
		return zapcore.InfoLevel
	}
	return zapcore.DebugLevel
}

// belowError keeps stdout free of records that already go to stderr
func belowError(min zapcore.Level) zap.LevelEnablerFunc {
	return func(lvl zapcore.Level) bool {
		return lvl >= min && lvl < zapcore.ErrorLevel
	}
}

// GetLogger returns the structured logger, or a no-op logger before InitLogger runs
func GetLogger() *zap.Logger {
	if Logger == nil {
		return zap.NewNop()
	}
	return Logger
}

// GetSugarLogger returns the sugared logger
func GetSugarLogger() *zap.SugaredLogger {
	return GetLogger().Sugar()
}

// Sync syncs all logs (call this before application exits)
func Sync() {
	if Logger != nil {
		_ = Logger.Sync()
	}
}

// WithFields adds structured fields to the logger
func WithFields(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// LogPanic logs panic and recovers
func LogPanic(recovered interface{}) {
	GetLogger().Error("Panic recovered",
		zap.Any("panic", recovered),
		zap.Stack("stack"),
	)
}

// LogAuth logs authentication events
func LogAuth(userID, action string, success bool, fields ...zap.Field) {
	allFields := append([]zap.Field{
		zap.String("user_id", userID),
		zap.String("action", action),
		zap.Bool("success", success),
	}, fields...)

	if success {
		GetLogger().Info("Authentication success", allFields...)
	} else {
		GetLogger().Warn("Authentication failure", allFields...)
	}
}
