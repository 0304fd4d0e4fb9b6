package constants

// Application Information
const (
	AppName          = "Storefront Service"
	AppVersion       = "1.0.0"
	MetricsNamespace = "storefront"
)

// Environment Types
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Default Application Settings
const (
	DefaultPort        = "5000"
	DefaultEnvironment = EnvDevelopment
)

// Storage drivers accepted by STORAGE_DRIVER
const (
	StorageDriverPostgres = "postgres"
	StorageDriverMongo    = "mongo"
	StorageDriverMemory   = "memory"
)

// Redis key prefixes
const (
	KeyPrefix          = "storefront:"
	KeyPrefixRateLimit = KeyPrefix + "ratelimit:"
)

// Event types published to the message broker
const (
	EventUserRegistered    = "user.registered"
	EventSessionRevokedAll = "session.revoked_all"
	EventPromoRedeemed     = "promo.redeemed"
)

// Log Levels
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)
