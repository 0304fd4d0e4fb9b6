package constants

// Field Length Limits
const (
	MinPasswordLength  = 6
	MinNameLength      = 2
	MaxNameLength      = 50
	MaxEmailLength     = 255
	MinPromoCodeLength = 3
	MaxPromoCodeLength = 20
	MinDiscount        = 0
	MaxDiscount        = 100
)

// Session settings
const (
	MaxRefreshTokensPerUser = 5
	BcryptCost              = 10
)

// Validation Patterns
const (
	PromoCodePattern = `^[A-Za-z0-9]{3,20}$`
)
