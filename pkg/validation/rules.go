// Package validation registers the custom binding tags and turns validator
// errors into client-facing messages.
package validation

import (
	"errors"
	"regexp"
	"unicode"

	"github.com/Payphone-Digital/storefront/internal/constants"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var promoCodePattern = regexp.MustCompile(constants.PromoCodePattern)

// RegisterCustomRules installs strongpassword and promocode on gin's engine
func RegisterCustomRules() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator engine is not go-playground/validator")
	}
	return Register(v)
}

func Register(v *validator.Validate) error {
	if err := v.RegisterValidation("strongpassword", strongPassword); err != nil {
		return err
	}
	return v.RegisterValidation("promocode", promoCode)
}

// StrongPassword reports whether s has the minimum length and mixes
// upper-case, lower-case and digits
func StrongPassword(s string) bool {
	if len(s) < constants.MinPasswordLength {
		return false
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && lower && digit
}

// empty strings pass; "required" owns emptiness
func strongPassword(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return s == "" || StrongPassword(s)
}

func ValidPromoCode(s string) bool {
	return promoCodePattern.MatchString(s)
}

func promoCode(fl validator.FieldLevel) bool {
	return ValidPromoCode(fl.Field().String())
}

// Messages maps a binding error to one message per failed field. A non
// validation error yields nil.
func Messages(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}

	messages := make([]string, 0, len(verrs))
	for _, e := range verrs {
		messages = append(messages, message(e))
	}
	return messages
}

func message(e validator.FieldError) string {
	if fieldMessages := CustomMessage(e.StructField()); fieldMessages != nil {
		if msg, exists := fieldMessages[e.Tag()]; exists {
			return msg
		}
	}
	return DefaultMessage(e.Field(), e.Tag(), e.Param())
}
