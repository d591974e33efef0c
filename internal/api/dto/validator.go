package dto

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/cuongbtq/homeserve-be/internal/api/domain"
	"github.com/go-playground/validator/v10"
)

func stringRule(accept func(string) bool) validator.Func {
	return func(fl validator.FieldLevel) bool {
		if fl.Field().Kind() != reflect.String {
			return false
		}
		return accept(fl.Field().String())
	}
}

func signupRole(role string) bool {
	return role == domain.RoleUser || role == domain.RoleVendor
}

func payoutMethod(m string) bool {
	return m == domain.PayoutMethodCash || m == domain.PayoutMethodWallet
}

var rules = map[string]validator.Func{
	"service_category": stringRule(domain.IsServiceCategory),
	"scrap_category":   stringRule(domain.IsScrapCategory),
	"payment_method":   stringRule(domain.IsValidPaymentMethod),
	"payout_method":    stringRule(payoutMethod),
	"signup_role":      stringRule(signupRole),
	"role":             stringRule(domain.IsValidRole),
	"booking_status":   stringRule(domain.IsValidBookingStatus),
	"scrap_status":     stringRule(domain.IsValidScrapStatus),
}

// fieldName reports json, form or uri names in validation errors
func fieldName(f reflect.StructField) string {
	for _, tag := range []string{"json", "form", "uri"} {
		name, _, _ := strings.Cut(f.Tag.Get(tag), ",")
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// RegisterValidators adds the marketplace rules to v; call it on gin's engine
// before serving.
func RegisterValidators(v *validator.Validate) error {
	v.RegisterTagNameFunc(fieldName)
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s validation: %w", tag, err)
		}
	}
	return nil
}
