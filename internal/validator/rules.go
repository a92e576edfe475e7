package validator

import (
	"log"
	"regexp"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"

	"github.com/go-playground/validator/v10"
)

var (
	// Индийский мобильный: 10 цифр, начинается с 6-9, опционально +91
	phonePattern    = regexp.MustCompile(`^(\+91)?[6-9][0-9]{9}$`)
	pincodePattern  = regexp.MustCompile(`^[1-9][0-9]{5}$`)
	durationPattern = regexp.MustCompile(`^[0-9]+\s*days?$`)
)

// registerCustomRules регистрирует все кастомные функции валидации в
// переданном экземпляре валидатора.
func registerCustomRules(v *validator.Validate) {
	mustRegister := func(tag string, fn validator.Func) {
		if err := v.RegisterValidation(tag, fn); err != nil {
			// Без правила приложение запускать нельзя
			log.Fatalf("failed to register custom validation tag '%s': %v", tag, err)
		}
	}

	mustRegister("is-user-role", validateUserRole)
	mustRegister("is-subscription-status", validateSubscriptionStatus)
	mustRegister("is-payment-status", validatePaymentStatus)
	mustRegister("is-duration-code", matches(durationPattern))
	mustRegister("is-phone", matches(phonePattern))
	mustRegister("is-pincode", matches(pincodePattern))
	mustRegister("is-milk-type", validateMilkType)
}

// --- Функции валидации ---
// Пустые значения пропускаем, для этого есть 'required'

func validateUserRole(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch models.UserRole(value) {
	case models.UserRoleCustomer, models.UserRoleAdmin:
		return true
	default:
		return false
	}
}

func validateSubscriptionStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	return lifecycle.Status(value).Valid()
}

func validatePaymentStatus(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch models.PaymentStatus(value) {
	case models.PaymentStatusCreated, models.PaymentStatusPaid, models.PaymentStatusFailed, models.PaymentStatusRefundRequired:
		return true
	default:
		return false
	}
}

func validateMilkType(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}
	switch value {
	case "cow_milk", "buffalo_milk", "a2_milk", "toned_milk":
		return true
	default:
		return false
	}
}

func matches(re *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return re.MatchString(value)
	}
}
