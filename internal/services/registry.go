package services

import (
	"github.com/creative2126/milk-delivery-backend-sub001/internal/email"
)

// ServiceContainer содержит все сервисы приложения.
type ServiceContainer struct {
	AuthService         AuthService
	UserService         UserService
	OTPService          OTPService
	PlanService         PlanService
	SubscriptionService SubscriptionService
	PaymentService      PaymentService
	AdminService        AdminService
	EmailService        email.Provider
}
