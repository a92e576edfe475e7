package handlers

// AppHandlers содержит все хэндлеры приложения.
type AppHandlers struct {
	AuthHandler         *AuthHandler
	UserHandler         *UserHandler
	PlanHandler         *PlanHandler
	SubscriptionHandler *SubscriptionHandler
	PaymentHandler      *PaymentHandler
	AdminHandler        *AdminHandler
	HealthHandler       *HealthHandler
}
