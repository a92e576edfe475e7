package dto

// PlanRequest - создание и изменение тарифа (админ)
type PlanRequest struct {
	Name             string   `json:"name" validate:"required,min=2,max=100"`
	SubscriptionType string   `json:"subscription_type" validate:"required,is-milk-type"`
	Duration         string   `json:"duration" validate:"required,is-duration-code"`
	Price            float64  `json:"price" validate:"required,gt=0"`
	Currency         string   `json:"currency" validate:"omitempty,len=3"`
	QuantityLitres   float64  `json:"quantity_litres" validate:"omitempty,gt=0,lte=20"`
	Features         []string `json:"features" validate:"omitempty,dive,max=100"`
	IsActive         *bool    `json:"is_active"`
}

// PlanResponse дополнен днями доставки с учетом промо-бонуса
type PlanResponse struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	SubscriptionType string   `json:"subscription_type"`
	Duration         string   `json:"duration"`
	DeliveryDays     int      `json:"delivery_days"`
	Price            float64  `json:"price"`
	Currency         string   `json:"currency"`
	QuantityLitres   float64  `json:"quantity_litres"`
	Features         []string `json:"features,omitempty"`
	IsActive         bool     `json:"is_active"`
}
