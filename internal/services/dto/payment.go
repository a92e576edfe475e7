package dto

import (
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
)

// CreateOrderRequest - покупка тарифа
type CreateOrderRequest struct {
	PlanID string `json:"plan_id" validate:"required,uuid"`
}

// OrderResponse - все, что нужно клиенту для открытия checkout
type OrderResponse struct {
	OrderID     string  `json:"order_id"`
	Amount      float64 `json:"amount"`
	AmountPaise int64   `json:"amount_paise"`
	Currency    string  `json:"currency"`
	KeyID       string  `json:"key_id"`
	PlanID      string  `json:"plan_id"`
}

// VerifyPaymentRequest - поля, которые checkout возвращает после оплаты
type VerifyPaymentRequest struct {
	OrderID   string `json:"razorpay_order_id" validate:"required"`
	PaymentID string `json:"razorpay_payment_id" validate:"required"`
	Signature string `json:"razorpay_signature" validate:"required,hexadecimal"`
}

// PaymentDTO - строка истории платежей
type PaymentDTO struct {
	ID             string               `json:"id"`
	OrderID        string               `json:"order_id"`
	PaymentID      string               `json:"payment_id,omitempty"`
	PlanID         string               `json:"plan_id"`
	SubscriptionID *string              `json:"subscription_id,omitempty"`
	Amount         float64              `json:"amount"`
	Currency       string               `json:"currency"`
	Status         models.PaymentStatus `json:"status"`
	PaidAt         *time.Time           `json:"paid_at,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
}

func NewPaymentDTO(p *models.PaymentTransaction) PaymentDTO {
	return PaymentDTO{
		ID:             p.ID,
		OrderID:        p.OrderID,
		PaymentID:      p.PaymentID,
		PlanID:         p.PlanID,
		SubscriptionID: p.SubscriptionID,
		Amount:         p.Amount,
		Currency:       p.Currency,
		Status:         p.Status,
		PaidAt:         p.PaidAt,
		CreatedAt:      p.CreatedAt,
	}
}
