package models

import (
	"time"

	"gorm.io/datatypes"
)

// PaymentTransaction - заказ в платежном шлюзе и его судьба
type PaymentTransaction struct {
	BaseModel
	UserID         string         `gorm:"type:varchar(36);not null;index" json:"user_id"`
	PlanID         string         `gorm:"type:varchar(36);not null" json:"plan_id"`
	SubscriptionID *string        `gorm:"type:varchar(36);index" json:"subscription_id,omitempty"`
	OrderID        string         `gorm:"size:64;not null;uniqueIndex" json:"order_id"`
	PaymentID      string         `gorm:"size:64" json:"payment_id,omitempty"`
	Amount         float64        `gorm:"not null" json:"amount"`
	Currency       string         `gorm:"size:3;default:'INR'" json:"currency"`
	Status         PaymentStatus  `gorm:"type:varchar(20);not null;default:'created';index" json:"status"`
	GatewayPayload datatypes.JSON `json:"-"`
	PaidAt         *time.Time     `json:"paid_at,omitempty"`
}
