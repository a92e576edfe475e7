package models

import (
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Subscription - одна покупка. Текущая подписка пользователя - самая свежая строка.
type Subscription struct {
	BaseModel
	UserID           string             `gorm:"type:varchar(36);not null;index" json:"user_id"`
	PlanID           string             `gorm:"type:varchar(36);index" json:"plan_id"`
	Status           SubscriptionStatus `gorm:"type:varchar(20);not null;default:'active';index" json:"status"`
	SubscriptionType string             `gorm:"size:50;not null" json:"subscription_type"`
	Duration         string             `gorm:"size:20;not null" json:"duration"`
	QuantityLitres   float64            `gorm:"default:1" json:"quantity_litres"`
	Amount           float64            `json:"amount"`
	OrderID          string             `gorm:"size:64;index" json:"order_id,omitempty"`
	PaymentID        string             `gorm:"size:64" json:"payment_id,omitempty"`
	StartDate        time.Time          `gorm:"not null" json:"start_date"`
	EndDate          time.Time          `gorm:"not null;index" json:"end_date"`
	PausedAt         *time.Time         `json:"paused_at,omitempty"`
	ResumedAt        *time.Time         `json:"resumed_at,omitempty"`
	TotalPausedDays  int                `gorm:"not null;default:0" json:"total_paused_days"`
	CancelledAt      *time.Time         `json:"cancelled_at,omitempty"`

	// Relations
	Plan *Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// ToLifecycle отдает калькулятору только нужные поля
func (s *Subscription) ToLifecycle() lifecycle.Subscription {
	return lifecycle.Subscription{
		Status:           s.Status,
		SubscriptionType: s.SubscriptionType,
		Duration:         s.Duration,
		StartDate:        s.StartDate,
		EndDate:          s.EndDate,
		PausedAt:         s.PausedAt,
		ResumedAt:        s.ResumedAt,
		TotalPausedDays:  s.TotalPausedDays,
	}
}

// ApplyLifecycle переносит результат перехода обратно в строку
func (s *Subscription) ApplyLifecycle(l lifecycle.Subscription) {
	s.Status = l.Status
	s.EndDate = l.EndDate
	s.PausedAt = l.PausedAt
	s.ResumedAt = l.ResumedAt
	s.TotalPausedDays = l.TotalPausedDays
}

// SubscriptionEvent - аудит переходов подписки
type SubscriptionEvent struct {
	ID             string             `gorm:"type:varchar(36);primaryKey" json:"id"`
	SubscriptionID string             `gorm:"type:varchar(36);not null;index" json:"subscription_id"`
	UserID         string             `gorm:"type:varchar(36);not null;index" json:"user_id"`
	Action         SubscriptionAction `gorm:"type:varchar(20);not null" json:"action"`
	FromStatus     SubscriptionStatus `gorm:"type:varchar(20)" json:"from_status"`
	ToStatus       SubscriptionStatus `gorm:"type:varchar(20)" json:"to_status"`
	Details        datatypes.JSON     `json:"details,omitempty"`
	CreatedAt      time.Time          `gorm:"autoCreateTime;index" json:"created_at"`
}

func (e *SubscriptionEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
