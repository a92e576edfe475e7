package dto

import (
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
)

// SubscriptionResponse - подписка глазами клиента: хранимые поля плюс вычисленные
type SubscriptionResponse struct {
	ID               string                    `json:"id"`
	PlanID           string                    `json:"plan_id,omitempty"`
	PlanName         string                    `json:"plan_name,omitempty"`
	Status           models.SubscriptionStatus `json:"status"`
	SubscriptionType string                    `json:"subscription_type"`
	Duration         string                    `json:"duration"`
	QuantityLitres   float64                   `json:"quantity_litres"`
	Amount           float64                   `json:"amount"`
	StartDate        time.Time                 `json:"start_date"`
	EndDate          time.Time                 `json:"end_date"`
	PausedAt         *time.Time                `json:"paused_at,omitempty"`
	ResumedAt        *time.Time                `json:"resumed_at,omitempty"`
	CancelledAt      *time.Time                `json:"cancelled_at,omitempty"`
	TotalPausedDays  int                       `json:"total_paused_days"`
	RemainingDays    int                       `json:"remaining_days"`
	CanPause         bool                      `json:"can_pause"`
	CanResume        bool                      `json:"can_resume"`
	CanCancel        bool                      `json:"can_cancel"`
}

// NewSubscriptionResponse накладывает Summary калькулятора на строку из БД
func NewSubscriptionResponse(s *models.Subscription, summary lifecycle.Summary) *SubscriptionResponse {
	resp := &SubscriptionResponse{
		ID:               s.ID,
		PlanID:           s.PlanID,
		Status:           summary.Status,
		SubscriptionType: s.SubscriptionType,
		Duration:         s.Duration,
		QuantityLitres:   s.QuantityLitres,
		Amount:           s.Amount,
		StartDate:        s.StartDate,
		EndDate:          s.EndDate,
		PausedAt:         s.PausedAt,
		ResumedAt:        s.ResumedAt,
		CancelledAt:      s.CancelledAt,
		TotalPausedDays:  s.TotalPausedDays,
		RemainingDays:    summary.RemainingDays,
		CanPause:         summary.CanPause,
		CanResume:        summary.CanResume,
		CanCancel:        summary.CanCancel,
	}
	if s.Plan != nil {
		resp.PlanName = s.Plan.Name
	}
	return resp
}

// AdminSubscriptionFilter - фильтр админского списка
type AdminSubscriptionFilter struct {
	Status string `form:"status" json:"status" validate:"omitempty,is-subscription-status"`
	UserID string `form:"user_id" json:"user_id" validate:"omitempty,uuid"`
}

// ExpireResult - итог прогона истечения
type ExpireResult struct {
	Expired int64     `json:"expired"`
	RanAt   time.Time `json:"ran_at"`
}

// SubscriptionEventDTO - запись аудита
type SubscriptionEventDTO struct {
	Action     models.SubscriptionAction `json:"action"`
	FromStatus models.SubscriptionStatus `json:"from_status,omitempty"`
	ToStatus   models.SubscriptionStatus `json:"to_status"`
	CreatedAt  time.Time                 `json:"created_at"`
}

// SubscriptionInspection - админский разбор подписки пользователя
type SubscriptionInspection struct {
	User         UserDTO                 `json:"user"`
	Current      *SubscriptionResponse   `json:"current,omitempty"`
	Events       []SubscriptionEventDTO  `json:"events"`
	History      []*SubscriptionResponse `json:"history"`
	CorruptState string                  `json:"corrupt_state,omitempty"`
}
