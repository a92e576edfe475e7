package models

import "github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"

type UserStatus string
type UserRole string
type PaymentStatus string
type SubscriptionAction string

// SubscriptionStatus хранится в таблице как есть, переходы считает lifecycle
type SubscriptionStatus = lifecycle.Status

const (
	UserStatusActive  UserStatus = "active"
	UserStatusBlocked UserStatus = "blocked"

	UserRoleCustomer UserRole = "customer"
	UserRoleAdmin    UserRole = "admin"

	SubscriptionStatusActive    = lifecycle.StatusActive
	SubscriptionStatusPaused    = lifecycle.StatusPaused
	SubscriptionStatusExpired   = lifecycle.StatusExpired
	SubscriptionStatusCancelled = lifecycle.StatusCancelled
	SubscriptionStatusInactive  = lifecycle.StatusInactive

	PaymentStatusCreated PaymentStatus = "created"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"

	// деньги списаны, но подписку выдать нельзя: ждет возврата оператором
	PaymentStatusRefundRequired PaymentStatus = "refund_required"

	ActionPurchased SubscriptionAction = "purchased"
	ActionPaused    SubscriptionAction = "paused"
	ActionResumed   SubscriptionAction = "resumed"
	ActionExpired   SubscriptionAction = "expired"
	ActionCancelled SubscriptionAction = "cancelled"
)
