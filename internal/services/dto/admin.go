package dto

import "time"

// DashboardResponse - сводка для оператора
type DashboardResponse struct {
	Users          int64            `json:"users"`
	Subscriptions  map[string]int64 `json:"subscriptions"`
	RevenueTotal   float64          `json:"revenue_total"`
	RevenueLast30  float64          `json:"revenue_last_30_days"`
	PaidOrders     int64            `json:"paid_orders"`
	ExpiringSoon   []ExpiringItem   `json:"expiring_soon"`
	ExpiringWithin int              `json:"expiring_within_days"`
	GeneratedAt    time.Time        `json:"generated_at"`
}

// ExpiringItem - подписка, которая скоро закончится
type ExpiringItem struct {
	SubscriptionID string    `json:"subscription_id"`
	UserID         string    `json:"user_id"`
	EndDate        time.Time `json:"end_date"`
	RemainingDays  int       `json:"remaining_days"`
}
