package services

import (
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/lifecycle"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/repositories"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/services/dto"
	"github.com/creative2126/milk-delivery-backend-sub001/pkg/apperrors"

	"gorm.io/gorm"
)

const DefaultExpiringDays = 3

type AdminService interface {
	Dashboard(db *gorm.DB, now time.Time) (*dto.DashboardResponse, error)
}

type AdminServiceImpl struct {
	userRepo         repositories.UserRepository
	subscriptionRepo repositories.SubscriptionRepository
	paymentRepo      repositories.PaymentRepository
	calc             lifecycle.Calculator
	expiringDays     int
}

func NewAdminService(
	userRepo repositories.UserRepository,
	subscriptionRepo repositories.SubscriptionRepository,
	paymentRepo repositories.PaymentRepository,
	calc lifecycle.Calculator,
	expiringDays int,
) AdminService {
	if expiringDays <= 0 {
		expiringDays = DefaultExpiringDays
	}
	return &AdminServiceImpl{
		userRepo:         userRepo,
		subscriptionRepo: subscriptionRepo,
		paymentRepo:      paymentRepo,
		calc:             calc,
		expiringDays:     expiringDays,
	}
}

// Dashboard - пользователи, подписки по статусам, выручка и что скоро закончится
func (s *AdminServiceImpl) Dashboard(db *gorm.DB, now time.Time) (*dto.DashboardResponse, error) {
	users, err := s.userRepo.CountByRole(db, models.UserRoleCustomer)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	counts, err := s.subscriptionRepo.CountByStatus(db)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	revenue, err := s.paymentRepo.GetRevenueStats(db, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	expiring, err := s.subscriptionRepo.FindExpiring(db, now, s.calc.AddDays(now, s.expiringDays))
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.DashboardResponse{
		Users:          users,
		Subscriptions:  make(map[string]int64),
		RevenueTotal:   revenue.Total,
		RevenueLast30:  revenue.LastPeriod,
		PaidOrders:     revenue.PaidCount,
		ExpiringSoon:   make([]dto.ExpiringItem, 0, len(expiring)),
		ExpiringWithin: s.expiringDays,
		GeneratedAt:    now,
	}
	for _, status := range lifecycle.AllStatuses() {
		resp.Subscriptions[string(status)] = counts[status]
	}
	for i := range expiring {
		resp.ExpiringSoon = append(resp.ExpiringSoon, dto.ExpiringItem{
			SubscriptionID: expiring[i].ID,
			UserID:         expiring[i].UserID,
			EndDate:        expiring[i].EndDate,
			RemainingDays:  s.calc.RemainingDays(expiring[i].ToLifecycle(), now),
		})
	}

	return resp, nil
}
