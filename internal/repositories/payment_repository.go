package repositories

import (
	"errors"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPaymentNotFound = errors.New("payment transaction not found")

// RevenueStats - выручка по оплаченным транзакциям
type RevenueStats struct {
	Total      float64 `json:"total"`
	LastPeriod float64 `json:"last_period"`
	PaidCount  int64   `json:"paid_count"`
}

type PaymentRepository interface {
	Create(db *gorm.DB, payment *models.PaymentTransaction) error
	FindByOrderID(db *gorm.DB, orderID string) (*models.PaymentTransaction, error)
	FindByOrderIDForUpdate(db *gorm.DB, orderID string) (*models.PaymentTransaction, error)
	FindByUserID(db *gorm.DB, userID string) ([]models.PaymentTransaction, error)
	Update(db *gorm.DB, payment *models.PaymentTransaction) error
	GetRevenueStats(db *gorm.DB, since time.Time) (*RevenueStats, error)
}

type paymentRepository struct{}

func NewPaymentRepository() PaymentRepository {
	return &paymentRepository{}
}

func (r *paymentRepository) Create(db *gorm.DB, payment *models.PaymentTransaction) error {
	return db.Create(payment).Error
}

func (r *paymentRepository) find(db *gorm.DB, orderID string) (*models.PaymentTransaction, error) {
	var payment models.PaymentTransaction
	if err := db.Where("order_id = ?", orderID).First(&payment).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) FindByOrderID(db *gorm.DB, orderID string) (*models.PaymentTransaction, error) {
	return r.find(db, orderID)
}

func (r *paymentRepository) FindByOrderIDForUpdate(db *gorm.DB, orderID string) (*models.PaymentTransaction, error) {
	return r.find(db.Clauses(clause.Locking{Strength: "UPDATE"}), orderID)
}

func (r *paymentRepository) FindByUserID(db *gorm.DB, userID string) ([]models.PaymentTransaction, error) {
	var payments []models.PaymentTransaction
	err := db.Where("user_id = ?", userID).Order("created_at DESC").Find(&payments).Error
	return payments, err
}

func (r *paymentRepository) Update(db *gorm.DB, payment *models.PaymentTransaction) error {
	if payment.PaidAt != nil {
		paidAt := payment.PaidAt.UTC()
		payment.PaidAt = &paidAt
	}
	result := db.Model(payment).Select(
		"subscription_id", "payment_id", "status", "gateway_payload", "paid_at", "updated_at",
	).Updates(payment)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func (r *paymentRepository) GetRevenueStats(db *gorm.DB, since time.Time) (*RevenueStats, error) {
	var stats RevenueStats

	paid := db.Model(&models.PaymentTransaction{}).Where("status = ?", models.PaymentStatusPaid)

	if err := paid.Session(&gorm.Session{}).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.Total).Error; err != nil {
		return nil, err
	}

	if err := paid.Session(&gorm.Session{}).
		Where("paid_at >= ?", since.UTC()).
		Select("COALESCE(SUM(amount), 0)").Scan(&stats.LastPeriod).Error; err != nil {
		return nil, err
	}

	if err := paid.Session(&gorm.Session{}).Count(&stats.PaidCount).Error; err != nil {
		return nil, err
	}

	return &stats, nil
}
