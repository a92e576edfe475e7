package repositories

import (
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"

	"gorm.io/gorm"
)

// EventRepository - журнал переходов подписки (только вставка и чтение)
type EventRepository interface {
	Create(db *gorm.DB, event *models.SubscriptionEvent) error
	CreateBatch(db *gorm.DB, events []models.SubscriptionEvent) error
	FindBySubscriptionID(db *gorm.DB, subscriptionID string) ([]models.SubscriptionEvent, error)
	FindByUserID(db *gorm.DB, userID string, limit int) ([]models.SubscriptionEvent, error)
}

type eventRepository struct{}

func NewEventRepository() EventRepository {
	return &eventRepository{}
}

func (r *eventRepository) Create(db *gorm.DB, event *models.SubscriptionEvent) error {
	return db.Create(event).Error
}

func (r *eventRepository) CreateBatch(db *gorm.DB, events []models.SubscriptionEvent) error {
	if len(events) == 0 {
		return nil
	}
	return db.CreateInBatches(events, 100).Error
}

func (r *eventRepository) FindBySubscriptionID(db *gorm.DB, subscriptionID string) ([]models.SubscriptionEvent, error) {
	var events []models.SubscriptionEvent
	err := db.Where("subscription_id = ?", subscriptionID).
		Order("created_at ASC").
		Find(&events).Error
	return events, err
}

func (r *eventRepository) FindByUserID(db *gorm.DB, userID string, limit int) ([]models.SubscriptionEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []models.SubscriptionEvent
	err := db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}
