package repositories

import (
	"errors"
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
)

// SubscriptionFilter - фильтр для админского списка
type SubscriptionFilter struct {
	Status   models.SubscriptionStatus
	UserID   string
	Page     int
	PageSize int
}

type SubscriptionRepository interface {
	Create(db *gorm.DB, sub *models.Subscription) error
	FindByID(db *gorm.DB, id string) (*models.Subscription, error)
	FindByIDForUpdate(db *gorm.DB, id string) (*models.Subscription, error)
	FindLatestByUserID(db *gorm.DB, userID string) (*models.Subscription, error)
	FindLatestByUserIDForUpdate(db *gorm.DB, userID string) (*models.Subscription, error)
	FindOpenByUserID(db *gorm.DB, userID string) (*models.Subscription, error)
	FindByOrderID(db *gorm.DB, orderID string) (*models.Subscription, error)
	FindByUserID(db *gorm.DB, userID string) ([]models.Subscription, error)
	Save(db *gorm.DB, sub *models.Subscription) error

	FindStale(db *gorm.DB, now time.Time) ([]models.Subscription, error)
	ExpireByIDs(db *gorm.DB, ids []string) (int64, error)
	FindExpiring(db *gorm.DB, from, to time.Time) ([]models.Subscription, error)

	List(db *gorm.DB, filter SubscriptionFilter) ([]models.Subscription, int64, error)
	CountByStatus(db *gorm.DB) (map[models.SubscriptionStatus]int64, error)
}

type subscriptionRepository struct{}

func NewSubscriptionRepository() SubscriptionRepository {
	return &subscriptionRepository{}
}

// normalizeTimes приводит все даты к UTC: sqlite сравнивает их как строки
func normalizeTimes(sub *models.Subscription) {
	sub.StartDate = sub.StartDate.UTC()
	sub.EndDate = sub.EndDate.UTC()
	sub.PausedAt = utcPtr(sub.PausedAt)
	sub.ResumedAt = utcPtr(sub.ResumedAt)
	sub.CancelledAt = utcPtr(sub.CancelledAt)
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}

func (r *subscriptionRepository) Create(db *gorm.DB, sub *models.Subscription) error {
	normalizeTimes(sub)
	return db.Create(sub).Error
}

func (r *subscriptionRepository) first(db *gorm.DB, query string, args ...interface{}) (*models.Subscription, error) {
	var sub models.Subscription
	err := db.Where(query, args...).Order("created_at DESC").First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSubscriptionNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *subscriptionRepository) FindByID(db *gorm.DB, id string) (*models.Subscription, error) {
	return r.first(db.Preload("Plan"), "id = ?", id)
}

// FindByIDForUpdate блокирует строку до конца транзакции
func (r *subscriptionRepository) FindByIDForUpdate(db *gorm.DB, id string) (*models.Subscription, error) {
	return r.first(db.Clauses(clause.Locking{Strength: "UPDATE"}), "id = ?", id)
}

// FindLatestByUserID - текущая подписка пользователя = последняя созданная
func (r *subscriptionRepository) FindLatestByUserID(db *gorm.DB, userID string) (*models.Subscription, error) {
	return r.first(db.Preload("Plan"), "user_id = ?", userID)
}

func (r *subscriptionRepository) FindLatestByUserIDForUpdate(db *gorm.DB, userID string) (*models.Subscription, error) {
	return r.first(db.Clauses(clause.Locking{Strength: "UPDATE"}), "user_id = ?", userID)
}

// FindOpenByUserID ищет active/paused подписку (без учета ленивого истечения)
func (r *subscriptionRepository) FindOpenByUserID(db *gorm.DB, userID string) (*models.Subscription, error) {
	return r.first(db, "user_id = ? AND status IN ?", userID,
		[]models.SubscriptionStatus{models.SubscriptionStatusActive, models.SubscriptionStatusPaused})
}

func (r *subscriptionRepository) FindByOrderID(db *gorm.DB, orderID string) (*models.Subscription, error) {
	return r.first(db, "order_id = ?", orderID)
}

func (r *subscriptionRepository) FindByUserID(db *gorm.DB, userID string) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := db.Preload("Plan").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&subs).Error
	return subs, err
}

// Save пишет только поля жизненного цикла
func (r *subscriptionRepository) Save(db *gorm.DB, sub *models.Subscription) error {
	normalizeTimes(sub)
	result := db.Model(sub).Select(
		"status", "end_date", "paused_at", "resumed_at", "total_paused_days", "cancelled_at", "updated_at",
	).Updates(sub)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSubscriptionNotFound
	}
	return nil
}

// FindStale - active подписки с end_date < now; строки блокируются до конца транзакции
func (r *subscriptionRepository) FindStale(db *gorm.DB, now time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := db.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id", "user_id", "status", "end_date").
		Where("status = ? AND end_date < ?", models.SubscriptionStatusActive, now.UTC()).
		Find(&subs).Error
	return subs, err
}

// ExpireByIDs - один UPDATE; повторная проверка статуса защищает от гонки с resume/cancel
func (r *subscriptionRepository) ExpireByIDs(db *gorm.DB, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result := db.Model(&models.Subscription{}).
		Where("id IN ? AND status = ?", ids, models.SubscriptionStatusActive).
		Updates(map[string]interface{}{
			"status":     models.SubscriptionStatusExpired,
			"updated_at": time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}

// FindExpiring - active подписки, которые закончатся в [from, to)
func (r *subscriptionRepository) FindExpiring(db *gorm.DB, from, to time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := db.Where("status = ? AND end_date >= ? AND end_date < ?",
		models.SubscriptionStatusActive, from.UTC(), to.UTC()).
		Order("end_date ASC").
		Find(&subs).Error
	return subs, err
}

func (r *subscriptionRepository) List(db *gorm.DB, filter SubscriptionFilter) ([]models.Subscription, int64, error) {
	query := db.Model(&models.Subscription{})
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.UserID != "" {
		query = query.Where("user_id = ?", filter.UserID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}

	var subs []models.Subscription
	err := query.Preload("Plan").
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.PageSize).
		Limit(filter.PageSize).
		Find(&subs).Error
	return subs, total, err
}

func (r *subscriptionRepository) CountByStatus(db *gorm.DB) (map[models.SubscriptionStatus]int64, error) {
	var rows []struct {
		Status models.SubscriptionStatus
		Count  int64
	}
	err := db.Model(&models.Subscription{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[models.SubscriptionStatus]int64)
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}
