package repositories

import (
	"errors"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"

	"gorm.io/gorm"
)

var ErrPlanNotFound = errors.New("plan not found")

type PlanRepository interface {
	Create(db *gorm.DB, plan *models.Plan) error
	FindByID(db *gorm.DB, id string) (*models.Plan, error)
	FindActive(db *gorm.DB) ([]models.Plan, error)
	FindAll(db *gorm.DB) ([]models.Plan, error)
	Update(db *gorm.DB, plan *models.Plan) error
	SetActive(db *gorm.DB, id string, active bool) error
}

type planRepository struct{}

func NewPlanRepository() PlanRepository {
	return &planRepository{}
}

func (r *planRepository) Create(db *gorm.DB, plan *models.Plan) error {
	return db.Create(plan).Error
}

func (r *planRepository) FindByID(db *gorm.DB, id string) (*models.Plan, error) {
	var plan models.Plan
	if err := db.First(&plan, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return &plan, nil
}

func (r *planRepository) FindActive(db *gorm.DB) ([]models.Plan, error) {
	var plans []models.Plan
	err := db.Where("is_active = ?", true).
		Order("subscription_type ASC, price ASC").
		Find(&plans).Error
	return plans, err
}

func (r *planRepository) FindAll(db *gorm.DB) ([]models.Plan, error) {
	var plans []models.Plan
	err := db.Order("created_at DESC").Find(&plans).Error
	return plans, err
}

func (r *planRepository) Update(db *gorm.DB, plan *models.Plan) error {
	result := db.Model(plan).Select(
		"name", "subscription_type", "duration", "price", "currency",
		"quantity_litres", "features", "is_active",
	).Updates(plan)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}
	return nil
}

func (r *planRepository) SetActive(db *gorm.DB, id string, active bool) error {
	result := db.Model(&models.Plan{}).Where("id = ?", id).Update("is_active", active)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}
	return nil
}
