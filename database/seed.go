package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/auth"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/logger"
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PlanSeed - строка стартового каталога
type PlanSeed struct {
	Name             string
	SubscriptionType string
	Duration         string
	Price            float64
	QuantityLitres   float64
	Features         []string
}

// DefaultPlans - каталог, с которым магазин открывается
var DefaultPlans = []PlanSeed{
	{Name: "Cow Milk Trial", SubscriptionType: "cow_milk", Duration: "6days", Price: 390, QuantityLitres: 1, Features: []string{"morning delivery", "1 day free"}},
	{Name: "Cow Milk Fortnight", SubscriptionType: "cow_milk", Duration: "15days", Price: 960, QuantityLitres: 1, Features: []string{"morning delivery", "2 days free"}},
	{Name: "Cow Milk Monthly", SubscriptionType: "cow_milk", Duration: "30days", Price: 1860, QuantityLitres: 1, Features: []string{"morning delivery", "pause anytime"}},
	{Name: "Buffalo Milk Trial", SubscriptionType: "buffalo_milk", Duration: "6days", Price: 480, QuantityLitres: 1, Features: []string{"morning delivery", "1 day free"}},
	{Name: "Buffalo Milk Fortnight", SubscriptionType: "buffalo_milk", Duration: "15days", Price: 1185, QuantityLitres: 1, Features: []string{"morning delivery", "2 days free"}},
	{Name: "Buffalo Milk Monthly", SubscriptionType: "buffalo_milk", Duration: "30days", Price: 2310, QuantityLitres: 1, Features: []string{"morning delivery", "pause anytime"}},
}

// SeedPlans добавляет недостающие тарифы по имени. Возвращает число созданных.
func SeedPlans(db *gorm.DB, seeds []PlanSeed) (int, error) {
	created := 0
	err := db.Transaction(func(tx *gorm.DB) error {
		for _, seed := range seeds {
			var count int64
			if err := tx.Model(&models.Plan{}).Where("name = ?", seed.Name).Count(&count).Error; err != nil {
				return fmt.Errorf("check plan %q: %w", seed.Name, err)
			}
			if count > 0 {
				continue
			}

			features, err := json.Marshal(seed.Features)
			if err != nil {
				return fmt.Errorf("encode features of %q: %w", seed.Name, err)
			}

			plan := &models.Plan{
				Name:             seed.Name,
				SubscriptionType: seed.SubscriptionType,
				Duration:         seed.Duration,
				Price:            seed.Price,
				Currency:         "INR",
				QuantityLitres:   seed.QuantityLitres,
				Features:         datatypes.JSON(features),
				IsActive:         true,
			}
			if err := tx.Create(plan).Error; err != nil {
				return fmt.Errorf("create plan %q: %w", seed.Name, err)
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info("Plans seeded", "created", created, "total", len(seeds))
	return created, nil
}

// SeedAdmin создает администратора, если пользователя с таким email еще нет.
// Существующий пользователь не трогается; created == false.
func SeedAdmin(db *gorm.DB, name, email, password string) (created bool, err error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		logger.Warn("Admin email or password is not set. Skipping admin seeding.")
		return false, nil
	}
	if err := auth.ValidatePassword(password); err != nil {
		return false, fmt.Errorf("admin password: %w", err)
	}

	err = db.Transaction(func(tx *gorm.DB) error {
		var existing models.User
		result := tx.Where("email = ?", email).First(&existing)
		if result.Error == nil {
			logger.Info("Admin user already exists. Skipping creation.", "email", email, "role", existing.Role)
			return nil
		}
		if !errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to check for admin user: %w", result.Error)
		}

		hashedPassword, err := auth.HashPassword(password)
		if err != nil {
			return fmt.Errorf("failed to hash admin password: %w", err)
		}

		if name == "" {
			name = "Admin"
		}
		admin := &models.User{
			Name:         name,
			Email:        email,
			PasswordHash: hashedPassword,
			Role:         models.UserRoleAdmin,
			Status:       models.UserStatusActive,
		}
		if err := tx.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create admin user in database: %w", err)
		}

		logger.Warn("Created admin user", "email", email)
		created = true
		return nil
	})
	return created, err
}
