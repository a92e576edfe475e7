package repositories

import (
	"errors"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrAddressNotFound = errors.New("address not found")

type AddressRepository interface {
	FindByUserID(db *gorm.DB, userID string) (*models.Address, error)
	Upsert(db *gorm.DB, address *models.Address) error
}

type addressRepository struct{}

func NewAddressRepository() AddressRepository {
	return &addressRepository{}
}

func (r *addressRepository) FindByUserID(db *gorm.DB, userID string) (*models.Address, error) {
	var address models.Address
	if err := db.Where("user_id = ?", userID).First(&address).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAddressNotFound
		}
		return nil, err
	}
	return &address, nil
}

// Upsert - один адрес на пользователя (уникальный user_id)
func (r *addressRepository) Upsert(db *gorm.DB, address *models.Address) error {
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"line1", "line2", "landmark", "city", "pincode",
			"latitude", "longitude", "delivery_instructions", "updated_at",
		}),
	}).Create(address).Error
}
