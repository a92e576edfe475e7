package models

import "gorm.io/datatypes"

// Plan - тариф из каталога (тип молока + длительность + цена)
type Plan struct {
	BaseModel
	Name             string         `gorm:"size:100;not null" json:"name"`
	SubscriptionType string         `gorm:"size:50;not null;index" json:"subscription_type"` // cow_milk, buffalo_milk
	Duration         string         `gorm:"size:20;not null" json:"duration"`                // "6days", "15days"
	Price            float64        `gorm:"not null" json:"price"`
	Currency         string         `gorm:"size:3;default:'INR'" json:"currency"`
	QuantityLitres   float64        `gorm:"default:1" json:"quantity_litres"`
	Features         datatypes.JSON `json:"features,omitempty"` // ["morning delivery", ...]
	IsActive         bool           `gorm:"default:true;index" json:"is_active"`
}
