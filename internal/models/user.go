package models

import "time"

type User struct {
	BaseModel
	Name            string     `gorm:"size:100;not null" json:"name"`
	Email           string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Phone           *string    `gorm:"size:20;uniqueIndex" json:"phone,omitempty"`
	PasswordHash    string     `gorm:"not null" json:"-"`
	Role            UserRole   `gorm:"type:varchar(20);not null;default:'customer'" json:"role"`
	Status          UserStatus `gorm:"type:varchar(20);not null;default:'active'" json:"status"`
	IsPhoneVerified bool       `gorm:"default:false" json:"is_phone_verified"`

	// Relations
	Address       *Address       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"address,omitempty"`
	Subscriptions []Subscription `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	RefreshTokens []RefreshToken `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

type RefreshToken struct {
	BaseModel
	UserID    string    `gorm:"type:varchar(36);not null;index"`
	Token     string    `gorm:"size:255;not null;uniqueIndex"`
	ExpiresAt time.Time `gorm:"not null"`
}
