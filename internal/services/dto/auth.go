package dto

import (
	"time"

	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
)

// RegisterRequest - запрос регистрации покупателя
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"omitempty,is-phone"`
	Password string `json:"password" validate:"required,min=8"`
}

// LoginRequest - запрос входа
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RefreshTokenRequest - запрос обновления токена
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// LogoutRequest - запрос выхода
type LogoutRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// OTPRequest - запрос кода на телефон
type OTPRequest struct {
	Phone string `json:"phone" validate:"required,is-phone"`
}

// OTPVerifyRequest - проверка кода
type OTPVerifyRequest struct {
	Phone string `json:"phone" validate:"required,is-phone"`
	Code  string `json:"code" validate:"required,len=6,numeric"`
}

// OTPResponse - код не возвращается, только срок жизни
type OTPResponse struct {
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthResponse - ответ с токенами
type AuthResponse struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
	ExpiresIn    int64   `json:"expires_in"`
	User         UserDTO `json:"user"`
}

// UserDTO - базовая информация о пользователе
type UserDTO struct {
	ID              string            `json:"id"`
	Name            string            `json:"name"`
	Email           string            `json:"email"`
	Phone           string            `json:"phone,omitempty"`
	Role            models.UserRole   `json:"role"`
	Status          models.UserStatus `json:"status"`
	IsPhoneVerified bool              `json:"is_phone_verified"`
	CreatedAt       time.Time         `json:"created_at"`
}

// NewUserDTO собирает UserDTO из модели
func NewUserDTO(u *models.User) UserDTO {
	dto := UserDTO{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            u.Role,
		Status:          u.Status,
		IsPhoneVerified: u.IsPhoneVerified,
		CreatedAt:       u.CreatedAt,
	}
	if u.Phone != nil {
		dto.Phone = *u.Phone
	}
	return dto
}
