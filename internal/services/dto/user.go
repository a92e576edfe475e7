package dto

import (
	"github.com/creative2126/milk-delivery-backend-sub001/internal/models"
)

// UserResponse - /users/me: пользователь вместе с адресом доставки
type UserResponse struct {
	UserDTO
	Address *AddressDTO `json:"address,omitempty"`
}

// UpdateUserRequest - смена имени и/или телефона
type UpdateUserRequest struct {
	Name  string  `json:"name" validate:"required,min=2,max=100"`
	Phone *string `json:"phone" validate:"omitempty,is-phone"`
}

// AddressRequest - адрес доставки
type AddressRequest struct {
	Line1                string   `json:"line1" validate:"required,max=255"`
	Line2                string   `json:"line2" validate:"omitempty,max=255"`
	Landmark             string   `json:"landmark" validate:"omitempty,max=255"`
	City                 string   `json:"city" validate:"required,max=100"`
	Pincode              string   `json:"pincode" validate:"required,is-pincode"`
	Latitude             *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude            *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
	DeliveryInstructions string   `json:"delivery_instructions" validate:"omitempty,max=500"`
}

type AddressDTO struct {
	Line1                string   `json:"line1"`
	Line2                string   `json:"line2,omitempty"`
	Landmark             string   `json:"landmark,omitempty"`
	City                 string   `json:"city"`
	Pincode              string   `json:"pincode"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`
	DeliveryInstructions string   `json:"delivery_instructions,omitempty"`
}

func NewAddressDTO(a *models.Address) *AddressDTO {
	if a == nil {
		return nil
	}
	return &AddressDTO{
		Line1:                a.Line1,
		Line2:                a.Line2,
		Landmark:             a.Landmark,
		City:                 a.City,
		Pincode:              a.Pincode,
		Latitude:             a.Latitude,
		Longitude:            a.Longitude,
		DeliveryInstructions: a.DeliveryInstructions,
	}
}

// PaginatedResponse - общий ответ для списков
type PaginatedResponse struct {
	Data       interface{} `json:"data"`
	Total      int64       `json:"total"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
	TotalPages int         `json:"total_pages"`
	HasMore    bool        `json:"has_more"`
}

// NewPaginatedResponse считает total_pages и has_more
func NewPaginatedResponse(data interface{}, total int64, page, pageSize int) *PaginatedResponse {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return &PaginatedResponse{
		Data:       data,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
		HasMore:    page < totalPages,
	}
}
