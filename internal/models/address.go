package models

// Address - адрес доставки, один на пользователя
type Address struct {
	BaseModel
	UserID               string   `gorm:"type:varchar(36);not null;uniqueIndex" json:"user_id"`
	Line1                string   `gorm:"size:255;not null" json:"line1"`
	Line2                string   `gorm:"size:255" json:"line2,omitempty"`
	Landmark             string   `gorm:"size:255" json:"landmark,omitempty"`
	City                 string   `gorm:"size:100;not null" json:"city"`
	Pincode              string   `gorm:"size:10;not null" json:"pincode"`
	Latitude             *float64 `json:"latitude,omitempty"`
	Longitude            *float64 `json:"longitude,omitempty"`
	DeliveryInstructions string   `gorm:"size:500" json:"delivery_instructions,omitempty"`
}
