package models

import "prestar/src/types"

type User struct {
	ID    uint   `gorm:"primarykey" json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`

	Bookings []Booking `gorm:"foreignKey:payer_id" json:"bookings,omitempty"`

	types.Timestamps
}
