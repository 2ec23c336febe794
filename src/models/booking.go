package models

import (
	"prestar/src/types"
	"time"

	"github.com/google/uuid"
)

type Booking struct {
	ID            uuid.UUID           `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	Status        types.BookingStatus `gorm:"default:pending" json:"status"`
	ItemTitle     string              `json:"item_title,omitempty"`
	PayerID       uint                `json:"payer_id,omitempty"`
	PayeeID       uint                `json:"payee_id,omitempty"`
	ServicePaid   bool                `json:"service_paid"`
	MaterialsPaid bool                `json:"materials_paid"`
	ConfirmedAt   *time.Time          `json:"confirmed_at,omitempty"`

	Payer    *User      `gorm:"foreignKey:payer_id" json:"payer,omitempty"`
	Payee    *User      `gorm:"foreignKey:payee_id" json:"payee,omitempty"`
	Payments []*Payment `json:"payments,omitempty"`

	types.Timestamps
}
