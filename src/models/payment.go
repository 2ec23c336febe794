package models

import (
	"prestar/src/types"
	"time"

	"github.com/google/uuid"
)

// Payment is one attempt to move money for a Booking. Amounts are integer
// minor currency units. Status is mutated only through the reconciler's
// compare-and-update path.
type Payment struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID         uuid.UUID           `gorm:"type:uuid;index" json:"booking_id"`
	Type              types.PaymentType   `json:"type"`
	Provider          types.ProviderKind  `gorm:"uniqueIndex:idx_provider_reference" json:"provider"`
	ExternalReference string              `gorm:"uniqueIndex:idx_provider_reference" json:"external_reference"`
	Amount            int64               `json:"amount"`
	Currency          string              `json:"currency"`
	Status            types.PaymentStatus `gorm:"default:pending" json:"status"`
	MarketplaceFee    int64               `json:"marketplace_fee"`
	PayeeAmount       int64               `json:"payee_amount"`
	PaidAt            *time.Time          `json:"paid_at,omitempty"`
	NeedsReview       bool                `gorm:"index" json:"needs_review"`
	ReviewReason      *string             `json:"review_reason,omitempty"`
	CheckoutURL       *string             `json:"checkout_url,omitempty"`
	Metadata          types.JSONB         `gorm:"type:jsonb" json:"metadata,omitempty"`

	types.Timestamps

	Booking Booking `gorm:"foreignKey:booking_id" json:"-"`
}
