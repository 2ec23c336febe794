package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

type Env string

const (
	Local      Env = "local"
	Test       Env = "test"
	Production Env = "production"
)

type PaymentStatus string

const (
	PAYMENT_PENDING    PaymentStatus = "pending"
	PAYMENT_PROCESSING PaymentStatus = "processing"
	PAYMENT_COMPLETED  PaymentStatus = "completed"
	PAYMENT_FAILED     PaymentStatus = "failed"
	PAYMENT_REFUNDED   PaymentStatus = "refunded"
	PAYMENT_CANCELLED  PaymentStatus = "cancelled"
)

// Terminal reports whether no further transition is allowed out of s.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case PAYMENT_FAILED, PAYMENT_CANCELLED, PAYMENT_REFUNDED:
		return true
	}
	return false
}

type PaymentType string

const (
	PAYMENT_TYPE_RENTAL   PaymentType = "rental"
	PAYMENT_TYPE_MATERIAL PaymentType = "material"
	PAYMENT_TYPE_SERVICE  PaymentType = "service"
)

type ProviderKind string

const (
	PROVIDER_REDIRECT_CHECKOUT ProviderKind = "redirect_checkout"
	PROVIDER_LOCAL_PROCESSOR   ProviderKind = "local_processor"
	PROVIDER_CARD_GATEWAY      ProviderKind = "card_gateway"
	PROVIDER_BLOCKCHAIN_ESCROW ProviderKind = "blockchain_escrow"
)

type BookingStatus string

const (
	BOOKING_PENDING   BookingStatus = "pending"
	BOOKING_CONFIRMED BookingStatus = "confirmed"
	BOOKING_COMPLETED BookingStatus = "completed"
	BOOKING_CANCELLED BookingStatus = "cancelled"
)

type NotificationKind string

const (
	NOTIFY_PAYMENT_RECEIVED           NotificationKind = "payment_received"
	NOTIFY_BOOKING_CONFIRMED          NotificationKind = "booking_confirmed"
	NOTIFY_PAYMENT_FAILED             NotificationKind = "payment_failed"
	NOTIFY_PAYMENT_REFUNDED           NotificationKind = "payment_refunded"
	NOTIFY_MATERIAL_PAYMENT_COMPLETED NotificationKind = "material_payment_completed"
	NOTIFY_SERVICE_PAYMENT_COMPLETED  NotificationKind = "service_payment_completed"
	NOTIFY_MANUAL_REVIEW              NotificationKind = "manual_review"
)

type CreateCheckoutRequestBody struct {
	BookingID string `json:"booking_id" binding:"required,uuid"`
	Type      string `json:"type" binding:"required,oneof=rental material service"`
	Provider  string `json:"provider" binding:"required,oneof=redirect_checkout local_processor card_gateway blockchain_escrow"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Currency  string `json:"currency" binding:"required,currencycode"`
}

type PaymentQueryFilters struct {
	BookingID   string `form:"booking_id"`
	Provider    string `form:"provider"`
	Status      string `form:"status"`
	NeedsReview *bool  `form:"needs_review"`
}

type Handler func(payload string)
