package models

import (
	"prestar/src/types"

	"github.com/google/uuid"
)

type Notification struct {
	ID             uuid.UUID              `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`
	UserID         uint                   `gorm:"index" json:"user_id"`
	Kind           types.NotificationKind `json:"kind"`
	Title          string                 `json:"title"`
	Body           string                 `json:"body"`
	ReferenceType  string                 `json:"ref_name"`
	ReferenceValue string                 `json:"ref_value"`
	ReferenceBody  *types.JSONB           `gorm:"type:jsonb" json:"ref_body,omitempty"`

	types.Timestamps
}
