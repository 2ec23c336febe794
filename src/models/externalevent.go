package models

import (
	"prestar/src/types"
	"time"

	"github.com/google/uuid"
)

// ExternalEventRecord is the idempotency witness for one inbound provider
// event. Rows are created once and never updated; the unique
// (provider, external_event_id) pair is the sole de-duplication key.
type ExternalEventRecord struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	Provider        types.ProviderKind `gorm:"uniqueIndex:idx_provider_event" json:"provider"`
	ExternalEventID string             `gorm:"uniqueIndex:idx_provider_event" json:"external_event_id"`
	ReceivedAt      time.Time          `json:"received_at"`
	PayloadHash     string             `json:"payload_hash"`
}
