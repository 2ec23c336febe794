package models

import (
	"prestar/src/types"
	"time"

	"github.com/google/uuid"
)

// OutboxMessage is written in the same database transaction as the state
// change it announces. The relay publishes committed rows and never the
// other way around, so a crash between commit and publish loses nothing
// and a crash before commit announces nothing.
type OutboxMessage struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	Topic       string      `json:"topic"`
	Payload     types.JSONB `gorm:"type:jsonb" json:"payload"`
	Attempts    int         `json:"attempts"`
	PublishedAt *time.Time  `gorm:"index" json:"published_at,omitempty"`
	LastError   *string     `json:"last_error,omitempty"`

	types.Timestamps
}
