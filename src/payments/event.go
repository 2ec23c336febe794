package payments

import (
	"crypto/sha256"
	"encoding/hex"
	"prestar/src/models"
	"prestar/src/types"
	"time"
)

// Header carries the transport headers a rail needs for parsing and
// signature verification, keyed by canonical header name.
type Header map[string]string

// RawEvent is the structurally-decoded form of one inbound provider
// notification. Adapters fill it without applying any business rules.
type RawEvent struct {
	Provider          types.ProviderKind
	ExternalEventID   string
	ExternalReference string
	// AltReference is a secondary correlation id some rails carry, e.g.
	// the escrow contract emits the marketplace reference only on deal
	// creation and the chain-assigned deal id afterwards.
	AltReference string
	NativeStatus string
	Amount       int64
	Currency     string
	OccurredAt   time.Time
	Signature    string
	Raw          []byte
	Extra        map[string]string
}

// PaymentEvent is the canonical, provider-agnostic event applied by the
// reconciler.
type PaymentEvent struct {
	Provider          types.ProviderKind
	ExternalEventID   string
	ExternalReference string
	AltReference      string
	Status            types.PaymentStatus
	NativeStatus      string
	// NeedsReview marks events whose native status had no canonical
	// mapping. They settle as PENDING but are surfaced to operators
	// instead of being dropped.
	NeedsReview bool
	Amount      int64
	Currency    string
	OccurredAt  time.Time
	PayloadHash string
}

type OutcomeKind string

const (
	OutcomeApplied           OutcomeKind = "applied"
	OutcomeDuplicate         OutcomeKind = "duplicate"
	OutcomeUnknownReference  OutcomeKind = "unknown_reference"
	OutcomeInvalidTransition OutcomeKind = "invalid_transition"
)

// Outcome describes what processing one inbound event did. Every kind maps
// to a success acknowledgment at the transport layer; only errors do not.
type Outcome struct {
	Kind    OutcomeKind
	Payment *models.Payment
	From    types.PaymentStatus
	To      types.PaymentStatus
}

func hashPayload(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
