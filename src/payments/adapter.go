package payments

import (
	"context"
	"prestar/src/types"
)

// Rail is one external payment provider as the engine sees it: a structural
// decoder for its wire format, an authenticity check, and a fixed mapping
// from its native status vocabulary to the canonical one.
type Rail interface {
	Kind() types.ProviderKind

	// Parse decodes the transport payload. It performs no business
	// validation and no I/O; malformed input returns ErrParse.
	Parse(body []byte, hdr Header) (*RawEvent, error)

	// Verify establishes that the event genuinely originated from the
	// provider. Returns nil, ErrForged, or a TransientError when the
	// check itself could not be carried out.
	Verify(ctx context.Context, ev *RawEvent) error

	// StatusMap is the rail's native-status vocabulary. Native statuses
	// absent from the map are normalized to PENDING with a review flag,
	// never dropped.
	StatusMap() map[string]types.PaymentStatus
}

// Enricher is implemented by rails whose notifications only name a resource
// that has to be fetched back from the provider (the redirect-checkout rail
// sends an id envelope, not the payment itself). Enrich runs after Verify,
// so only authentic envelopes cause outbound calls.
type Enricher interface {
	Enrich(ctx context.Context, ev *RawEvent) error
}
