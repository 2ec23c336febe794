package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"prestar/src/config"
	"prestar/src/types"
	"strings"
)

// DLocalRail handles the local alternative-payment processor. Notifications
// are a JSON envelope signed with HMAC-SHA256 over the raw body, carried in
// the X-Signature header.
type DLocalRail struct {
	secret func(ctx context.Context) string
}

func NewDLocalRail() *DLocalRail {
	return &DLocalRail{secret: config.DLocalSecretKey}
}

func (r *DLocalRail) Kind() types.ProviderKind {
	return types.PROVIDER_LOCAL_PROCESSOR
}

type dlocalEnvelope struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		ID       string  `json:"id"`
		Status   string  `json:"status"`
		Amount   float64 `json:"amount"`
		Currency string  `json:"currency"`
		OrderID  string  `json:"order_id"`
	} `json:"data"`
}

func (r *DLocalRail) Parse(body []byte, hdr Header) (*RawEvent, error) {
	var env dlocalEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err.Error())
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("%w: missing payment id", ErrParse)
	}
	eventId := env.ID
	if eventId == "" {
		eventId = fmt.Sprintf("%s:%s", env.Data.ID, strings.ToUpper(env.Data.Status))
	}
	return &RawEvent{
		Provider:          r.Kind(),
		ExternalEventID:   eventId,
		ExternalReference: env.Data.ID,
		NativeStatus:      strings.ToUpper(env.Data.Status),
		Amount:            int64(math.Round(env.Data.Amount * 100)),
		Currency:          env.Data.Currency,
		Signature:         hdr["X-Signature"],
		Raw:               body,
		Extra:             map[string]string{"order_id": env.Data.OrderID},
	}, nil
}

func (r *DLocalRail) Verify(ctx context.Context, ev *RawEvent) error {
	mac := hmac.New(sha256.New, []byte(r.secret(ctx)))
	mac.Write(ev.Raw)
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(ev.Signature))) {
		return ErrForged
	}
	return nil
}

func (r *DLocalRail) StatusMap() map[string]types.PaymentStatus {
	return map[string]types.PaymentStatus{
		"PAID":       types.PAYMENT_COMPLETED,
		"AUTHORIZED": types.PAYMENT_COMPLETED,
		"PENDING":    types.PAYMENT_PROCESSING,
		"REJECTED":   types.PAYMENT_FAILED,
		"CANCELLED":  types.PAYMENT_CANCELLED,
		"EXPIRED":    types.PAYMENT_CANCELLED,
		"REFUNDED":   types.PAYMENT_REFUNDED,
	}
}
