package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"prestar/src/config"
	"prestar/src/types"
	"strings"
)

// PaymentResource is the provider-side view of a payment, fetched from the
// checkout provider's API after a notification names its id.
type PaymentResource struct {
	Status            string
	Amount            int64
	Currency          string
	ExternalReference string
}

// ResourceFetcher retrieves the payment resource a notification points at.
type ResourceFetcher interface {
	GetPayment(ctx context.Context, id string) (*PaymentResource, error)
}

// MercadoPagoRail handles redirect-checkout notifications. The envelope only
// carries the resource id; status and reference come from a follow-up API
// fetch, so this rail also implements Enricher.
type MercadoPagoRail struct {
	secret  func(ctx context.Context) string
	fetcher ResourceFetcher
}

func NewMercadoPagoRail(fetcher ResourceFetcher) *MercadoPagoRail {
	return &MercadoPagoRail{secret: config.MercadoPagoWebhookSecret, fetcher: fetcher}
}

func (r *MercadoPagoRail) Kind() types.ProviderKind {
	return types.PROVIDER_REDIRECT_CHECKOUT
}

type mercadoPagoEnvelope struct {
	ID     json.Number `json:"id"`
	Type   string      `json:"type"`
	Action string      `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}

func (r *MercadoPagoRail) Parse(body []byte, hdr Header) (*RawEvent, error) {
	var env mercadoPagoEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err.Error())
	}
	if env.Data.ID == "" {
		return nil, fmt.Errorf("%w: missing data.id", ErrParse)
	}
	eventId := env.ID.String()
	if eventId == "" {
		eventId = fmt.Sprintf("%s:%s", env.Action, env.Data.ID)
	}
	return &RawEvent{
		Provider:        r.Kind(),
		ExternalEventID: eventId,
		NativeStatus:    env.Action,
		Signature:       hdr["X-Signature"],
		Raw:             body,
		Extra: map[string]string{
			"type":       env.Type,
			"request_id": hdr["X-Request-Id"],
			"data_id":    env.Data.ID,
		},
	}, nil
}

// Verify checks the ts/v1 pair in X-Signature against the HMAC of the
// documented manifest id:{data.id};request-id:{x-request-id};ts:{ts};
func (r *MercadoPagoRail) Verify(ctx context.Context, ev *RawEvent) error {
	var ts, v1 string
	for _, part := range strings.Split(ev.Signature, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrForged
	}
	manifest := fmt.Sprintf("id:%s;request-id:%s;ts:%s;",
		strings.ToLower(ev.Extra["data_id"]), ev.Extra["request_id"], ts)
	mac := hmac.New(sha256.New, []byte(r.secret(ctx)))
	mac.Write([]byte(manifest))
	expected := hex.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return ErrForged
	}
	return nil
}

func (r *MercadoPagoRail) Enrich(ctx context.Context, ev *RawEvent) error {
	if ev.Extra["type"] != "payment" {
		return nil
	}
	resource, err := r.fetcher.GetPayment(ctx, ev.Extra["data_id"])
	if err != nil {
		return transient("mercadopago fetch", err)
	}
	ev.NativeStatus = resource.Status
	ev.Amount = resource.Amount
	ev.Currency = resource.Currency
	ev.ExternalReference = resource.ExternalReference
	return nil
}

func (r *MercadoPagoRail) StatusMap() map[string]types.PaymentStatus {
	return map[string]types.PaymentStatus{
		"approved":     types.PAYMENT_COMPLETED,
		"authorized":   types.PAYMENT_PROCESSING,
		"pending":      types.PAYMENT_PENDING,
		"in_process":   types.PAYMENT_PROCESSING,
		"rejected":     types.PAYMENT_FAILED,
		"cancelled":    types.PAYMENT_CANCELLED,
		"refunded":     types.PAYMENT_REFUNDED,
		"charged_back": types.PAYMENT_REFUNDED,
	}
}
