package payments

import (
	"context"
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"math"
	"net/url"
	"prestar/src/config"
	"prestar/src/types"
	"strconv"
	"strings"
	"time"
)

// PayURail handles card confirmations posted as form-encoded bodies. The
// sign field is an MD5 digest over ApiKey~merchantId~reference_sale~value~
// currency~state_pol, where value uses the gateway's truncation rule: two
// decimals, collapsed to one when the second decimal is zero.
type PayURail struct {
	apiKey     func(ctx context.Context) string
	merchantId func(ctx context.Context) string
}

func NewPayURail() *PayURail {
	return &PayURail{apiKey: config.PayUAPIKey, merchantId: config.PayUMerchantID}
}

func (r *PayURail) Kind() types.ProviderKind {
	return types.PROVIDER_CARD_GATEWAY
}

func (r *PayURail) Parse(body []byte, hdr Header) (*RawEvent, error) {
	form, err := url.ParseQuery(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err.Error())
	}
	reference := form.Get("reference_sale")
	statePol := form.Get("state_pol")
	if reference == "" || statePol == "" {
		return nil, fmt.Errorf("%w: missing reference_sale or state_pol", ErrParse)
	}
	value, err := strconv.ParseFloat(form.Get("value"), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad value %q", ErrParse, form.Get("value"))
	}
	transactionId := form.Get("transaction_id")
	if transactionId == "" {
		transactionId = form.Get("reference_pol")
	}
	var occurredAt time.Time
	if raw := form.Get("transaction_date"); raw != "" {
		occurredAt, err = time.Parse("2006-01-02 15:04:05", raw)
		if err != nil {
			log.Printf("[PayU] unparseable transaction_date %q, keeping zero time", raw)
			occurredAt = time.Time{}
		}
	}
	return &RawEvent{
		Provider:          r.Kind(),
		ExternalEventID:   fmt.Sprintf("%s:%s", transactionId, statePol),
		ExternalReference: reference,
		NativeStatus:      statePol,
		Amount:            int64(math.Round(value * 100)),
		Currency:          form.Get("currency"),
		OccurredAt:        occurredAt,
		Signature:         form.Get("sign"),
		Raw:               body,
		Extra: map[string]string{
			"value":             form.Get("value"),
			"response_code_pol": form.Get("response_code_pol"),
		},
	}, nil
}

// payuValue reformats the reported amount the way the gateway signs it.
func payuValue(raw string) string {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	two := fmt.Sprintf("%.2f", v)
	if strings.HasSuffix(two, "0") {
		return two[:len(two)-1]
	}
	return two
}

func (r *PayURail) Verify(ctx context.Context, ev *RawEvent) error {
	manifest := fmt.Sprintf("%s~%s~%s~%s~%s~%s",
		r.apiKey(ctx), r.merchantId(ctx), ev.ExternalReference,
		payuValue(ev.Extra["value"]), ev.Currency, ev.NativeStatus)
	sum := md5.Sum([]byte(manifest))
	expected := hex.EncodeToString(sum[:])
	if subtle.ConstantTimeCompare([]byte(expected), []byte(strings.ToLower(ev.Signature))) != 1 {
		return ErrForged
	}
	return nil
}

func (r *PayURail) StatusMap() map[string]types.PaymentStatus {
	return map[string]types.PaymentStatus{
		"4":   types.PAYMENT_COMPLETED,
		"6":   types.PAYMENT_FAILED,
		"5":   types.PAYMENT_CANCELLED,
		"7":   types.PAYMENT_PROCESSING,
		"104": types.PAYMENT_FAILED,
	}
}
