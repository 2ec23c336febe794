package lib

import (
	"context"
	"fmt"
	"log"
	"math"
	"strconv"

	appconfig "prestar/src/config"
	"prestar/src/payments"

	mpconfig "github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
)

func getMercadoPagoConfig(ctx context.Context) (*mpconfig.Config, error) {
	token := appconfig.MercadoPagoAccessToken(ctx)
	cfg, err := mpconfig.New(token)
	if err != nil {
		log.Printf("[mercadopago] Error building SDK config: %s\n", err.Error())
		return nil, err
	}
	return cfg, nil
}

// MercadoPagoClient wraps the official SDK behind the fetcher the
// redirect-checkout rail enriches events with.
type MercadoPagoClient struct{}

func NewMercadoPagoClient() *MercadoPagoClient {
	return &MercadoPagoClient{}
}

func (c *MercadoPagoClient) GetPayment(ctx context.Context, id string) (*payments.PaymentResource, error) {
	cfg, err := getMercadoPagoConfig(ctx)
	if err != nil {
		return nil, err
	}
	paymentId, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("bad payment id %q: %w", id, err)
	}
	client := payment.NewClient(cfg)
	resource, err := client.Get(ctx, paymentId)
	if err != nil {
		log.Printf("[mercadopago] Error fetching payment %s: %s\n", id, err.Error())
		return nil, err
	}
	return &payments.PaymentResource{
		Status:            resource.Status,
		Amount:            int64(math.Round(resource.TransactionAmount * 100)),
		Currency:          resource.CurrencyID,
		ExternalReference: resource.ExternalReference,
	}, nil
}

// CreateCheckoutPreference registers a hosted checkout for reference and
// returns the redirect URL the payer should be sent to.
func (c *MercadoPagoClient) CreateCheckoutPreference(ctx context.Context, reference, title, currency string, amount int64) (string, error) {
	cfg, err := getMercadoPagoConfig(ctx)
	if err != nil {
		return "", err
	}
	client := preference.NewClient(cfg)
	resource, err := client.Create(ctx, preference.Request{
		ExternalReference: reference,
		NotificationURL:   fmt.Sprintf("%s/webhooks/mercadopago", appconfig.BaseCallbackURL()),
		Items: []preference.ItemRequest{
			{
				ID:         reference,
				Title:      title,
				Quantity:   1,
				CurrencyID: currency,
				UnitPrice:  float64(amount) / 100,
			},
		},
	})
	if err != nil {
		log.Printf("[mercadopago] Error creating preference: %s\n", err.Error())
		return "", err
	}
	return resource.InitPoint, nil
}
