package utils

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log"
	"os"
	"time"

	"prestar/src/config"
	"prestar/src/lib"
	"prestar/src/models"
	"prestar/src/payments"
	"prestar/src/types"

	"github.com/google/uuid"
)

func orderPrefix(ptype types.PaymentType) string {
	switch ptype {
	case types.PAYMENT_TYPE_MATERIAL:
		return "MAT"
	case types.PAYMENT_TYPE_SERVICE:
		return "SRV"
	default:
		return "RNT"
	}
}

// CreateCheckout opens a payment attempt for a booking: it creates the
// pending Payment row bound to a provider reference and, for hosted rails,
// the redirect URL the payer is sent to. Reconciliation from here on is
// driven entirely by provider notifications.
func CreateCheckout(ctx context.Context, repo payments.Repository, params *types.CreateCheckoutRequestBody) (*models.Payment, error) {
	bookingId, err := uuid.Parse(params.BookingID)
	if err != nil {
		return nil, fmt.Errorf("invalid booking id: %w", err)
	}
	booking, err := repo.GetBooking(ctx, bookingId)
	if err != nil {
		return nil, err
	}

	payment := &models.Payment{
		ID:        uuid.New(),
		BookingID: booking.ID,
		Type:      types.PaymentType(params.Type),
		Provider:  types.ProviderKind(params.Provider),
		Amount:    params.Amount,
		Currency:  params.Currency,
		Status:    types.PAYMENT_PENDING,
	}

	switch payment.Provider {
	case types.PROVIDER_REDIRECT_CHECKOUT:
		payment.ExternalReference = payment.ID.String()
		client := lib.NewMercadoPagoClient()
		checkoutUrl, err := client.CreateCheckoutPreference(ctx, payment.ExternalReference, booking.ItemTitle, params.Currency, params.Amount)
		if err != nil {
			return nil, err
		}
		payment.CheckoutURL = &checkoutUrl

	case types.PROVIDER_LOCAL_PROCESSOR:
		orderId := fmt.Sprintf("%s-%s-%d", orderPrefix(payment.Type), booking.ID, time.Now().Unix())
		resp, err := lib.DLocalCreatePayment(ctx, &lib.DLocalPaymentRequest{
			Amount:            float64(params.Amount) / 100,
			Currency:          params.Currency,
			Country:           os.Getenv("DLOCAL_COUNTRY"),
			PaymentMethodFlow: "REDIRECT",
			OrderID:           orderId,
			NotificationURL:   fmt.Sprintf("%s/webhooks/dlocal", config.BaseCallbackURL()),
			CallbackURL:       fmt.Sprintf("%s/bookings/%s", config.BaseCallbackURL(), booking.ID),
		})
		if err != nil {
			return nil, err
		}
		payment.ExternalReference = resp.ID
		payment.CheckoutURL = &resp.RedirectURL
		payment.Metadata = types.JSONB{"order_id": orderId}

	case types.PROVIDER_CARD_GATEWAY:
		payment.ExternalReference = payment.ID.String()
		value := fmt.Sprintf("%.2f", float64(params.Amount)/100)
		manifest := fmt.Sprintf("%s~%s~%s~%s~%s",
			config.PayUAPIKey(ctx), config.PayUMerchantID(ctx),
			payment.ExternalReference, value, params.Currency)
		sum := md5.Sum([]byte(manifest))
		checkoutUrl := os.Getenv("PAYU_CHECKOUT_URL")
		payment.CheckoutURL = &checkoutUrl
		payment.Metadata = types.JSONB{
			"merchant_id":      config.PayUMerchantID(ctx),
			"reference_code":   payment.ExternalReference,
			"amount":           value,
			"signature":        hex.EncodeToString(sum[:]),
			"confirmation_url": fmt.Sprintf("%s/webhooks/payu", config.BaseCallbackURL()),
		}

	case types.PROVIDER_BLOCKCHAIN_ESCROW:
		// The deal id only exists once DealCreated lands on chain; until
		// then the booking id is the reference the poller rebinds from.
		payment.ExternalReference = booking.ID.String()
		payment.Metadata = types.JSONB{
			"contract_address": config.EscrowContractAddress(),
		}

	default:
		return nil, payments.ErrUnknownProvider
	}

	if err := repo.CreatePayment(ctx, payment); err != nil {
		return nil, err
	}
	log.Printf("[checkout] Created %s payment %s for booking %s\n", payment.Provider, payment.ID, booking.ID)
	return payment, nil
}
