package utils

import (
	"context"
	"prestar/src/models"
	"prestar/src/payments"
	"prestar/src/types"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderPrefix(t *testing.T) {
	assert.Equal(t, "MAT", orderPrefix(types.PAYMENT_TYPE_MATERIAL))
	assert.Equal(t, "SRV", orderPrefix(types.PAYMENT_TYPE_SERVICE))
	assert.Equal(t, "RNT", orderPrefix(types.PAYMENT_TYPE_RENTAL))
}

func TestCreateCheckoutEscrow(t *testing.T) {
	t.Setenv("ESCROW_CONTRACT_ADDRESS", "0x5FbDB2315678afecb367f032d93F642f64180aa3")
	repo := payments.NewMemoryRepository()
	booking := &models.Booking{ID: uuid.New(), Status: types.BOOKING_PENDING, ItemTitle: "Mezcladora"}
	repo.Bookings[booking.ID] = booking

	payment, err := CreateCheckout(context.Background(), repo, &types.CreateCheckoutRequestBody{
		BookingID: booking.ID.String(),
		Type:      "rental",
		Provider:  "blockchain_escrow",
		Amount:    5000000,
		Currency:  "USD",
	})
	require.NoError(t, err)
	assert.Equal(t, types.PAYMENT_PENDING, payment.Status)
	assert.Equal(t, booking.ID.String(), payment.ExternalReference)
	assert.Nil(t, payment.CheckoutURL)
	assert.Equal(t, "0x5FbDB2315678afecb367f032d93F642f64180aa3", payment.Metadata["contract_address"])

	stored, err := repo.FindPaymentByReference(context.Background(), types.PROVIDER_BLOCKCHAIN_ESCROW, booking.ID.String())
	require.NoError(t, err)
	assert.Equal(t, payment.ID, stored.ID)
}

func TestCreateCheckoutUnknownBooking(t *testing.T) {
	repo := payments.NewMemoryRepository()
	_, err := CreateCheckout(context.Background(), repo, &types.CreateCheckoutRequestBody{
		BookingID: uuid.NewString(),
		Type:      "rental",
		Provider:  "blockchain_escrow",
		Amount:    100,
		Currency:  "USD",
	})
	require.Error(t, err)
}

func TestCreateCheckoutInvalidBookingId(t *testing.T) {
	repo := payments.NewMemoryRepository()
	_, err := CreateCheckout(context.Background(), repo, &types.CreateCheckoutRequestBody{
		BookingID: "not-a-uuid",
		Provider:  "blockchain_escrow",
	})
	require.Error(t, err)
}
