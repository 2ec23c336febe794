package payments

import (
	"context"
	"prestar/src/types"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeFeeRounding(t *testing.T) {
	// 5% of 100.00 in minor units
	fees := ComputeFee(10000, 500)
	assert.Equal(t, int64(500), fees.MarketplaceFee)
	assert.Equal(t, int64(9500), fees.PayeeAmount)

	// 1.5 rounds away from zero
	fees = ComputeFee(30, 500)
	assert.Equal(t, int64(2), fees.MarketplaceFee)
	assert.Equal(t, int64(28), fees.PayeeAmount)

	// 50.45 rounds down
	fees = ComputeFee(1009, 500)
	assert.Equal(t, int64(50), fees.MarketplaceFee)

	fees = ComputeFee(0, 500)
	assert.Equal(t, int64(0), fees.MarketplaceFee)
	assert.Equal(t, int64(0), fees.PayeeAmount)
}

func TestComputeFeeConservation(t *testing.T) {
	amounts := []int64{1, 3, 99, 100, 101, 999, 1009, 123456789}
	rates := []int64{0, 1, 200, 250, 500, 750, 9999, 10000}
	for _, amount := range amounts {
		for _, bps := range rates {
			fees := ComputeFee(amount, bps)
			assert.Equal(t, amount, fees.MarketplaceFee+fees.PayeeAmount,
				"amount=%d bps=%d", amount, bps)
		}
	}
}

func TestComputeFeeForMaterialPassthrough(t *testing.T) {
	src := func(ctx context.Context, pt types.PaymentType) int64 { return 500 }
	fees := ComputeFeeFor(context.Background(), src, types.PAYMENT_TYPE_MATERIAL, 123456)
	assert.Equal(t, int64(0), fees.MarketplaceFee)
	assert.Equal(t, int64(123456), fees.PayeeAmount)

	fees = ComputeFeeFor(context.Background(), src, types.PAYMENT_TYPE_RENTAL, 123456)
	assert.Equal(t, int64(6173), fees.MarketplaceFee)
	assert.Equal(t, int64(117283), fees.PayeeAmount)
}

func TestDefaultFeeSourceReadsConfiguredRates(t *testing.T) {
	t.Setenv("MARKETPLACE_COMMISSION_PERCENTAGE", "7.5")
	t.Setenv("MARKETPLACE_FEE_PERCENTAGE", "2")
	ctx := context.Background()
	assert.Equal(t, int64(750), DefaultFeeSource(ctx, types.PAYMENT_TYPE_RENTAL))
	assert.Equal(t, int64(200), DefaultFeeSource(ctx, types.PAYMENT_TYPE_SERVICE))
	assert.Equal(t, int64(0), DefaultFeeSource(ctx, types.PAYMENT_TYPE_MATERIAL))
}
