package payments

import (
	"context"
	"prestar/src/config"
	"prestar/src/types"
)

// FeeBreakdown is the marketplace split for one settled payment. Transient;
// its fields are copied onto the Payment at settlement time.
type FeeBreakdown struct {
	MarketplaceFee int64
	PayeeAmount    int64
}

// FeeSource returns the commission in basis points for a payment type. It
// is consulted at computation time, never cached across requests, because
// the configured percentage can change between payments.
type FeeSource func(ctx context.Context, t types.PaymentType) int64

// DefaultFeeSource reads the configured commission percentages, rental and
// service having distinct defaults. Materials are not commissionable.
func DefaultFeeSource(ctx context.Context, t types.PaymentType) int64 {
	switch t {
	case types.PAYMENT_TYPE_RENTAL:
		return config.RentalFeeBasisPoints(ctx)
	case types.PAYMENT_TYPE_SERVICE:
		return config.ServiceFeeBasisPoints(ctx)
	}
	return 0
}

// ComputeFee splits amount (minor currency units) by the given basis
// points, rounding the fee half away from zero. The split always conserves
// the amount: MarketplaceFee + PayeeAmount == amount.
func ComputeFee(amount int64, basisPoints int64) FeeBreakdown {
	n := amount * basisPoints
	var fee int64
	if n >= 0 {
		fee = (n + 5000) / 10000
	} else {
		fee = (n - 5000) / 10000
	}
	return FeeBreakdown{
		MarketplaceFee: fee,
		PayeeAmount:    amount - fee,
	}
}

// ComputeFeeFor applies the per-type commission rule: MATERIAL payments
// pass through uncommissioned, RENTAL and SERVICE use the configured
// percentage.
func ComputeFeeFor(ctx context.Context, src FeeSource, t types.PaymentType, amount int64) FeeBreakdown {
	if t == types.PAYMENT_TYPE_MATERIAL {
		return FeeBreakdown{MarketplaceFee: 0, PayeeAmount: amount}
	}
	return ComputeFee(amount, src(ctx, t))
}
