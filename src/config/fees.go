package config

import (
	"context"
	"log"
	"math"
	"os"
	"strconv"
	"time"
)

const (
	defaultRentalFeePercent  = "5"
	defaultServiceFeePercent = "2"

	feeCacheTTL = 30 * time.Second
)

// ConfigCache is a read-through cache for values that may change between
// payments, bounded by a short TTL. The redis-backed implementation lives
// in src/lib; a nil cache falls straight through to the environment.
type ConfigCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string, ttl time.Duration)
}

var configCache ConfigCache

func SetConfigCache(c ConfigCache) {
	configCache = c
}

func lookup(ctx context.Context, key, fallback string) string {
	if configCache != nil {
		if v, ok := configCache.Get(ctx, key); ok {
			return v
		}
	}
	v := os.Getenv(key)
	if v == "" {
		v = fallback
	}
	if configCache != nil {
		configCache.Set(ctx, key, v, feeCacheTTL)
	}
	return v
}

// FeeBasisPoints returns the commission for the given env key in basis
// points. Percentages are configured as decimal strings ("5", "2.5"); basis
// points keep the fee math in integers.
func FeeBasisPoints(ctx context.Context, key, fallback string) int64 {
	raw := lookup(ctx, key, fallback)
	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("[config] invalid percentage for %s: %q\n", key, raw)
		pct, _ = strconv.ParseFloat(fallback, 64)
	}
	return int64(math.Round(pct * 100))
}

func RentalFeeBasisPoints(ctx context.Context) int64 {
	return FeeBasisPoints(ctx, "MARKETPLACE_COMMISSION_PERCENTAGE", defaultRentalFeePercent)
}

func ServiceFeeBasisPoints(ctx context.Context) int64 {
	return FeeBasisPoints(ctx, "MARKETPLACE_FEE_PERCENTAGE", defaultServiceFeePercent)
}

// Provider credentials. Secrets rotate, so reads go through the same
// bounded-staleness lookup as the fee percentages.

func DLocalSecretKey(ctx context.Context) string {
	return lookup(ctx, "DLOCAL_SECRET_KEY", "")
}

func DLocalAPIKey(ctx context.Context) string {
	return lookup(ctx, "DLOCAL_API_KEY", "")
}

func PayUAPIKey(ctx context.Context) string {
	return lookup(ctx, "PAYU_API_KEY", "")
}

func PayUMerchantID(ctx context.Context) string {
	return lookup(ctx, "PAYU_MERCHANT_ID", "")
}

func MercadoPagoAccessToken(ctx context.Context) string {
	return lookup(ctx, "MP_ACCESS_TOKEN", "")
}

func MercadoPagoWebhookSecret(ctx context.Context) string {
	return lookup(ctx, "MP_WEBHOOK_SECRET", "")
}

func EscrowContractAddress() string {
	return os.Getenv("ESCROW_CONTRACT_ADDRESS")
}

func ChainRPCURL() string {
	return os.Getenv("CHAIN_RPC_URL")
}
