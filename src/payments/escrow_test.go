package payments

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"prestar/src/types"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConfirmer struct {
	found bool
	err   error
}

func (f *fakeConfirmer) ConfirmLog(ctx context.Context, txHash string, logIndex uint, address string) (bool, error) {
	return f.found, f.err
}

func word(v *big.Int) []byte {
	return common.LeftPadBytes(v.Bytes(), 32)
}

func dealCreatedData(amount int64, itemId string) []byte {
	data := make([]byte, 0, 192)
	data = append(data, word(big.NewInt(0))...) // owner
	data = append(data, word(big.NewInt(0))...) // renter
	data = append(data, word(big.NewInt(amount))...)
	data = append(data, word(big.NewInt(128))...) // string offset
	data = append(data, word(big.NewInt(int64(len(itemId))))...)
	data = append(data, common.RightPadBytes([]byte(itemId), 32)...)
	return data
}

func escrowLogBody(t *testing.T, topic0 common.Hash, dealId int64, data []byte) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"address":         "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		"topics":          []string{topic0.Hex(), common.BigToHash(big.NewInt(dealId)).Hex()},
		"data":            hexutil.Encode(data),
		"blockNumber":     120,
		"transactionHash": "0xAbC0000000000000000000000000000000000000000000000000000000000001",
		"logIndex":        3,
		"removed":         false,
	})
	require.NoError(t, err)
	return body
}

func TestEscrowParseDealCreated(t *testing.T) {
	rail := NewEscrowRail(&fakeConfirmer{found: true})
	body := escrowLogBody(t, topicDealCreated, 42, dealCreatedData(5000000, "booking-9f0b"))

	ev, err := rail.Parse(body, Header{})
	require.NoError(t, err)
	assert.Equal(t, "DealCreated", ev.NativeStatus)
	assert.Equal(t, "42", ev.ExternalReference)
	assert.Equal(t, "booking-9f0b", ev.AltReference)
	assert.Equal(t, int64(5000000), ev.Amount)
	assert.Equal(t, "0xabc0000000000000000000000000000000000000000000000000000000000001:3", ev.ExternalEventID)
}

func TestEscrowParseFundsReleased(t *testing.T) {
	rail := NewEscrowRail(&fakeConfirmer{found: true})
	body := escrowLogBody(t, topicFundsReleased, 7, nil)

	ev, err := rail.Parse(body, Header{})
	require.NoError(t, err)
	assert.Equal(t, "FundsReleased", ev.NativeStatus)
	assert.Equal(t, "7", ev.ExternalReference)
	assert.Empty(t, ev.AltReference)
}

func TestEscrowParseRejectsShortLog(t *testing.T) {
	rail := NewEscrowRail(&fakeConfirmer{})
	body, _ := json.Marshal(map[string]any{"topics": []string{topicDealActivated.Hex()}})
	_, err := rail.Parse(body, Header{})
	require.ErrorIs(t, err, ErrParse)
}

func TestEscrowVerify(t *testing.T) {
	body := escrowLogBody(t, topicDealActivated, 7, nil)

	rail := NewEscrowRail(&fakeConfirmer{found: true})
	ev, err := rail.Parse(body, Header{})
	require.NoError(t, err)
	assert.NoError(t, rail.Verify(context.Background(), ev))

	// receipt does not carry the claimed log
	rail = NewEscrowRail(&fakeConfirmer{found: false})
	assert.ErrorIs(t, rail.Verify(context.Background(), ev), ErrForged)

	// node unreachable
	rail = NewEscrowRail(&fakeConfirmer{err: errors.New("connection refused")})
	err = rail.Verify(context.Background(), ev)
	require.Error(t, err)
	assert.True(t, IsTransient(err))
}

func TestEscrowStatusMap(t *testing.T) {
	m := NewEscrowRail(&fakeConfirmer{}).StatusMap()
	assert.Equal(t, types.PAYMENT_PENDING, m["DealCreated"])
	assert.Equal(t, types.PAYMENT_PROCESSING, m["DealActivated"])
	assert.Equal(t, types.PAYMENT_COMPLETED, m["FundsReleased"])
	assert.Equal(t, types.PAYMENT_CANCELLED, m["DealCancelled"])
	assert.Equal(t, types.PAYMENT_REFUNDED, m["DealRefunded"])
}

func TestDecodeDealCreated(t *testing.T) {
	amount, itemId, err := decodeDealCreated(dealCreatedData(123456, "itm-1"))
	require.NoError(t, err)
	assert.Equal(t, int64(123456), amount)
	assert.Equal(t, "itm-1", itemId)

	_, _, err = decodeDealCreated([]byte{0x01, 0x02})
	require.Error(t, err)
}

func TestEscrowVerifyRejectsGarbledLogIndex(t *testing.T) {
	rail := NewEscrowRail(&fakeConfirmer{found: true})
	ev, err := rail.Parse(escrowLogBody(t, topicDealActivated, 7, nil), Header{})
	require.NoError(t, err)

	// without a usable index the receipt check cannot place the log, and
	// it must not quietly confirm against index 0
	ev.Extra["log_index"] = "not-a-number"
	assert.ErrorIs(t, rail.Verify(context.Background(), ev), ErrForged)

	delete(ev.Extra, "log_index")
	assert.ErrorIs(t, rail.Verify(context.Background(), ev), ErrForged)
}
