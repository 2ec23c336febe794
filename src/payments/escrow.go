package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"prestar/src/types"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChainConfirmer checks a log against an independently fetched transaction
// receipt. found is false when the receipt does not carry the claimed log.
type ChainConfirmer interface {
	ConfirmLog(ctx context.Context, txHash string, logIndex uint, address string) (found bool, err error)
}

var (
	topicDealCreated   = crypto.Keccak256Hash([]byte("DealCreated(uint256,address,address,uint256,string)"))
	topicDealActivated = crypto.Keccak256Hash([]byte("DealActivated(uint256)"))
	topicFundsReleased = crypto.Keccak256Hash([]byte("FundsReleased(uint256,uint256,uint256)"))
	topicDealCancelled = crypto.Keccak256Hash([]byte("DealCancelled(uint256)"))
	topicDealRefunded  = crypto.Keccak256Hash([]byte("DealRefunded(uint256,uint256)"))
)

var escrowEventNames = map[common.Hash]string{
	topicDealCreated:   "DealCreated",
	topicDealActivated: "DealActivated",
	topicFundsReleased: "FundsReleased",
	topicDealCancelled: "DealCancelled",
	topicDealRefunded:  "DealRefunded",
}

// EscrowRail handles events from the on-chain escrow contract. The poller
// hands logs over as JSON; the deal id in the first indexed topic is the
// external reference, and DealCreated additionally carries the marketplace
// reference so the payment row can be bound to its deal on first sight.
type EscrowRail struct {
	confirmer ChainConfirmer
}

func NewEscrowRail(confirmer ChainConfirmer) *EscrowRail {
	return &EscrowRail{confirmer: confirmer}
}

func (r *EscrowRail) Kind() types.ProviderKind {
	return types.PROVIDER_BLOCKCHAIN_ESCROW
}

type escrowLog struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber uint64   `json:"blockNumber"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    uint     `json:"logIndex"`
	Removed     bool     `json:"removed"`
}

func (r *EscrowRail) Parse(body []byte, hdr Header) (*RawEvent, error) {
	var lg escrowLog
	if err := json.Unmarshal(body, &lg); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrParse, err.Error())
	}
	if len(lg.Topics) < 2 {
		return nil, fmt.Errorf("%w: log carries %d topics", ErrParse, len(lg.Topics))
	}
	name := escrowEventNames[common.HexToHash(lg.Topics[0])]
	if name == "" {
		name = lg.Topics[0]
	}
	dealId := new(big.Int).SetBytes(common.HexToHash(lg.Topics[1]).Bytes())
	ev := &RawEvent{
		Provider:          r.Kind(),
		ExternalEventID:   fmt.Sprintf("%s:%d", strings.ToLower(lg.TxHash), lg.LogIndex),
		ExternalReference: dealId.String(),
		NativeStatus:      name,
		Raw:               body,
		Extra: map[string]string{
			"tx_hash":   lg.TxHash,
			"log_index": fmt.Sprintf("%d", lg.LogIndex),
			"address":   lg.Address,
		},
	}
	if name == "DealCreated" {
		amount, itemId, err := decodeDealCreated(common.FromHex(lg.Data))
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrParse, err.Error())
		}
		ev.Amount = amount
		ev.AltReference = itemId
	}
	return ev, nil
}

// decodeDealCreated unpacks the non-indexed fields (owner, renter, amount,
// itemId) of a DealCreated log. The amount stays in the token's smallest
// unit.
func decodeDealCreated(data []byte) (int64, string, error) {
	if len(data) < 128 {
		return 0, "", fmt.Errorf("short data: %d bytes", len(data))
	}
	amount := new(big.Int).SetBytes(data[64:96])
	offset := new(big.Int).SetBytes(data[96:128]).Uint64()
	if offset+32 > uint64(len(data)) {
		return 0, "", fmt.Errorf("string offset %d out of range", offset)
	}
	strLen := new(big.Int).SetBytes(data[offset : offset+32]).Uint64()
	if offset+32+strLen > uint64(len(data)) {
		return 0, "", fmt.Errorf("string length %d out of range", strLen)
	}
	if !amount.IsInt64() {
		return 0, "", fmt.Errorf("amount overflows int64")
	}
	return amount.Int64(), string(data[offset+32 : offset+32+strLen]), nil
}

func (r *EscrowRail) Verify(ctx context.Context, ev *RawEvent) error {
	logIndex, err := strconv.ParseUint(ev.Extra["log_index"], 10, 32)
	if err != nil {
		// Without the index the receipt check cannot place the log, so
		// the event is unconfirmable.
		return ErrForged
	}
	found, err := r.confirmer.ConfirmLog(ctx, ev.Extra["tx_hash"], uint(logIndex), ev.Extra["address"])
	if err != nil {
		return transient("chain receipt", err)
	}
	if !found {
		return ErrForged
	}
	return nil
}

func (r *EscrowRail) StatusMap() map[string]types.PaymentStatus {
	return map[string]types.PaymentStatus{
		"DealCreated":   types.PAYMENT_PENDING,
		"DealActivated": types.PAYMENT_PROCESSING,
		"FundsReleased": types.PAYMENT_COMPLETED,
		"DealCancelled": types.PAYMENT_CANCELLED,
		"DealRefunded":  types.PAYMENT_REFUNDED,
	}
}
