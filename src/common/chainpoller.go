package common

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"prestar/src/db"
	"prestar/src/lib"
	"prestar/src/models"
	"prestar/src/payments"
	"prestar/src/types"

	"github.com/ethereum/go-ethereum/common/hexutil"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
)

const (
	escrowCursorID = "escrow"
	pollInterval   = 15 * time.Second
	maxBlockSpan   = 2000
)

// ChainSource is the slice of the chain client the poller needs.
type ChainSource interface {
	FilterEscrowLogs(ctx context.Context, from, to uint64) ([]ethtypes.Log, error)
	HeadBlock(ctx context.Context) (uint64, error)
}

// PollEscrowLogs scans contract logs past the persisted cursor and feeds
// each one through the reconciliation pipeline. The cursor only advances
// after the whole range was handled, so a crash replays logs and the
// idempotency ledger absorbs the repeats.
func PollEscrowLogs(ctx context.Context, source ChainSource, engine *payments.Engine) error {
	conn := db.GetDb()
	var cursor models.ChainCursor
	err := conn.Where(models.ChainCursor{ID: escrowCursorID}).FirstOrCreate(&cursor).Error
	if err != nil {
		log.Printf("[escrow] Error loading cursor: %s\n", err.Error())
		return err
	}
	head, err := source.HeadBlock(ctx)
	if err != nil {
		log.Printf("[escrow] Error reading head block: %s\n", err.Error())
		return err
	}
	from := cursor.BlockNumber + 1
	if from > head {
		return nil
	}
	to := head
	if to-from > maxBlockSpan {
		to = from + maxBlockSpan
	}
	logs, err := source.FilterEscrowLogs(ctx, from, to)
	if err != nil {
		log.Printf("[escrow] Error filtering logs %d-%d: %s\n", from, to, err.Error())
		return err
	}
	for _, lg := range logs {
		if lg.Removed {
			continue
		}
		body := marshalLog(&lg)
		_, err := engine.Process(ctx, types.PROVIDER_BLOCKCHAIN_ESCROW, body, payments.Header{})
		if err != nil {
			if payments.IsTransient(err) {
				log.Printf("[escrow] Transient failure at block %d, cursor not advanced: %s\n", lg.BlockNumber, err.Error())
				return err
			}
			log.Printf("[escrow] Dropping log %s:%d: %s\n", lg.TxHash.Hex(), lg.Index, err.Error())
		}
	}
	err = conn.Model(&models.ChainCursor{}).
		Where("id = ?", escrowCursorID).
		Update("block_number", to).Error
	if err != nil {
		log.Printf("[escrow] Error advancing cursor: %s\n", err.Error())
		return err
	}
	return nil
}

func marshalLog(lg *ethtypes.Log) []byte {
	topics := make([]string, 0, len(lg.Topics))
	for _, t := range lg.Topics {
		topics = append(topics, t.Hex())
	}
	body, _ := json.Marshal(map[string]any{
		"address":         lg.Address.Hex(),
		"topics":          topics,
		"data":            hexutil.Encode(lg.Data),
		"blockNumber":     lg.BlockNumber,
		"transactionHash": lg.TxHash.Hex(),
		"logIndex":        lg.Index,
		"removed":         lg.Removed,
	})
	return body
}

func StartEscrowPoller(engine *payments.Engine) {
	source := lib.NewChainReader()
	id, err := lib.CreateCronJob(func() {
		PollEscrowLogs(context.Background(), source, engine)
	}, pollInterval)
	if err != nil {
		log.Printf("[escrow] Failed to schedule poller: %s\n", err.Error())
		return
	}
	log.Printf("[escrow] Poller job scheduled: %s\n", *id)
}
