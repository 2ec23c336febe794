package common

import (
	"log"
	"time"

	"prestar/src/config"
	"prestar/src/db"
	"prestar/src/lib"
	"prestar/src/models"
	"prestar/src/types"

	"gorm.io/gorm"
)

const (
	maxOutboxAttempts = 10
	outboxBatchSize   = 50
	relayInterval     = 5 * time.Second
)

type produceFunc func(topic string, payload *types.JSONB) error

// selectProducer picks the transport for the current environment. local
// publishes to kafka, test and production go through SQS.
func selectProducer() produceFunc {
	env := config.API_ENV
	if env == string(types.Production) || env == string(types.Test) {
		return lib.SQSProduceMessage
	}
	return func(topic string, payload *types.JSONB) error {
		return lib.KafkaProduceMessage("payments-relay", topic, payload)
	}
}

// RelayOutbox drains one batch of unpublished outbox rows. Rows are only
// marked published after the broker accepted them; a failed publish bumps
// the attempt counter and the row is retried on the next tick.
func RelayOutbox() {
	conn := db.GetDb()
	produce := selectProducer()

	var batch []models.OutboxMessage
	err := conn.
		Where("published_at IS NULL AND attempts < ?", maxOutboxAttempts).
		Order("created_at asc").
		Limit(outboxBatchSize).
		Find(&batch).
		Error
	if err != nil {
		log.Printf("[outbox] Error loading batch: %s\n", err.Error())
		return
	}
	for _, m := range batch {
		if err := produce(m.Topic, &m.Payload); err != nil {
			msg := err.Error()
			uerr := conn.Model(&models.OutboxMessage{}).
				Where("id = ?", m.ID).
				Updates(map[string]any{
					"attempts":   gorm.Expr("attempts + 1"),
					"last_error": msg,
				}).Error
			if uerr != nil {
				log.Printf("[outbox] Error recording failure for %s: %s\n", m.ID, uerr.Error())
			}
			continue
		}
		now := time.Now().UTC()
		uerr := conn.Model(&models.OutboxMessage{}).
			Where("id = ?", m.ID).
			Updates(map[string]any{
				"attempts":     gorm.Expr("attempts + 1"),
				"published_at": now,
			}).Error
		if uerr != nil {
			log.Printf("[outbox] Error marking %s published: %s\n", m.ID, uerr.Error())
		}
	}
}

func StartOutboxRelay() {
	id, err := lib.CreateCronJob(RelayOutbox, relayInterval)
	if err != nil {
		log.Printf("[outbox] Failed to schedule relay: %s\n", err.Error())
		return
	}
	log.Printf("[outbox] Relay job scheduled: %s\n", *id)
}
