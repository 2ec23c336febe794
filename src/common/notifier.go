package common

import (
	"fmt"
	"log"
	"os"

	"prestar/src/config"
	"prestar/src/db"
	"prestar/src/lib"
	"prestar/src/models"
	"prestar/src/payments"
	"prestar/src/types"

	"github.com/tidwall/gjson"
)

// HandlePaymentEvent delivers the notifications a committed transition
// staged. The rows already exist; this only fans them out over email, so
// redelivered messages at worst resend a mail.
func HandlePaymentEvent(payload string) {
	conn := db.GetDb()
	ids := []string{}
	for _, r := range gjson.Get(payload, "notifications").Array() {
		ids = append(ids, r.String())
	}
	if len(ids) == 0 {
		return
	}
	var notifications []models.Notification
	err := conn.Where("id IN ?", ids).Find(&notifications).Error
	if err != nil {
		log.Printf("[notifier] Error loading notifications: %s\n", err.Error())
		return
	}
	for _, n := range notifications {
		var user models.User
		if err := conn.First(&user, n.UserID).Error; err != nil {
			log.Printf("[notifier] No user %d for notification %s\n", n.UserID, n.ID)
			continue
		}
		err := lib.SendMail(&lib.SendMailInput{
			From:     os.Getenv("MAIL_FROM"),
			FromName: "Prestar",
			To:       []string{user.Email},
			Subject:  n.Title,
			Body:     n.Body,
		})
		if err != nil {
			log.Printf("[notifier] Error sending mail to %s: %s\n", user.Email, err.Error())
		}
	}
}

// HandleReviewEvent alerts operators about payments parked for manual
// review. The review queue itself is served from the database; this is the
// nudge.
func HandleReviewEvent(payload string) {
	opsEmail := os.Getenv("OPS_EMAIL")
	if opsEmail == "" {
		log.Printf("[notifier] Review event (no OPS_EMAIL set): %s\n", payload)
		return
	}
	paymentId := gjson.Get(payload, "payment_id").String()
	reason := gjson.Get(payload, "reason").String()
	err := lib.SendMail(&lib.SendMailInput{
		From:     os.Getenv("MAIL_FROM"),
		FromName: "Prestar",
		To:       []string{opsEmail},
		Subject:  fmt.Sprintf("Payment %s needs review", paymentId),
		Body:     fmt.Sprintf("Payment %s was flagged for manual review: %s", paymentId, reason),
	})
	if err != nil {
		log.Printf("[notifier] Error sending review mail: %s\n", err.Error())
	}
}

// StartConsumers wires the topic handlers to the transport matching the
// environment, mirroring the relay's split.
func StartConsumers() {
	env := config.API_ENV
	if env == string(types.Production) || env == string(types.Test) {
		lib.SQSConsumer(payments.OutboxTopicEvents, HandlePaymentEvent)
		lib.SQSConsumer(payments.OutboxTopicReview, HandleReviewEvent)
		return
	}
	lib.KafkaConsumer("prestar-notifier", []string{payments.OutboxTopicEvents}, HandlePaymentEvent)
	lib.KafkaConsumer("prestar-review", []string{payments.OutboxTopicReview}, HandleReviewEvent)
}
