package boot

import (
	"log"

	"prestar/src/common"
	"prestar/src/config"
	"prestar/src/db"
	"prestar/src/lib"
	"prestar/src/models"
	"prestar/src/payments"
	"prestar/src/types"

	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Booking{},
		&models.Payment{},
		&models.ExternalEventRecord{},
		&models.Notification{},
		&models.OutboxMessage{},
		&models.ChainCursor{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// NewEngine assembles the reconciliation engine with every rail wired to
// its production collaborators.
func NewEngine(conn *gorm.DB) *payments.Engine {
	repo := payments.NewGormRepository(conn)
	return payments.NewEngine(repo, nil,
		payments.NewMercadoPagoRail(lib.NewMercadoPagoClient()),
		payments.NewDLocalRail(),
		payments.NewPayURail(),
		payments.NewEscrowRail(lib.NewChainReader()),
	)
}

func InitBroker(engine *payments.Engine) {
	if config.API_ENV == string(types.Local) {
		go lib.KafkaCreateTopics(payments.OutboxTopicEvents, payments.OutboxTopicReview)
	}
	common.StartOutboxRelay()
	common.StartEscrowPoller(engine)
	common.StartConsumers()
}

func InitScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return
	}
	jobsWaitingInQueue := len(sched.Jobs())
	log.Println("Jobs in queue:", jobsWaitingInQueue)
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		log.Println("Error retrieving Scheduler. Check logs for info")
		return
	}
	err = sched.Shutdown()
	if err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
		return
	}
}

func InitConfigCache() {
	config.SetConfigCache(lib.NewRedisConfigCache())
}
