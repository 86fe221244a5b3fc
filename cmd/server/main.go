package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/pedalhouse/reservation/internal/config"
	"github.com/pedalhouse/reservation/internal/database"
	"github.com/pedalhouse/reservation/internal/handler"
	"github.com/pedalhouse/reservation/internal/queue"
	"github.com/pedalhouse/reservation/internal/repository"
	"github.com/pedalhouse/reservation/internal/router"
	"github.com/pedalhouse/reservation/internal/service"
	"github.com/pedalhouse/reservation/internal/sweeper"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	rdb := config.NewRedisClient()
	if rdb == nil {
		log.Println("redis unavailable; summary cache and rate limiting disabled")
	}

	runner := database.NewTxRunner(db)
	studios := repository.NewStudioRepo(db)
	seats := repository.NewSeatRepo(db)
	occurrences := repository.NewOccurrenceRepo(db)
	scheduleSeats := repository.NewScheduleSeatRepo(db)
	waitlist := repository.NewWaitlistRepo(db)
	assets := repository.NewAssetRepo(db)
	loans := repository.NewLoanRepo(db)
	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)

	capacity := service.NewCapacity(scheduleSeats, waitlist, occurrences, rdb, cfg.SummaryCacheTTL)
	inventory := service.NewInventory(runner, studios, seats, occurrences, scheduleSeats, waitlist, capacity, cfg.HoldTTL)
	ledger := service.NewLedger(runner, assets, loans, cfg.LoanMaxPerKind)
	catalog := service.NewCatalog(studios, seats)

	sw := sweeper.New(inventory, occurrences, loans)
	if err := sw.Start(cfg.SweepCron); err != nil {
		log.Fatalf("sweeper: %v", err)
	}
	defer sw.Stop()

	go func() {
		if err := queue.StartConsumer(); err != nil {
			log.Printf("queue consumer stopped: %v", err)
		}
	}()

	e := echo.New()
	e.HideBanner = true
	router.Register(e, router.Handlers{
		Auth:        handler.NewAuthHandler(cfg, users, tokens),
		Studio:      handler.NewStudioHandler(studios, seats, catalog),
		Occurrence:  handler.NewOccurrenceHandler(runner, studios, occurrences, inventory),
		Reservation: handler.NewReservationHandler(inventory, scheduleSeats),
		Loan:        handler.NewLoanHandler(ledger, assets, loans),
	}, cfg, rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
