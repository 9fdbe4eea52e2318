package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	rediscache "github.com/srgjo27/showtime_booking/internal/adapter/cache/redis"
	"github.com/srgjo27/showtime_booking/internal/adapter/handler"
	"github.com/srgjo27/showtime_booking/internal/adapter/payment"
	"github.com/srgjo27/showtime_booking/internal/adapter/queue/rabbitmq"
	"github.com/srgjo27/showtime_booking/internal/adapter/repository/memory"
	"github.com/srgjo27/showtime_booking/internal/adapter/repository/postgres"
	"github.com/srgjo27/showtime_booking/internal/core/ports"
	"github.com/srgjo27/showtime_booking/internal/core/services"
	"github.com/srgjo27/showtime_booking/internal/platform/clock"
	"github.com/srgjo27/showtime_booking/internal/platform/config"
	"github.com/srgjo27/showtime_booking/internal/platform/database"
	"github.com/srgjo27/showtime_booking/internal/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	clk := clock.Real{}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		seatRepo    ports.SeatRepository
		bookingRepo ports.BookingRepository
		db          *sql.DB
	)

	switch cfg.StoreDriver {
	case "memory":
		log.Warn("using in-memory store, state is lost on restart")
		store := memory.NewStore()
		seatRepo, bookingRepo = store, store
	default:
		db, err = database.NewPostgresDB(ctx, database.Config{
			Host:     cfg.DBHost,
			Port:     cfg.DBPort,
			User:     cfg.DBUser,
			Password: cfg.DBPassword,
			DBName:   cfg.DBName,
			MaxConns: cfg.DBMaxConns,
		}, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to db after retries")
		}
		defer db.Close()

		if err := postgres.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("schema migration failed")
		}
		seatRepo = postgres.NewSeatRepository(db)
		bookingRepo = postgres.NewBookingRepository(db)
	}

	var seatCache ports.SeatCache = services.NopSeatCache{}
	if cfg.RedisAddr != "" {
		log.WithField("addr", cfg.RedisAddr).Info("connecting to redis")
		client, err := rediscache.Connect(ctx, rediscache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			log.WithError(err).Fatal("failed to connect to redis")
		}
		defer client.Close()
		seatCache = rediscache.NewSeatCache(client, cfg.SeatCacheTTL)
	}

	var events ports.EventPublisher
	if cfg.RabbitMQURL != "" {
		publisher := rabbitmq.NewPublisher(cfg.RabbitMQURL, cfg.EventsQueue, log)
		defer publisher.Close()
		events = publisher
	}

	gateway := payment.NewSimulatedGateway(clk, time.Second, log)

	ledger := services.NewSeatLedger(seatRepo, seatCache, clk, log)
	locks := services.NewLockService(ledger, clk, log, services.WithLockTTL(cfg.LockTTL))
	bookingService := services.NewBookingService(ledger, locks, bookingRepo, gateway, events, clk, services.BookingConfig{
		PendingTTL:      cfg.BookingTTL,
		Currency:        cfg.Currency,
		BookingFeeCents: cfg.BookingFeeCents,
	}, log)
	sweeper := services.NewSweeper(ledger, bookingRepo, bookingService, clk, services.SweeperConfig{
		Interval:    cfg.SweepInterval,
		Batch:       cfg.SweepBatch,
		OrphanGrace: cfg.OrphanGrace,
	}, log)

	go sweeper.Run(ctx)

	e := echo.New()
	e.HideBanner = true
	e.Logger.SetOutput(log.Writer())
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())

	handler.RegisterRoutes(e,
		handler.NewSeatHandler(ledger, locks, log),
		handler.NewBookingHandler(bookingService, log),
		cfg.JWTSecret,
	)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      e,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server startup failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info("shutting down server")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server exiting")
}
