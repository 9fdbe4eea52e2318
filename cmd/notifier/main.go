package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/srgjo27/showtime_booking/internal/adapter/queue/rabbitmq"
	"github.com/srgjo27/showtime_booking/internal/core/domain"
	"github.com/srgjo27/showtime_booking/internal/platform/config"
	"github.com/srgjo27/showtime_booking/internal/platform/logger"
)

// notifier drains the booking event queue. It only logs for now; delivery
// to email or push would hang off handle.
func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("invalid configuration")
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	if cfg.RabbitMQURL == "" {
		log.Fatal("RABBITMQ_URL is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handle := func(_ context.Context, event domain.BookingEvent) error {
		log.WithFields(logrus.Fields{
			"event":       event.Type,
			"booking_ref": event.BookingRef,
			"owner":       event.Owner,
			"showtime_id": event.ShowtimeID,
			"seat_ids":    event.SeatIDs,
			"status":      event.Status,
			"total_cents": event.TotalCents,
		}).Info("booking event received")
		return nil
	}

	log.WithField("queue", cfg.EventsQueue).Info("notifier starting")
	err = rabbitmq.Consume(ctx, cfg.RabbitMQURL, cfg.EventsQueue, handle, log)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("notifier stopped")
	}
	log.Info("notifier exiting")
}
