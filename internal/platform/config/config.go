package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	StoreDriver string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBMaxConns int

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SeatCacheTTL  time.Duration

	RabbitMQURL string
	EventsQueue string

	JWTSecret string

	LockTTL       time.Duration
	BookingTTL    time.Duration
	SweepInterval time.Duration
	SweepBatch    int
	OrphanGrace   time.Duration

	Currency        string
	BookingFeeCents int64

	LogLevel  string
	LogFormat string
}

// Load reads an optional .env file and then the process environment.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		// Missing files are fine; the OS environment is used as is.
		_ = godotenv.Load(f)
	}

	cfg := Config{
		Port:        envStr("APP_PORT", "8080"),
		StoreDriver: envStr("STORE_DRIVER", "postgres"),

		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envStr("DB_PORT", "5432"),
		DBUser:     envStr("DB_USER", "postgres"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     envStr("DB_NAME", "showtime_booking"),
		DBMaxConns: envInt("DB_MAX_CONNS", 25),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),
		SeatCacheTTL:  envDur("SEAT_CACHE_TTL", 5*time.Second),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		EventsQueue: envStr("BOOKING_EVENTS_QUEUE", "booking.events"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		LockTTL:       envDur("LOCK_TTL", 10*time.Minute),
		BookingTTL:    envDur("BOOKING_TTL", 15*time.Minute),
		SweepInterval: envDur("SWEEP_INTERVAL", 10*time.Second),
		SweepBatch:    envInt("SWEEP_BATCH", 100),
		OrphanGrace:   envDur("ORPHAN_GRACE", 2*time.Minute),

		Currency:        envStr("CURRENCY", "INR"),
		BookingFeeCents: int64(envInt("BOOKING_FEE_CENTS", 5000)),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "text"),
	}

	cfg.normalize()

	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("missing required env var: JWT_SECRET")
	}
	if cfg.StoreDriver != "postgres" && cfg.StoreDriver != "memory" {
		return cfg, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}

	return cfg, nil
}

func (c *Config) normalize() {
	if c.LockTTL <= 0 {
		c.LockTTL = 10 * time.Minute
	}
	if c.BookingTTL <= 0 {
		c.BookingTTL = 15 * time.Minute
	}
	if c.SweepBatch < 1 {
		c.SweepBatch = 100
	}
	if c.DBMaxConns < 1 {
		c.DBMaxConns = 25
	}
	if c.BookingFeeCents < 0 {
		c.BookingFeeCents = 0
	}
	// The sweeper has to tick well inside one lock lifetime.
	if ceiling := c.LockTTL / 4; c.SweepInterval <= 0 || c.SweepInterval > ceiling {
		c.SweepInterval = ceiling
	}
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
