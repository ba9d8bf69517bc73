package main

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/appointly/libs/config"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/availability"
	"github.com/md-rashed-zaman/appointly/services/appointment-service/internal/model"
)

type settings struct {
	Service  string
	Port     string
	GRPCPort string

	DatabaseURL    string
	DBMaxConns     int
	DBMinConns     int
	MigrateOnStart bool

	JWTSecret string
	JWTIssuer string
	JWKSURL   string
	JWKSCache time.Duration
	TokenTTL  time.Duration
	Location  *time.Location
	SlotDay   availability.Day

	KafkaBrokers    string
	OutboxPollEvery time.Duration
	OutboxBatchSize int

	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	RateLimitPerMin   int
	RateLimitFailOpen bool

	BodyLimitBytes int64
	RequestTimeout time.Duration
	CORSOrigins    []string
}

func loadSettings() (settings, error) {
	s := settings{
		Service:           config.String("SERVICE_NAME", "appointment-service"),
		DBMaxConns:        config.Int("DB_MAX_CONNS", 10),
		DBMinConns:        config.Int("DB_MIN_CONNS", 1),
		MigrateOnStart:    config.Bool("MIGRATE_ON_START", false),
		JWTIssuer:         config.String("JWT_ISSUER", "appointly"),
		JWKSURL:           config.String("JWKS_URL", ""),
		JWKSCache:         config.Seconds("JWKS_CACHE_SECONDS", 5*time.Minute),
		TokenTTL:          time.Duration(config.Int("TOKEN_TTL_MINUTES", 60)) * time.Minute,
		KafkaBrokers:      config.String("KAFKA_BROKERS", ""),
		OutboxPollEvery:   time.Duration(config.Int("OUTBOX_POLL_MS", 2000)) * time.Millisecond,
		OutboxBatchSize:   config.Int("OUTBOX_BATCH_SIZE", 50),
		RedisAddr:         config.String("REDIS_ADDR", ""),
		RedisPassword:     config.String("REDIS_PASSWORD", ""),
		RedisDB:           config.Int("REDIS_DB", 0),
		RateLimitPerMin:   config.Int("RATE_LIMIT_PER_MINUTE", 120),
		RateLimitFailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		BodyLimitBytes:    int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20)),
		RequestTimeout:    config.Seconds("REQUEST_TIMEOUT_SECONDS", 15*time.Second),
		CORSOrigins:       config.List("CORS_ALLOWED_ORIGINS", ""),
	}

	var err error
	if s.Port, err = config.Port("PORT", "8080"); err != nil {
		return s, err
	}
	if s.GRPCPort, err = config.Port("GRPC_PORT", "9090"); err != nil {
		return s, err
	}
	if s.DatabaseURL, err = config.RequiredString("DATABASE_URL"); err != nil {
		return s, err
	}
	s.JWTSecret = config.String("JWT_SECRET", "")
	if s.JWTSecret == "" && s.JWKSURL == "" {
		return s, fmt.Errorf("JWT_SECRET or JWKS_URL is required")
	}
	if s.Location, err = time.LoadLocation(config.String("BOOKING_TIMEZONE", "UTC")); err != nil {
		return s, fmt.Errorf("BOOKING_TIMEZONE: %w", err)
	}
	if s.SlotDay, err = loadSlotDay(); err != nil {
		return s, err
	}
	return s, nil
}

// loadSlotDay reads the grid used to list free times of a day.
func loadSlotDay() (availability.Day, error) {
	open, err := model.ParseClock(config.String("SLOT_DAY_START", "09:00"))
	if err != nil {
		return availability.Day{}, fmt.Errorf("SLOT_DAY_START: %w", err)
	}
	closing, err := model.ParseClock(config.String("SLOT_DAY_END", "17:00"))
	if err != nil {
		return availability.Day{}, fmt.Errorf("SLOT_DAY_END: %w", err)
	}
	if closing <= open {
		return availability.Day{}, fmt.Errorf("SLOT_DAY_END must be after SLOT_DAY_START")
	}
	step := time.Duration(config.Int("SLOT_STEP_MINUTES", 30)) * time.Minute
	return availability.Day{Open: open, Close: closing, Step: step}, nil
}
