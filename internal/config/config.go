package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds everything the server reads from its environment.
type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogDev switches zap to its human readable development encoder.
	LogDev bool `env:"LOG_DEV" envDefault:"false"`

	CountdownTicks int           `env:"COUNTDOWN_TICKS" envDefault:"3"`
	TickInterval   time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	GracePeriod    time.Duration `env:"GRACE_PERIOD" envDefault:"30s"`
	IdleRoomTTL    time.Duration `env:"IDLE_ROOM_TTL" envDefault:"5m"`
	RoomInboxSize  int           `env:"ROOM_INBOX_SIZE" envDefault:"64"`
	OutboxSize     int           `env:"OUTBOX_SIZE" envDefault:"32"`

	PingInterval    time.Duration `env:"PING_INTERVAL" envDefault:"20s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"3s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
}

const envPrefix = "FIGHTCLUB_"

// Load reads an optional .env file (or the files named in FIGHTCLUB_ENV_FILE)
// and then parses FIGHTCLUB_* variables. Real environment values win.
func Load() (Config, error) {
	if files := os.Getenv(envPrefix + "ENV_FILE"); files != "" {
		if err := godotenv.Load(strings.Split(files, ",")...); err != nil {
			return Config{}, fmt.Errorf("load env file: %w", err)
		}
	} else if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](env.Options{Prefix: envPrefix})
	if err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("ADDR must not be empty"))
	}
	positive := map[string]int{
		"COUNTDOWN_TICKS": c.CountdownTicks,
		"ROOM_INBOX_SIZE": c.RoomInboxSize,
		"OUTBOX_SIZE":     c.OutboxSize,
	}
	for name, v := range positive {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	durations := map[string]time.Duration{
		"TICK_INTERVAL":    c.TickInterval,
		"GRACE_PERIOD":     c.GracePeriod,
		"IDLE_ROOM_TTL":    c.IdleRoomTTL,
		"PING_INTERVAL":    c.PingInterval,
		"WRITE_TIMEOUT":    c.WriteTimeout,
		"SHUTDOWN_TIMEOUT": c.ShutdownTimeout,
	}
	for name, d := range durations {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}
