package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const envPrefix = "PARKGATE"

// Store kinds.
const (
	StoreSQLite = "sqlite"
	StoreCSV    = "csv"
	StoreMemory = "memory"
)

// Link kinds.
const (
	LinkSerial = "serial"
	LinkTCP    = "tcp"
)

type Config struct {
	Env      string `envconfig:"ENV" default:"dev"` // "dev" | "prod"
	HTTPAddr string `envconfig:"HTTP_ADDR" default:":8080"`
	GRPCAddr string `envconfig:"GRPC_ADDR" default:":9090"` // empty disables the health service

	// Record store
	Store   string `envconfig:"STORE" default:"sqlite"`
	DBPath  string `envconfig:"DB_PATH" default:"./data/parkgate.db"`
	CSVPath string `envconfig:"CSV_PATH" default:"./data/plates_log.csv"`
	SeedDev bool   `envconfig:"SEED_DEV" default:"false"`

	// Device link
	Link            string        `envconfig:"LINK" default:"serial"`
	SerialPort      string        `envconfig:"SERIAL_PORT" default:"/dev/ttyACM0"`
	BaudRate        int           `envconfig:"BAUD_RATE" default:"9600"`
	TCPAddr         string        `envconfig:"TCP_ADDR" default:"127.0.0.1:7000"`
	ResetDelay      time.Duration `envconfig:"RESET_DELAY" default:"2s"`
	IdleReadTimeout time.Duration `envconfig:"IDLE_READ_TIMEOUT" default:"1s"`
	ReconnectDelay  time.Duration `envconfig:"RECONNECT_DELAY" default:"5s"`

	// Billing
	RatePerHour       int64         `envconfig:"RATE_PER_HOUR" default:"200"`
	SettlementTimeout time.Duration `envconfig:"SETTLEMENT_TIMEOUT" default:"15s"`

	// Settlement events
	NATSURL     string `envconfig:"NATS_URL"` // empty disables publishing
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"parkgate.settlements"`

	// Audit retention
	AuditRetentionDays int `envconfig:"AUDIT_RETENTION_DAYS" default:"90"` // 0 = keep forever
	PruneIntervalHours int `envconfig:"PRUNE_INTERVAL_HOURS" default:"6"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

func FromEnv() (Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}

	cfg.Env = strings.ToLower(cfg.Env)
	if cfg.Env != "dev" && cfg.Env != "prod" {
		// fail-soft: treat unknown as dev
		cfg.Env = "dev"
	}
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	cfg.Link = strings.ToLower(strings.TrimSpace(cfg.Link))

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Store {
	case StoreSQLite, StoreCSV, StoreMemory:
	default:
		return fmt.Errorf("unknown store %q", c.Store)
	}
	switch c.Link {
	case LinkSerial:
		if strings.TrimSpace(c.SerialPort) == "" {
			return fmt.Errorf("serial port is required for link %q", c.Link)
		}
		if c.BaudRate <= 0 {
			return fmt.Errorf("baud rate must be positive, got %d", c.BaudRate)
		}
	case LinkTCP:
		if strings.TrimSpace(c.TCPAddr) == "" {
			return fmt.Errorf("tcp address is required for link %q", c.Link)
		}
	default:
		return fmt.Errorf("unknown link %q", c.Link)
	}
	if c.RatePerHour <= 0 {
		return fmt.Errorf("rate per hour must be positive, got %d", c.RatePerHour)
	}
	if c.SettlementTimeout <= 0 {
		return fmt.Errorf("settlement timeout must be positive, got %s", c.SettlementTimeout)
	}
	if c.IdleReadTimeout <= 0 {
		return fmt.Errorf("idle read timeout must be positive, got %s", c.IdleReadTimeout)
	}
	if c.AuditRetentionDays < 0 || c.PruneIntervalHours < 0 {
		return fmt.Errorf("audit retention and prune interval must not be negative")
	}
	return nil
}

// NewTestConfig returns a valid config for tests that never touches real
// hardware or disk.
func NewTestConfig() Config {
	return Config{
		Env:                "dev",
		HTTPAddr:           ":0",
		Store:              StoreMemory,
		Link:               LinkTCP,
		TCPAddr:            "127.0.0.1:0",
		IdleReadTimeout:    50 * time.Millisecond,
		ReconnectDelay:     10 * time.Millisecond,
		RatePerHour:        200,
		SettlementTimeout:  200 * time.Millisecond,
		NATSSubject:        "parkgate.settlements",
		AuditRetentionDays: 0,
		LogLevel:           "error",
	}
}
