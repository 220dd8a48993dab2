package infra

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"exchange_go/internal/domain"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config holds every setting of the exchange. LoadConfig reads the yaml
// file, then an optional .env file, then environment overrides.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Database struct {
		Driver string `yaml:"driver"` // "sqlite" or "postgres"
		DSN    string `yaml:"dsn"`
	} `yaml:"database"`

	Exchange struct {
		Symbols          []string        `yaml:"symbols"`
		CommissionRate   decimal.Decimal `yaml:"commission_rate"`
		CommissionPolicy string          `yaml:"commission_policy"` // "seller" or "buyer"
		MatchAttempts    int             `yaml:"match_attempts"`
	} `yaml:"exchange"`

	HTTP struct {
		Addr           string   `yaml:"addr"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"http"`

	Notify struct {
		Timeout time.Duration `yaml:"timeout"` // per settlement, across every listener
		Kafka   struct {
			Enabled bool     `yaml:"enabled"`
			Brokers []string `yaml:"brokers"`
			Topic   string   `yaml:"topic"`
		} `yaml:"kafka"`
	} `yaml:"notify"`

	Logging struct {
		Level string `yaml:"level"`
		Dir   string `yaml:"dir"`
	} `yaml:"logging"`

	Seed struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"seed"`
}

// DefaultConfig returns a configuration that runs locally on SQLite.
func DefaultConfig() *Config {
	var cfg Config
	cfg.App.Name = "exchange"
	cfg.Database.Driver = "sqlite"
	cfg.Database.DSN = "data/exchange.db"
	cfg.Exchange.Symbols = []string{"BTC", "ETH"}
	cfg.Exchange.CommissionRate = decimal.RequireFromString("0.015")
	cfg.Exchange.CommissionPolicy = "seller"
	cfg.Exchange.MatchAttempts = 5
	cfg.HTTP.Addr = ":8080"
	cfg.Notify.Timeout = 2 * time.Second
	cfg.Notify.Kafka.Topic = "settlements"
	cfg.Logging.Level = "info"
	cfg.Logging.Dir = "logs"
	return &cfg
}

// LoadConfig reads and validates the configuration file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &domain.ConfigError{Field: "file", Err: err}
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, &domain.ConfigError{Field: "file", Err: err}
	}

	// .env is optional; a missing file is not an error.
	_ = godotenv.Load()
	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

var symbolPattern = regexp.MustCompile(`^[A-Z0-9]{2,16}$`)

// Validate checks configuration validity
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return &domain.ConfigError{Field: "database.driver", Err: fmt.Errorf("unsupported driver %q", c.Database.Driver)}
	}
	if c.Database.DSN == "" {
		return &domain.ConfigError{Field: "database.dsn", Err: errors.New("required")}
	}

	if len(c.Exchange.Symbols) == 0 {
		return &domain.ConfigError{Field: "exchange.symbols", Err: errors.New("at least one symbol is required")}
	}
	for _, s := range c.Exchange.Symbols {
		if !symbolPattern.MatchString(s) {
			return &domain.ConfigError{Field: "exchange.symbols", Err: fmt.Errorf("invalid symbol %q", s)}
		}
	}
	if c.Exchange.CommissionRate.IsNegative() || c.Exchange.CommissionRate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return &domain.ConfigError{Field: "exchange.commission_rate", Err: fmt.Errorf("must be in [0, 1), got %s", c.Exchange.CommissionRate)}
	}
	switch c.Exchange.CommissionPolicy {
	case "seller", "buyer":
	default:
		return &domain.ConfigError{Field: "exchange.commission_policy", Err: fmt.Errorf("unknown policy %q", c.Exchange.CommissionPolicy)}
	}
	if c.Exchange.MatchAttempts <= 0 {
		return &domain.ConfigError{Field: "exchange.match_attempts", Err: errors.New("must be positive")}
	}

	if c.HTTP.Addr == "" {
		return &domain.ConfigError{Field: "http.addr", Err: errors.New("required")}
	}

	if c.Notify.Timeout <= 0 {
		return &domain.ConfigError{Field: "notify.timeout", Err: errors.New("must be positive")}
	}
	if c.Notify.Kafka.Enabled {
		if len(c.Notify.Kafka.Brokers) == 0 {
			return &domain.ConfigError{Field: "notify.kafka.brokers", Err: errors.New("required when kafka is enabled")}
		}
		if c.Notify.Kafka.Topic == "" {
			return &domain.ConfigError{Field: "notify.kafka.topic", Err: errors.New("required when kafka is enabled")}
		}
	}

	return nil
}

// overrideWithEnv replaces settings with environment variables when present.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("EXCHANGE_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("EXCHANGE_DB_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("EXCHANGE_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("EXCHANGE_KAFKA_BROKERS"); v != "" {
		cfg.Notify.Kafka.Brokers = strings.Split(v, ",")
		cfg.Notify.Kafka.Enabled = true
	}
	if v := os.Getenv("EXCHANGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
