package app

import (
	"context"
	"errors"
	"log/slog"

	"exchange_go/internal/api"
	"exchange_go/internal/domain"
	"exchange_go/internal/engine"
	"exchange_go/internal/event"
	"exchange_go/internal/infra"
	"exchange_go/internal/infra/kafka"
	"exchange_go/internal/infra/storage"
	"exchange_go/internal/infra/ws"
	"exchange_go/internal/service"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	ConfigPath string

	Config    *infra.Config
	Storage   *storage.Storage
	Hub       *ws.Hub
	Publisher *kafka.Publisher
	Matcher   *engine.Matcher
	Orders    *service.OrderService
	Server    *api.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap(configPath string) *Bootstrap {
	return &Bootstrap{ConfigPath: configPath}
}

// Initialize loads the configuration and wires every component.
func (b *Bootstrap) Initialize() error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(b.ConfigPath)
	if err != nil {
		return err // Let main handle the error
	}
	return b.InitializeWith(cfg)
}

// InitializeWith wires every component from an already loaded configuration.
func (b *Bootstrap) InitializeWith(cfg *infra.Config) error {
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("🚀 Bootstrapping exchange...", slog.String("name", cfg.App.Name))

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("driver", cfg.Database.Driver))

	// 4. Settlement delivery
	b.Hub = ws.NewHub(cfg.HTTP.AllowedOrigins)
	notifiers := event.Fanout{b.Hub, event.LogNotifier{Logger: logger}}
	if cfg.Notify.Kafka.Enabled {
		b.Publisher = kafka.NewPublisher(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic)
		notifiers = append(notifiers, b.Publisher)
		slog.Info("✅ Kafka publisher ready", slog.String("topic", cfg.Notify.Kafka.Topic))
	}

	// 5. Matching engine and order service
	policy, err := engine.NewCommissionPolicy(cfg.Exchange.CommissionPolicy, cfg.Exchange.CommissionRate)
	if err != nil {
		return &domain.ConfigError{Field: "exchange.commission_policy", Err: err}
	}
	b.Matcher = engine.NewMatcher(store, policy, notifiers, cfg.Exchange.MatchAttempts)
	b.Matcher.SetNotifyTimeout(cfg.Notify.Timeout)
	b.Orders = service.NewOrderService(store, b.Matcher, cfg.Exchange.Symbols)
	slog.Info("✅ Matching engine ready",
		slog.String("policy", policy.Name()),
		slog.String("rate", policy.Rate().String()),
		slog.Any("symbols", cfg.Exchange.Symbols),
	)

	// 6. HTTP surface
	b.Server = api.NewServer(b.Orders, b.Hub, cfg.HTTP.AllowedOrigins)

	return nil
}

// SeedIfEnabled creates the demo accounts on an empty database.
func (b *Bootstrap) SeedIfEnabled(ctx context.Context) error {
	if !b.Config.Seed.Enabled {
		return nil
	}
	_, err := Seed(ctx, b.Storage, b.Config.Exchange.Symbols)
	return err
}

// Close releases the broker connection and the database.
func (b *Bootstrap) Close() error {
	var errs []error
	if b.Publisher != nil {
		errs = append(errs, b.Publisher.Close())
	}
	if b.Storage != nil {
		errs = append(errs, b.Storage.Close())
	}
	return errors.Join(errs...)
}
