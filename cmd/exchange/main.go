package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"exchange_go/internal/app"

	_ "net/http/pprof" // For pprof profiling
)

func main() {
	os.Exit(run())
}

// run owns every deferred cleanup so the exit code is applied after them.
func run() int {
	configPath := flag.String("config", "configs/config.yaml", "path to the configuration file")
	book := flag.String("book", "", "print the open order book of a symbol (\"all\" for every symbol) and exit")
	pprofAddr := flag.String("pprof", "localhost:6060", "pprof listen address, empty to disable")
	flag.Parse()

	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap(*configPath)
	defer bootstrap.Close()
	if err := bootstrap.Initialize(); err != nil {
		slog.Error("❌ Bootstrapping failed", slog.Any("error", err))
		return 1
	}

	// 2. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Seed demo accounts (empty database only)
	if err := bootstrap.SeedIfEnabled(ctx); err != nil {
		slog.Error("❌ Seeding failed", slog.Any("error", err))
		return 1
	}

	// Book dump mode
	if *book != "" {
		symbols := []string{*book}
		if *book == "all" {
			symbols = bootstrap.Orders.Symbols()
		}
		for _, symbol := range symbols {
			orders, err := bootstrap.Orders.OrderBook(ctx, symbol)
			if err != nil {
				slog.Error("❌ Order book query failed", slog.String("symbol", symbol), slog.Any("error", err))
				return 1
			}
			printBook(os.Stdout, symbol, orders)
		}
		return 0
	}

	// 4. Pprof Server (for performance profiling)
	if *pprofAddr != "" {
		go func() {
			slog.Info("🕵️ Pprof server started", slog.String("addr", *pprofAddr))
			if err := http.ListenAndServe(*pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 5. Websocket hub
	go bootstrap.Hub.Run(ctx)

	// 6. HTTP API
	errCh := make(chan error, 1)
	go func() {
		errCh <- bootstrap.Server.Start(bootstrap.Config.HTTP.Addr)
	}()
	slog.InfoContext(ctx, "✨ Exchange fully operational. Press Ctrl+C to exit.",
		slog.String("addr", bootstrap.Config.HTTP.Addr))

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			slog.Error("❌ HTTP server failed", slog.Any("error", err))
		}
	}

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := bootstrap.Server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP shutdown failed", slog.Any("error", err))
		return 1
	}
	return 0
}
