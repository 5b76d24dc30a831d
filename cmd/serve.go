package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"moviebot/pkg/bus"
	"moviebot/pkg/channel"
	"moviebot/pkg/channel/telegram"
	"moviebot/pkg/config"
	"moviebot/pkg/dispatcher"
	"moviebot/pkg/gateway"
	"moviebot/pkg/logger"
	"moviebot/pkg/metrics"
	"moviebot/pkg/reply"
	"moviebot/pkg/tmdb"

	"github.com/spf13/cobra"
)

const (
	telegramChannelName = "telegram"
	eventBufferSize     = 256
)

var serveCmd = &cobra.Command{
	Use:          "serve",
	Short:        "Run the Telegram bot",
	Long:         "Runs MovieBot against Telegram long polling with health, readiness and metrics endpoints.",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("initialize logger: %w", err)
		}
		slog.SetDefault(appLogger)
		log := logger.Component(appLogger, "cmd.serve")

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return serve(runCtx, cfg, appLogger, log)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, cfg *config.Config, appLogger *slog.Logger, log *slog.Logger) error {
	if strings.TrimSpace(cfg.TMDB.APIKey) == "" {
		log.Warn("TMDB API key is not set; every lookup will answer with the not-found reply (set TMDB_API_KEY)")
	}

	events := bus.New()
	defer events.Close()

	metrics.MustRegister()
	metrics.SetBuildInfo(version)
	subscription, unsubscribe := events.SubscribeEvents(ctx, eventBufferSize)
	defer unsubscribe()
	go metrics.NewRecorder(appLogger).Run(ctx, subscription)

	client := tmdb.NewClient(cfg.TMDB, appLogger)
	handler, err := dispatcher.New(client, reply.NewComposer(cfg.TMDB, cfg.Links), events, appLogger)
	if err != nil {
		return fmt.Errorf("initialize dispatcher: %w", err)
	}

	adapters, err := enabledAdapters(cfg, events, appLogger)
	if err != nil {
		log.Error("Gateway configuration invalid", "error", err)
		return err
	}

	svc, err := gateway.NewService(cfg.Gateway, adapters, handler.Handle, client, appLogger)
	if err != nil {
		return fmt.Errorf("initialize gateway service: %w", err)
	}

	log.Info("MovieBot started", "channels", enabledChannelNames(adapters), "version", version)
	if err := svc.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.Error("Gateway runtime failed", "error", err)
		return err
	}

	log.Info("MovieBot stopped")
	return nil
}

func enabledAdapters(cfg *config.Config, events *bus.Bus, log *slog.Logger) ([]channel.Adapter, error) {
	adapters := make([]channel.Adapter, 0, 1)

	if !cfg.Channels.Telegram.Disabled {
		adapter, err := telegram.NewAdapter(cfg.Channels.Telegram, events, log)
		if err != nil {
			return nil, fmt.Errorf("configure %s channel: %w", telegramChannelName, err)
		}
		adapters = append(adapters, adapter)
	}

	if len(adapters) == 0 {
		return nil, errors.New("no channels are enabled")
	}

	return adapters, nil
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
