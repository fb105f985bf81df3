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

	"github.com/spf13/cobra"

	"anonwall/pkg/channel"
	vkchannel "anonwall/pkg/channel/vk"
	"anonwall/pkg/config"
	"anonwall/pkg/conversation"
	"anonwall/pkg/destination"
	"anonwall/pkg/gateway"
	"anonwall/pkg/logger"
	"anonwall/pkg/responses"
	"anonwall/pkg/upload"
	"anonwall/pkg/vk"
)

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the submission bot",
	Long:  "Runs the AnonWall conversation pipeline against the configured VK community, with health and readiness endpoints.",
	Run: func(cmd *cobra.Command, args []string) {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			fmt.Printf("failed to load config: %v\n", err)
			return
		}

		appLogger, err := logger.New(cfg.Logging)
		if err != nil {
			fmt.Printf("failed to initialize logger: %v\n", err)
			return
		}
		slog.SetDefault(appLogger)
		log := slog.Default().With("component", "cmd.bot")

		templates, err := responses.Load(cfg.Responses.File)
		if err != nil {
			log.Error("Responses configuration invalid", "error", err)
			return
		}
		trigger, err := templates.TriggerPattern()
		if err != nil {
			log.Error("Responses configuration invalid", "error", err)
			return
		}

		group := vk.NewClient(cfg.Group.Token)
		user := vk.NewClient(cfg.Group.UserToken)

		pipeline := conversation.NewPipeline(
			group,
			upload.NewTranscoder(group, user, cfg.Group.ID, log),
			destination.NewResolver(cfg.Whitelist, cfg.Filters.Sources),
			templates,
			cfg.Group.ID,
			cfg.Filters.Links,
			cfg.Filters.LogRequests,
			log,
		)
		manager := conversation.NewManager(pipeline, trigger, cfg.Group.ID, log)

		adapters, err := transportAdapters(cfg, group, log)
		if err != nil {
			log.Error("Transport configuration invalid", "error", err)
			return
		}

		runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		svc, err := gateway.NewService(cfg, group, manager, adapters, log)
		if err != nil {
			log.Error("Failed to initialize service", "error", err)
			return
		}

		log.Info("Bot started", "group_id", cfg.Group.ID, "transport", enabledChannelNames(adapters), "filter_sources", cfg.Filters.Sources, "filter_links", cfg.Filters.Links)
		if err := svc.Run(runCtx); err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			log.Error("Bot runtime failed", "error", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(botCmd)
}

func transportAdapters(cfg *config.Config, api *vk.Client, log *slog.Logger) ([]channel.Adapter, error) {
	switch cfg.Transport.Mode {
	case config.ModeLongPoll:
		return []channel.Adapter{vkchannel.NewLongPollAdapter(api, cfg.Group.ID, log)}, nil
	case config.ModeWebhook:
		adapter, err := vkchannel.NewCallbackAdapter(cfg.Transport.Webhook, cfg.Group.ID, log)
		if err != nil {
			return nil, fmt.Errorf("configure webhook channel: %w", err)
		}
		return []channel.Adapter{adapter}, nil
	default:
		return nil, fmt.Errorf("unsupported transport.mode %q", cfg.Transport.Mode)
	}
}

func enabledChannelNames(adapters []channel.Adapter) string {
	names := make([]string, 0, len(adapters))
	for _, adapter := range adapters {
		names = append(names, adapter.Name())
	}

	return strings.Join(names, ",")
}
