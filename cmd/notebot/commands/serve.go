package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jholhewres/notebot/pkg/notebot/bot"
	"github.com/jholhewres/notebot/pkg/notebot/channels"
	"github.com/jholhewres/notebot/pkg/notebot/channels/discord"
	"github.com/jholhewres/notebot/pkg/notebot/config"
	"github.com/jholhewres/notebot/pkg/notebot/gateway"
	"github.com/jholhewres/notebot/pkg/notebot/metrics"
	"github.com/jholhewres/notebot/pkg/notebot/news"
	"github.com/jholhewres/notebot/pkg/notebot/scheduler"
)

// newServeCmd creates the `notebot serve` command that runs the bot.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Connect to Discord and run the bot",
		Long: `Connects to Discord, collects messages from the notes channels,
schedules news broadcasts and, when enabled, serves the HTTP gateway.

Examples:
  notebot serve
  notebot serve --config ./config.yaml --verbose`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	// ── Load config ──
	cfg, path, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg, os.Stdout)
	if path != "" {
		logger.Info("config loaded", "path", path)
	}

	// ── Resolve token ──
	if source := config.ResolveToken(cfg, logger); source == "" {
		return fmt.Errorf("no Discord token found: run 'notebot token set' or set %s", config.EnvDiscordToken)
	}
	if len(cfg.Discord.NotesChannelIDs) == 0 {
		logger.Warn("no notes channels configured, daily notes are disabled")
	}

	// ── Storage ──
	backend, closeBackend, err := openBackend(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeBackend(); err != nil {
			logger.Warn("closing storage failed", "error", err)
		}
	}()
	notebook, exporter, err := newEngine(cfg, backend, logger)
	if err != nil {
		return err
	}

	// ── Metrics ──
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	recorder := metrics.NewCollector(reg)

	// ── Channel ──
	dc := discord.New(discord.Config{
		Token:   cfg.Discord.Token,
		GuildID: cfg.Discord.GuildID,
	}, logger)

	// ── News ──
	var broadcaster *news.Broadcaster
	if cfg.News.Enabled && cfg.Discord.NewsChannelID != "" {
		fetcher := news.NewFetcher(news.FetcherConfig{
			Timeout:  cfg.News.FetchTimeout,
			MaxItems: cfg.News.MaxItems,
		}, nil, recorder, logger)
		broadcaster = news.NewBroadcaster(fetcher, dc, nil, cfg.Discord.NewsChannelID, recorder, logger)
	} else if cfg.News.Enabled {
		logger.Warn("news is enabled but discord.news_channel_id is empty, broadcasts are disabled")
	}

	// ── Bot ──
	botCfg, err := bot.ConfigFrom(cfg)
	if err != nil {
		return err
	}
	b := bot.New(botCfg, bot.Deps{
		Channel:     dc,
		Notebook:    notebook,
		Exporter:    exporter,
		Broadcaster: broadcaster,
		Metrics:     recorder,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := dc.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to Discord: %w", err)
	}

	var sched *scheduler.Scheduler
	if broadcaster != nil {
		sched = scheduler.New(b.Zone(), b.HandleJob, logger)
		sched.SetJobTimeout(cfg.News.FetchTimeout + 30*time.Second)
		if err := b.ScheduleFeeds(sched); err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return err
		}
	}

	var gw *gateway.Gateway
	if cfg.Gateway.Enabled {
		gw = gateway.New(gateway.Deps{
			Notes:    exporter,
			Gatherer: reg,
			Channels: []channels.Channel{dc},
		}, cfg.Gateway, logger)
		if err := gw.Start(ctx); err != nil {
			return err
		}
	}

	runErr := make(chan error, 1)
	go func() { runErr <- b.Run(ctx) }()

	// ── Wait for shutdown ──
	logger.Info("notebot running. Press Ctrl+C to stop.",
		"backend", backend.Describe(),
		"guild_id", cfg.Discord.GuildID,
		"gateway", cfg.Gateway.Enabled)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var exitErr error
	select {
	case <-sigChan:
		logger.Info("shutdown signal received, stopping...")
	case err := <-runErr:
		if err != nil {
			exitErr = err
			logger.Error("bot stopped", "error", err)
		}
	}
	cancel()

	// Graceful shutdown with timeout.
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	done := make(chan struct{})
	go func() {
		if sched != nil {
			sched.Stop()
		}
		if gw != nil {
			if err := gw.Stop(shutdownCtx); err != nil {
				logger.Warn("gateway shutdown failed", "error", err)
			}
		}
		if err := dc.Disconnect(); err != nil && !errors.Is(err, channels.ErrChannelDisconnected) {
			logger.Warn("discord disconnect failed", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}
	return exitErr
}
