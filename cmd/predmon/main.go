package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/config"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/fetch"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/httpclient"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/logger"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/monitor"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/rules"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/state"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/telegram"
	"github.com/samuraifrenchienft/crypto-predict-monitor/internal/webhook"
)

var configPath = flag.String("config", "configs/config.yaml", "Path to configuration file")

func main() {
	flag.Parse()

	// Local overrides for secrets; absence is not an error.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logg := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	logg.WithField("path", *configPath).Info("configuration loaded")

	httpCfg := httpclient.Config{
		Timeout:     cfg.HTTP.Timeout,
		MaxAttempts: cfg.HTTP.MaxRetries,
	}

	fetcher, err := buildFetcher(cfg, httpCfg, logg)
	if err != nil {
		logg.Fatalf("Failed to build fetcher: %v", err)
	}

	runID := uuid.NewString()

	var dispatcher monitor.Dispatcher
	if cfg.Webhook.URL != "" {
		client := httpclient.New("", httpCfg, logg)
		dispatcher = webhook.New(client, cfg.Webhook.URL, runID, logg)
		logg.WithField("url", logger.RedactURL(cfg.Webhook.URL)).Info("webhook dispatcher enabled")
	} else {
		logg.Info("no webhook URL configured, alerts are log-only")
	}

	var telegramClient *telegram.Client
	var notifier monitor.Notifier
	if cfg.Telegram.Enabled {
		telegramClient, err = telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, 3, time.Second)
		if err != nil {
			logg.Fatalf("Failed to initialize Telegram client: %v", err)
		}
		notifier = telegramClient
		logg.Info("Telegram client initialized successfully")
	} else {
		logg.Debug("Telegram notifications disabled")
	}

	mon := monitor.New(fetcher, cfg.Rules, state.New(), rules.NewEvaluator(logg), dispatcher, notifier, logg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logg.Info("Shutdown signal received, cleaning up...")
		cancel()
	}()

	if telegramClient != nil {
		telegramClient.ListenForCommands(ctx)
	}

	logg.WithFields(logrus.Fields{
		"upstream":      cfg.Monitor.Upstream,
		"poll_interval": cfg.Monitor.PollInterval.String(),
		"rules":         len(cfg.Rules),
		"run_id":        runID,
	}).Info("starting monitoring service")

	ticker := time.NewTicker(cfg.Monitor.PollInterval)
	defer ticker.Stop()

	consecutiveFailures := 0

	handleCycleResult := func(err error) {
		if err != nil {
			consecutiveFailures++
			logg.WithField("error", err.Error()).Error("monitoring cycle failed")
			if consecutiveFailures == 1 && telegramClient != nil {
				if sendErr := telegramClient.SendError(err); sendErr != nil {
					logg.WithField("error", sendErr.Error()).Warn("failed to send error notification to Telegram")
				}
			}
		} else {
			if consecutiveFailures > 0 && telegramClient != nil {
				if sendErr := telegramClient.SendRecovery(consecutiveFailures); sendErr != nil {
					logg.WithField("error", sendErr.Error()).Warn("failed to send recovery notification to Telegram")
				}
			}
			consecutiveFailures = 0
		}
	}

	logg.Debug("running initial monitoring cycle")
	handleCycleResult(mon.RunCycle(ctx))

	for {
		select {
		case <-ctx.Done():
			logg.Info("service stopped")
			return

		case <-ticker.C:
			logg.Debug("starting scheduled monitoring cycle")
			handleCycleResult(mon.RunCycle(ctx))
		}
	}
}

// buildFetcher wires the upstream selected by the configuration.
func buildFetcher(cfg *config.Config, httpCfg httpclient.Config, logg *logrus.Logger) (fetch.Fetcher, error) {
	newPolymarket := func() fetch.Fetcher {
		client := httpclient.New(cfg.Polymarket.CLOBAPIURL, httpCfg, logg)
		return fetch.NewPolymarketFeed(client, cfg.Polymarket.Markets, logg)
	}
	newPrice := func() fetch.Fetcher {
		client := httpclient.New(cfg.Price.ExchangeAPIURL, httpCfg, logg)
		return fetch.NewPriceFeed(client, cfg.Price.Symbol, cfg.Price.IntervalMinutes, logg)
	}

	switch cfg.Monitor.Upstream {
	case config.UpstreamDev:
		client := httpclient.New(cfg.Dev.BaseURL, httpCfg, logg)
		return fetch.NewDevFeed(client, logg), nil
	case config.UpstreamPolymarket:
		return newPolymarket(), nil
	case config.UpstreamPrice:
		return newPrice(), nil
	case config.UpstreamMulti:
		return fetch.NewMultiFeed(newPolymarket(), newPrice(), logg), nil
	default:
		return nil, fmt.Errorf("unknown upstream %q", cfg.Monitor.Upstream)
	}
}
