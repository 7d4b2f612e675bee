package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/MSB0095/sol-beast-sub004/internal/cache"
	"github.com/MSB0095/sol-beast-sub004/internal/config"
	"github.com/MSB0095/sol-beast-sub004/internal/detector"
	"github.com/MSB0095/sol-beast-sub004/internal/executor"
	"github.com/MSB0095/sol-beast-sub004/internal/executor/intent"
	"github.com/MSB0095/sol-beast-sub004/internal/logger"
	"github.com/MSB0095/sol-beast-sub004/internal/notifier"
	"github.com/MSB0095/sol-beast-sub004/internal/position"
	"github.com/MSB0095/sol-beast-sub004/internal/rpc"
	"github.com/MSB0095/sol-beast-sub004/internal/store/detectionlog"
	"github.com/MSB0095/sol-beast-sub004/internal/stream"
	dashhttp "github.com/MSB0095/sol-beast-sub004/internal/transport/http/dash"
)

// NewApp wires every component from configuration. Construction is
// side-effect-light: files are opened and journals checked, but nothing
// connects to the network until Run.
func NewApp(cfg *config.Config, cfgPath string) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)

	journal, err := intent.Open(cfg.Executor.IntentsPath)
	if err != nil {
		return nil, fmt.Errorf("intent journal: %w", err)
	}
	exec, err := executor.New(cfg.Executor, journal)
	if err != nil {
		return nil, err
	}

	detections, err := detectionlog.Open(cfg.Store.DetectionsPath)
	if err != nil {
		return nil, fmt.Errorf("detection log: %w", err)
	}

	rpcClient, err := rpc.New(cfg.Endpoints.RPCURLs, rpc.Options{
		RequestTimeout: cfg.RPC.RequestTimeout,
		RateLimit:      cfg.RPC.RateLimit,
		Burst:          cfg.RPC.Burst,
		Commitment:     cfg.Chain.Commitment,
	})
	if err != nil {
		return nil, err
	}

	hub, err := stream.NewHub(cfg.Endpoints.WSURLs, cfg.Detector.QueueSize, stream.Options{
		Program:          cfg.Chain.LaunchpadProgram,
		Commitment:       cfg.Chain.Commitment,
		BackoffMin:       cfg.Stream.BackoffMin,
		BackoffMax:       cfg.Stream.BackoffMax,
		HandshakeTimeout: cfg.Stream.HandshakeTimeout,
		WriteTimeout:     cfg.Stream.WriteTimeout,
		PingInterval:     cfg.Stream.PingInterval,
	})
	if err != nil {
		return nil, err
	}

	var notify notifier.TextNotifier = notifier.Nop{}
	if cfg.Notifier.TelegramBotToken != "" && cfg.Notifier.TelegramChatID != "" {
		// Wrapped async so telegram retry sleeps never stall a close or a
		// monitor tick.
		notify = notifier.NewAsync(notifier.NewTelegram(cfg.Notifier.TelegramBotToken, cfg.Notifier.TelegramChatID))
		logger.Infof("[APP] telegram notifications enabled")
	}

	prices := cache.New[string, decimal.Decimal](cfg.Pricing.CacheSize, cfg.Pricing.CacheTTL)
	manager := position.NewManager(cfg.Strategy, prices, rpcClient, exec, hub, notify)

	dedup := cache.New[string, struct{}](cfg.Detector.DedupCacheSize, 0)
	router, err := detector.NewRouter(cfg.Chain, cfg.Strategy, hub.Events(),
		dedup, rpcClient, exec, manager, detections)
	if err != nil {
		return nil, err
	}

	dash, err := dashhttp.NewServer(dashhttp.ServerConfig{
		Addr:            cfg.App.HTTPAddr,
		Positions:       manager,
		Detector:        router,
		Streams:         hub,
		Detections:      detections,
		Intents:         journal,
		DetectionsLimit: cfg.Store.DetectionsKeep,
	})
	if err != nil {
		return nil, err
	}

	reportUnresolvedIntents(journal, notify)

	return &App{
		cfg:        cfg,
		cfgPath:    cfgPath,
		hub:        hub,
		router:     router,
		manager:    manager,
		dash:       dash,
		detections: detections,
	}, nil
}

// reportUnresolvedIntents surfaces trades whose outcome the previous run
// never recorded. They need a human decision, not automatic replay.
func reportUnresolvedIntents(journal *intent.Journal, notify notifier.TextNotifier) {
	unresolved, err := journal.Unresolved(context.Background())
	if err != nil {
		logger.Warnf("[APP] intent journal check failed: %v", err)
		return
	}
	if len(unresolved) == 0 {
		return
	}
	logger.Warnf("[APP] %d trade intents from a previous run never settled:", len(unresolved))
	for _, rec := range unresolved {
		logger.Warnf("[APP]   %s %s %s amount=%s at %s", rec.ID, rec.Side, rec.Mint, rec.Amount, rec.CreatedAt)
	}
	notify.SendText(fmt.Sprintf("⚠️ %d unsettled trade intents found at startup, check the journal", len(unresolved)))
}
