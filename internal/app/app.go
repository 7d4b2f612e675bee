package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/MSB0095/sol-beast-sub004/internal/config"
	"github.com/MSB0095/sol-beast-sub004/internal/detector"
	"github.com/MSB0095/sol-beast-sub004/internal/logger"
	"github.com/MSB0095/sol-beast-sub004/internal/position"
	"github.com/MSB0095/sol-beast-sub004/internal/store/detectionlog"
	"github.com/MSB0095/sol-beast-sub004/internal/stream"
	dashhttp "github.com/MSB0095/sol-beast-sub004/internal/transport/http/dash"
)

// App owns the wired engine: ingestion hub, detector, position monitor,
// dashboard, and the strategy hot-reload watcher.
type App struct {
	cfg     *config.Config
	cfgPath string

	hub        *stream.Hub
	router     *detector.Router
	manager    *position.Manager
	dash       *dashhttp.Server
	detections *detectionlog.Store
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails. Shutdown is cooperative: workers stop reconnecting, the
// router drains its current message, in-flight RPC races finish or time
// out.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	defer a.detections.Close()

	logger.Infof("[APP] starting: %d ws endpoints, %d rpc endpoints, program %s",
		len(a.cfg.Endpoints.WSURLs), len(a.cfg.Endpoints.RPCURLs), a.cfg.Chain.LaunchpadProgram)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return a.hub.Run(ctx) })
	group.Go(func() error { return a.router.Run(ctx) })
	group.Go(func() error { return a.manager.Run(ctx) })
	group.Go(func() error { return a.dash.Start(ctx) })

	if a.cfgPath != "" {
		group.Go(func() error {
			return config.WatchStrategy(ctx, a.cfgPath, func(s config.StrategyConfig) {
				a.manager.UpdateStrategy(s)
				a.router.UpdateStrategy(s)
			})
		})
	}

	return group.Wait()
}

// Manager exposes the position manager for test harnesses.
func (a *App) Manager() *position.Manager {
	if a == nil {
		return nil
	}
	return a.manager
}
