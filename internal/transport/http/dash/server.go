package dashhttp

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MSB0095/sol-beast-sub004/internal/detector"
	"github.com/MSB0095/sol-beast-sub004/internal/executor/intent"
	"github.com/MSB0095/sol-beast-sub004/internal/logger"
	"github.com/MSB0095/sol-beast-sub004/internal/position"
	"github.com/MSB0095/sol-beast-sub004/internal/store/detectionlog"
	"github.com/MSB0095/sol-beast-sub004/internal/stream"
)

// PositionSource is the read-only view the dashboard takes on the position
// manager. Snapshots are copies; no internal lock escapes.
type PositionSource interface {
	Snapshots() (open, closed []position.Snapshot)
	OpenCount() int
}

// DetectorSource exposes the router's counters.
type DetectorSource interface {
	Snapshot() detector.Stats
}

// StreamSource exposes per-endpoint worker health.
type StreamSource interface {
	Stats() []stream.Stats
}

type ServerConfig struct {
	Addr       string
	Positions  PositionSource
	Detector   DetectorSource
	Streams    StreamSource
	Detections *detectionlog.Store
	Intents    *intent.Journal
	// DetectionsLimit caps the default /api/detections page size.
	DetectionsLimit int
}

// Server serves the read-only engine dashboard API.
type Server struct {
	addr   string
	router *gin.Engine
	cfg    ServerConfig
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Positions == nil {
		return nil, errors.New("dashboard server requires a position source")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9980"
	}
	if cfg.DetectionsLimit <= 0 {
		cfg.DetectionsLimit = 100
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{addr: cfg.Addr, router: router, cfg: cfg}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	api.GET("/positions", s.handlePositions)
	api.GET("/detections", s.handleDetections)
	api.GET("/intents", s.handleIntents)
	api.GET("/stats", s.handleStats)

	return s, nil
}

func (s *Server) handlePositions(c *gin.Context) {
	open, closed := s.cfg.Positions.Snapshots()
	c.JSON(http.StatusOK, gin.H{"open": open, "closed": closed})
}

func (s *Server) handleDetections(c *gin.Context) {
	if s.cfg.Detections == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "detection log not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	if limit <= 0 {
		limit = s.cfg.DetectionsLimit
	}
	recs, err := s.cfg.Detections.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"detections": recs})
}

func (s *Server) handleIntents(c *gin.Context) {
	if s.cfg.Intents == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "intent journal not enabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	recs, err := s.cfg.Intents.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"intents": recs})
}

func (s *Server) handleStats(c *gin.Context) {
	out := gin.H{"open_positions": s.cfg.Positions.OpenCount()}
	if s.cfg.Detector != nil {
		out["detector"] = s.cfg.Detector.Snapshot()
	}
	if s.cfg.Streams != nil {
		out["streams"] = s.cfg.Streams.Stats()
	}
	c.JSON(http.StatusOK, out)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[HTTP] dashboard listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d dur=%s", method, path, c.Writer.Status(), time.Since(start))
	}
}
