package stream

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Hub runs one Worker per websocket endpoint, all feeding a single bounded
// queue. Track and Untrack fan out to every worker so account updates keep
// flowing while any one endpoint is alive; the price cache absorbs the
// resulting duplicates.
type Hub struct {
	workers []*Worker
	queue   chan Envelope
}

func NewHub(urls []string, queueSize int, opts Options) (*Hub, error) {
	if len(urls) == 0 {
		return nil, fmt.Errorf("stream hub requires at least one websocket endpoint")
	}
	if queueSize <= 0 {
		queueSize = 2048
	}
	h := &Hub{queue: make(chan Envelope, queueSize)}
	for _, u := range urls {
		h.workers = append(h.workers, NewWorker(u, h.queue, opts))
	}
	return h, nil
}

// Events is the shared notification queue consumed by the detector.
func (h *Hub) Events() <-chan Envelope { return h.queue }

// Run blocks until ctx is cancelled. Workers reconnect independently; a
// single dead endpoint never takes the hub down.
func (h *Hub) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range h.workers {
		w := w
		g.Go(func() error { return w.Run(ctx) })
	}
	return g.Wait()
}

func (h *Hub) Track(account string) {
	for _, w := range h.workers {
		w.Track(account)
	}
}

func (h *Hub) Untrack(account string) {
	for _, w := range h.workers {
		w.Untrack(account)
	}
}

// Stats reports every worker's counters, one entry per endpoint.
func (h *Hub) Stats() []Stats {
	out := make([]Stats, 0, len(h.workers))
	for _, w := range h.workers {
		out = append(out, w.Stats())
	}
	return out
}
