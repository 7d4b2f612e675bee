package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"

	"github.com/MSB0095/sol-beast-sub004/internal/logger"
)

// Options carries the per-worker connection tuning.
type Options struct {
	Program    string
	Commitment string

	BackoffMin       time.Duration
	BackoffMax       time.Duration
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
}

func (o *Options) withDefaults() {
	if o.BackoffMin <= 0 {
		o.BackoffMin = 500 * time.Millisecond
	}
	if o.BackoffMax <= 0 {
		o.BackoffMax = 30 * time.Second
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 5 * time.Second
	}
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
}

// Stats is a point-in-time snapshot of one worker's health counters.
type Stats struct {
	Endpoint        string `json:"endpoint"`
	Connected       bool   `json:"connected"`
	Connects        int64  `json:"connects"`
	Reconnects      int64  `json:"reconnects"`
	SubscribeErrors int64  `json:"subscribe_errors"`
	Messages        int64  `json:"messages"`
	Dropped         int64  `json:"dropped"`
	LastError       string `json:"last_error,omitempty"`
}

// Worker owns one websocket connection to one endpoint. It keeps a standing
// log subscription for the launchpad program, issues account subscriptions
// for every tracked curve address, and re-establishes all of them after a
// reconnect. Raw notifications go to the shared out channel; a full channel
// drops the message rather than stalling the read loop.
type Worker struct {
	url  string
	opts Options
	out  chan<- Envelope

	mu      sync.Mutex
	conn    *websocket.Conn
	tracked map[string]struct{}
	// pending maps an in-flight subscribe request id to the account it is
	// for ("" marks the log subscription). On the ack the entry moves to
	// subs keyed by the server-assigned subscription id.
	pending map[int64]string
	subs    map[int64]string
	// accountSubs is the reverse of subs for accounts, used to unsubscribe.
	accountSubs map[string]int64
	reqID       int64

	statsMu sync.Mutex
	stats   Stats

	rng *rand.Rand
}

func NewWorker(url string, out chan<- Envelope, opts Options) *Worker {
	opts.withDefaults()
	return &Worker{
		url:         url,
		opts:        opts,
		out:         out,
		tracked:     make(map[string]struct{}),
		pending:     make(map[int64]string),
		subs:        make(map[int64]string),
		accountSubs: make(map[string]int64),
		stats:       Stats{Endpoint: url},
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run connects and reads until ctx is cancelled, reconnecting with jittered
// exponential backoff on any failure.
func (w *Worker) Run(ctx context.Context) error {
	delay := w.opts.BackoffMin
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := w.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		w.statsMu.Lock()
		w.stats.Reconnects++
		if err != nil {
			w.stats.LastError = err.Error()
		}
		w.statsMu.Unlock()
		logger.Warnf("[STREAM] %s disconnected: %v, reconnecting in %s", w.url, err, delay)

		if err := sleepWithContext(ctx, w.jitter(delay)); err != nil {
			return err
		}
		delay *= 2
		if delay > w.opts.BackoffMax {
			delay = w.opts.BackoffMax
		}
	}
}

// jitter spreads a reconnect delay over [d/2, d) so workers that died
// together do not hammer the endpoint in lockstep.
func (w *Worker) jitter(d time.Duration) time.Duration {
	half := d / 2
	return half + time.Duration(w.rng.Int63n(int64(half)+1))
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (w *Worker) connectAndRead(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: w.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, w.url, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	w.mu.Lock()
	w.conn = conn
	// Subscription ids are connection-scoped; the old tables are dead.
	w.pending = make(map[int64]string)
	w.subs = make(map[int64]string)
	w.accountSubs = make(map[string]int64)
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		w.conn = nil
		w.mu.Unlock()
		w.setConnected(false)
	}()

	w.statsMu.Lock()
	w.stats.Connects++
	w.stats.Connected = true
	w.statsMu.Unlock()
	logger.Infof("[STREAM] connected to %s", w.url)

	if err := w.subscribeLogs(); err != nil {
		return fmt.Errorf("logs subscribe: %w", err)
	}
	w.mu.Lock()
	resub := make([]string, 0, len(w.tracked))
	for acc := range w.tracked {
		resub = append(resub, acc)
	}
	w.mu.Unlock()
	for _, acc := range resub {
		if err := w.subscribeAccount(acc); err != nil {
			w.noteSubscribeError(err)
		}
	}

	// Reader closes the conn when ctx dies so ReadMessage unblocks.
	pingCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go w.keepAlive(pingCtx, conn)

	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(3 * w.opts.PingInterval))
	})
	_ = conn.SetReadDeadline(time.Now().Add(3 * w.opts.PingInterval))

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		_ = conn.SetReadDeadline(time.Now().Add(3 * w.opts.PingInterval))
		w.handleMessage(msg)
	}
}

func (w *Worker) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(w.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			w.mu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(w.opts.WriteTimeout))
			w.mu.Unlock()
			if err != nil {
				conn.Close()
				return
			}
		}
	}
}

func (w *Worker) setConnected(v bool) {
	w.statsMu.Lock()
	w.stats.Connected = v
	w.statsMu.Unlock()
}

func (w *Worker) noteSubscribeError(err error) {
	w.statsMu.Lock()
	w.stats.SubscribeErrors++
	w.stats.LastError = err.Error()
	w.statsMu.Unlock()
	logger.Warnf("[STREAM] %s subscribe error: %v", w.url, err)
}

type wsRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

// send must be called with w.mu held or from a context that owns the lock.
func (w *Worker) writeRequest(conn *websocket.Conn, req wsRequest) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	_ = conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, payload)
}

func (w *Worker) subscribeLogs() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return fmt.Errorf("not connected")
	}
	w.reqID++
	id := w.reqID
	w.pending[id] = ""
	return w.writeRequest(w.conn, wsRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "logsSubscribe",
		Params: []any{
			map[string]any{"mentions": []string{w.opts.Program}},
			map[string]any{"commitment": w.opts.Commitment},
		},
	})
}

func (w *Worker) subscribeAccount(account string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return fmt.Errorf("not connected")
	}
	w.reqID++
	id := w.reqID
	w.pending[id] = account
	return w.writeRequest(w.conn, wsRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountSubscribe",
		Params: []any{
			account,
			map[string]any{"encoding": "base64", "commitment": w.opts.Commitment},
		},
	})
}

// Track registers a curve account for data updates. Subscribed immediately
// when connected; otherwise picked up on the next reconnect.
func (w *Worker) Track(account string) {
	w.mu.Lock()
	_, already := w.tracked[account]
	w.tracked[account] = struct{}{}
	connected := w.conn != nil
	w.mu.Unlock()
	if already || !connected {
		return
	}
	if err := w.subscribeAccount(account); err != nil {
		w.noteSubscribeError(err)
	}
}

// Untrack drops a curve account; its subscription is cancelled if live.
func (w *Worker) Untrack(account string) {
	w.mu.Lock()
	delete(w.tracked, account)
	subID, ok := w.accountSubs[account]
	if ok {
		delete(w.accountSubs, account)
		delete(w.subs, subID)
	}
	conn := w.conn
	if ok && conn != nil {
		w.reqID++
		err := w.writeRequest(conn, wsRequest{
			JSONRPC: "2.0",
			ID:      w.reqID,
			Method:  "accountUnsubscribe",
			Params:  []any{subID},
		})
		w.mu.Unlock()
		if err != nil {
			logger.Warnf("[STREAM] %s unsubscribe %s: %v", w.url, account, err)
		}
		return
	}
	w.mu.Unlock()
}

func (w *Worker) handleMessage(msg []byte) {
	w.statsMu.Lock()
	w.stats.Messages++
	w.statsMu.Unlock()

	parsed := gjson.ParseBytes(msg)

	// Subscribe ack: the result carries the server-assigned subscription id,
	// which is what notifications reference. Remap from our request id.
	if id := parsed.Get("id"); id.Exists() {
		w.mu.Lock()
		account, ok := w.pending[id.Int()]
		if ok {
			delete(w.pending, id.Int())
			if errObj := parsed.Get("error"); errObj.Exists() {
				conn := w.conn
				w.mu.Unlock()
				w.noteSubscribeError(fmt.Errorf("subscribe rejected: %s", errObj.Get("message").String()))
				// A rejected log subscription leaves the endpoint blind to
				// creations while still reporting connected. Treat it as a
				// transport failure: drop the socket and redial with backoff.
				// Account rejections only lose one curve feed; the other
				// endpoints still carry it, so those just count.
				if account == "" && conn != nil {
					conn.Close()
				}
				return
			}
			subID := parsed.Get("result").Int()
			w.subs[subID] = account
			if account != "" {
				w.accountSubs[account] = subID
			}
		}
		w.mu.Unlock()
		return
	}

	switch parsed.Get("method").String() {
	case "logsNotification":
		w.deliver(Envelope{
			Endpoint: w.url,
			Kind:     KindLog,
			Raw:      []byte(parsed.Get("params.result").Raw),
		})
	case "accountNotification":
		subID := parsed.Get("params.subscription").Int()
		w.mu.Lock()
		account := w.subs[subID]
		w.mu.Unlock()
		if account == "" {
			// Stale notification from a subscription we already dropped.
			return
		}
		w.deliver(Envelope{
			Endpoint: w.url,
			Kind:     KindAccount,
			Account:  account,
			Raw:      []byte(parsed.Get("params.result").Raw),
		})
	}
}

func (w *Worker) deliver(env Envelope) {
	select {
	case w.out <- env:
	default:
		w.statsMu.Lock()
		w.stats.Dropped++
		dropped := w.stats.Dropped
		w.statsMu.Unlock()
		if dropped%100 == 1 {
			logger.Warnf("[STREAM] %s queue full, dropped %d messages so far", w.url, dropped)
		}
	}
}

// Stats returns a copy of the worker's counters.
func (w *Worker) Stats() Stats {
	w.statsMu.Lock()
	defer w.statsMu.Unlock()
	return w.stats
}
