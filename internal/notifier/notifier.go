package notifier

import "github.com/MSB0095/sol-beast-sub004/internal/logger"

// TextNotifier is the minimal push interface components depend on, so none
// of them need to import the Telegram implementation directly.
type TextNotifier interface {
	SendText(text string) error
}

// Nop swallows notifications; used when no channel is configured.
type Nop struct{}

func (Nop) SendText(string) error { return nil }

// Async decouples callers from delivery latency. Telegram retries can
// sleep for seconds; position closes and monitor ticks must not wait on
// that. Delivery failures are logged, not returned.
type Async struct {
	next TextNotifier
}

func NewAsync(next TextNotifier) *Async {
	return &Async{next: next}
}

func (a *Async) SendText(text string) error {
	go func() {
		if err := a.next.SendText(text); err != nil {
			logger.Warnf("[NOTIFY] send failed: %v", err)
		}
	}()
	return nil
}
