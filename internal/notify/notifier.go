// Package notify delivers operator alerts.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/observability"
)

// Notifier delivers a text alert to an operator channel.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Multi fans an alert out to every channel. All channels are attempted;
// their errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, text string) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, text); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier backed by logger.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.With(zap.String("component", "notify"))}
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, text string) error {
	n.logger.Info("alert", zap.String("text", text))
	observability.RecordAlert("log", nil)
	return nil
}

// Nop discards alerts.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) error { return nil }

// Recorder keeps alerts in memory.
type Recorder struct {
	mu   sync.Mutex
	msgs []string
	Err  error // returned by every Notify call when set
}

// Notify implements Notifier.
func (r *Recorder) Notify(_ context.Context, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	if r.Err != nil {
		return fmt.Errorf("recorder: %w", r.Err)
	}
	return nil
}

// Messages returns a copy of the recorded alerts.
func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.msgs))
	copy(out, r.msgs)
	return out
}
