package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/notify"
	"solana-pool-sniper/internal/observability"
	"solana-pool-sniper/internal/retry"
	"solana-pool-sniper/internal/solana"
)

// ErrStreamTerminated is returned by Run once the reconnect budget is spent.
var ErrStreamTerminated = errors.New("log stream terminated")

var errStreamClosed = errors.New("subscription channel closed")

// Dialer opens a new websocket session.
type Dialer func(ctx context.Context) (solana.WSClient, error)

// SubscriberConfig configures one log subscription.
type SubscriberConfig struct {
	Program domain.WatchedProgram

	// MaxReconnects bounds consecutive reconnect attempts. 0 ends Run on the first drop.
	MaxReconnects int
	// Reconnect supplies the wait curve between reconnects. MaxAttempts is ignored.
	Reconnect retry.Policy
	// Commitment defaults to confirmed.
	Commitment string
}

// Subscriber streams log notifications mentioning one program and emits
// a LogEvent per notification onto a shared sink.
type Subscriber struct {
	cfg      SubscriberConfig
	dial     Dialer
	sink     chan<- domain.LogEvent
	notifier notify.Notifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewSubscriber creates a subscriber. The sink is shared and never closed here.
func NewSubscriber(cfg SubscriberConfig, dial Dialer, sink chan<- domain.LogEvent, notifier notify.Notifier, logger *zap.Logger) *Subscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if cfg.Commitment == "" {
		cfg.Commitment = solana.CommitmentConfirmed
	}
	if cfg.MaxReconnects < 0 {
		cfg.MaxReconnects = 0
	}
	return &Subscriber{
		cfg:      cfg,
		dial:     dial,
		sink:     sink,
		notifier: notifier,
		logger: logger.With(
			zap.String("component", "subscriber"),
			zap.String("kind", cfg.Program.Kind.String()),
			zap.String("program", cfg.Program.ProgramID),
		),
		now: time.Now,
	}
}

// Run subscribes and forwards events until ctx is cancelled (returns nil)
// or the stream cannot be re-established.
func (s *Subscriber) Run(ctx context.Context) error {
	kind := s.cfg.Program.Kind.String()
	curve := s.cfg.Reconnect.Curve()
	reconnects := 0

	for {
		delivered, err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}

		observability.RecordSubscriptionDrop(kind)
		s.logger.Warn("log subscription ended", zap.Error(err), zap.Int("delivered", delivered))

		// A healthy session restores the full budget.
		if delivered > 0 {
			reconnects = 0
			curve.Reset()
		}

		if reconnects >= s.cfg.MaxReconnects {
			terminal := fmt.Errorf("%w: %s subscription: %v", ErrStreamTerminated, kind, err)
			if nerr := s.notifier.Notify(ctx, notify.ErrorMessage(terminal)); nerr != nil {
				s.logger.Error("failed to send stream alert", zap.Error(nerr))
			}
			return terminal
		}

		reconnects++
		wait := curve.NextBackOff()
		s.logger.Info("reconnecting log subscription",
			zap.Int("attempt", reconnects),
			zap.Duration("wait", wait))
		if err := retry.Sleep(ctx, wait); err != nil {
			return nil
		}
		observability.RecordReconnect(kind)
	}
}

// session runs one connection and returns the number of forwarded events
// and the cause of its end.
func (s *Subscriber) session(ctx context.Context) (int, error) {
	client, err := s.dial(ctx)
	if err != nil {
		return 0, fmt.Errorf("dial: %w", err)
	}
	defer client.Close()

	notifications, err := client.SubscribeLogs(ctx, solana.LogsFilter{
		Mentions:   []string{s.cfg.Program.ProgramID},
		Commitment: s.cfg.Commitment,
	})
	if err != nil {
		return 0, fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("subscribed to program logs")

	delivered := 0
	for {
		select {
		case <-ctx.Done():
			return delivered, ctx.Err()
		case n, ok := <-notifications:
			if !ok {
				if cause := client.Err(); cause != nil {
					return delivered, cause
				}
				return delivered, errStreamClosed
			}
			if n.Signature == "" {
				continue
			}

			ev := domain.LogEvent{
				Kind:       s.cfg.Program.Kind,
				Signature:  n.Signature,
				Slot:       n.Slot,
				ReceivedAt: s.now().UnixMilli(),
			}
			select {
			case s.sink <- ev:
			case <-ctx.Done():
				return delivered, ctx.Err()
			}
			delivered++
			observability.RecordLogEvent(s.cfg.Program.Kind.String())
			observability.UpdateQueueDepth(len(s.sink))
		}
	}
}
