// Package orchestrator runs the log subscriptions and the coordinator together.
package orchestrator

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"solana-pool-sniper/internal/domain"
	"solana-pool-sniper/internal/ingestion"
	"solana-pool-sniper/internal/notify"
	"solana-pool-sniper/internal/retry"
)

// ErrAllSubscriptionsLost is returned when every log subscription has
// terminated while the process was not shutting down.
var ErrAllSubscriptionsLost = errors.New("all log subscriptions lost")

// DefaultQueueSize bounds the event queue between subscribers and coordinator.
const DefaultQueueSize = 100

// EventProcessor consumes the event queue.
type EventProcessor interface {
	Run(ctx context.Context, events <-chan domain.LogEvent) error
}

// Options for creating a Sniper.
type Options struct {
	// Required
	Programs    []domain.WatchedProgram
	Dial        ingestion.Dialer
	Coordinator EventProcessor

	// Optional
	QueueSize     int // defaults to DefaultQueueSize
	MaxReconnects int
	Reconnect     retry.Policy
	Commitment    string
	Notifier      notify.Notifier
	Logger        *zap.Logger
}

// Sniper wires one subscriber per program to a single coordinator.
type Sniper struct {
	opts   Options
	logger *zap.Logger
}

// New creates a Sniper.
func New(opts Options) *Sniper {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Nop{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sniper{opts: opts, logger: logger.With(zap.String("component", "orchestrator"))}
}

// Run blocks until ctx is cancelled (returns nil) or every subscription
// has terminated (returns ErrAllSubscriptionsLost after queued events drain).
func (s *Sniper) Run(ctx context.Context) error {
	if len(s.opts.Programs) == 0 {
		return errors.New("no programs to watch")
	}

	events := make(chan domain.LogEvent, s.opts.QueueSize)
	g, gctx := errgroup.WithContext(ctx)

	var subs sync.WaitGroup
	for _, program := range s.opts.Programs {
		sub := ingestion.NewSubscriber(ingestion.SubscriberConfig{
			Program:       program,
			MaxReconnects: s.opts.MaxReconnects,
			Reconnect:     s.opts.Reconnect,
			Commitment:    s.opts.Commitment,
		}, s.opts.Dial, events, s.opts.Notifier, s.opts.Logger)

		subs.Add(1)
		g.Go(func() error {
			defer subs.Done()
			// A lost subscription must not cancel its siblings.
			if err := sub.Run(gctx); err != nil {
				s.logger.Error("subscription terminated",
					zap.String("kind", program.Kind.String()),
					zap.Error(err))
			}
			return nil
		})
	}

	// The queue closes once no producer is left.
	go func() {
		subs.Wait()
		close(events)
	}()

	g.Go(func() error {
		return s.opts.Coordinator.Run(gctx, events)
	})

	s.logger.Info("sniper started",
		zap.Int("programs", len(s.opts.Programs)),
		zap.Int("queue_size", s.opts.QueueSize))

	if err := g.Wait(); err != nil {
		return err
	}
	if ctx.Err() != nil {
		s.logger.Info("sniper stopped")
		return nil
	}
	return ErrAllSubscriptionsLost
}
