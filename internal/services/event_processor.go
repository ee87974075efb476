package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"sixjars/internal/core"
	"sixjars/internal/ledger"
	"sixjars/internal/log"
)

// Publisher delivers one ledger event downstream (AMQP in production).
type Publisher interface {
	PublishEvent(ctx context.Context, ev core.LedgerEvent) error
}

// EventProcessorConfig holds configuration for the outbox processor
type EventProcessorConfig struct {
	// PollInterval is how often to check for pending events (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of events to publish per poll cycle (default: 10)
	BatchSize int

	// MaxRetries is the number of attempts before an event is marked failed (default: 5)
	MaxRetries int

	// CleanupInterval is how often to clean up completed events (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed events must be before cleanup (default: 24h)
	CleanupAge time.Duration

	// StaleAfter is how long an event may sit in processing before it is
	// considered abandoned by a crashed worker (default: 5m)
	StaleAfter time.Duration
}

func DefaultEventProcessorConfig() EventProcessorConfig {
	return EventProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      5,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
		StaleAfter:      5 * time.Minute,
	}
}

// EventProcessor drains the ledger outbox and publishes each event.
type EventProcessor struct {
	outbox    ledger.Outbox
	publisher Publisher
	config    EventProcessorConfig

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	stopOnce *sync.Once
}

func NewEventProcessor(outbox ledger.Outbox, publisher Publisher, config EventProcessorConfig) *EventProcessor {
	def := DefaultEventProcessorConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = def.BatchSize
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = def.MaxRetries
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = def.CleanupInterval
	}
	if config.CleanupAge <= 0 {
		config.CleanupAge = def.CleanupAge
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = def.StaleAfter
	}
	return &EventProcessor{
		outbox:    outbox,
		publisher: publisher,
		config:    config,
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *EventProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("event processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.stopOnce = new(sync.Once)
	p.mu.Unlock()

	// Events left in processing by a crashed worker go back to pending.
	if n, err := p.outbox.ResetStaleOutbox(ctx, p.config.StaleAfter); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale outbox events", "error", err)
	} else if n > 0 {
		slog.InfoContext(ctx, "Reset stale outbox events", "count", n)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Event processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize,
		"max_retries", p.config.MaxRetries)
	return nil
}

// Stop signals the loop and waits for it to finish or for ctx to expire.
// After a timed-out Stop the processor still counts as running and Stop may
// be called again to keep waiting.
func (p *EventProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh, once := p.stopCh, p.doneCh, p.stopOnce
	p.mu.Unlock()

	once.Do(func() { close(stopCh) })

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Event processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Event processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()
	return nil
}

func (p *EventProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *EventProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	p.processBatch(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-cleanupTicker.C:
			p.Cleanup(ctx)
		}
	}
}

// processBatch publishes one batch of pending events and returns how many
// were published.
func (p *EventProcessor) processBatch(ctx context.Context) int {
	entries, err := p.outbox.DequeueOutbox(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue outbox batch", "error", err)
		return 0
	}
	if len(entries) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing outbox batch", "count", len(entries))

	published := 0
	for _, entry := range entries {
		select {
		case <-p.stopCh:
			return published
		case <-ctx.Done():
			return published
		default:
		}

		if err := p.outbox.MarkOutboxProcessing(ctx, entry.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark event as processing",
				"id", entry.ID, "error", err)
			continue
		}

		if err := p.publisher.PublishEvent(ctx, entry.Event); err != nil {
			p.handleFailure(ctx, entry, err)
			continue
		}
		p.handleSuccess(ctx, entry)
		published++
	}
	return published
}

func (p *EventProcessor) handleSuccess(ctx context.Context, entry ledger.OutboxEntry) {
	if err := p.outbox.MarkOutboxComplete(ctx, entry.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark event complete",
			"id", entry.ID, "error", err)
		return
	}
	slog.DebugContext(ctx, "Event published",
		log.FieldEventID, entry.Event.ID,
		log.FieldEventKind, entry.Event.Kind,
		log.FieldUserID, entry.Event.UserID)
}

// handleFailure requeues the event, or marks it failed once MaxRetries attempts are spent.
func (p *EventProcessor) handleFailure(ctx context.Context, entry ledger.OutboxEntry, publishErr error) {
	attempt := entry.Attempts + 1
	slog.WarnContext(ctx, "Event publish failed",
		"id", entry.ID,
		log.FieldEventID, entry.Event.ID,
		log.FieldEventKind, entry.Event.Kind,
		"attempt", attempt,
		"error", publishErr)

	if attempt >= p.config.MaxRetries {
		if err := p.outbox.MarkOutboxFailed(ctx, entry.ID, publishErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark event as failed",
				"id", entry.ID, "error", err)
		}
		slog.ErrorContext(ctx, "Event failed permanently after max retries",
			"id", entry.ID,
			log.FieldEventID, entry.Event.ID,
			"attempts", attempt)
		return
	}
	if err := p.outbox.RequeueOutbox(ctx, entry.ID, publishErr.Error()); err != nil {
		slog.ErrorContext(ctx, "Failed to requeue event",
			"id", entry.ID, "error", err)
	}
}

// Cleanup removes completed events older than CleanupAge.
func (p *EventProcessor) Cleanup(ctx context.Context) {
	n, err := p.outbox.CleanupOutbox(ctx, p.config.CleanupAge)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed events", "error", err)
		return
	}
	if n > 0 {
		slog.InfoContext(ctx, "Cleaned up completed events", "count", n)
	}
}

func (p *EventProcessor) Stats(ctx context.Context) (ledger.OutboxStats, error) {
	return p.outbox.OutboxStats(ctx)
}

// RetryFailed returns every failed event to pending with a fresh attempt budget.
func (p *EventProcessor) RetryFailed(ctx context.Context) (int64, error) {
	return p.outbox.RetryFailedOutbox(ctx)
}
