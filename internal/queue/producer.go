package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/felixgeelhaar/academy/internal/domain"
)

// Sender delivers a JSON document to a named queue
type Sender interface {
	PublishJSON(ctx context.Context, queue string, data any) error
}

// PublisherConfig holds publisher settings
type PublisherConfig struct {
	Queue   string
	Source  string        // identifies this installation in messages
	Buffer  int           // pending events before new ones are dropped
	Timeout time.Duration // per publish
	Logger  *slog.Logger
}

// Publisher forwards domain events to the activity queue. Events are
// buffered so dispatching never waits on the broker.
type Publisher struct {
	sender  Sender
	queue   string
	source  string
	timeout time.Duration
	logger  *slog.Logger

	events  chan domain.Event
	done    chan struct{}
	once    sync.Once
	mu      sync.RWMutex
	closed  bool
	sent    int
	dropped int
	failed  int
}

// NewPublisher starts a publisher draining into sender
func NewPublisher(sender Sender, cfg PublisherConfig) *Publisher {
	if cfg.Queue == "" {
		cfg.Queue = DefaultQueueName
	}
	if cfg.Source == "" {
		cfg.Source = "academyd"
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = 64
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	p := &Publisher{
		sender:  sender,
		queue:   cfg.Queue,
		source:  cfg.Source,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		events:  make(chan domain.Event, cfg.Buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Handle enqueues an event; it satisfies domain.EventHandler
func (p *Publisher) Handle(event domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.events <- event:
	default:
		p.dropped++
		p.logger.Warn("activity buffer full, dropping event",
			"event_type", event.EventType(),
			"subject", event.Subject(),
		)
	}
}

// Publish sends one event synchronously
func (p *Publisher) Publish(ctx context.Context, event domain.Event) error {
	msg, err := NewActivityMessage(p.source, event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	if err := p.sender.PublishJSON(ctx, p.queue, msg); err != nil {
		return fmt.Errorf("failed to publish %s: %w", msg.Type, err)
	}

	p.logger.Debug("published activity",
		"event_id", msg.ID,
		"event_type", msg.Type,
		"subject", msg.Subject,
	)
	return nil
}

func (p *Publisher) run() {
	defer close(p.done)
	for event := range p.events {
		err := p.Publish(context.Background(), event)
		p.mu.Lock()
		if err != nil {
			p.failed++
		} else {
			p.sent++
		}
		p.mu.Unlock()
		if err != nil {
			p.logger.Error("activity publish failed", "error", err)
		}
	}
}

// Stats reports sent, dropped and failed counts
func (p *Publisher) Stats() (sent, dropped, failed int) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sent, p.dropped, p.failed
}

// Close stops accepting events and waits for the buffer to drain
func (p *Publisher) Close(ctx context.Context) error {
	p.once.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.events)
		p.mu.Unlock()
	})

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("activity publisher did not drain: %w", ctx.Err())
	}
}
