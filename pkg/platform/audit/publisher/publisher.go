// Package publisher fans domain events out to an audit.Store.
//
// In sync mode Emit writes through to the store. In async mode events are
// buffered and a single worker drains them; Close flushes what is queued.
// A circuit breaker sheds events while the store keeps failing so a broker
// outage never slows request handling.
package publisher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"civicid/pkg/domain"
	audit "civicid/pkg/platform/audit"
	"civicid/pkg/platform/circuit"
	"civicid/pkg/requestcontext"
)

// ErrBufferFull is returned by Emit when the async buffer has no room.
var ErrBufferFull = errors.New("audit buffer full")

// ErrCircuitOpen is returned when events are being shed.
var ErrCircuitOpen = errors.New("audit store circuit open")

// Lister is implemented by stores that can read events back.
type Lister interface {
	ListByUser(ctx context.Context, userID domain.UserID) ([]audit.Event, error)
}

type Publisher struct {
	store   audit.Store
	logger  *slog.Logger
	metrics *Metrics
	breaker *circuit.Breaker
	now     func() time.Time

	buffer    chan audit.Event
	wg        sync.WaitGroup
	closeOnce sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(p *Publisher) {
		p.breaker = b
	}
}

func WithClock(now func() time.Time) Option {
	return func(p *Publisher) {
		if now != nil {
			p.now = now
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:   store,
		logger:  slog.Default(),
		breaker: circuit.New("audit_store"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit completes the envelope (id, timestamp, category, request id) and
// hands the event to the store.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = p.now().UTC()
	}
	if event.Category == "" {
		event.Category = event.Type.Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	if p.buffer == nil {
		return p.write(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	default:
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.metrics.IncDropped("buffer_full")
		return ErrBufferFull
	}
}

func (p *Publisher) write(ctx context.Context, event audit.Event) error {
	if !p.breaker.Allow() {
		p.metrics.IncDropped("circuit_open")
		return ErrCircuitOpen
	}
	start := p.now()
	if err := p.store.Append(ctx, event); err != nil {
		_, change := p.breaker.RecordFailure()
		if change.Opened {
			p.metrics.SetCircuitOpen(true)
			p.logger.WarnContext(ctx, "audit store circuit opened", "error", err)
		}
		p.metrics.IncFailures()
		return err
	}
	if _, change := p.breaker.RecordSuccess(); change.Closed {
		p.metrics.SetCircuitOpen(false)
		p.logger.InfoContext(ctx, "audit store circuit closed")
	}
	p.metrics.ObservePublish(string(event.Type), time.Since(start))
	return nil
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.buffer {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := p.write(ctx, event); err != nil {
			p.logger.Warn("failed to publish audit event",
				"type", event.Type,
				"subject", event.Subject,
				"error", err,
			)
		}
		cancel()
	}
}

// List reads events back when the store supports it.
func (p *Publisher) List(ctx context.Context, userID domain.UserID) ([]audit.Event, error) {
	lister, ok := p.store.(Lister)
	if !ok {
		return nil, errors.New("audit store does not support listing")
	}
	return lister.ListByUser(ctx, userID)
}

// Close drains the async buffer.
func (p *Publisher) Close() error {
	p.closeOnce.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
	return nil
}
