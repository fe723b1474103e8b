package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"confluence-engine/internal/model"
)

const (
	defaultCapitalTTL = 30 * time.Minute
	defaultMaxPending = 10000
)

// PublisherConfig names the Redis targets for decisions.
type PublisherConfig struct {
	Stream     string // decision stream (XADD)
	MaxLen     int64  // approximate stream cap
	CapitalKey string // latest capital status (SET)
	Channel    string // real-time channel (PUBLISH)
	MaxPending int    // decisions buffered while the breaker is open
}

// Publisher writes each decision to a Redis stream, stores the latest capital
// status under CapitalKey and publishes the decision on Channel, all in one
// pipeline. Writes go through a Breaker; while it is open decisions are
// buffered and replayed once it closes.
type Publisher struct {
	cfg     PublisherConfig
	breaker *Breaker
	send    func(ctx context.Context, d model.Decision) error

	mu      sync.Mutex
	pending []model.Decision

	// OnError is called for every failed or rejected write (for metrics).
	OnError func(err error)
}

// NewPublisher creates a publisher writing through client.
func NewPublisher(client goredis.Cmdable, cfg PublisherConfig, breaker *Breaker) *Publisher {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = defaultMaxPending
	}
	p := &Publisher{cfg: cfg, breaker: breaker}
	p.send = func(ctx context.Context, d model.Decision) error {
		return p.pipeline(ctx, client, d)
	}
	return p
}

// Run publishes decisions until ctx is cancelled or decisions is closed.
func (p *Publisher) Run(ctx context.Context, decisions <-chan model.Decision) {
	for {
		select {
		case <-ctx.Done():
			return
		case d, ok := <-decisions:
			if !ok {
				return
			}
			if err := p.Publish(ctx, d); err != nil && !errors.Is(err, ErrCircuitOpen) {
				log.Printf("[redis] publish decision %s: %v", d.ID, err)
			}
		}
	}
}

// Publish writes one decision. Buffered decisions are replayed first when
// the breaker lets a call through. A decision rejected by an open breaker
// is buffered and ErrCircuitOpen is returned.
func (p *Publisher) Publish(ctx context.Context, d model.Decision) error {
	err := p.breaker.Do(ctx, func(ctx context.Context) error {
		if err := p.flush(ctx); err != nil {
			return err
		}
		return p.send(ctx, d)
	})
	if err != nil {
		if errors.Is(err, ErrCircuitOpen) || ctx.Err() == nil {
			p.buffer(d)
		}
		if p.OnError != nil {
			p.OnError(err)
		}
	}
	return err
}

// Pending returns the number of buffered decisions.
func (p *Publisher) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

func (p *Publisher) buffer(d model.Decision) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.pending) >= p.cfg.MaxPending {
		p.pending = p.pending[1:] // drop oldest
	}
	p.pending = append(p.pending, d)
}

// flush replays buffered decisions in order. On failure the unsent tail is
// put back in front of anything buffered meanwhile.
func (p *Publisher) flush(ctx context.Context) error {
	p.mu.Lock()
	queued := p.pending
	p.pending = nil
	p.mu.Unlock()

	for i, d := range queued {
		if err := p.send(ctx, d); err != nil {
			p.mu.Lock()
			p.pending = append(queued[i:len(queued):len(queued)], p.pending...)
			p.mu.Unlock()
			return err
		}
	}
	if len(queued) > 0 {
		log.Printf("[redis] flushed %d buffered decisions", len(queued))
	}
	return nil
}

func (p *Publisher) pipeline(ctx context.Context, client goredis.Cmdable, d model.Decision) error {
	data := string(d.JSON())
	capital, err := json.Marshal(d.Capital)
	if err != nil {
		return err
	}

	pipe := client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.cfg.Stream,
		MaxLen: p.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data":   data,
			"symbol": d.Symbol,
		},
	})
	pipe.Set(ctx, p.cfg.CapitalKey, string(capital), defaultCapitalTTL)
	pipe.Publish(ctx, p.cfg.Channel, data)

	_, err = pipe.Exec(ctx)
	return err
}
