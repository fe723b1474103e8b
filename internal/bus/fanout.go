// Package bus distributes engine decisions to independent consumers.
package bus

import (
	"context"
	"log"
	"sync"

	"confluence-engine/internal/model"
)

// FanOut broadcasts decisions from a single input channel to N named
// subscribers. If a subscriber's channel is full the decision is dropped for
// that subscriber only, so a slow sink never stalls evaluation.
type FanOut struct {
	mu      sync.RWMutex
	outputs []subscriber
	bufSize int

	// OnDrop is called when a decision is dropped for a subscriber.
	OnDrop func(name string, d model.Decision)
}

type subscriber struct {
	name string
	ch   chan model.Decision
}

// New creates a FanOut with the given buffer size for output channels.
func New(outputBufferSize int) *FanOut {
	return &FanOut{bufSize: outputBufferSize}
}

// Subscribe registers a named consumer. Must be called before Run.
func (f *FanOut) Subscribe(name string) <-chan model.Decision {
	ch := make(chan model.Decision, f.bufSize)
	f.mu.Lock()
	f.outputs = append(f.outputs, subscriber{name: name, ch: ch})
	f.mu.Unlock()
	return ch
}

// Attach subscribes sink and runs it in its own goroutine. The returned
// channel is closed once the sink's Run returns.
func (f *FanOut) Attach(ctx context.Context, name string, sink model.DecisionSink) <-chan struct{} {
	ch := f.Subscribe(name)
	done := make(chan struct{})
	go func() {
		defer close(done)
		sink.Run(ctx, ch)
	}()
	return done
}

// Run reads from input and fans out to all subscribers. Subscriber channels
// are closed when ctx is cancelled or input is closed. On cancellation,
// decisions already queued on input are forwarded before the close.
func (f *FanOut) Run(ctx context.Context, input <-chan model.Decision) {
	defer func() {
		f.mu.RLock()
		for _, s := range f.outputs {
			close(s.ch)
		}
		f.mu.RUnlock()
	}()

	for {
		select {
		case <-ctx.Done():
			f.drain(input)
			return
		case d, ok := <-input:
			if !ok {
				return
			}
			f.publish(d)
		}
	}
}

func (f *FanOut) drain(input <-chan model.Decision) {
	for {
		select {
		case d, ok := <-input:
			if !ok {
				return
			}
			f.publish(d)
		default:
			return
		}
	}
}

func (f *FanOut) publish(d model.Decision) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, s := range f.outputs {
		select {
		case s.ch <- d:
		default:
			if f.OnDrop != nil {
				f.OnDrop(s.name, d)
			} else {
				log.Printf("[bus] %s channel full, dropping decision %s (%s)", s.name, d.ID, d.Symbol)
			}
		}
	}
}

// ChannelStat reports a subscriber's channel saturation.
type ChannelStat struct {
	Name string
	Len  int
	Cap  int
}

func (f *FanOut) ChannelStats() []ChannelStat {
	f.mu.RLock()
	defer f.mu.RUnlock()
	stats := make([]ChannelStat, len(f.outputs))
	for i, s := range f.outputs {
		stats[i] = ChannelStat{Name: s.name, Len: len(s.ch), Cap: cap(s.ch)}
	}
	return stats
}
