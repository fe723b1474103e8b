package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"confluence-engine/internal/model"
)

func decision(id string) model.Decision {
	return model.Decision{ID: id, Symbol: "BTCUSDT", TS: time.Now()}
}

func TestFanOut_BroadcastsToAll(t *testing.T) {
	fo := New(10)
	out1 := fo.Subscribe("journal")
	out2 := fo.Subscribe("hub")

	input := make(chan model.Decision, 10)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go fo.Run(ctx, input)

	input <- decision("d-1")

	for name, out := range map[string]<-chan model.Decision{"journal": out1, "hub": out2} {
		select {
		case d := <-out:
			if d.ID != "d-1" {
				t.Errorf("%s: expected d-1, got %s", name, d.ID)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: timed out waiting for decision", name)
		}
	}
}

func TestFanOut_SlowConsumerDrops(t *testing.T) {
	fo := New(1)
	_ = fo.Subscribe("slow")
	fast := fo.Subscribe("fast")

	var mu sync.Mutex
	dropped := map[string]int{}
	fo.OnDrop = func(name string, _ model.Decision) {
		mu.Lock()
		dropped[name]++
		mu.Unlock()
	}

	input := make(chan model.Decision)
	done := make(chan struct{})
	go func() {
		fo.Run(context.Background(), input)
		close(done)
	}()

	got := 0
	for i := 0; i < 3; i++ {
		input <- decision("d")
		select {
		case <-fast:
			got++
		case <-time.After(time.Second):
			t.Fatal("fast consumer starved")
		}
	}
	close(input)
	<-done

	if got != 3 {
		t.Errorf("fast consumer got %d decisions, want 3", got)
	}
	mu.Lock()
	defer mu.Unlock()
	if dropped["slow"] != 2 {
		t.Errorf("slow consumer dropped %d, want 2", dropped["slow"])
	}
	if dropped["fast"] != 0 {
		t.Errorf("fast consumer dropped %d, want 0", dropped["fast"])
	}
}

type countingSink struct {
	mu sync.Mutex
	n  int
}

func (s *countingSink) Run(ctx context.Context, in <-chan model.Decision) {
	for range in {
		s.mu.Lock()
		s.n++
		s.mu.Unlock()
	}
}

func TestFanOut_AttachRunsSink(t *testing.T) {
	fo := New(4)
	sink := &countingSink{}
	done := fo.Attach(context.Background(), "counter", sink)

	input := make(chan model.Decision, 4)
	input <- decision("a")
	input <- decision("b")
	close(input)
	fo.Run(context.Background(), input)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sink did not stop after input closed")
	}
	if sink.n != 2 {
		t.Errorf("sink saw %d decisions, want 2", sink.n)
	}

	stats := fo.ChannelStats()
	if len(stats) != 1 || stats[0].Name != "counter" || stats[0].Cap != 4 {
		t.Errorf("unexpected stats %+v", stats)
	}
}

func TestFanOut_CancelForwardsQueuedDecisions(t *testing.T) {
	fo := New(10)
	out := fo.Subscribe("journal")

	input := make(chan model.Decision, 10)
	for _, id := range []string{"d-1", "d-2", "d-3"} {
		input <- decision(id)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fo.Run(ctx, input)

	var ids []string
	for d := range out {
		ids = append(ids, d.ID)
	}
	if len(ids) != 3 || ids[0] != "d-1" || ids[2] != "d-3" {
		t.Fatalf("expected d-1..d-3 before close, got %v", ids)
	}
}
