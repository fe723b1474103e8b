package ringbuf

import (
	"testing"
	"time"

	"confluence-engine/internal/model"
)

var t0 = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func bar(i int, close float64) model.Bar {
	return model.Bar{Symbol: "BTCUSDT", TS: t0.Add(time.Duration(i) * time.Minute), Close: close}
}

func TestWindow_BasicPush(t *testing.T) {
	w := New(4)

	if !w.Push(bar(0, 100)) || !w.Push(bar(1, 101)) {
		t.Fatal("push should succeed")
	}
	if w.Len() != 2 {
		t.Fatalf("expected len=2, got %d", w.Len())
	}

	last, ok := w.Last()
	if !ok || last.Close != 101 {
		t.Fatalf("expected last close=101, got %v ok=%v", last.Close, ok)
	}
}

func TestWindow_EvictsOldest(t *testing.T) {
	w := New(3)
	for i := 0; i < 5; i++ {
		w.Push(bar(i, float64(100+i)))
	}

	if w.Len() != 3 {
		t.Fatalf("expected len=3, got %d", w.Len())
	}
	bars := w.Bars()
	for i, want := range []float64{102, 103, 104} {
		if bars[i].Close != want {
			t.Errorf("bars[%d]: expected close=%.0f, got %.0f", i, want, bars[i].Close)
		}
	}
}

func TestWindow_RejectsDuplicateAndOutOfOrder(t *testing.T) {
	w := New(4)
	w.Push(bar(5, 100))

	if w.Push(bar(5, 999)) {
		t.Fatal("duplicate timestamp should be rejected")
	}
	if w.Push(bar(4, 999)) {
		t.Fatal("older timestamp should be rejected")
	}
	if w.Rejected() != 2 {
		t.Fatalf("expected rejected=2, got %d", w.Rejected())
	}
	if last, _ := w.Last(); last.Close != 100 {
		t.Fatalf("rejected push must not overwrite, got close=%.0f", last.Close)
	}
}

func TestWindow_MergeOverlapping(t *testing.T) {
	w := New(10)
	w.Merge([]model.Bar{bar(0, 100), bar(1, 101), bar(2, 102)})

	// Collaborator returns an overlapping history plus one new bar.
	n := w.Merge([]model.Bar{bar(1, 101), bar(2, 102), bar(3, 103)})
	if n != 1 {
		t.Fatalf("expected 1 new bar merged, got %d", n)
	}
	if w.Len() != 4 {
		t.Fatalf("expected len=4, got %d", w.Len())
	}
}

func TestWindow_MergeBackfillsOlderHistory(t *testing.T) {
	w := New(10)
	// Short stream at startup: only the newest bars.
	w.Merge([]model.Bar{bar(6, 106), bar(7, 107)})

	// The full history arrives later, overlapping what is held.
	var full []model.Bar
	for i := 0; i <= 8; i++ {
		full = append(full, bar(i, float64(100+i)))
	}
	if n := w.Merge(full); n != 7 {
		t.Fatalf("expected 6 backfilled + 1 new = 7, got %d", n)
	}
	bars := w.Bars()
	if len(bars) != 9 {
		t.Fatalf("expected len=9, got %d", len(bars))
	}
	for i, b := range bars {
		if b.Close != float64(100+i) {
			t.Errorf("bars[%d]: expected close=%d, got %.0f", i, 100+i, b.Close)
		}
	}
}

func TestWindow_BackfillKeepsNewestWhenShortOfRoom(t *testing.T) {
	w := New(4)
	w.Merge([]model.Bar{bar(5, 105), bar(6, 106)})
	w.Merge([]model.Bar{bar(0, 100), bar(1, 101), bar(2, 102), bar(3, 103), bar(4, 104), bar(5, 105), bar(6, 106)})

	bars := w.Bars()
	if len(bars) != 4 || bars[0].Close != 103 || bars[3].Close != 106 {
		t.Fatalf("expected closes 103..106, got %v", bars)
	}
}

func TestWindow_FullWindowDoesNotBackfill(t *testing.T) {
	w := New(2)
	w.Merge([]model.Bar{bar(5, 105), bar(6, 106)})
	if n := w.Merge([]model.Bar{bar(1, 101), bar(2, 102)}); n != 0 {
		t.Fatalf("full window must ignore older bars, merged %d", n)
	}
	if bars := w.Bars(); bars[0].Close != 105 {
		t.Fatalf("expected oldest close=105, got %.0f", bars[0].Close)
	}
}

func TestWindow_BarsIsCopy(t *testing.T) {
	w := New(2)
	w.Push(bar(0, 100))
	bars := w.Bars()
	bars[0].Close = 1

	if last, _ := w.Last(); last.Close != 100 {
		t.Fatal("Bars() must return a copy")
	}
}

func TestWindow_MinimumCapacity(t *testing.T) {
	if New(0).Cap() != 2 {
		t.Fatal("capacity should be raised to 2")
	}
}
