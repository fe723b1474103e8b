package engine

import (
	"sync"

	"confluence-engine/internal/model"
)

// auditLog keeps the last depth decisions per symbol.
type auditLog struct {
	mu    sync.RWMutex
	depth int
	rings map[string]*decisionRing
}

type decisionRing struct {
	buf  []model.Decision
	next int
	full bool
}

func newAuditLog(depth int) *auditLog {
	if depth < 1 {
		depth = 1
	}
	return &auditLog{depth: depth, rings: make(map[string]*decisionRing)}
}

func (a *auditLog) add(d model.Decision) {
	a.mu.Lock()
	defer a.mu.Unlock()
	r, ok := a.rings[d.Symbol]
	if !ok {
		r = &decisionRing{buf: make([]model.Decision, a.depth)}
		a.rings[d.Symbol] = r
	}
	r.buf[r.next] = d
	r.next = (r.next + 1) % len(r.buf)
	if r.next == 0 {
		r.full = true
	}
}

// recent returns a copy of the symbol's decisions, newest first.
func (a *auditLog) recent(symbol string) []model.Decision {
	a.mu.RLock()
	defer a.mu.RUnlock()
	r, ok := a.rings[symbol]
	if !ok {
		return nil
	}
	n := r.next
	if r.full {
		n = len(r.buf)
	}
	out := make([]model.Decision, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, r.buf[(r.next-i+len(r.buf))%len(r.buf)])
	}
	return out
}
