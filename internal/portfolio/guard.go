package portfolio

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"confluence-engine/internal/model"
)

// StateChange describes a guard state transition.
type StateChange struct {
	From   model.CapitalState
	To     model.CapitalState
	Status model.CapitalStatus
}

type reservation struct {
	capital model.PositionCapital
	expires time.Time
}

// Guard is the Capital Guard. It owns the last account snapshot, the
// positions reported since, and pending reservations. All methods are safe
// for concurrent use.
type Guard struct {
	mu           sync.Mutex
	limits       Limits
	balance      float64
	positions    map[string]model.OpenPosition
	reservations map[string]reservation
	state        model.CapitalState
	synced       bool

	onChange []func(StateChange)
	now      func() time.Time
	log      *slog.Logger
}

// NewGuard creates a Guard with zero balance and no positions.
func NewGuard(limits Limits, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		limits:       limits,
		positions:    make(map[string]model.OpenPosition),
		reservations: make(map[string]reservation),
		state:        model.StateNormal,
		now:          time.Now,
		log:          logger,
	}
}

// OnStateChange registers a callback invoked after every state transition.
// Callbacks run outside the guard lock and may call back into the guard.
func (g *Guard) OnStateChange(fn func(StateChange)) {
	g.mu.Lock()
	g.onChange = append(g.onChange, fn)
	g.mu.Unlock()
}

// Limits returns the configured thresholds.
func (g *Guard) Limits() Limits { return g.limits }

// Sync replaces balance and positions with a fresh account snapshot.
// Reservations for symbols that now show a position are dropped.
func (g *Guard) Sync(snap model.AccountSnapshot) model.CapitalStatus {
	g.mu.Lock()
	g.synced = true
	g.balance = snap.Balance
	g.positions = make(map[string]model.OpenPosition, len(snap.Positions))
	for _, p := range snap.Positions {
		g.positions[p.Symbol] = p
		delete(g.reservations, p.Symbol)
	}
	st, change := g.refreshLocked()
	g.mu.Unlock()

	g.notify(change)
	return st
}

// Synced reports whether Sync has been called at least once. Until then
// the guard's balance is zero, not a real account reading.
func (g *Guard) Synced() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.synced
}

// Open records a confirmed position, replacing any reservation for the symbol.
func (g *Guard) Open(pos model.OpenPosition) model.CapitalStatus {
	g.mu.Lock()
	delete(g.reservations, pos.Symbol)
	g.positions[pos.Symbol] = pos
	st, change := g.refreshLocked()
	g.mu.Unlock()

	g.log.Info("[guard] position opened",
		"symbol", pos.Symbol, "side", pos.Side, "notional", pos.Notional(),
		"leverage", g.limits.leverage(pos.Leverage), "in_play_pct", st.InPlayPct)
	g.notify(change)
	return st
}

// Close removes a position (and any reservation) for symbol.
func (g *Guard) Close(symbol string) model.CapitalStatus {
	g.mu.Lock()
	delete(g.positions, symbol)
	delete(g.reservations, symbol)
	st, change := g.refreshLocked()
	g.mu.Unlock()

	g.log.Info("[guard] position closed", "symbol", symbol, "in_play_pct", st.InPlayPct)
	g.notify(change)
	return st
}

// Release drops a pending reservation without opening a position.
func (g *Guard) Release(symbol string) model.CapitalStatus {
	g.mu.Lock()
	_, had := g.reservations[symbol]
	delete(g.reservations, symbol)
	st, change := g.refreshLocked()
	g.mu.Unlock()

	if had {
		g.log.Debug("[guard] reservation released", "symbol", symbol)
	}
	g.notify(change)
	return st
}

// Status returns the current capital status.
func (g *Guard) Status() model.CapitalStatus {
	g.mu.Lock()
	st, change := g.refreshLocked()
	g.mu.Unlock()

	g.notify(change)
	return st
}

// Holds reports whether symbol has an open position or pending reservation.
func (g *Guard) Holds(symbol string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.expireLocked()
	_, open := g.positions[symbol]
	_, pending := g.reservations[symbol]
	return open || pending
}

// Reserve sizes a proposal atomically against current headroom.
//
// decide receives the status as of lock acquisition. If it accepts, the
// required capital is recorded as a reservation for symbol before the lock is
// released, so concurrent proposals cannot spend the same headroom. The
// caller must confirm with Open or abandon with Release; otherwise the
// reservation lapses after ReservationTTL.
//
// A symbol that already holds a position or reservation is rejected with
// RejectPositionOpen while trading is allowed.
func (g *Guard) Reserve(symbol string, side model.Side, decide func(model.CapitalStatus) model.SizingResult) (model.SizingResult, model.CapitalStatus) {
	g.mu.Lock()
	st, change := g.refreshLocked()

	_, open := g.positions[symbol]
	_, pending := g.reservations[symbol]

	var res model.SizingResult
	if (open || pending) && st.State.AllowsTrading() {
		res = model.Reject(model.RejectPositionOpen, st.State)
	} else {
		res = decide(st)
	}

	if res.Accepted {
		g.reservations[symbol] = reservation{
			capital: model.PositionCapital{
				Symbol:   symbol,
				Side:     side,
				Notional: res.Notional,
				Leverage: res.Leverage,
				Capital:  res.RequiredCapital,
			},
			expires: g.now().Add(g.limits.ReservationTTL),
		}
		var after *StateChange
		st, after = g.refreshLocked()
		defer g.notify(after)
	}
	g.mu.Unlock()

	if res.Accepted {
		g.log.Info("[guard] capital reserved",
			"symbol", symbol, "side", side, "notional", res.Notional,
			"required", res.RequiredCapital, "leverage", res.Leverage, "in_play_pct", st.InPlayPct)
	}
	g.notify(change)
	return res, st
}

// expireLocked drops lapsed reservations. Caller holds g.mu.
func (g *Guard) expireLocked() {
	now := g.now()
	for sym, r := range g.reservations {
		if now.After(r.expires) {
			delete(g.reservations, sym)
			g.log.Warn("[guard] reservation expired", "symbol", sym, "capital", r.capital.Capital)
		}
	}
}

// refreshLocked recomputes status and records a transition. Caller holds g.mu.
func (g *Guard) refreshLocked() (model.CapitalStatus, *StateChange) {
	g.expireLocked()

	positions := make([]model.OpenPosition, 0, len(g.positions))
	for _, p := range g.positions {
		positions = append(positions, p)
	}
	pending := make([]model.PositionCapital, 0, len(g.reservations))
	for _, r := range g.reservations {
		pending = append(pending, r.capital)
	}

	st := Assess(g.limits, g.balance, positions, pending)
	st.TS = g.now()

	if st.State == g.state {
		return st, nil
	}
	change := &StateChange{From: g.state, To: st.State, Status: st}
	g.state = st.State
	return st, change
}

func (g *Guard) notify(change *StateChange) {
	if change == nil {
		return
	}
	level := slog.LevelInfo
	if change.To.Level() >= model.StateWarning.Level() {
		level = slog.LevelWarn
	}
	g.log.Log(context.Background(), level, "[guard] state change",
		"from", change.From, "to", change.To,
		"in_play_pct", change.Status.InPlayPct, "balance", change.Status.Balance)

	g.mu.Lock()
	callbacks := append([]func(StateChange){}, g.onChange...)
	g.mu.Unlock()
	for _, fn := range callbacks {
		fn(*change)
	}
}
