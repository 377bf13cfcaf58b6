package registry

import (
	"sync"
	"time"
)

// Event describes one applied mutation.
type Event struct {
	Op           string
	Caller       Principal
	LandID       LandID
	At           time.Time
	Transactions []TransactionRecord
	Counts       Counts
}

// Counts is the size of each registry component after a mutation.
type Counts struct {
	Lands    int
	Owners   int
	Listings int
	Ledger   int
}

// Observer receives an Event after every applied mutation. Observers run
// under the engine write lock, in commit order, and must not call back into
// the Engine.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function into an Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(ev Event) {
	f(ev)
}

// Operation names carried by Event.Op.
const (
	OpRegister       = "register_land"
	OpTransfer       = "transfer_land"
	OpList           = "list_for_sale"
	OpUnlist         = "remove_from_sale"
	OpBuy            = "buy_land"
	OpUpdateMetadata = "update_land_metadata"
	OpAddAdmin       = "add_admin"
	OpRemoveLand     = "remove_land"
	OpRestoreLands   = "restore_lands"
	OpRestore        = "restore"
)

// Engine is the registry and marketplace. Mutations are serialized; reads
// may run concurrently with each other.
type Engine struct {
	mu        sync.RWMutex
	st        state
	now       func() time.Time
	observers []Observer
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithClock overrides the time source used for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithObserver subscribes o before any operation runs.
func WithObserver(o Observer) Option {
	return func(e *Engine) {
		if o != nil {
			e.observers = append(e.observers, o)
		}
	}
}

// New creates an empty registry. initializer becomes the first admin.
func New(initializer Principal, opts ...Option) *Engine {
	e := &Engine{
		st:  newState(),
		now: func() time.Time { return time.Now().UTC() },
	}
	e.st.admins[initializer] = struct{}{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Subscribe adds an observer for subsequent mutations.
func (e *Engine) Subscribe(o Observer) {
	if o == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, o)
}

// CheckInvariants verifies that every derived index agrees with the land
// store, listings belong to current owners, and no two parcels overlap.
func (e *Engine) CheckInvariants() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.st.checkInvariants()
}

// mutate runs build against current state and applies the returned commit.
// build must not modify st; a non-nil error leaves state untouched.
func (e *Engine) mutate(op string, caller Principal, build func(st *state, now time.Time) (commit, error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	now := e.now()
	c, err := build(&e.st, now)
	if err != nil {
		return err
	}
	e.st.apply(c)
	if len(e.observers) == 0 {
		return nil
	}
	txs := make([]TransactionRecord, len(c.ledger))
	for i, tx := range c.ledger {
		txs[i] = tx.clone()
	}
	ev := Event{
		Op:           op,
		Caller:       caller,
		LandID:       c.subject,
		At:           now,
		Transactions: txs,
		Counts:       e.st.counts(),
	}
	for _, o := range e.observers {
		o.Observe(ev)
	}
	return nil
}

func (e *Engine) view(fn func(st *state)) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn(&e.st)
}

func (s *state) counts() Counts {
	return Counts{
		Lands:    len(s.lands),
		Owners:   len(s.owners),
		Listings: len(s.market),
		Ledger:   len(s.ledger),
	}
}
