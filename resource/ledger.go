package resource

import (
	"sort"
	"sync"
)

// Entry describes one live handle held by the guest.
type Entry struct {
	Handle Handle
	Kind   Kind
}

// Ledger tracks which host-issued handles the guest still owns.
//
// The host never tells the guest that a handle went stale, so the guest keeps
// its own record: a handle enters the ledger when a host call returns it and
// leaves exactly once, either consumed by an owning call or dropped.
type Ledger struct {
	live      map[Entry]struct{}
	observers []Observer
	mu        sync.Mutex
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{live: make(map[Entry]struct{})}
}

// Track records a newly issued handle. It returns false for handle 0 or when
// the same handle of the same kind is already live.
func (l *Ledger) Track(kind Kind, h Handle) bool {
	if h == 0 {
		return false
	}
	e := Entry{Handle: h, Kind: kind}

	l.mu.Lock()
	if _, dup := l.live[e]; dup {
		l.mu.Unlock()
		return false
	}
	l.live[e] = struct{}{}
	l.mu.Unlock()

	l.notify(Event{Type: EventCreated, Handle: h, Kind: kind})
	return true
}

// Live reports whether the handle is still owned by the guest.
func (l *Ledger) Live(kind Kind, h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.live[Entry{Handle: h, Kind: kind}]
	return ok
}

// Consume removes a handle whose ownership moved to the host.
func (l *Ledger) Consume(kind Kind, h Handle) bool {
	return l.release(kind, h, EventConsumed)
}

// Drop removes a handle the guest released itself.
func (l *Ledger) Drop(kind Kind, h Handle) bool {
	return l.release(kind, h, EventDropped)
}

func (l *Ledger) release(kind Kind, h Handle, typ EventType) bool {
	e := Entry{Handle: h, Kind: kind}

	l.mu.Lock()
	if _, ok := l.live[e]; !ok {
		l.mu.Unlock()
		return false
	}
	delete(l.live, e)
	l.mu.Unlock()

	l.notify(Event{Type: typ, Handle: h, Kind: kind})
	return true
}

// Len returns the number of live handles.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.live)
}

// Outstanding returns the live handles ordered by kind, then handle.
func (l *Ledger) Outstanding() []Entry {
	l.mu.Lock()
	out := make([]Entry, 0, len(l.live))
	for e := range l.live {
		out = append(out, e)
	}
	l.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Handle < out[j].Handle
	})
	return out
}

// Subscribe adds an observer for lifecycle events.
func (l *Ledger) Subscribe(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, o)
}

func (l *Ledger) notify(e Event) {
	l.mu.Lock()
	observers := l.observers
	l.mu.Unlock()
	for _, o := range observers {
		o.OnResourceEvent(e)
	}
}
