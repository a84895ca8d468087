package events

import (
	"sync"
	"time"
)

// Kind names a mutation.
type Kind string

const (
	KindCreate Kind = "create"
	KindEdit   Kind = "edit"
	KindDelete Kind = "delete"
)

// Phase of the latest mutation of a kind.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhasePending Phase = "pending"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// Status is what the presentation layer sees of a mutation.
type Status struct {
	Phase Phase
	Err   error
	At    time.Time
}

// Pending reports whether a request of this kind is in flight.
func (s Status) Pending() bool { return s.Phase == PhasePending }

// Tracker records mutation phases. A second mutation of the same kind simply
// overwrites the first one's status.
type Tracker struct {
	mu     sync.Mutex
	status map[Kind]Status
	now    func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{status: make(map[Kind]Status), now: time.Now}
}

func (t *Tracker) Begin(k Kind)   { t.set(k, Status{Phase: PhasePending}) }
func (t *Tracker) Succeed(k Kind) { t.set(k, Status{Phase: PhaseSuccess}) }

func (t *Tracker) Fail(k Kind, err error) {
	t.set(k, Status{Phase: PhaseError, Err: err})
}

func (t *Tracker) Status(k Kind) Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, ok := t.status[k]
	if !ok {
		return Status{Phase: PhaseIdle}
	}
	return st
}

// All copies every known status; kinds never run report idle.
func (t *Tracker) All() map[Kind]Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := map[Kind]Status{
		KindCreate: {Phase: PhaseIdle},
		KindEdit:   {Phase: PhaseIdle},
		KindDelete: {Phase: PhaseIdle},
	}
	for k, v := range t.status {
		out[k] = v
	}
	return out
}

func (t *Tracker) set(k Kind, st Status) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st.At = t.now()
	t.status[k] = st
}
