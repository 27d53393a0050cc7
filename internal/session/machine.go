package session

import (
	"bikestreets_backend/platform/apperr"
	"bikestreets_backend/platform/logger"
)

// Listener observes a transition. It runs synchronously inside SetState.
type Listener func(old, next State)

// Subscription is the handle returned by Subscribe.
type Subscription struct {
	listener  Listener
	cancelled bool
}

// Unsubscribe stops delivery immediately. The slot is released at the end
// of the next notification round.
func (s *Subscription) Unsubscribe() {
	s.cancelled = true
}

// Machine owns the current session state and fans every change out to its
// subscribers. It is not safe for concurrent use; run it on a Loop.
type Machine struct {
	state     State
	subs      []*Subscription
	pending   []State
	notifying bool
	sequence  uint64
	log       *logger.Logger
}

// NewMachine returns a machine in the Initial state.
func NewMachine(log *logger.Logger) *Machine {
	return &Machine{state: Initial{}, log: log.WithComponent("session")}
}

// State returns the current state.
func (m *Machine) State() State {
	return m.state
}

// Sequence counts the transitions applied so far.
func (m *Machine) Sequence() uint64 {
	return m.sequence
}

// Subscribe registers l for every future transition. The current state is
// not replayed.
func (m *Machine) Subscribe(l Listener) *Subscription {
	sub := &Subscription{listener: l}
	m.subs = append(m.subs, sub)
	return sub
}

// SubscriberCount is the number of stored subscriptions, including cancelled
// ones that have not been pruned yet.
func (m *Machine) SubscriberCount() int {
	return len(m.subs)
}

// SetState replaces the state without consulting the transition table and
// notifies subscribers in registration order. A SetState issued by a
// listener runs as its own round once the current round has finished, before
// the outermost call returns.
func (m *Machine) SetState(next State) {
	m.pending = append(m.pending, next)
	if m.notifying {
		return
	}

	m.notifying = true
	defer func() {
		m.notifying = false
		m.pending = nil
	}()

	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending = m.pending[1:]
		m.apply(next)
	}
}

// Transition is SetState guarded by the transition table. An illegal change
// returns a KindInvalidTransition error and leaves the state untouched.
func (m *Machine) Transition(next State) error {
	from := m.effectiveState().Kind()
	if !CanTransition(from, next.Kind()) {
		return apperr.InvalidTransition(from.String(), next.Kind().String()).WithOp("session.Transition")
	}
	m.SetState(next)
	return nil
}

// effectiveState is the state a new transition will start from: the last
// queued state while a round is in progress.
func (m *Machine) effectiveState() State {
	if n := len(m.pending); n > 0 {
		return m.pending[n-1]
	}
	return m.state
}

func (m *Machine) apply(next State) {
	old := m.state
	m.state = next
	m.sequence++

	// Subscribers added during the round wait for the next one.
	round := m.subs
	for _, sub := range round {
		if sub.cancelled {
			continue
		}
		sub.listener(old, next)
	}

	m.prune()
	m.log.SessionTransition(old.Kind().String(), next.Kind().String(), len(m.subs))
}

func (m *Machine) prune() {
	live := m.subs[:0]
	for _, sub := range m.subs {
		if !sub.cancelled {
			live = append(live, sub)
		}
	}
	clear(m.subs[len(live):])
	m.subs = live
}
