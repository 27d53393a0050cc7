package presentation

import (
	"sync"

	"bikestreets_backend/internal/session"
)

// Reactor keeps the latest View. Observe is a session.Listener and runs on
// the session loop; View may be read from any goroutine.
type Reactor struct {
	mu        sync.RWMutex
	view      View
	listeners []func(View)
}

// NewReactor starts from the view of a fresh session.
func NewReactor() *Reactor {
	return &Reactor{view: Derive(nil, session.Initial{})}
}

// Observe recomputes the view and notifies OnChange listeners.
func (r *Reactor) Observe(old, next session.State) {
	v := Derive(old, next)

	r.mu.Lock()
	r.view = v
	listeners := r.listeners
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(v)
	}
}

// View returns the latest view.
func (r *Reactor) View() View {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.view
}

// OnChange registers fn for every new view.
func (r *Reactor) OnChange(fn func(View)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.listeners = append(r.listeners, fn)
}
