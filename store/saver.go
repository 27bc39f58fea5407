package store

import (
	"context"
	"sync"
)

type request struct {
	id    string
	name  string
	state *State
}

// Saver writes saves from its own goroutine so callers never block on
// disk. Requests for the same script coalesce: only the latest is written.
type Saver struct {
	store *Store
	onErr func(id string, err error)

	mu      sync.Mutex
	pending map[string]request
	order   []string
	wake    chan struct{}
}

func NewSaver(s *Store, onErr func(id string, err error)) *Saver {
	if onErr == nil {
		onErr = func(string, error) {}
	}
	return &Saver{
		store:   s,
		onErr:   onErr,
		pending: make(map[string]request),
		wake:    make(chan struct{}, 1),
	}
}

// Request queues st for writing. st must not be modified afterwards.
func (s *Saver) Request(id, name string, st *State) {
	s.mu.Lock()
	if _, ok := s.pending[id]; !ok {
		s.order = append(s.order, id)
	}
	s.pending[id] = request{id: id, name: name, state: st}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Run writes queued saves until ctx is done, then flushes what is left
func (s *Saver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			s.Flush()
			return
		case <-s.wake:
			s.Flush()
		}
	}
}

// Flush writes every pending save now
func (s *Saver) Flush() {
	for {
		s.mu.Lock()
		if len(s.order) == 0 {
			s.mu.Unlock()
			return
		}
		id := s.order[0]
		s.order = s.order[1:]
		req := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()

		if _, err := s.store.Save(req.id, req.name, req.state); err != nil {
			s.onErr(req.id, err)
		}
	}
}
