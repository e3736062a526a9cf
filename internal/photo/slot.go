package photo

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned when a newer preview started before this one finished.
var ErrSuperseded = errors.New("superseded by a newer upload")

type Ticket uint64

// Slot keeps the result of the latest preview only. Starting a new one cancels the
// one in flight, and a late finisher cannot overwrite a newer result.
type Slot struct {
	mu      sync.Mutex
	gen     uint64
	cancel  context.CancelFunc
	current *Result
}

func (s *Slot) Begin(parent context.Context) (Ticket, context.Context) {
	ctx, cancel := context.WithCancel(parent)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	s.gen++
	s.cancel = cancel
	return Ticket(s.gen), ctx
}

// Commit stores r if t is still the latest ticket.
func (s *Slot) Commit(t Ticket, r *Result) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(t) != s.gen {
		return false
	}
	s.current = r
	s.release()
	return true
}

// Done releases the ticket's context without committing anything.
func (s *Slot) Done(t Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if uint64(t) == s.gen {
		s.release()
	}
}

func (s *Slot) Current() *Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *Slot) release() {
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Slot) isCurrent(t Ticket) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return uint64(t) == s.gen
}

// Run processes src under a fresh ticket.
func (s *Slot) Run(ctx context.Context, p *Pipeline, src Source) (*Result, error) {
	t, runCtx := s.Begin(ctx)
	res, err := p.Process(runCtx, src)
	if err != nil {
		if !s.isCurrent(t) {
			return nil, ErrSuperseded
		}
		s.Done(t)
		return nil, err
	}
	if !s.Commit(t, res) {
		return nil, ErrSuperseded
	}
	return res, nil
}

type slotEntry struct {
	slot     *Slot
	lastUsed time.Time
}

// SlotRegistry hands out one Slot per upload session and forgets idle ones.
type SlotRegistry struct {
	mu    sync.Mutex
	slots map[string]*slotEntry
	ttl   time.Duration
	now   func() time.Time
}

func NewSlotRegistry(ttl time.Duration) *SlotRegistry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &SlotRegistry{
		slots: make(map[string]*slotEntry),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (r *SlotRegistry) Get(session string) *Slot {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, e := range r.slots {
		if key != session && now.Sub(e.lastUsed) > r.ttl {
			delete(r.slots, key)
		}
	}

	e, ok := r.slots[session]
	if !ok {
		e = &slotEntry{slot: &Slot{}}
		r.slots[session] = e
	}
	e.lastUsed = now
	return e.slot
}

func (r *SlotRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}
