package throttle

import (
	"sync"
	"time"
)

const DefaultDebounce = 300 * time.Millisecond

// Timer is the part of *time.Timer the debouncer needs.
type Timer interface {
	Stop() bool
}

// AfterFunc schedules f after d.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Debouncer delivers only the latest pushed value once pushes stop for the window.
type Debouncer[T any] struct {
	mu      sync.Mutex
	window  time.Duration
	fire    func(T)
	after   AfterFunc
	timer   Timer
	gen     uint64
	stopped bool
}

func NewDebouncer[T any](window time.Duration, fire func(T)) *Debouncer[T] {
	return NewDebouncerWithScheduler(window, fire, realAfterFunc)
}

func NewDebouncerWithScheduler[T any](window time.Duration, fire func(T), after AfterFunc) *Debouncer[T] {
	if window <= 0 {
		window = DefaultDebounce
	}
	return &Debouncer[T]{window: window, fire: fire, after: after}
}

// Push restarts the window with v as the pending value.
func (d *Debouncer[T]) Push(v T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil {
		d.timer.Stop()
	}
	d.gen++
	gen := d.gen
	d.timer = d.after(d.window, func() {
		d.mu.Lock()
		if d.stopped || gen != d.gen {
			d.mu.Unlock()
			return
		}
		d.timer = nil
		d.mu.Unlock()
		d.fire(v)
	})
}

// Stop cancels any pending fire. Later pushes are ignored.
func (d *Debouncer[T]) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
