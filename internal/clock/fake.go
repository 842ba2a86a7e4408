// SPDX-License-Identifier: MIT

package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced Clock for tests. Timers fire only when Advance
// moves the fake time past their deadline; AfterFunc callbacks run
// synchronously inside Advance, in deadline order.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []*fakeTimer
	created chan struct{}
}

// NewFake returns a Fake clock set to start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start, created: make(chan struct{}, 64)}
}

type fakeTimer struct {
	clock    *Fake
	deadline time.Time
	ch       chan time.Time
	fn       func()
	active   bool
}

// Now returns the current fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTimer registers a channel timer.
func (f *Fake) NewTimer(d time.Duration) Timer {
	return f.add(d, nil)
}

// AfterFunc registers a callback timer.
func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	return f.add(d, fn)
}

func (f *Fake) add(d time.Duration, fn func()) *fakeTimer {
	f.mu.Lock()
	t := &fakeTimer{
		clock:    f,
		deadline: f.now.Add(d),
		ch:       make(chan time.Time, 1),
		fn:       fn,
		active:   true,
	}
	f.waiters = append(f.waiters, t)
	f.mu.Unlock()

	select {
	case f.created <- struct{}{}:
	default:
	}
	return t
}

// Created is signalled every time a timer is registered. Tests use it to wait
// for a goroutine to arm its next timer before advancing.
func (f *Fake) Created() <-chan struct{} {
	return f.created
}

// Pending reports the number of armed timers.
func (f *Fake) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, w := range f.waiters {
		if w.active {
			n++
		}
	}
	return n
}

// Advance moves the fake time forward and fires every timer whose deadline
// has been reached.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	now := f.now

	var due []*fakeTimer
	remaining := f.waiters[:0]
	for _, w := range f.waiters {
		if !w.active {
			continue
		}
		if !w.deadline.After(now) {
			w.active = false
			due = append(due, w)
			continue
		}
		remaining = append(remaining, w)
	}
	f.waiters = remaining
	f.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].deadline.Before(due[j].deadline) })
	for _, w := range due {
		if w.fn != nil {
			w.fn()
			continue
		}
		select {
		case w.ch <- now:
		default:
		}
	}
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	was := t.active
	t.active = false
	t.clock.remove(t)
	return was
}

// remove drops t from the waiter list. Callers hold f.mu.
func (f *Fake) remove(t *fakeTimer) {
	for i, w := range f.waiters {
		if w == t {
			f.waiters = append(f.waiters[:i], f.waiters[i+1:]...)
			return
		}
	}
}

func (t *fakeTimer) Reset(d time.Duration) bool {
	t.clock.mu.Lock()
	was := t.active
	t.deadline = t.clock.now.Add(d)
	if !was {
		t.active = true
		t.clock.waiters = append(t.clock.waiters, t)
	}
	t.clock.mu.Unlock()

	select {
	case t.clock.created <- struct{}{}:
	default:
	}
	return was
}
