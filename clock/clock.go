// Package clock abstracts the time calls made by long-running loops so the
// recording supervisor can be driven deterministically in tests.
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is the subset of the time package used by background loops.
type Clock interface {
	Now() time.Time
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers ticks on C until Stop is called. C has capacity 1; ticks
// are dropped when the reader falls behind, matching time.Ticker.
type Ticker struct {
	C    <-chan time.Time
	stop func()
}

// Stop turns the ticker off. It does not close C.
func (t *Ticker) Stop() { t.stop() }

// Real returns a Clock backed by the time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) NewTicker(d time.Duration) *Ticker {
	tk := time.NewTicker(d)
	return &Ticker{C: tk.C, stop: tk.Stop}
}

// Fake is a manually advanced Clock. Time stands still until Advance.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

type fakeTicker struct {
	next     time.Time
	interval time.Duration
	ch       chan time.Time
	stopped  bool
}

// NewFake returns a Fake clock starting at start.
func NewFake(start time.Time) *Fake {
	f := &Fake{now: start}
	f.changed = sync.NewCond(&f.mu)
	return f
}

// Now returns the fake time.
func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// NewTicker registers a ticker that fires whenever Advance crosses its next deadline.
func (f *Fake) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ft := &fakeTicker{next: f.now.Add(d), interval: d, ch: make(chan time.Time, 1)}
	f.tickers = append(f.tickers, ft)
	f.changed.Broadcast()
	return &Ticker{C: ft.ch, stop: func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		ft.stopped = true
		f.changed.Broadcast()
	}}
}

// Advance moves time forward by d and fires every ticker whose deadline was
// crossed, in deadline order.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	target := f.now.Add(d)
	for {
		var due []*fakeTicker
		for _, ft := range f.tickers {
			if !ft.stopped && !ft.next.After(target) {
				due = append(due, ft)
			}
		}
		if len(due) == 0 {
			break
		}
		sort.Slice(due, func(i, j int) bool { return due[i].next.Before(due[j].next) })
		ft := due[0]
		f.now = ft.next
		select {
		case ft.ch <- ft.next:
		default:
		}
		ft.next = ft.next.Add(ft.interval)
	}
	f.now = target
	f.prune()
}

// WaitForTickers blocks until at least n tickers are running. Tests call it
// before Advance so a goroutine's ticker registration cannot race the advance.
func (f *Fake) WaitForTickers(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for f.activeLocked() < n {
		f.changed.Wait()
	}
}

// Active returns the number of running tickers.
func (f *Fake) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.activeLocked()
}

func (f *Fake) activeLocked() int {
	n := 0
	for _, ft := range f.tickers {
		if !ft.stopped {
			n++
		}
	}
	return n
}

func (f *Fake) prune() {
	kept := f.tickers[:0]
	for _, ft := range f.tickers {
		if !ft.stopped {
			kept = append(kept, ft)
		}
	}
	f.tickers = kept
}
