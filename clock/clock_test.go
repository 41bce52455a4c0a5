package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeNowAdvance(t *testing.T) {
	c := NewFake(epoch)
	if got := c.Now(); !got.Equal(epoch) {
		t.Fatalf("Now() = %v, want %v", got, epoch)
	}
	c.Advance(5 * time.Second)
	if got := c.Now(); !got.Equal(epoch.Add(5 * time.Second)) {
		t.Fatalf("Now() after Advance = %v", got)
	}
}

func TestFakeTickerFires(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(30 * time.Second)
	defer tk.Stop()

	c.Advance(29 * time.Second)
	select {
	case <-tk.C:
		t.Fatal("ticker fired before interval")
	default:
	}

	c.Advance(time.Second)
	select {
	case at := <-tk.C:
		if !at.Equal(epoch.Add(30 * time.Second)) {
			t.Fatalf("tick time = %v", at)
		}
	default:
		t.Fatal("ticker did not fire at interval")
	}
}

func TestFakeTickerDropsWhenBehind(t *testing.T) {
	c := NewFake(epoch)
	tk := c.NewTicker(10 * time.Second)
	defer tk.Stop()

	c.Advance(time.Minute)
	<-tk.C
	select {
	case <-tk.C:
		t.Fatal("expected queued ticks to be dropped")
	default:
	}
	if got := c.Now(); !got.Equal(epoch.Add(time.Minute)) {
		t.Fatalf("Now() = %v", got)
	}
}

func TestFakeStopAndWait(t *testing.T) {
	c := NewFake(epoch)
	done := make(chan struct{})
	go func() {
		c.WaitForTickers(1)
		close(done)
	}()
	tk := c.NewTicker(time.Second)
	<-done
	if c.Active() != 1 {
		t.Fatalf("Active() = %d, want 1", c.Active())
	}
	tk.Stop()
	c.Advance(5 * time.Second)
	if c.Active() != 0 {
		t.Fatalf("Active() after stop = %d, want 0", c.Active())
	}
	select {
	case <-tk.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}
