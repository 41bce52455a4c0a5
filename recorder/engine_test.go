package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/onnwee/dexkeeper/clock"
)

func newTestEngine(t *testing.T, src DocumentSource, pres Presenter) (*Engine, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	e := NewEngine(Config{Timeout: 120 * time.Second, CheckInterval: 30 * time.Second, PageSize: 200},
		NewRegistry(), src, pres, WithClock(clk))
	t.Cleanup(e.Close)
	return e, clk
}

func TestStartRejections(t *testing.T) {
	ctx := context.Background()
	ref := DocumentRef{GuildID: "g1", ChannelID: "c1", MessageID: "m1"}

	t.Run("not found", func(t *testing.T) {
		e, _ := newTestEngine(t, newFakeSource(), &fakePresenter{})
		_, err := e.Start(ctx, ref, alice)
		var ue *UnavailableError
		if !errors.Is(err, ErrTargetUnavailable) || !errors.As(err, &ue) || ue.Reason != ReasonNotFound {
			t.Fatalf("err = %v, want not-found UnavailableError", err)
		}
	})

	t.Run("transport error is wrapped", func(t *testing.T) {
		src := newFakeSource()
		src.err = errors.New("connection reset")
		e, _ := newTestEngine(t, src, &fakePresenter{})
		_, err := e.Start(ctx, ref, alice)
		var ue *UnavailableError
		if !errors.As(err, &ue) || ue.Reason != ReasonUnknown {
			t.Fatalf("err = %v, want unknown UnavailableError", err)
		}
	})

	t.Run("no embeds", func(t *testing.T) {
		e, _ := newTestEngine(t, newFakeSource(catchDoc("m1")), &fakePresenter{})
		if _, err := e.Start(ctx, ref, alice); !errors.Is(err, ErrNoContent) {
			t.Fatalf("err = %v, want ErrNoContent", err)
		}
		if e.Registry().Len() != 0 {
			t.Fatal("session registered after rejection")
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		pres := &fakePresenter{}
		e, _ := newTestEngine(t, newFakeSource(catchDoc("m1", "`1`")), pres)
		if _, err := e.Start(ctx, ref, alice); err != nil {
			t.Fatalf("first Start: %v", err)
		}
		if _, err := e.Start(ctx, ref, bob); !errors.Is(err, ErrDuplicateSession) {
			t.Fatalf("err = %v, want ErrDuplicateSession", err)
		}
		if len(pres.surfaces) != 1 {
			t.Fatalf("opened %d surfaces, want 1", len(pres.surfaces))
		}
	})

	t.Run("surface open failure unregisters", func(t *testing.T) {
		pres := &fakePresenter{openErr: errors.New("missing access")}
		e, _ := newTestEngine(t, newFakeSource(catchDoc("m1", "`1`")), pres)
		if _, err := e.Start(ctx, ref, alice); err == nil {
			t.Fatal("expected error")
		}
		if e.Registry().Len() != 0 {
			t.Fatal("session left registered after surface failure")
		}
		pres.openErr = nil
		if _, err := e.Start(ctx, ref, alice); err != nil {
			t.Fatalf("retry Start: %v", err)
		}
	})
}

func TestConcurrentStartAtMostOne(t *testing.T) {
	e, _ := newTestEngine(t, newFakeSource(catchDoc("m1", "`1`")), &fakePresenter{})
	ref := DocumentRef{ChannelID: "c1", MessageID: "m1"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, dup := 0, 0
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.Start(context.Background(), ref, alice)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrDuplicateSession):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if ok != 1 || dup != 31 {
		t.Fatalf("ok=%d dup=%d, want 1/31", ok, dup)
	}
	if e.Registry().Len() != 1 {
		t.Fatalf("registry holds %d sessions", e.Registry().Len())
	}
}

func TestHandleEditUpdatesAndRefreshes(t *testing.T) {
	pres := &fakePresenter{}
	e, clk := newTestEngine(t, newFakeSource(catchDoc("m1", "Caught `398121` and **`12`**")), pres)
	ctx := context.Background()

	s, err := e.Start(ctx, DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice)
	if err != nil {
		t.Fatal(err)
	}
	if s.Count() != 2 {
		t.Fatalf("initial count = %d, want 2", s.Count())
	}

	clk.Advance(10 * time.Second)
	if got := e.HandleEdit(ctx, catchDoc("m1", "Caught `398121` and **`12`**", "`7`")); got != 1 {
		t.Fatalf("HandleEdit added %d, want 1", got)
	}
	if got := e.HandleEdit(ctx, catchDoc("m1", "`7`")); got != 0 {
		t.Fatalf("repeat HandleEdit added %d, want 0", got)
	}
	if got := e.HandleEdit(ctx, catchDoc("other", "`8`")); got != 0 {
		t.Fatalf("edit of unrecorded message added %d", got)
	}
	if !s.LastActivity().Equal(epoch.Add(10 * time.Second)) {
		t.Fatalf("lastActivity = %v", s.LastActivity())
	}

	sf := pres.last()
	deadline := time.Now().Add(2 * time.Second)
	for sf.updateCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("status surface was never refreshed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestTimeoutTerminatesOnce(t *testing.T) {
	pres := &fakePresenter{}
	e, clk := newTestEngine(t, newFakeSource(catchDoc("m1", "`3` `150` `25`")), pres)
	if _, err := e.Start(context.Background(), DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice); err != nil {
		t.Fatal(err)
	}
	sf := pres.last()
	clk.WaitForTickers(1)

	clk.Advance(90 * time.Second)
	select {
	case <-sf.published:
		t.Fatal("terminated before the timeout threshold")
	case <-time.After(50 * time.Millisecond):
	}

	clk.Advance(30 * time.Second)
	r := waitReport(t, sf)
	if r.Cause != CauseTimeout || r.StoppedBy != nil {
		t.Fatalf("report cause=%v stoppedBy=%v", r.Cause, r.StoppedBy)
	}
	if r.PageText(0) != "150 25 3" {
		t.Fatalf("report text = %q", r.PageText(0))
	}
	if e.Registry().Len() != 0 {
		t.Fatal("registry still holds the timed out session")
	}

	clk.Advance(5 * time.Minute)
	e.Close()
	if n := sf.reportCount(); n != 1 {
		t.Fatalf("published %d reports, want 1", n)
	}
	if fin := sf.finishedStates(); len(fin) != 1 || fin[0].State != StateTimedOut {
		t.Fatalf("finish states = %+v", fin)
	}
}

func TestActivityExtendsDeadline(t *testing.T) {
	pres := &fakePresenter{}
	e, clk := newTestEngine(t, newFakeSource(catchDoc("m1", "`1`")), pres)
	ctx := context.Background()
	if _, err := e.Start(ctx, DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice); err != nil {
		t.Fatal(err)
	}
	sf := pres.last()
	clk.WaitForTickers(1)

	clk.Advance(90 * time.Second)
	e.HandleEdit(ctx, catchDoc("m1", "`1` `2`"))
	clk.Advance(60 * time.Second)
	select {
	case <-sf.published:
		t.Fatal("terminated although new ids arrived 60s ago")
	case <-time.After(50 * time.Millisecond):
	}

	clk.Advance(60 * time.Second)
	r := waitReport(t, sf)
	if r.Total() != 2 {
		t.Fatalf("report total = %d, want 2", r.Total())
	}
}

func TestManualStop(t *testing.T) {
	pres := &fakePresenter{}
	e, _ := newTestEngine(t, newFakeSource(catchDoc("m1", "`1`")), pres)
	ctx := context.Background()
	if _, err := e.Start(ctx, DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice); err != nil {
		t.Fatal(err)
	}
	if err := e.Stop(ctx, "m1", bob); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	r := waitReport(t, pres.last())
	if r.Cause != CauseManual || r.StoppedBy == nil || r.StoppedBy.Name != "bob" || r.Owner.Name != "alice" {
		t.Fatalf("report attribution wrong: %+v", r)
	}
	if err := e.Stop(ctx, "m1", bob); !errors.Is(err, ErrNoSession) {
		t.Fatalf("second Stop err = %v, want ErrNoSession", err)
	}
	if e.HandleEdit(ctx, catchDoc("m1", "`99`")) != 0 {
		t.Fatal("edit applied after stop")
	}
}

func TestStopWithNoIDsPublishesEmptyReport(t *testing.T) {
	pres := &fakePresenter{}
	e, _ := newTestEngine(t, newFakeSource(catchDoc("m1", "a wild pokemon appeared")), pres)
	ctx := context.Background()
	if _, err := e.Start(ctx, DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice); err != nil {
		t.Fatal(err)
	}
	if err := e.Stop(ctx, "m1", alice); err != nil {
		t.Fatal(err)
	}
	if r := waitReport(t, pres.last()); !r.Empty() {
		t.Fatalf("expected empty report, got %v", r.IDs)
	}
}

func TestManualStopRacesTimeout(t *testing.T) {
	for i := 0; i < 50; i++ {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			pres := &fakePresenter{}
			e, _ := newTestEngine(t, newFakeSource(catchDoc("m1", "`1` `2`")), pres)
			ctx := context.Background()
			s, err := e.Start(ctx, DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice)
			if err != nil {
				t.Fatal(err)
			}

			results := make(chan bool, 2)
			start := make(chan struct{})
			go func() {
				<-start
				results <- e.finish(ctx, s, CauseTimeout, nil)
			}()
			go func() {
				<-start
				results <- e.Stop(ctx, "m1", bob) == nil
			}()
			close(start)

			wins := 0
			for j := 0; j < 2; j++ {
				if <-results {
					wins++
				}
			}
			if wins != 1 {
				t.Fatalf("%d triggers won, want 1", wins)
			}
			e.Close()
			if n := pres.last().reportCount(); n != 1 {
				t.Fatalf("published %d reports, want 1", n)
			}
			if e.Registry().Len() != 0 {
				t.Fatal("registry not empty")
			}
		})
	}
}

func TestRenderFailuresAreSwallowed(t *testing.T) {
	pres := &fakePresenter{updateErr: errors.New("unknown message"), publishErr: errors.New("rate limited")}
	e, _ := newTestEngine(t, newFakeSource(catchDoc("m1", "`1`")), pres)
	ctx := context.Background()
	s, err := e.Start(ctx, DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice)
	if err != nil {
		t.Fatal(err)
	}
	for i := 2; i < 6; i++ {
		e.HandleEdit(ctx, catchDoc("m1", fmt.Sprintf("`%d`", i)))
	}
	if !s.Active() || s.Count() != 5 {
		t.Fatalf("active=%v count=%d, want active with 5 ids", s.Active(), s.Count())
	}
	if err := e.Stop(ctx, "m1", alice); err != nil {
		t.Fatalf("Stop with failing publish: %v", err)
	}
	if e.Registry().Len() != 0 {
		t.Fatal("session not removed")
	}
}

func TestCloseDropsActiveSessions(t *testing.T) {
	pres := &fakePresenter{}
	clk := clock.NewFake(epoch)
	e := NewEngine(Config{}, NewRegistry(), newFakeSource(catchDoc("m1", "`1`"), catchDoc("m2", "`2`")), pres, WithClock(clk))
	ctx := context.Background()
	s1, _ := e.Start(ctx, DocumentRef{MessageID: "m1"}, alice)
	s2, _ := e.Start(ctx, DocumentRef{MessageID: "m2"}, alice)
	if e.Config().Timeout != 120*time.Second || e.Config().PageSize != DefaultPageSize {
		t.Fatalf("defaults not applied: %+v", e.Config())
	}
	e.Close()
	if s1.Active() || s2.Active() || e.Registry().Len() != 0 {
		t.Fatal("sessions survived Close")
	}
	if clk.Active() != 0 {
		t.Fatalf("%d supervisors still ticking", clk.Active())
	}
	for _, sf := range pres.surfaces {
		if sf.reportCount() != 0 {
			t.Fatal("Close published a report")
		}
	}
}

func TestActiveReportsLiveStatus(t *testing.T) {
	e, clk := newTestEngine(t, newFakeSource(catchDoc("m1", "`1` `2`"), catchDoc("m2", "`3`")), &fakePresenter{})
	ctx := context.Background()
	if _, err := e.Start(ctx, DocumentRef{MessageID: "m1"}, alice); err != nil {
		t.Fatal(err)
	}
	clk.Advance(10 * time.Second)
	if _, err := e.Start(ctx, DocumentRef{MessageID: "m2"}, bob); err != nil {
		t.Fatal(err)
	}
	clk.Advance(5 * time.Second)

	active := e.Active()
	if len(active) != 2 {
		t.Fatalf("active = %d, want 2", len(active))
	}
	first, second := active[0], active[1]
	if first.Target.MessageID != "m1" || first.Count != 2 || first.IdleFor != 15*time.Second || first.Remaining() != 105*time.Second {
		t.Fatalf("first = %+v", first)
	}
	if second.Target.MessageID != "m2" || second.Owner.Name != "bob" || second.IdleFor != 5*time.Second {
		t.Fatalf("second = %+v", second)
	}

	if err := e.Stop(ctx, "m1", bob); err != nil {
		t.Fatal(err)
	}
	if active := e.Active(); len(active) != 1 || active[0].Target.MessageID != "m2" {
		t.Fatalf("after stop active = %+v", active)
	}
}

func TestStopWhileOpening(t *testing.T) {
	pres := newGatedPresenter()
	e, _ := newTestEngine(t, newFakeSource(catchDoc("m1", "`4` `9`")), pres)
	ctx := context.Background()

	started := make(chan *Session, 1)
	go func() {
		s, err := e.Start(ctx, DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice)
		if err != nil {
			t.Error(err)
		}
		started <- s
	}()
	<-pres.entered

	stopped := make(chan error, 1)
	go func() { stopped <- e.Stop(ctx, "m1", bob) }()
	select {
	case err := <-stopped:
		t.Fatalf("Stop returned %v before the status message opened", err)
	case <-time.After(50 * time.Millisecond):
	}

	close(pres.gate)
	if err := <-stopped; err != nil {
		t.Fatalf("Stop = %v", err)
	}
	s := <-started
	if s == nil || s.Active() {
		t.Fatal("Start returned an active session after Stop")
	}

	sf := pres.last()
	r := waitReport(t, sf)
	if r.Cause != CauseManual || r.StoppedBy == nil || r.StoppedBy.ID != bob.ID || r.PageText(0) != "9 4" {
		t.Fatalf("report = %+v", r)
	}
	if pres.opened[0].Count != 2 {
		t.Fatalf("status opened with %d ids, want 2", pres.opened[0].Count)
	}
	if fin := sf.finishedStates(); len(fin) != 1 || fin[0].State != StateStopped {
		t.Fatalf("finish states = %+v", fin)
	}
	if e.Registry().Len() != 0 {
		t.Fatal("registry not empty")
	}
	e.Close()
	if n := sf.reportCount(); n != 1 {
		t.Fatalf("published %d reports, want 1", n)
	}
}

func TestManualStopRacesTimeoutTick(t *testing.T) {
	for i := 0; i < 50; i++ {
		t.Run(fmt.Sprint(i), func(t *testing.T) {
			pres := &fakePresenter{}
			e, clk := newTestEngine(t, newFakeSource(catchDoc("m1", "`1` `2`")), pres)
			ctx := context.Background()
			if _, err := e.Start(ctx, DocumentRef{ChannelID: "c1", MessageID: "m1"}, alice); err != nil {
				t.Fatal(err)
			}
			clk.WaitForTickers(1)

			var wg sync.WaitGroup
			start := make(chan struct{})
			wg.Add(2)
			go func() {
				defer wg.Done()
				<-start
				clk.Advance(120 * time.Second)
			}()
			go func() {
				defer wg.Done()
				<-start
				_ = e.Stop(ctx, "m1", bob)
			}()
			close(start)
			wg.Wait()

			sf := pres.last()
			r := waitReport(t, sf)
			if r.PageText(0) != "2 1" {
				t.Fatalf("report text = %q", r.PageText(0))
			}
			e.Close()
			if n := sf.reportCount(); n != 1 {
				t.Fatalf("published %d reports, want 1", n)
			}
			if fin := sf.finishedStates(); len(fin) != 1 {
				t.Fatalf("surface finished %d times, want 1", len(fin))
			}
			if e.Registry().Len() != 0 {
				t.Fatal("registry not empty")
			}
		})
	}
}
