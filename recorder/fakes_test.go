package recorder

import (
	"context"
	"sync"
	"testing"
	"time"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu   sync.Mutex
	docs map[string]Document
	err  error
}

func newFakeSource(docs ...Document) *fakeSource {
	f := &fakeSource{docs: make(map[string]Document)}
	for _, d := range docs {
		f.docs[d.Ref.MessageID] = d
	}
	return f
}

func (f *fakeSource) Fetch(_ context.Context, ref DocumentRef) (Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Document{}, f.err
	}
	d, ok := f.docs[ref.MessageID]
	if !ok {
		return Document{}, &UnavailableError{Reason: ReasonNotFound}
	}
	return d, nil
}

type fakeSurface struct {
	mu         sync.Mutex
	updates    []Status
	finished   []Status
	reports    []Report
	updateErr  error
	publishErr error
	published  chan Report
}

func (s *fakeSurface) Update(_ context.Context, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, st)
	return s.updateErr
}

func (s *fakeSurface) Finish(_ context.Context, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = append(s.finished, st)
	return nil
}

func (s *fakeSurface) Publish(_ context.Context, r Report) error {
	s.mu.Lock()
	s.reports = append(s.reports, r)
	err := s.publishErr
	s.mu.Unlock()
	s.published <- r
	return err
}

func (s *fakeSurface) reportCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func (s *fakeSurface) finishedStates() []Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Status(nil), s.finished...)
}

func (s *fakeSurface) updateCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.updates)
}

type fakePresenter struct {
	mu         sync.Mutex
	surfaces   []*fakeSurface
	opened     []Status
	openErr    error
	updateErr  error
	publishErr error
}

func (p *fakePresenter) Open(_ context.Context, st Status) (Surface, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.openErr != nil {
		return nil, p.openErr
	}
	sf := &fakeSurface{updateErr: p.updateErr, publishErr: p.publishErr, published: make(chan Report, 16)}
	p.surfaces = append(p.surfaces, sf)
	p.opened = append(p.opened, st)
	return sf, nil
}

func (p *fakePresenter) last() *fakeSurface {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.surfaces[len(p.surfaces)-1]
}

// gatedPresenter holds Open until gate is closed, signalling entered first.
type gatedPresenter struct {
	fakePresenter
	entered chan struct{}
	gate    chan struct{}
}

func newGatedPresenter() *gatedPresenter {
	return &gatedPresenter{entered: make(chan struct{}), gate: make(chan struct{})}
}

func (p *gatedPresenter) Open(ctx context.Context, st Status) (Surface, error) {
	close(p.entered)
	<-p.gate
	return p.fakePresenter.Open(ctx, st)
}

func waitReport(t *testing.T, sf *fakeSurface) Report {
	t.Helper()
	select {
	case r := <-sf.published:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for report")
		return Report{}
	}
}

func catchDoc(id string, sections ...string) Document {
	return Document{Ref: DocumentRef{GuildID: "g1", ChannelID: "c1", MessageID: id}, Sections: sections}
}

var alice = Actor{ID: "u1", Name: "alice", Mention: "<@u1>"}
var bob = Actor{ID: "u2", Name: "bob", Mention: "<@u2>"}
