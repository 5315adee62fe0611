package editor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"tag-designer/core"
	"tag-designer/export"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Duration
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now + d, f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and fires due timers in the caller's
// goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now += d
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && t.at <= c.now {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	for _, t := range due {
		t.f()
	}
}

func (c *fakeClock) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type mockStore struct {
	mu        sync.Mutex
	templates map[string]*core.Template
	saves     int
	nextID    int
	saveErr   error
	getErr    error
	// when set, Save signals started and waits for release
	started chan struct{}
	release chan struct{}
}

func newMockStore() *mockStore {
	return &mockStore{templates: make(map[string]*core.Template)}
}

func (s *mockStore) Save(ctx context.Context, t *core.Template) error {
	if s.started != nil {
		s.started <- struct{}{}
		<-s.release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	if s.saveErr != nil {
		return s.saveErr
	}
	if t.ID == "" {
		s.nextID++
		t.ID = fmt.Sprintf("tpl-%d", s.nextID)
		t.UserID = "user-1"
		t.CreatedAt = time.Now()
	}
	t.UpdatedAt = time.Now()
	c := *t
	s.templates[t.ID] = &c
	return nil
}

func (s *mockStore) List(ctx context.Context, page, limit int) ([]*core.Template, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*core.Template
	for _, t := range s.templates {
		out = append(out, t.Summary())
	}
	start, end := core.Page(page, limit, len(out))
	return out[start:end], len(out), nil
}

func (s *mockStore) Get(ctx context.Context, id string) (*core.Template, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.getErr != nil {
		return nil, s.getErr
	}
	t, ok := s.templates[id]
	if !ok {
		return nil, core.NotFoundf("template %s", id)
	}
	c := *t
	return &c, nil
}

func (s *mockStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return core.NotFoundf("template %s", id)
	}
	delete(s.templates, id)
	return nil
}

func (s *mockStore) saveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

type mockExporter struct {
	requests []export.Request
	err      error
}

func (e *mockExporter) Export(ctx context.Context, req export.Request) (*export.Artifact, error) {
	e.requests = append(e.requests, req)
	if e.err != nil {
		return nil, e.err
	}
	name := req.Name + "." + string(req.Format)
	return &export.Artifact{Name: name, ContentType: req.Format.ContentType(), Data: []byte("data")}, nil
}

type recorder struct {
	mu    sync.Mutex
	notes []Notification
	ch    chan Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	r.notes = append(r.notes, n)
	r.mu.Unlock()
	if r.ch != nil {
		r.ch <- n
	}
}

func (r *recorder) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notes) == 0 {
		return Notification{}
	}
	return r.notes[len(r.notes)-1]
}
