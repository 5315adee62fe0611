package editor

import (
	"context"
	"errors"
	"sync"
)

var ErrSessionClosed = errors.New("editor session closed")

// Session runs one controller on its own goroutine. Operations, autosave
// timers and the completion of background saves and exports are all
// serialized onto it, so the controller itself needs no locking.
type Session struct {
	c      *Controller
	events chan func()
	done   chan struct{}
	exited chan struct{}
	cancel context.CancelFunc
	once   sync.Once
}

func NewSession(c *Controller) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		c:      c,
		events: make(chan func(), 64),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		cancel: cancel,
	}
	c.post = s.post
	c.ctx = ctx
	go s.loop()
	return s
}

func (s *Session) loop() {
	defer close(s.exited)
	for {
		select {
		case f := <-s.events:
			f()
		case <-s.done:
			return
		}
	}
}

func (s *Session) post(f func()) {
	select {
	case s.events <- f:
	case <-s.done:
	}
}

// Do runs fn on the session goroutine and waits for it. It must not be
// called from inside another Do.
func (s *Session) Do(fn func(c *Controller) error) error {
	errc := make(chan error, 1)
	select {
	case s.events <- func() { errc <- fn(s.c) }:
	case <-s.done:
		return ErrSessionClosed
	}
	select {
	case err := <-errc:
		return err
	case <-s.done:
		return ErrSessionClosed
	}
}

// Close stops the autosave timer and the goroutine. Saves still in
// flight are cancelled and their results dropped.
func (s *Session) Close() {
	s.once.Do(func() {
		_ = s.Do(func(c *Controller) error {
			c.cancelAutosave()
			return nil
		})
		s.cancel()
		close(s.done)
		<-s.exited
	})
}
