package editor

import (
	"errors"
	"testing"
	"time"

	"tag-designer/document"
	"tag-designer/export"
	"tag-designer/tool"
)

func newSessionFixture(t *testing.T) (*fixture, *Session) {
	t.Helper()
	f := newFixture(t)
	f.notes.ch = make(chan Notification, 16)
	s := NewSession(f.c)
	t.Cleanup(s.Close)
	return f, s
}

func waitNote(t *testing.T, f *fixture) Notification {
	t.Helper()
	select {
	case n := <-f.notes.ch:
		return n
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a notification")
	}
	return Notification{}
}

func TestSession_EditWhileSaving(t *testing.T) {
	f, s := newSessionFixture(t)
	f.store.started = make(chan struct{})
	f.store.release = make(chan struct{})

	err := s.Do(func(c *Controller) error {
		if err := c.SelectTool(tool.Rectangle); err != nil {
			return err
		}
		if err := c.PointerDown(document.Point{X: 0, Y: 0}); err != nil {
			return err
		}
		if err := c.PointerUp(document.Point{X: 10, Y: 10}); err != nil {
			return err
		}
		c.RequestSave()
		return nil
	})
	if err != nil {
		t.Fatalf("Do() failed: %v", err)
	}
	<-f.store.started

	// The session stays responsive while the store call is blocked.
	if err := s.Do(func(c *Controller) error {
		if !c.State().Saving {
			t.Error("state should report the save in flight")
		}
		return c.Nudge(5, 0)
	}); err != nil {
		t.Fatalf("Nudge during save failed: %v", err)
	}

	close(f.store.release)
	if n := waitNote(t, f); n.Level != LevelSuccess {
		t.Fatalf("notification = %+v, want success", n)
	}

	_ = s.Do(func(c *Controller) error {
		if c.Template() == nil {
			t.Error("save should associate the template")
		}
		if !c.Dirty() {
			t.Error("edits made during the save must keep the session dirty")
		}
		return nil
	})
}

func TestSession_SaveLandingAfterNewLeavesBlankDesign(t *testing.T) {
	f, s := newSessionFixture(t)
	err := s.Do(func(c *Controller) error {
		if err := c.SelectTool(tool.Rectangle); err != nil {
			return err
		}
		if err := c.PointerDown(document.Point{X: 0, Y: 0}); err != nil {
			return err
		}
		if err := c.PointerUp(document.Point{X: 10, Y: 10}); err != nil {
			return err
		}
		return c.Save(c.ctx)
	})
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	waitNote(t, f)

	f.store.started = make(chan struct{})
	f.store.release = make(chan struct{})
	_ = s.Do(func(c *Controller) error {
		if err := c.Nudge(5, 0); err != nil {
			return err
		}
		c.RequestSave()
		return nil
	})
	<-f.store.started
	if err := s.Do(func(c *Controller) error { return c.New(true) }); err != nil {
		t.Fatalf("New(true) failed: %v", err)
	}

	close(f.store.release)
	if n := waitNote(t, f); n.Level != LevelSuccess {
		t.Fatalf("notification = %+v, want success", n)
	}
	_ = s.Do(func(c *Controller) error {
		if c.Template() != nil {
			t.Errorf("blank design got attached to %s", c.Template().ID)
		}
		if c.Dirty() || len(c.Document().Objects) != 0 {
			t.Errorf("dirty = %v, objects = %d; want a clean blank design", c.Dirty(), len(c.Document().Objects))
		}
		if f.clock.pending() != 0 {
			t.Error("no autosave should be armed for the blank design")
		}
		return nil
	})
	if f.store.saveCount() != 2 {
		t.Errorf("saves = %d, want 2", f.store.saveCount())
	}
}

func TestSession_SaveLandingAfterDeleteStaysDetached(t *testing.T) {
	f, s := newSessionFixture(t)
	if err := s.Do(func(c *Controller) error { return c.Save(c.ctx) }); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	waitNote(t, f)

	f.store.started = make(chan struct{})
	f.store.release = make(chan struct{})
	_ = s.Do(func(c *Controller) error {
		if err := c.InsertGalleryShape("heart"); err != nil {
			return err
		}
		c.RequestSave()
		return nil
	})
	<-f.store.started
	if err := s.Do(func(c *Controller) error { return c.DeleteTemplate(c.ctx, "tpl-1") }); err != nil {
		t.Fatalf("DeleteTemplate() failed: %v", err)
	}
	waitNote(t, f)

	close(f.store.release)
	waitNote(t, f)
	_ = s.Do(func(c *Controller) error {
		if c.Template() != nil {
			t.Error("the deleted template must not be re-attached")
		}
		if !c.Dirty() {
			t.Error("a detached design is unsaved work")
		}
		return nil
	})
}

func TestSession_QueuedSaveRunsAfterFailure(t *testing.T) {
	f, s := newSessionFixture(t)
	f.store.saveErr = errors.New("disk full")
	f.store.started = make(chan struct{})
	f.store.release = make(chan struct{})

	_ = s.Do(func(c *Controller) error {
		c.RequestSave()
		return nil
	})
	<-f.store.started
	_ = s.Do(func(c *Controller) error {
		if err := c.InsertGalleryShape("star"); err != nil {
			return err
		}
		c.RequestSave()
		return nil
	})

	close(f.store.release)
	if n := waitNote(t, f); n.Level != LevelError {
		t.Fatalf("notification = %+v, want error", n)
	}
	select {
	case <-f.store.started:
	case <-time.After(5 * time.Second):
		t.Fatal("the queued save was dropped")
	}
	if n := waitNote(t, f); n.Level != LevelError {
		t.Fatalf("notification = %+v, want error", n)
	}
	if f.store.saveCount() != 2 {
		t.Errorf("saves = %d, want 2", f.store.saveCount())
	}
}

func TestSession_AutosaveThroughLoop(t *testing.T) {
	f, s := newSessionFixture(t)
	if err := s.Do(func(c *Controller) error { return c.Save(c.ctx) }); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	waitNote(t, f)

	if err := s.Do(func(c *Controller) error { return c.InsertGalleryShape("heart") }); err != nil {
		t.Fatalf("InsertGalleryShape() failed: %v", err)
	}
	f.clock.Advance(DefaultAutosaveDelay)
	if n := waitNote(t, f); n.Message != "Template saved successfully!" {
		t.Fatalf("notification = %+v", n)
	}
	if f.store.saveCount() != 2 {
		t.Errorf("saves = %d, want 2", f.store.saveCount())
	}
	_ = s.Do(func(c *Controller) error {
		if c.Dirty() {
			t.Error("autosave should leave the session clean")
		}
		return nil
	})
}

func TestSession_RequestExport(t *testing.T) {
	f, s := newSessionFixture(t)
	got := make(chan *export.Artifact, 1)
	_ = s.Do(func(c *Controller) error {
		c.RequestExport(ExportOptions{Format: export.SVG}, func(a *export.Artifact, err error) {
			if err != nil {
				t.Errorf("export failed: %v", err)
			}
			got <- a
		})
		return nil
	})
	select {
	case a := <-got:
		if a == nil || a.ContentType != "image/svg+xml" {
			t.Errorf("artifact = %+v", a)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("export did not complete")
	}
	if n := waitNote(t, f); n.Message != "SVG exported successfully!" {
		t.Errorf("notification = %+v", n)
	}
}

func TestSession_Closed(t *testing.T) {
	_, s := newSessionFixture(t)
	s.Close()
	if err := s.Do(func(*Controller) error { return nil }); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Do() after Close = %v, want ErrSessionClosed", err)
	}
}
