package stores

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tag-designer/config"
	"tag-designer/core"
	"tag-designer/stores/memory"
)

func TestGetStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	tests := []struct {
		name string
		cfg  config.Storage
	}{
		{"memory", config.Storage{Type: "memory"}},
		{"default", config.Storage{}},
		{"filesystem", config.Storage{Type: "filesystem", LocalPath: filepath.Join(dir, "fs")}},
		{"sqlite", config.Storage{Type: "sqlite", DataSourceName: filepath.Join(dir, "t.db")}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			store, err := GetStore(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("GetStore() failed: %v", err)
			}
			tpl := &core.Template{UserID: "u", Name: "x", Width: 10, Height: 10}
			if err := store.Save(ctx, tpl); err != nil {
				t.Errorf("Save() through %s failed: %v", tc.name, err)
			}
		})
	}
}

func TestGetStore_Unknown(t *testing.T) {
	if _, err := GetStore(context.Background(), config.Storage{Type: "tape"}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("GetStore() error = %v, want ErrValidation", err)
	}
}

// failingStore returns a raw error from every call.
type failingStore struct{ err error }

func (f failingStore) List(context.Context, string, int, int) ([]*core.Template, int, error) {
	return nil, 0, f.err
}
func (f failingStore) Get(context.Context, string, string) (*core.Template, error) { return nil, f.err }
func (f failingStore) Save(context.Context, *core.Template) error                  { return f.err }
func (f failingStore) Delete(context.Context, string, string) error                { return f.err }

func TestForUser(t *testing.T) {
	ctx := context.Background()
	base := memory.NewStore()
	p := ForUser(base, "user-1")

	tpl := &core.Template{Name: "Mine", Width: 10, Height: 10}
	if err := p.Save(ctx, tpl); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if tpl.UserID != "user-1" {
		t.Errorf("Save() left UserID %q, want user-1", tpl.UserID)
	}
	if _, err := base.Get(ctx, "user-1", tpl.ID); err != nil {
		t.Errorf("template not stored under the user: %v", err)
	}

	list, total, err := p.List(ctx, 1, 20)
	if err != nil || total != 1 || len(list) != 1 {
		t.Errorf("List() = %d/%d, %v", len(list), total, err)
	}

	if _, err := ForUser(base, "user-2").Get(ctx, tpl.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() by another user error = %v, want ErrNotFound", err)
	}
	if err := p.Delete(ctx, tpl.ID); err != nil {
		t.Errorf("Delete() failed: %v", err)
	}
	if err := p.Delete(ctx, tpl.ID); !errors.Is(err, core.ErrNotFound) || errors.Is(err, core.ErrTransport) {
		t.Errorf("Delete() of a missing template error = %v, want only ErrNotFound", err)
	}
}

func TestForUser_WrapsRawErrorsAsTransport(t *testing.T) {
	ctx := context.Background()
	p := ForUser(failingStore{errors.New("disk on fire")}, "u")

	if err := p.Save(ctx, &core.Template{}); !errors.Is(err, core.ErrTransport) {
		t.Errorf("Save() error = %v, want ErrTransport", err)
	}
	if _, _, err := p.List(ctx, 1, 20); !errors.Is(err, core.ErrTransport) {
		t.Errorf("List() error = %v, want ErrTransport", err)
	}
	if _, err := p.Get(ctx, "x"); !errors.Is(err, core.ErrTransport) {
		t.Errorf("Get() error = %v, want ErrTransport", err)
	}
	if err := p.Delete(ctx, "x"); !errors.Is(err, core.ErrTransport) {
		t.Errorf("Delete() error = %v, want ErrTransport", err)
	}
}
