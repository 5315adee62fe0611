package filesystem

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tag-designer/core"
	"tag-designer/stores/storetest"
)

func newTestStore(t *testing.T) (*fsStore, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	return store, dir
}

func TestNewStore_CreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "path", "test")
	if _, err := NewStore(dir); err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "templates")); os.IsNotExist(err) {
		t.Error("NewStore() did not create nested directory structure")
	}
}

func TestTemplateStore(t *testing.T) {
	store, _ := newTestStore(t)
	storetest.TestTemplateStore(t, store)
}

func TestUserStore(t *testing.T) {
	store, _ := newTestStore(t)
	storetest.TestUserStore(t, store)
}

func TestSave_WritesCompressedFile(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	tpl := &core.Template{UserID: "u", Name: "Packed", Width: 10, Height: 10, Canvas: string(bytes.Repeat([]byte("x"), 4096))}
	if err := store.Save(ctx, tpl); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "templates", "u", tpl.ID+templateExt))
	if err != nil {
		t.Fatalf("template file missing: %v", err)
	}
	zstdMagic := []byte{0x28, 0xb5, 0x2f, 0xfd}
	if !bytes.HasPrefix(data, zstdMagic) {
		t.Errorf("template file does not start with the zstd magic number")
	}
	if len(data) >= 4096 {
		t.Errorf("compressed file is %d bytes, want less than the payload", len(data))
	}
}

func TestPathTraversalRejected(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name, userID, id string
	}{
		{"parent id", "u", "../../etc/passwd"},
		{"nested id", "u", "a/b"},
		{"parent user", "..", "x"},
		{"empty user", "", "x"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := store.Get(ctx, tc.userID, tc.id); !errors.Is(err, core.ErrValidation) {
				t.Errorf("Get() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestList_SkipsCorruptFiles(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	tpl := &core.Template{UserID: "u", Name: "Good", Width: 10, Height: 10}
	if err := store.Save(ctx, tpl); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "templates", "u", "broken"+templateExt), []byte("not zstd"), 0644); err != nil {
		t.Fatal(err)
	}

	list, total, err := store.List(ctx, "u", 1, 20)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if total != 1 || len(list) != 1 || list[0].ID != tpl.ID {
		t.Errorf("List() = %d/%d templates, want only the readable one", len(list), total)
	}
}

func TestPersistenceAcrossStores(t *testing.T) {
	store, dir := newTestStore(t)
	ctx := context.Background()

	tpl := &core.Template{UserID: "u", Name: "Kept", Width: 10, Height: 10}
	if err := store.Save(ctx, tpl); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	user := &core.User{Subject: "local:a@b.c", Email: "a@b.c", PasswordHash: "h"}
	if err := store.CreateUser(ctx, user); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	reopened, err := NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore() failed: %v", err)
	}
	if _, err := reopened.Get(ctx, "u", tpl.ID); err != nil {
		t.Errorf("Get() from a new store failed: %v", err)
	}
	got, err := reopened.FindUserByEmail(ctx, "a@b.c")
	if err != nil || got.PasswordHash != "h" {
		t.Errorf("FindUserByEmail() = %v, %v, want the stored hash", got, err)
	}
}
