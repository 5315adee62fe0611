package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"tag-designer/core"
	"tag-designer/stores/storetest"
)

func TestNewStore(t *testing.T) {
	store := NewStore()
	if store == nil {
		t.Fatal("NewStore() returned nil")
	}
}

func TestTemplateStore(t *testing.T) {
	storetest.TestTemplateStore(t, NewStore())
}

func TestUserStore(t *testing.T) {
	storetest.TestUserStore(t, NewStore())
}

func TestStoreIsolation(t *testing.T) {
	ctx := context.Background()
	a, b := NewStore(), NewStore()

	tpl := &core.Template{UserID: "u", Name: "Only in a", Width: 10, Height: 10}
	if err := a.Save(ctx, tpl); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, total, _ := b.List(ctx, "u", 1, 20); total != 0 {
		t.Errorf("second store sees %d templates, want 0", total)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	tpl := &core.Template{UserID: "u", Name: "Original", Width: 10, Height: 10}
	if err := store.Save(ctx, tpl); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	tpl.Name = "mutated after save"

	got, err := store.Get(ctx, "u", tpl.ID)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	got.Name = "mutated after get"

	again, _ := store.Get(ctx, "u", tpl.ID)
	if again.Name != "Original" {
		t.Errorf("stored name = %q, want Original", again.Name)
	}
}

func TestConcurrentSave(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	numGoroutines := 10
	var wg sync.WaitGroup
	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func(index int) {
			defer wg.Done()
			tpl := &core.Template{UserID: "u", Name: fmt.Sprintf("T%d", index), Width: 10, Height: 10}
			if err := store.Save(ctx, tpl); err != nil {
				t.Errorf("Concurrent Save() failed: %v", err)
			}
			if _, _, err := store.List(ctx, "u", 1, 20); err != nil {
				t.Errorf("Concurrent List() failed: %v", err)
			}
		}(i)
	}
	wg.Wait()

	_, total, err := store.List(ctx, "u", 1, 20)
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if total != numGoroutines {
		t.Errorf("List() total = %d, want %d", total, numGoroutines)
	}
}
