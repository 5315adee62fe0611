// Package storetest holds behaviour checks shared by every store backend.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"tag-designer/core"
)

func newTemplate(userID, name string) *core.Template {
	return &core.Template{
		UserID: userID,
		Name:   name,
		Width:  800,
		Height: 600,
		Canvas: `{"width":800,"height":600,"objects":[]}`,
	}
}

// TestTemplateStore runs the TemplateStore contract against s, which must start empty.
func TestTemplateStore(t *testing.T, s core.TemplateStore) {
	ctx := context.Background()

	t.Run("SaveAssignsID", func(t *testing.T) {
		tpl := newTemplate("user-a", "Badge")
		if err := s.Save(ctx, tpl); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if len(tpl.ID) != 26 {
			t.Errorf("Save() assigned id %q, want a 26 character ULID", tpl.ID)
		}
		if tpl.CreatedAt.IsZero() || tpl.UpdatedAt.IsZero() {
			t.Error("Save() did not set timestamps")
		}

		got, err := s.Get(ctx, "user-a", tpl.ID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.Name != "Badge" || got.Canvas != tpl.Canvas || got.Width != 800 || got.Height != 600 {
			t.Errorf("Get() = %+v, want the saved template", got)
		}
		if err := s.Delete(ctx, "user-a", tpl.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
	})

	t.Run("UpdatePreservesCreatedAt", func(t *testing.T) {
		tpl := newTemplate("user-a", "First")
		if err := s.Save(ctx, tpl); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		created := tpl.CreatedAt

		update := newTemplate("user-a", "Second")
		update.ID = tpl.ID
		update.Description = "renamed"
		if err := s.Save(ctx, update); err != nil {
			t.Fatalf("Save() update failed: %v", err)
		}

		got, err := s.Get(ctx, "user-a", tpl.ID)
		if err != nil {
			t.Fatalf("Get() failed: %v", err)
		}
		if got.Name != "Second" || got.Description != "renamed" {
			t.Errorf("Get() after update = %q/%q", got.Name, got.Description)
		}
		if !got.CreatedAt.Equal(created) {
			t.Errorf("CreatedAt changed from %v to %v", created, got.CreatedAt)
		}
		if got.UpdatedAt.Before(created) {
			t.Errorf("UpdatedAt %v is before CreatedAt %v", got.UpdatedAt, created)
		}
		if err := s.Delete(ctx, "user-a", tpl.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
	})

	t.Run("ListPagesOldestFirst", func(t *testing.T) {
		var ids []string
		for i := 0; i < 5; i++ {
			tpl := newTemplate("user-list", fmt.Sprintf("T%d", i))
			if err := s.Save(ctx, tpl); err != nil {
				t.Fatalf("Save() %d failed: %v", i, err)
			}
			ids = append(ids, tpl.ID)
		}

		tests := []struct {
			page, limit int
			want        []string
		}{
			{1, 2, ids[0:2]},
			{2, 2, ids[2:4]},
			{3, 2, ids[4:5]},
			{4, 2, nil},
			{1, 20, ids},
		}
		for _, tc := range tests {
			list, total, err := s.List(ctx, "user-list", tc.page, tc.limit)
			if err != nil {
				t.Fatalf("List(%d, %d) failed: %v", tc.page, tc.limit, err)
			}
			if total != 5 {
				t.Errorf("List(%d, %d) total = %d, want 5", tc.page, tc.limit, total)
			}
			if len(list) != len(tc.want) {
				t.Fatalf("List(%d, %d) returned %d templates, want %d", tc.page, tc.limit, len(list), len(tc.want))
			}
			for i, tpl := range list {
				if tpl.ID != tc.want[i] {
					t.Errorf("List(%d, %d)[%d] = %s, want %s", tc.page, tc.limit, i, tpl.ID, tc.want[i])
				}
				if tpl.Canvas != "" {
					t.Errorf("List() returned a canvas payload for %s", tpl.ID)
				}
			}
		}
	})

	t.Run("UserIsolation", func(t *testing.T) {
		tpl := newTemplate("user-owner", "Private")
		if err := s.Save(ctx, tpl); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if _, err := s.Get(ctx, "user-other", tpl.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get() by another user error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "user-other", tpl.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Delete() by another user error = %v, want ErrNotFound", err)
		}
		list, total, err := s.List(ctx, "user-other", 1, 20)
		if err != nil {
			t.Fatalf("List() failed: %v", err)
		}
		if total != 0 || len(list) != 0 {
			t.Errorf("List() for another user returned %d/%d templates", len(list), total)
		}
	})

	t.Run("DeleteThenGet", func(t *testing.T) {
		tpl := newTemplate("user-del", "Gone")
		if err := s.Save(ctx, tpl); err != nil {
			t.Fatalf("Save() failed: %v", err)
		}
		if err := s.Delete(ctx, "user-del", tpl.ID); err != nil {
			t.Fatalf("Delete() failed: %v", err)
		}
		if _, err := s.Get(ctx, "user-del", tpl.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
		}
		if err := s.Delete(ctx, "user-del", tpl.ID); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("second Delete() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		if _, err := s.Get(ctx, "user-a", "01HZZZZZZZZZZZZZZZZZZZZZZZ"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("Get() error = %v, want ErrNotFound", err)
		}
	})

	t.Run("SaveRejectsInvalid", func(t *testing.T) {
		tests := []struct {
			name string
			tpl  *core.Template
		}{
			{"no owner", &core.Template{Name: "x", Width: 1, Height: 1}},
			{"no name", &core.Template{UserID: "u", Width: 1, Height: 1}},
			{"zero size", &core.Template{UserID: "u", Name: "x"}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				if err := s.Save(ctx, tc.tpl); !errors.Is(err, core.ErrValidation) {
					t.Errorf("Save() error = %v, want ErrValidation", err)
				}
			})
		}
	})
}

// TestUserStore runs the UserStore contract against s, which must start empty.
func TestUserStore(t *testing.T, s core.UserStore) {
	ctx := context.Background()

	local := &core.User{Subject: "local:ada@example.com", Email: "Ada@example.com", Name: "Ada", PasswordHash: "hash"}
	if err := s.CreateUser(ctx, local); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	if local.ID == "" {
		t.Fatal("CreateUser() did not assign an id")
	}

	got, err := s.FindUserByEmail(ctx, "ada@EXAMPLE.com")
	if err != nil {
		t.Fatalf("FindUserByEmail() failed: %v", err)
	}
	if got.ID != local.ID || got.PasswordHash != "hash" || got.Name != "Ada" {
		t.Errorf("FindUserByEmail() = %+v, want the created user", got)
	}

	dup := &core.User{Subject: "local:ada2", Email: "ada@example.com", PasswordHash: "other"}
	if err := s.CreateUser(ctx, dup); !errors.Is(err, core.ErrConflict) {
		t.Errorf("CreateUser() with a taken email error = %v, want ErrConflict", err)
	}

	github := &core.User{Subject: "github:42", Login: "ada", Email: "ada@example.com", Name: "Ada L"}
	if err := s.CreateUser(ctx, github); err != nil {
		t.Fatalf("CreateUser() for an external account sharing the email failed: %v", err)
	}
	if err := s.CreateUser(ctx, &core.User{Subject: "github:42"}); !errors.Is(err, core.ErrConflict) {
		t.Errorf("CreateUser() with a taken subject error = %v, want ErrConflict", err)
	}

	got, err = s.FindUserBySubject(ctx, "github:42")
	if err != nil {
		t.Fatalf("FindUserBySubject() failed: %v", err)
	}
	if got.ID != github.ID || got.Login != "ada" {
		t.Errorf("FindUserBySubject() = %+v, want the github user", got)
	}

	// External accounts never answer an email/password lookup.
	got, err = s.FindUserByEmail(ctx, "ada@example.com")
	if err != nil || got.ID != local.ID {
		t.Errorf("FindUserByEmail() = %v, %v, want the local account", got, err)
	}

	if _, err := s.FindUserByEmail(ctx, "nobody@example.com"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindUserByEmail() error = %v, want ErrNotFound", err)
	}
	if _, err := s.FindUserBySubject(ctx, "github:0"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("FindUserBySubject() error = %v, want ErrNotFound", err)
	}
}
