package core

import (
	"context"
	"time"
)

type (
	// Template is a named, persisted design owned by a single user.
	Template struct {
		ID          string    `json:"id"`
		UserID      string    `json:"userId"`
		Name        string    `json:"name"`
		Description string    `json:"description,omitempty"`
		Width       float64   `json:"width"`
		Height      float64   `json:"height"`
		Canvas      string    `json:"canvas,omitempty"` // Serialized document payload, omitted in list views.
		Thumbnail   string    `json:"thumbnail,omitempty"`
		CreatedAt   time.Time `json:"createdAt"`
		UpdatedAt   time.Time `json:"updatedAt"`
	}

	// TemplateStore defines the persistence layer for user-owned templates.
	// All operations are scoped to a specific user.
	TemplateStore interface {
		// List returns one page of the user's templates, oldest first, and
		// the total number of templates the user owns. Pages start at 1.
		// Listed templates carry no Canvas payload.
		List(ctx context.Context, userID string, page, limit int) ([]*Template, int, error)

		// Get returns a single template by its ID, ensuring it belongs to the user.
		Get(ctx context.Context, userID, id string) (*Template, error)

		// Save creates or updates a template. An empty ID is assigned a new one.
		// CreatedAt is preserved across updates; UpdatedAt is always refreshed.
		Save(ctx context.Context, template *Template) error

		// Delete removes a template, ensuring it belongs to the user.
		Delete(ctx context.Context, userID, id string) error
	}
)

// Summary returns a copy of t without the canvas payload.
func (t *Template) Summary() *Template {
	c := *t
	c.Canvas = ""
	return &c
}

// Validate reports whether t is well formed enough to be stored.
func (t *Template) Validate() error {
	switch {
	case t.UserID == "":
		return Validationf("template owner is required")
	case t.Name == "":
		return Validationf("template name is required")
	case !(t.Width > 0) || !(t.Height > 0):
		return Validationf("template size must be positive, got %vx%v", t.Width, t.Height)
	}
	return nil
}

// Page clamps page and limit to sane values and returns the slice bounds
// for a collection of n items.
func Page(page, limit, n int) (start, end int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageLimit
	}
	start = (page - 1) * limit
	if start > n {
		start = n
	}
	end = start + limit
	if end > n {
		end = n
	}
	return start, end
}

const DefaultPageLimit = 20
