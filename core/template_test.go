package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestPage(t *testing.T) {
	tests := []struct {
		name               string
		page, limit, n     int
		wantStart, wantEnd int
	}{
		{"first page", 1, 2, 5, 0, 2},
		{"last partial page", 3, 2, 5, 4, 5},
		{"past the end", 9, 2, 5, 5, 5},
		{"zero page", 0, 2, 5, 0, 2},
		{"default limit", 1, 0, 50, 0, DefaultPageLimit},
		{"empty", 1, 10, 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end := Page(tt.page, tt.limit, tt.n)
			if start != tt.wantStart || end != tt.wantEnd {
				t.Errorf("Page(%d, %d, %d) = %d, %d; want %d, %d",
					tt.page, tt.limit, tt.n, start, end, tt.wantStart, tt.wantEnd)
			}
		})
	}
}

func TestTransport_KeepsSpecificKinds(t *testing.T) {
	if Transport("op", nil) != nil {
		t.Error("Transport(nil) should be nil")
	}
	for _, kind := range []error{ErrNotFound, ErrValidation, ErrConflict} {
		err := Transport("get", fmt.Errorf("template t1: %w", kind))
		if !errors.Is(err, kind) || errors.Is(err, ErrTransport) {
			t.Errorf("Transport(%v) = %v, want the original kind only", kind, err)
		}
	}

	err := Transport("save", errors.New("disk on fire"))
	if !errors.Is(err, ErrTransport) {
		t.Errorf("Transport() = %v, want ErrTransport", err)
	}
}

func TestTemplate_Validate(t *testing.T) {
	ok := Template{UserID: "u", Name: "Badge", Width: 10, Height: 10}
	if err := ok.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Template)
	}{
		{"no owner", func(t *Template) { t.UserID = "" }},
		{"no name", func(t *Template) { t.Name = "" }},
		{"zero width", func(t *Template) { t.Width = 0 }},
		{"negative height", func(t *Template) { t.Height = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tpl := ok
			tt.mutate(&tpl)
			if err := tpl.Validate(); !errors.Is(err, ErrValidation) {
				t.Errorf("Validate() = %v, want ErrValidation", err)
			}
		})
	}
}

func TestSummary_DropsCanvas(t *testing.T) {
	tpl := &Template{ID: "a", Name: "Badge", Canvas: `{"objects":[]}`}
	s := tpl.Summary()
	if s.Canvas != "" || s.Name != "Badge" {
		t.Errorf("Summary() = %+v", s)
	}
	if tpl.Canvas == "" {
		t.Error("Summary() modified the original")
	}
}
