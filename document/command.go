package document

import (
	"tag-designer/core"
)

// Command is an explicit mutation request. Apply either changes the
// document and returns nil, or returns an error and leaves it unchanged.
type Command interface {
	Apply(d *Document) error
}

type AddObject struct {
	Object *Object
}

func (c AddObject) Apply(d *Document) error {
	if c.Object == nil {
		return core.Validationf("add: no object")
	}
	return d.Add(c.Object)
}

type RemoveObject struct {
	ID string
}

func (c RemoveObject) Apply(d *Document) error {
	_, err := d.Remove(c.ID)
	return err
}

// DefaultDuplicateOffset is how far a duplicate is shifted from its source.
const DefaultDuplicateOffset = 10

// DuplicateObject appends a copy of ID on top, shifted by Offset on both
// axes, under NewID.
type DuplicateObject struct {
	ID     string
	NewID  string
	Offset float64
}

func (c DuplicateObject) Apply(d *Document) error {
	src := d.Find(c.ID)
	if src == nil {
		return core.NotFoundf("object %s", c.ID)
	}
	dup := src.Clone()
	dup.ID = c.NewID
	dup.Shape.Translate(c.Offset, c.Offset)
	return d.Add(dup)
}

type MoveObject struct {
	ID     string
	DX, DY float64
}

func (c MoveObject) Apply(d *Document) error {
	o := d.Find(c.ID)
	if o == nil {
		return core.NotFoundf("object %s", c.ID)
	}
	if !allFinite(c.DX, c.DY) {
		return core.Validationf("move by non-finite offset")
	}
	moved := o.Clone()
	moved.Shape.Translate(c.DX, c.DY)
	if err := moved.Validate(); err != nil {
		return err
	}
	o.Shape = moved.Shape
	return nil
}

type SetProperty struct {
	ID       string
	Property Property
	Value    Value
}

func (c SetProperty) Apply(d *Document) error {
	o := d.Find(c.ID)
	if o == nil {
		return core.NotFoundf("object %s", c.ID)
	}
	return setProperty(o, c.Property, c.Value)
}

// ReshapeObject swaps the geometry of an object for another of the same
// kind. The drawing tools use it while a shape is being stretched.
type ReshapeObject struct {
	ID    string
	Shape Shape
}

func (c ReshapeObject) Apply(d *Document) error {
	o := d.Find(c.ID)
	if o == nil {
		return core.NotFoundf("object %s", c.ID)
	}
	if c.Shape == nil || c.Shape.Kind() != o.Kind() {
		return core.Validationf("reshape %s: kind mismatch", c.ID)
	}
	next := *o
	next.Shape = c.Shape
	if err := next.Validate(); err != nil {
		return err
	}
	o.Shape = c.Shape
	return nil
}

type ResizeCanvas struct {
	Width, Height float64
}

func (c ResizeCanvas) Apply(d *Document) error {
	next := Document{Width: c.Width, Height: c.Height}
	if err := next.validateCanvas(); err != nil {
		return err
	}
	d.Width, d.Height = c.Width, c.Height
	return nil
}

type SetBackground struct {
	Color string
}

func (c SetBackground) Apply(d *Document) error {
	if c.Color == "" {
		return core.Validationf("background color is required")
	}
	d.Background = c.Color
	return nil
}
