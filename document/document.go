package document

import (
	"encoding/json"
	"fmt"

	"tag-designer/core"
)

const (
	DefaultWidth      = 800
	DefaultHeight     = 600
	DefaultBackground = "#ffffff"

	payloadVersion = 1
)

// Document is the in-memory design: canvas size, background and the
// objects in paint order (last is topmost).
type Document struct {
	Width      float64   `json:"width"`
	Height     float64   `json:"height"`
	Background string    `json:"background"`
	Objects    []*Object `json:"objects"`
}

// New returns an empty document with a white background.
func New(width, height float64) (*Document, error) {
	d := &Document{Width: width, Height: height, Background: DefaultBackground, Objects: []*Object{}}
	if err := d.validateCanvas(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Document) validateCanvas() error {
	if !allFinite(d.Width, d.Height) || !(d.Width > 0) || !(d.Height > 0) {
		return core.Validationf("canvas size must be positive, got %vx%v", d.Width, d.Height)
	}
	return nil
}

// Validate checks the canvas size and every object, including id uniqueness.
func (d *Document) Validate() error {
	if err := d.validateCanvas(); err != nil {
		return err
	}
	seen := make(map[string]struct{}, len(d.Objects))
	for _, o := range d.Objects {
		if o == nil {
			return core.Validationf("document contains a nil object")
		}
		if err := o.Validate(); err != nil {
			return err
		}
		if _, dup := seen[o.ID]; dup {
			return core.Validationf("duplicate object id %s", o.ID)
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

func (d *Document) Len() int { return len(d.Objects) }

// Index returns the z-position of the object with the given id, or -1.
func (d *Document) Index(id string) int {
	for i, o := range d.Objects {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// Find returns the object with the given id, or nil.
func (d *Document) Find(id string) *Object {
	if i := d.Index(id); i >= 0 {
		return d.Objects[i]
	}
	return nil
}

// Add appends o on top of the paint order.
func (d *Document) Add(o *Object) error {
	if err := o.Validate(); err != nil {
		return err
	}
	if d.Index(o.ID) >= 0 {
		return core.Validationf("object %s already exists", o.ID)
	}
	d.Objects = append(d.Objects, o)
	return nil
}

// Remove deletes the object with the given id and returns it.
func (d *Document) Remove(id string) (*Object, error) {
	i := d.Index(id)
	if i < 0 {
		return nil, core.NotFoundf("object %s", id)
	}
	o := d.Objects[i]
	d.Objects = append(d.Objects[:i], d.Objects[i+1:]...)
	return o, nil
}

// HitTest returns the topmost object whose bounds, grown by half its
// stroke width, contain p.
func (d *Document) HitTest(p Point) *Object {
	for i := len(d.Objects) - 1; i >= 0; i-- {
		o := d.Objects[i]
		if o.Shape.Bounds().Contains(p, o.StrokeWidth/2) {
			return o
		}
	}
	return nil
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := &Document{Width: d.Width, Height: d.Height, Background: d.Background}
	c.Objects = make([]*Object, len(d.Objects))
	for i, o := range d.Objects {
		c.Objects[i] = o.Clone()
	}
	return c
}

type payload struct {
	Version int `json:"version"`
	*Document
}

// Snapshot serializes d into the canvas payload format. Equal documents
// produce byte-identical payloads.
func (d *Document) Snapshot() (string, error) {
	b, err := json.Marshal(payload{Version: payloadVersion, Document: d})
	if err != nil {
		return "", fmt.Errorf("snapshot document: %w", err)
	}
	return string(b), nil
}

// Parse rebuilds a document from a canvas payload and validates it.
func Parse(data string) (*Document, error) {
	p := payload{Document: &Document{}}
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return nil, core.Validationf("malformed canvas payload: %v", err)
	}
	if p.Version > payloadVersion {
		return nil, core.Validationf("canvas payload version %d is newer than %d", p.Version, payloadVersion)
	}
	d := p.Document
	if d.Background == "" {
		d.Background = DefaultBackground
	}
	if d.Objects == nil {
		d.Objects = []*Object{}
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// FromTemplate returns the design stored in tpl. A template saved without
// a canvas opens as a blank canvas of its size. The template's size wins
// over the payload's.
func FromTemplate(tpl *core.Template) (*Document, error) {
	if tpl.Canvas == "" {
		return New(tpl.Width, tpl.Height)
	}
	d, err := Parse(tpl.Canvas)
	if err != nil {
		return nil, err
	}
	if tpl.Width > 0 && tpl.Height > 0 {
		d.Width, d.Height = tpl.Width, tpl.Height
	}
	return d, nil
}
