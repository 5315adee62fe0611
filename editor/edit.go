package editor

import (
	"math"
	"strings"

	"tag-designer/core"
	"tag-designer/document"
	"tag-designer/export"
	"tag-designer/history"
	"tag-designer/tool"
)

// host is the controller as seen by the tool machine.
type host struct{ c *Controller }

func (h host) Document() *document.Document      { return h.c.doc }
func (h host) Apply(cmd document.Command) error { return h.c.apply(cmd) }
func (h host) Checkpoint() error                { return h.c.checkpoint() }
func (h host) Select(id string)                 { h.c.selection = id }
func (h host) ClearSelection()                  { h.c.selection = "" }

func (h host) Snap(p document.Point) document.Point {
	g := h.c.grid
	if !g.Snap || !(g.Size > 0) {
		return p
	}
	return document.Point{X: math.Round(p.X/g.Size) * g.Size, Y: math.Round(p.Y/g.Size) * g.Size}
}

func (c *Controller) SelectTool(t tool.Tool) error { return c.machine.SelectTool(t) }

func (c *Controller) PointerDown(p document.Point) error { return c.machine.PointerDown(p) }
func (c *Controller) PointerMove(p document.Point) error { return c.machine.PointerMove(p) }
func (c *Controller) PointerUp(p document.Point) error   { return c.machine.PointerUp(p) }

func (c *Controller) ConfirmText(content string) error { return c.machine.ConfirmText(content) }
func (c *Controller) CancelText()                      { c.machine.CancelText() }

// Select makes id the selection, discarding any unfinished drawing.
func (c *Controller) Select(id string) error { return c.machine.SelectObject(id) }
func (c *Controller) ClearSelection()        { c.machine.ClearSelection() }

// selected returns the selected object when selection-scoped edits are
// allowed.
func (c *Controller) selected() (*document.Object, error) {
	if c.machine.Busy() || c.machine.State() != tool.IdleSelect {
		return nil, ErrBusy
	}
	if c.selection == "" {
		return nil, ErrNoSelection
	}
	o := c.doc.Find(c.selection)
	if o == nil {
		c.selection = ""
		return nil, ErrNoSelection
	}
	return o, nil
}

// SetProperty edits the selected object. Geometry edits get their own
// history entry; paint and text style edits only mark the design dirty.
func (c *Controller) SetProperty(p document.Property, v document.Value) error {
	o, err := c.selected()
	if err != nil {
		return err
	}
	if err := c.apply(document.SetProperty{ID: o.ID, Property: p, Value: v}); err != nil {
		return err
	}
	if p.Significant() {
		return c.checkpoint()
	}
	return nil
}

func (c *Controller) DeleteSelected() error {
	o, err := c.selected()
	if err != nil {
		return err
	}
	if err := c.apply(document.RemoveObject{ID: o.ID}); err != nil {
		return err
	}
	c.selection = ""
	return c.checkpoint()
}

func (c *Controller) DuplicateSelected() error {
	o, err := c.selected()
	if err != nil {
		return err
	}
	cmd := document.DuplicateObject{ID: o.ID, NewID: document.NewID(), Offset: document.DefaultDuplicateOffset}
	if err := c.apply(cmd); err != nil {
		return err
	}
	c.selection = cmd.NewID
	return c.checkpoint()
}

func (c *Controller) Nudge(dx, dy float64) error {
	o, err := c.selected()
	if err != nil {
		return err
	}
	if err := c.apply(document.MoveObject{ID: o.ID, DX: dx, DY: dy}); err != nil {
		return err
	}
	return c.checkpoint()
}

// Undo and Redo are no-ops at the ends of the history. Anything under
// construction is dropped first.
func (c *Controller) Undo() error {
	c.machine.Cancel()
	e, ok := c.history.Undo()
	if !ok {
		return nil
	}
	return c.restore(e)
}

func (c *Controller) Redo() error {
	c.machine.Cancel()
	e, ok := c.history.Redo()
	if !ok {
		return nil
	}
	return c.restore(e)
}

func (c *Controller) restore(e history.Entry) error {
	doc, err := e.Document()
	if err != nil {
		return err
	}
	c.doc = doc
	if c.doc.Find(c.selection) == nil {
		c.selection = ""
	}
	c.touch()
	return nil
}

func (c *Controller) CanUndo() bool { return c.history.CanUndo() }
func (c *Controller) CanRedo() bool { return c.history.CanRedo() }

func (c *Controller) insert(obj *document.Object) error {
	if err := c.machine.SelectTool(tool.Pointer); err != nil {
		return err
	}
	if err := c.apply(document.AddObject{Object: obj}); err != nil {
		return err
	}
	c.selection = obj.ID
	return c.checkpoint()
}

// InsertGalleryShape adds a gallery shape centred on the canvas.
func (c *Controller) InsertGalleryShape(id string) error {
	center := document.Point{X: c.doc.Width / 2, Y: c.doc.Height / 2}
	path, err := document.NewGalleryShape(id, center, GalleryShapeSize)
	if err != nil {
		return err
	}
	return c.insert(document.NewObject(path, document.ShapePaint))
}

// InsertImage adds an image from a base64 data URL, scaled down to fit
// half the canvas.
func (c *Controller) InsertImage(dataURL string) error {
	data, mediaType, err := export.DataURL(dataURL)
	if err != nil {
		return core.Validationf("%v", err)
	}
	if !strings.HasPrefix(mediaType, "image/") {
		return core.Validationf("unsupported media type %q", mediaType)
	}
	w, h, err := export.ImageSize(data)
	if err != nil || w == 0 || h == 0 {
		return core.Validationf("unreadable image")
	}
	scale := math.Min(math.Min(c.doc.Width*0.5/float64(w), c.doc.Height*0.5/float64(h)), 1)
	return c.insert(document.NewObject(&document.Image{
		Left:   ImageInsertOffset,
		Top:    ImageInsertOffset,
		Width:  float64(w) * scale,
		Height: float64(h) * scale,
		Src:    dataURL,
	}, document.ImagePaint))
}

func (c *Controller) ResizeCanvas(w, h float64) error {
	if err := c.apply(document.ResizeCanvas{Width: w, Height: h}); err != nil {
		return err
	}
	return c.checkpoint()
}

func (c *Controller) SetBackground(color string) error {
	return c.apply(document.SetBackground{Color: color})
}

// SetZoom clamps z to the supported range. Zoom is view state and never
// marks the design dirty.
func (c *Controller) SetZoom(z float64) {
	if math.IsNaN(z) {
		return
	}
	c.zoom = math.Max(MinZoom, math.Min(MaxZoom, math.Round(z*100)/100))
}

func (c *Controller) ZoomIn()        { c.SetZoom(c.zoom + ZoomStep) }
func (c *Controller) ZoomOut()       { c.SetZoom(c.zoom - ZoomStep) }
func (c *Controller) Zoom() float64 { return c.zoom }

func (c *Controller) SetGrid(g Grid) error {
	if !(g.Size >= export.MinGridSize) || math.IsInf(g.Size, 0) {
		return core.Validationf("grid size must be at least %v", export.MinGridSize)
	}
	c.grid = g
	return nil
}

func (c *Controller) SetName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return core.Validationf("template name is required")
	}
	if name != c.name {
		c.name = name
		c.touch()
	}
	return nil
}

func (c *Controller) SetDescription(description string) {
	if description != c.description {
		c.description = description
		c.touch()
	}
}
