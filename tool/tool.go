// Package tool implements the drawing tool state machine. It turns
// pointer and palette events into document commands and leaves applying
// them, history and selection to its Host.
package tool

import (
	"math"

	"tag-designer/core"
	"tag-designer/document"
)

type Tool string

const (
	Pointer   Tool = "pointer"
	Text      Tool = "text"
	Rectangle Tool = "rectangle"
	Circle    Tool = "circle"
	Line      Tool = "line"
	Pencil    Tool = "pencil"
)

// ParseTool maps a tool name or its keyboard shortcut to a Tool.
func ParseTool(s string) (Tool, bool) {
	switch s {
	case "v", string(Pointer):
		return Pointer, true
	case "t", string(Text):
		return Text, true
	case "r", string(Rectangle):
		return Rectangle, true
	case "c", string(Circle):
		return Circle, true
	case "l", string(Line):
		return Line, true
	case "p", string(Pencil):
		return Pencil, true
	}
	return "", false
}

type State string

const (
	IdleSelect       State = "idle-select"
	DrawingRectangle State = "drawing-rectangle"
	DrawingEllipse   State = "drawing-ellipse"
	DrawingLine      State = "drawing-line"
	FreehandDrawing  State = "freehand-drawing"
	TextEditing      State = "text-editing"
)

// Defaults for a freshly placed text box.
const (
	DefaultText       = "Double click to edit"
	DefaultTextWidth  = 200
	DefaultFontSize   = 20
	DefaultFontFamily = "Arial"
)

// Host owns the document and everything the machine must not touch
// directly. The session controller implements it.
type Host interface {
	// Document is read only; mutations go through Apply.
	Document() *document.Document
	Apply(cmd document.Command) error
	// Checkpoint records the current document as a history entry.
	Checkpoint() error
	Select(id string)
	ClearSelection()
	// Snap aligns a canvas point to the grid when snapping is on.
	Snap(p document.Point) document.Point
}

// Machine is not safe for concurrent use; the session serializes calls.
type Machine struct {
	host  Host
	tool  Tool
	state State

	// object under construction
	pending    string
	start      document.Point
	stretching bool
	points     []document.Point

	// pointer-tool drag of an existing object
	dragging bool
	dragID   string
	dragFrom document.Point
	dragLast document.Point

	editing string
}

func New(host Host) *Machine {
	return &Machine{host: host, tool: Pointer, state: IdleSelect}
}

func (m *Machine) Tool() Tool   { return m.tool }
func (m *Machine) State() State { return m.state }

// Busy reports whether an object is being drawn, dragged or edited.
func (m *Machine) Busy() bool {
	return m.stretching || m.dragging || m.state == TextEditing
}

// Editing returns the id of the text object being edited, if any.
func (m *Machine) Editing() string { return m.editing }

// SelectTool arms tool. Anything under construction is discarded.
func (m *Machine) SelectTool(t Tool) error {
	if _, ok := ParseTool(string(t)); !ok {
		return core.Validationf("unknown tool %q", t)
	}
	m.discard()
	m.finishText()
	m.tool = t
	m.state = armedState(t)
	if t != Pointer {
		m.host.ClearSelection()
	}
	return nil
}

func armedState(t Tool) State {
	switch t {
	case Rectangle:
		return DrawingRectangle
	case Circle:
		return DrawingEllipse
	case Line:
		return DrawingLine
	case Pencil:
		return FreehandDrawing
	}
	return IdleSelect
}

func (m *Machine) PointerDown(p document.Point) error {
	if err := checkPoint(p); err != nil {
		return err
	}
	if m.state == TextEditing {
		m.finishText()
	}
	if m.stretching {
		// A second press without a release finalizes the first object.
		if err := m.finalize(); err != nil {
			return err
		}
	}
	p = m.host.Snap(p)

	switch m.tool {
	case Rectangle, Circle, Line:
		return m.beginStretch(p)
	case Pencil:
		m.stretching = true
		m.points = []document.Point{p}
		return nil
	case Text:
		return m.placeText(p)
	}

	hit := m.host.Document().HitTest(p)
	if hit == nil {
		m.host.ClearSelection()
		return nil
	}
	m.host.Select(hit.ID)
	m.dragging = true
	m.dragID = hit.ID
	m.dragFrom, m.dragLast = p, p
	return nil
}

func (m *Machine) beginStretch(p document.Point) error {
	var obj *document.Object
	switch m.tool {
	case Rectangle:
		obj = document.NewObject(&document.Rect{Left: p.X, Top: p.Y}, document.RectanglePaint)
	case Circle:
		obj = document.NewObject(&document.Ellipse{CX: p.X, CY: p.Y}, document.EllipsePaint)
	case Line:
		obj = document.NewObject(&document.Line{X1: p.X, Y1: p.Y, X2: p.X, Y2: p.Y}, document.LinePaint)
	}
	if err := m.host.Apply(document.AddObject{Object: obj}); err != nil {
		return err
	}
	m.pending = obj.ID
	m.start = p
	m.stretching = true
	return nil
}

func (m *Machine) placeText(p document.Point) error {
	obj := document.NewObject(&document.Text{
		Left:       p.X,
		Top:        p.Y,
		Width:      DefaultTextWidth,
		Content:    DefaultText,
		FontFamily: DefaultFontFamily,
		FontSize:   DefaultFontSize,
		FontWeight: document.FontWeightNormal,
		FontStyle:  document.FontStyleNormal,
	}, document.TextPaint)
	if err := m.host.Apply(document.AddObject{Object: obj}); err != nil {
		return err
	}
	m.host.Select(obj.ID)
	if err := m.host.Checkpoint(); err != nil {
		return err
	}
	m.tool = Pointer
	m.state = TextEditing
	m.editing = obj.ID
	return nil
}

func (m *Machine) PointerMove(p document.Point) error {
	if err := checkPoint(p); err != nil {
		return err
	}
	p = m.host.Snap(p)

	switch {
	case m.stretching && m.tool == Pencil:
		m.points = append(m.points, p)
		return nil
	case m.stretching:
		return m.host.Apply(document.ReshapeObject{ID: m.pending, Shape: m.stretchShape(p)})
	case m.dragging:
		dx, dy := p.X-m.dragLast.X, p.Y-m.dragLast.Y
		if dx == 0 && dy == 0 {
			return nil
		}
		if err := m.host.Apply(document.MoveObject{ID: m.dragID, DX: dx, DY: dy}); err != nil {
			m.dragging = false
			return err
		}
		m.dragLast = p
	}
	return nil
}

func (m *Machine) stretchShape(p document.Point) document.Shape {
	switch m.tool {
	case Circle:
		r := m.start.Dist(p)
		return &document.Ellipse{CX: m.start.X, CY: m.start.Y, RX: r, RY: r}
	case Line:
		return &document.Line{X1: m.start.X, Y1: m.start.Y, X2: p.X, Y2: p.Y}
	}
	return document.RectBetween(m.start, p)
}

func (m *Machine) PointerUp(p document.Point) error {
	if err := checkPoint(p); err != nil {
		return err
	}
	switch {
	case m.stretching:
		if m.tool != Pencil {
			if err := m.PointerMove(p); err != nil {
				return err
			}
		} else if last := m.points[len(m.points)-1]; m.host.Snap(p) != last {
			m.points = append(m.points, m.host.Snap(p))
		}
		return m.finalize()
	case m.dragging:
		if err := m.PointerMove(p); err != nil {
			return err
		}
		m.dragging = false
		if m.dragLast != m.dragFrom {
			return m.host.Checkpoint()
		}
	}
	return nil
}

// finalize keeps the object under construction, degenerate or not,
// records it and reverts the single-shot tool.
func (m *Machine) finalize() error {
	id := m.pending
	if m.tool == Pencil {
		obj := document.NewObject(&document.Path{Points: m.points}, document.PencilPaint)
		if err := m.host.Apply(document.AddObject{Object: obj}); err != nil {
			m.reset()
			return err
		}
		id = obj.ID
	}
	m.reset()
	m.host.Select(id)
	return m.host.Checkpoint()
}

func (m *Machine) reset() {
	m.pending = ""
	m.stretching = false
	m.points = nil
	m.tool = Pointer
	m.state = IdleSelect
}

// discard drops an unfinished object without recording it.
func (m *Machine) discard() {
	if m.stretching && m.pending != "" {
		_ = m.host.Apply(document.RemoveObject{ID: m.pending})
	}
	m.pending = ""
	m.stretching = false
	m.points = nil
	m.dragging = false
}

func (m *Machine) finishText() {
	if m.state == TextEditing {
		m.state = IdleSelect
		m.editing = ""
	}
}

// ConfirmText leaves text editing, applying content when it changed.
func (m *Machine) ConfirmText(content string) error {
	if m.state != TextEditing {
		return core.Validationf("not editing text")
	}
	id := m.editing
	m.finishText()

	obj := m.host.Document().Find(id)
	if obj == nil {
		return core.NotFoundf("object %s", id)
	}
	if t, ok := obj.Shape.(*document.Text); ok && t.Content == content {
		return nil
	}
	if err := m.host.Apply(document.SetProperty{ID: id, Property: document.PropText, Value: document.String(content)}); err != nil {
		return err
	}
	return m.host.Checkpoint()
}

// CancelText leaves text editing and keeps the object as it is.
func (m *Machine) CancelText() {
	m.finishText()
}

// SelectObject and ClearSelection are selection changes from outside
// the canvas. Both discard a pending draw.
func (m *Machine) SelectObject(id string) error {
	if m.host.Document().Find(id) == nil {
		return core.NotFoundf("object %s", id)
	}
	m.discard()
	m.finishText()
	m.tool = Pointer
	m.state = IdleSelect
	m.host.Select(id)
	return nil
}

func (m *Machine) ClearSelection() {
	m.discard()
	m.finishText()
	m.host.ClearSelection()
}

// Cancel drops whatever is under construction and leaves text editing.
// The armed tool stays armed.
func (m *Machine) Cancel() {
	m.discard()
	m.finishText()
}

// Reset returns to the pointer tool without touching the document. Used
// when the host replaces the document wholesale.
func (m *Machine) Reset() {
	m.pending = ""
	m.stretching = false
	m.points = nil
	m.dragging = false
	m.editing = ""
	m.tool = Pointer
	m.state = IdleSelect
}

func checkPoint(p document.Point) error {
	if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
		return core.Validationf("pointer position must be finite")
	}
	return nil
}
