package document

import (
	"encoding/json"
	"fmt"

	"tag-designer/core"

	"github.com/google/uuid"
)

type Paint struct {
	Fill        string  `json:"fill"`
	Stroke      string  `json:"stroke"`
	StrokeWidth float64 `json:"strokeWidth"`
	Opacity     float64 `json:"opacity"`
}

// Default paints used by the drawing tools.
var (
	RectanglePaint = Paint{Fill: "rgba(99, 102, 241, 0.3)", Stroke: "#6366F1", StrokeWidth: 2, Opacity: 1}
	EllipsePaint   = Paint{Fill: "rgba(16, 185, 129, 0.3)", Stroke: "#10B981", StrokeWidth: 2, Opacity: 1}
	LinePaint      = Paint{Stroke: "#000000", StrokeWidth: 2, Opacity: 1}
	PencilPaint    = Paint{Stroke: "#000000", StrokeWidth: 2, Opacity: 1}
	TextPaint      = Paint{Fill: "#000000", Opacity: 1}
	ShapePaint     = Paint{Fill: "#6366F1", Stroke: "#4F46E5", StrokeWidth: 1, Opacity: 1}
	ImagePaint     = Paint{Opacity: 1}
)

// Object is one drawable item on the canvas.
type Object struct {
	ID    string
	Angle float64
	Paint
	Shape Shape
}

// NewID returns a fresh object id.
func NewID() string {
	return uuid.NewString()
}

// NewObject wraps shape with a fresh id and the given paint.
func NewObject(shape Shape, paint Paint) *Object {
	return &Object{ID: NewID(), Paint: paint, Shape: shape}
}

func (o *Object) Kind() Kind { return o.Shape.Kind() }

// Clone returns a deep copy of o, keeping its id.
func (o *Object) Clone() *Object {
	c := *o
	c.Shape = o.Shape.Clone()
	return &c
}

// Validate checks the object invariants: an id, finite geometry,
// non-negative sizes and opacity within [0,1].
func (o *Object) Validate() error {
	switch {
	case o.ID == "":
		return core.Validationf("object id is required")
	case o.Shape == nil:
		return core.Validationf("object %s has no shape", o.ID)
	case !o.Shape.finite() || !allFinite(o.Angle, o.StrokeWidth, o.Opacity):
		return core.Validationf("object %s has non-finite geometry", o.ID)
	case !o.Shape.nonNegative() || o.StrokeWidth < 0:
		return core.Validationf("object %s has a negative size", o.ID)
	case o.Opacity < 0 || o.Opacity > 1:
		return core.Validationf("object %s opacity %v out of [0,1]", o.ID, o.Opacity)
	}
	return nil
}

type objectJSON struct {
	ID    string          `json:"id"`
	Type  Kind            `json:"type"`
	Angle float64         `json:"angle"`
	Paint
	Shape json.RawMessage `json:"shape"`
}

func (o *Object) MarshalJSON() ([]byte, error) {
	if o.Shape == nil {
		return nil, fmt.Errorf("object %s has no shape", o.ID)
	}
	shape, err := json.Marshal(o.Shape)
	if err != nil {
		return nil, err
	}
	return json.Marshal(objectJSON{
		ID:    o.ID,
		Type:  o.Shape.Kind(),
		Angle: o.Angle,
		Paint: o.Paint,
		Shape: shape,
	})
}

func (o *Object) UnmarshalJSON(data []byte) error {
	var raw objectJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	shape, ok := newShape(raw.Type)
	if !ok {
		return core.Validationf("object %s has unknown type %q", raw.ID, raw.Type)
	}
	if len(raw.Shape) > 0 {
		if err := json.Unmarshal(raw.Shape, shape); err != nil {
			return fmt.Errorf("object %s: %w", raw.ID, err)
		}
	}
	*o = Object{ID: raw.ID, Angle: raw.Angle, Paint: raw.Paint, Shape: shape}
	return nil
}
