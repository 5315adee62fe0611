package document

import (
	"fmt"
	"math"

	"tag-designer/core"
)

// Property names an editable attribute of an Object.
type Property string

const (
	PropLeft        Property = "left"
	PropTop         Property = "top"
	PropWidth       Property = "width"
	PropHeight      Property = "height"
	PropAngle       Property = "angle"
	PropRadius      Property = "radius"
	PropFill        Property = "fill"
	PropStroke      Property = "stroke"
	PropStrokeWidth Property = "strokeWidth"
	PropOpacity     Property = "opacity"
	PropText        Property = "text"
	PropFontSize    Property = "fontSize"
	PropFontFamily  Property = "fontFamily"
	PropFontWeight  Property = "fontWeight"
	PropFontStyle   Property = "fontStyle"
	PropUnderline   Property = "underline"
	PropTextAlign   Property = "textAlign"
)

// Significant reports whether edits to p change geometry and therefore
// earn their own history entry.
func (p Property) Significant() bool {
	switch p {
	case PropLeft, PropTop, PropWidth, PropHeight, PropAngle, PropRadius:
		return true
	}
	return false
}

type valueKind int

const (
	numberValue valueKind = iota
	textValue
	boolValue
)

func (p Property) valueKind() (valueKind, bool) {
	switch p {
	case PropLeft, PropTop, PropWidth, PropHeight, PropAngle, PropRadius,
		PropStrokeWidth, PropOpacity, PropFontSize:
		return numberValue, true
	case PropFill, PropStroke, PropText, PropFontFamily, PropFontWeight,
		PropFontStyle, PropTextAlign:
		return textValue, true
	case PropUnderline:
		return boolValue, true
	}
	return 0, false
}

// Value carries the new value of a property edit. Which field is read
// depends on the property.
type Value struct {
	Number float64 `json:"number,omitempty" mapstructure:"number"`
	Text   string  `json:"text,omitempty" mapstructure:"text"`
	Bool   bool    `json:"bool,omitempty" mapstructure:"bool"`
}

func Number(v float64) Value { return Value{Number: v} }
func String(v string) Value  { return Value{Text: v} }
func Bool(v bool) Value      { return Value{Bool: v} }

func unsupported(o *Object, p Property) error {
	return core.Validationf("property %q does not apply to %s objects", p, o.Kind())
}

// setProperty applies one edit, dispatching on the shape tag. It works on
// a clone so a rejected value leaves o untouched.
func setProperty(o *Object, p Property, v Value) error {
	kind, ok := p.valueKind()
	if !ok {
		return core.Validationf("unknown property %q", p)
	}
	if kind == numberValue && (math.IsNaN(v.Number) || math.IsInf(v.Number, 0)) {
		return core.Validationf("property %q must be finite", p)
	}

	c := o.Clone()
	switch p {
	case PropLeft:
		c.Shape.Translate(v.Number-c.Shape.Bounds().Left, 0)
	case PropTop:
		c.Shape.Translate(0, v.Number-c.Shape.Bounds().Top)
	case PropAngle:
		c.Angle = math.Mod(v.Number, 360)
	case PropWidth, PropHeight:
		if err := resize(c, p, v.Number); err != nil {
			return err
		}
	case PropRadius:
		e, ok := c.Shape.(*Ellipse)
		if !ok {
			return unsupported(o, p)
		}
		e.RX, e.RY = v.Number, v.Number
	case PropFill:
		c.Fill = v.Text
	case PropStroke:
		c.Stroke = v.Text
	case PropStrokeWidth:
		c.StrokeWidth = v.Number
	case PropOpacity:
		c.Opacity = v.Number
	default:
		t, ok := c.Shape.(*Text)
		if !ok {
			return unsupported(o, p)
		}
		if err := setTextProperty(t, p, v); err != nil {
			return err
		}
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("set %s: %w", p, err)
	}
	*o = *c
	return nil
}

func resize(o *Object, p Property, size float64) error {
	if size < 0 {
		return core.Validationf("%s must not be negative", p)
	}
	switch s := o.Shape.(type) {
	case *Rect:
		if p == PropWidth {
			s.Width = size
		} else {
			s.Height = size
		}
	case *Image:
		if p == PropWidth {
			s.Width = size
		} else {
			s.Height = size
		}
	case *Ellipse:
		// Keep the top-left corner of the bounding box in place.
		if p == PropWidth {
			s.CX += size/2 - s.RX
			s.RX = size / 2
		} else {
			s.CY += size/2 - s.RY
			s.RY = size / 2
		}
	case *Text:
		if p != PropWidth {
			return unsupported(o, p)
		}
		s.Width = size
	default:
		return unsupported(o, p)
	}
	return nil
}

func setTextProperty(t *Text, p Property, v Value) error {
	switch p {
	case PropText:
		t.Content = v.Text
	case PropFontSize:
		t.FontSize = v.Number
	case PropFontFamily:
		t.FontFamily = v.Text
	case PropFontWeight:
		if v.Text != FontWeightNormal && v.Text != FontWeightBold {
			return core.Validationf("font weight %q", v.Text)
		}
		t.FontWeight = v.Text
	case PropFontStyle:
		if v.Text != FontStyleNormal && v.Text != FontStyleItalic {
			return core.Validationf("font style %q", v.Text)
		}
		t.FontStyle = v.Text
	case PropUnderline:
		t.Underline = v.Bool
	case PropTextAlign:
		switch v.Text {
		case "left", "center", "right", "justify":
			t.TextAlign = v.Text
		default:
			return core.Validationf("text align %q", v.Text)
		}
	default:
		return core.Validationf("unknown property %q", p)
	}
	return nil
}
