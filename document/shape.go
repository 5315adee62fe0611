package document

import "math"

// Kind tags the concrete shape carried by an Object.
type Kind string

const (
	KindRectangle Kind = "rectangle"
	KindEllipse   Kind = "ellipse"
	KindLine      Kind = "line"
	KindText      Kind = "text"
	KindPath      Kind = "path"
	KindImage     Kind = "image"
)

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Dist returns the Euclidean distance between p and q.
func (p Point) Dist(q Point) float64 {
	return math.Hypot(q.X-p.X, q.Y-p.Y)
}

// Bounds is an axis-aligned bounding box.
type Bounds struct {
	Left, Top, Width, Height float64
}

func (b Bounds) Contains(p Point, slack float64) bool {
	return p.X >= b.Left-slack && p.X <= b.Left+b.Width+slack &&
		p.Y >= b.Top-slack && p.Y <= b.Top+b.Height+slack
}

// Shape is the closed set of geometries an Object can carry. Only the
// types in this package implement it.
type Shape interface {
	Kind() Kind
	Bounds() Bounds
	Translate(dx, dy float64)
	Clone() Shape
	finite() bool
	nonNegative() bool
}

type Rect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// RectBetween returns the rectangle spanned by two corners, whichever
// way the drag went.
func RectBetween(a, b Point) *Rect {
	return &Rect{
		Left:   math.Min(a.X, b.X),
		Top:    math.Min(a.Y, b.Y),
		Width:  math.Abs(b.X - a.X),
		Height: math.Abs(b.Y - a.Y),
	}
}

func (r *Rect) Kind() Kind { return KindRectangle }
func (r *Rect) Bounds() Bounds {
	return Bounds{r.Left, r.Top, r.Width, r.Height}
}
func (r *Rect) Translate(dx, dy float64) { r.Left += dx; r.Top += dy }
func (r *Rect) Clone() Shape             { c := *r; return &c }
func (r *Rect) finite() bool             { return allFinite(r.Left, r.Top, r.Width, r.Height) }
func (r *Rect) nonNegative() bool        { return r.Width >= 0 && r.Height >= 0 }

// Ellipse is centred on (CX, CY). A drawn circle has RX == RY.
type Ellipse struct {
	CX float64 `json:"cx"`
	CY float64 `json:"cy"`
	RX float64 `json:"rx"`
	RY float64 `json:"ry"`
}

func (e *Ellipse) Kind() Kind { return KindEllipse }
func (e *Ellipse) Bounds() Bounds {
	return Bounds{e.CX - e.RX, e.CY - e.RY, 2 * e.RX, 2 * e.RY}
}
func (e *Ellipse) Translate(dx, dy float64) { e.CX += dx; e.CY += dy }
func (e *Ellipse) Clone() Shape             { c := *e; return &c }
func (e *Ellipse) finite() bool             { return allFinite(e.CX, e.CY, e.RX, e.RY) }
func (e *Ellipse) nonNegative() bool        { return e.RX >= 0 && e.RY >= 0 }

type Line struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

func (l *Line) Kind() Kind { return KindLine }
func (l *Line) Bounds() Bounds {
	return *boundsOf(Point{l.X1, l.Y1}, Point{l.X2, l.Y2})
}
func (l *Line) Translate(dx, dy float64) {
	l.X1 += dx
	l.Y1 += dy
	l.X2 += dx
	l.Y2 += dy
}
func (l *Line) Clone() Shape      { c := *l; return &c }
func (l *Line) finite() bool      { return allFinite(l.X1, l.Y1, l.X2, l.Y2) }
func (l *Line) nonNegative() bool { return true }

const (
	FontWeightNormal = "normal"
	FontWeightBold   = "bold"
	FontStyleNormal  = "normal"
	FontStyleItalic  = "italic"
)

type Text struct {
	Left       float64 `json:"left"`
	Top        float64 `json:"top"`
	Width      float64 `json:"width"`
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	FontWeight string  `json:"fontWeight"`
	FontStyle  string  `json:"fontStyle"`
	Underline  bool    `json:"underline,omitempty"`
	TextAlign  string  `json:"textAlign,omitempty"`
}

// LineHeight is the height of one line of text, matching the editor's
// text box metrics.
func (t *Text) LineHeight() float64 { return t.FontSize * 1.16 }

func (t *Text) Kind() Kind { return KindText }
func (t *Text) Bounds() Bounds {
	lines := 1
	for _, r := range t.Content {
		if r == '\n' {
			lines++
		}
	}
	return Bounds{t.Left, t.Top, t.Width, float64(lines) * t.LineHeight()}
}
func (t *Text) Translate(dx, dy float64) { t.Left += dx; t.Top += dy }
func (t *Text) Clone() Shape             { c := *t; return &c }
func (t *Text) finite() bool             { return allFinite(t.Left, t.Top, t.Width, t.FontSize) }
func (t *Text) nonNegative() bool        { return t.Width >= 0 && t.FontSize >= 0 }

// Path is a polyline: a freehand stroke, or a closed gallery shape.
type Path struct {
	Points []Point `json:"points"`
	Closed bool    `json:"closed,omitempty"`
}

func (p *Path) Kind() Kind { return KindPath }
func (p *Path) Bounds() Bounds {
	if b := boundsOf(p.Points...); b != nil {
		return *b
	}
	return Bounds{}
}
func (p *Path) Translate(dx, dy float64) {
	for i := range p.Points {
		p.Points[i].X += dx
		p.Points[i].Y += dy
	}
}
func (p *Path) Clone() Shape {
	c := &Path{Closed: p.Closed, Points: make([]Point, len(p.Points))}
	copy(c.Points, p.Points)
	return c
}
func (p *Path) finite() bool {
	for _, pt := range p.Points {
		if !allFinite(pt.X, pt.Y) {
			return false
		}
	}
	return true
}
func (p *Path) nonNegative() bool { return true }

// Image holds an embedded raster as a data URL, drawn into the given box.
type Image struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Src    string  `json:"src"`
}

func (i *Image) Kind() Kind { return KindImage }
func (i *Image) Bounds() Bounds {
	return Bounds{i.Left, i.Top, i.Width, i.Height}
}
func (i *Image) Translate(dx, dy float64) { i.Left += dx; i.Top += dy }
func (i *Image) Clone() Shape             { c := *i; return &c }
func (i *Image) finite() bool             { return allFinite(i.Left, i.Top, i.Width, i.Height) }
func (i *Image) nonNegative() bool        { return i.Width >= 0 && i.Height >= 0 }

func boundsOf(pts ...Point) *Bounds {
	if len(pts) == 0 {
		return nil
	}
	minX, minY := pts[0].X, pts[0].Y
	maxX, maxY := minX, minY
	for _, p := range pts[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
		maxX = math.Max(maxX, p.X)
		maxY = math.Max(maxY, p.Y)
	}
	return &Bounds{minX, minY, maxX - minX, maxY - minY}
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func newShape(k Kind) (Shape, bool) {
	switch k {
	case KindRectangle:
		return &Rect{}, true
	case KindEllipse:
		return &Ellipse{}, true
	case KindLine:
		return &Line{}, true
	case KindText:
		return &Text{}, true
	case KindPath:
		return &Path{}, true
	case KindImage:
		return &Image{}, true
	}
	return nil, false
}
