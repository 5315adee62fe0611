package document

import (
	"math"
	"sort"

	"tag-designer/core"
)

type GalleryShape struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Category string `json:"category"`

	outline func() []Point
}

// Outlines are drawn in a unit box centred on the origin, y pointing down.
var gallery = map[string]GalleryShape{
	"star":        {"star", "Star", "basic", func() []Point { return star(5, 1, 0.4) }},
	"triangle":    {"triangle", "Triangle", "basic", func() []Point { return polygon(3) }},
	"heart":       {"heart", "Heart", "shapes", heart},
	"arrow-right": {"arrow-right", "Arrow Right", "arrows", func() []Point { return rotate(arrow(), 0) }},
	"arrow-left":  {"arrow-left", "Arrow Left", "arrows", func() []Point { return rotate(arrow(), math.Pi) }},
	"arrow-up":    {"arrow-up", "Arrow Up", "arrows", func() []Point { return rotate(arrow(), -math.Pi/2) }},
	"arrow-down":  {"arrow-down", "Arrow Down", "arrows", func() []Point { return rotate(arrow(), math.Pi/2) }},
	"hexagon":     {"hexagon", "Hexagon", "basic", func() []Point { return polygon(6) }},
	"pentagon":    {"pentagon", "Pentagon", "basic", func() []Point { return polygon(5) }},
	"cloud":       {"cloud", "Cloud", "shapes", cloud},
	"diamond":     {"diamond", "Diamond", "basic", func() []Point { return []Point{{0, -1}, {1, 0}, {0, 1}, {-1, 0}} }},
	"badge":       {"badge", "Badge", "shapes", func() []Point { return star(12, 1, 0.82) }},
}

// GalleryShapes lists the insertable shapes, sorted by category then name.
func GalleryShapes() []GalleryShape {
	out := make([]GalleryShape, 0, len(gallery))
	for _, s := range gallery {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category == out[j].Category {
			return out[i].Name < out[j].Name
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// NewGalleryShape builds the closed outline of a gallery shape, scaled to
// fit a size×size box centred on center.
func NewGalleryShape(id string, center Point, size float64) (*Path, error) {
	s, ok := gallery[id]
	if !ok {
		return nil, core.NotFoundf("gallery shape %q", id)
	}
	if !(size > 0) || math.IsInf(size, 0) {
		return nil, core.Validationf("gallery shape size must be positive")
	}
	pts := s.outline()
	half := size / 2
	for i := range pts {
		pts[i] = Point{center.X + pts[i].X*half, center.Y + pts[i].Y*half}
	}
	return &Path{Points: pts, Closed: true}, nil
}

func polygon(n int) []Point {
	pts := make([]Point, n)
	for i := range pts {
		a := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		pts[i] = Point{math.Cos(a), math.Sin(a)}
	}
	return pts
}

func star(spikes int, outer, inner float64) []Point {
	pts := make([]Point, 2*spikes)
	for i := range pts {
		r := outer
		if i%2 == 1 {
			r = inner
		}
		a := -math.Pi/2 + math.Pi*float64(i)/float64(spikes)
		pts[i] = Point{r * math.Cos(a), r * math.Sin(a)}
	}
	return pts
}

func arrow() []Point {
	return []Point{{-1, -0.3}, {0.2, -0.3}, {0.2, -0.7}, {1, 0}, {0.2, 0.7}, {0.2, 0.3}, {-1, 0.3}}
}

func rotate(pts []Point, a float64) []Point {
	sin, cos := math.Sincos(a)
	for i, p := range pts {
		pts[i] = Point{p.X*cos - p.Y*sin, p.X*sin + p.Y*cos}
	}
	return pts
}

func heart() []Point {
	const n = 48
	pts := make([]Point, n)
	for i := range pts {
		t := 2 * math.Pi * float64(i) / n
		x := 16 * math.Pow(math.Sin(t), 3)
		y := 13*math.Cos(t) - 5*math.Cos(2*t) - 2*math.Cos(3*t) - math.Cos(4*t)
		pts[i] = Point{x / 17, -y / 17}
	}
	return pts
}

func cloud() []Point {
	const n = 72
	pts := make([]Point, n)
	for i := range pts {
		a := 2 * math.Pi * float64(i) / n
		r := 0.78 + 0.22*math.Abs(math.Sin(3*a))
		pts[i] = Point{r * math.Cos(a), 0.7 * r * math.Sin(a)}
	}
	return pts
}
