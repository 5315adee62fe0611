package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"
	"sync"

	"tag-designer/document"

	"github.com/gogpu/gg"
	"github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/gobolditalic"
	"golang.org/x/image/font/gofont/goitalic"
	"golang.org/x/image/font/gofont/goregular"
	_ "golang.org/x/image/webp"
)

// rasterize renders the request to PNG, or JPG at the requested quality.
func rasterize(req *Request) ([]byte, error) {
	dc, err := draw(req)
	if err != nil {
		return nil, err
	}
	defer dc.Close()

	var buf bytes.Buffer
	if req.Format == JPG {
		q := int(math.Round(req.Quality * 100))
		if q < 1 {
			q = 1
		}
		err = dc.EncodeJPEG(&buf, q)
	} else {
		err = dc.EncodePNG(&buf)
	}
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func draw(req *Request) (*gg.Context, error) {
	d := req.Document
	w, h := req.pixelSize()
	dc := gg.NewContext(w, h)
	dc.Scale(req.Scale, req.Scale)

	if bg, ok := parseColor(d.Background); ok {
		dc.SetColor(bg.Color())
		dc.DrawRectangle(0, 0, d.Width, d.Height)
		if err := dc.Fill(); err != nil {
			dc.Close()
			return nil, err
		}
	}
	if req.IncludeGrid {
		drawGrid(dc, d.Width, d.Height, req.GridSize)
	}
	for _, o := range d.Objects {
		if err := drawObject(dc, o, req.Scale); err != nil {
			dc.Close()
			return nil, fmt.Errorf("object %s: %w", o.ID, err)
		}
	}
	return dc, nil
}

func drawGrid(dc *gg.Context, w, h, size float64) {
	c, _ := parseColor(gridColor)
	dc.SetColor(c.Color())
	dc.SetLineWidth(1)
	for x := 0.0; x < w; x += size {
		dc.DrawLine(x, 0, x, h)
		_ = dc.Stroke()
	}
	for y := 0.0; y < h; y += size {
		dc.DrawLine(0, y, w, y)
		_ = dc.Stroke()
	}
}

func withOpacity(c gg.RGBA, opacity float64) gg.RGBA {
	c.A *= opacity
	return c
}

func drawObject(dc *gg.Context, o *document.Object, scale float64) error {
	if o.Opacity == 0 {
		return nil
	}
	dc.Push()
	defer dc.Pop()

	if o.Angle != 0 {
		b := o.Shape.Bounds()
		dc.RotateAbout(o.Angle*math.Pi/180, b.Left+b.Width/2, b.Top+b.Height/2)
	}

	switch s := o.Shape.(type) {
	case *document.Text:
		return drawText(dc, o, s, scale)
	case *document.Image:
		return drawImage(dc, o, s)
	case *document.Rect:
		dc.DrawRectangle(s.Left, s.Top, s.Width, s.Height)
	case *document.Ellipse:
		dc.DrawEllipse(s.CX, s.CY, s.RX, s.RY)
	case *document.Line:
		dc.DrawLine(s.X1, s.Y1, s.X2, s.Y2)
	case *document.Path:
		if len(s.Points) == 0 {
			return nil
		}
		dc.MoveTo(s.Points[0].X, s.Points[0].Y)
		for _, p := range s.Points[1:] {
			dc.LineTo(p.X, p.Y)
		}
		if s.Closed {
			dc.ClosePath()
		}
	}
	return paint(dc, o)
}

// paint fills then strokes the current path with the object's paint.
func paint(dc *gg.Context, o *document.Object) error {
	_, isLine := o.Shape.(*document.Line)
	fill, hasFill := parseColor(o.Fill)
	stroke, hasStroke := parseColor(o.Stroke)
	hasStroke = hasStroke && o.StrokeWidth > 0
	if p, ok := o.Shape.(*document.Path); ok && !p.Closed {
		isLine = true
	}

	if hasFill && !isLine {
		dc.SetColor(withOpacity(fill, o.Opacity).Color())
		if hasStroke {
			if err := dc.FillPreserve(); err != nil {
				return err
			}
		} else if err := dc.Fill(); err != nil {
			return err
		}
	}
	if hasStroke {
		dc.SetColor(withOpacity(stroke, o.Opacity).Color())
		dc.SetLineWidth(o.StrokeWidth)
		dc.SetLineCap(gg.LineCapRound)
		dc.SetLineJoin(gg.LineJoinRound)
		return dc.Stroke()
	}
	dc.ClearPath()
	return nil
}

var (
	fontsOnce sync.Once
	fonts     map[string]*text.FontSource
	fontsErr  error
)

func fontSource(weight, style string) (*text.FontSource, error) {
	fontsOnce.Do(func() {
		fonts = make(map[string]*text.FontSource, 4)
		for key, ttf := range map[string][]byte{
			"normal/normal": goregular.TTF,
			"bold/normal":   gobold.TTF,
			"normal/italic": goitalic.TTF,
			"bold/italic":   gobolditalic.TTF,
		} {
			src, err := text.NewFontSource(ttf)
			if err != nil {
				fontsErr = fmt.Errorf("load font %s: %w", key, err)
				return
			}
			fonts[key] = src
		}
	})
	if fontsErr != nil {
		return nil, fontsErr
	}
	if weight != document.FontWeightBold {
		weight = document.FontWeightNormal
	}
	if style != document.FontStyleItalic {
		style = document.FontStyleNormal
	}
	return fonts[weight+"/"+style], nil
}

// drawText lays the content out line by line inside the text box width.
// Glyphs are drawn in device space, so positions go through the current
// transform and the face is scaled to match.
func drawText(dc *gg.Context, o *document.Object, t *document.Text, scale float64) error {
	c, ok := parseColor(o.Fill)
	if !ok || t.FontSize == 0 {
		return nil
	}
	src, err := fontSource(t.FontWeight, t.FontStyle)
	if err != nil {
		return err
	}
	face := src.Face(t.FontSize * scale)
	m := face.Metrics()
	dc.SetFont(face)
	dc.SetColor(withOpacity(c, o.Opacity).Color())

	lines := wrapText(t.Content, t.Width*scale, face.Advance)
	for i, line := range lines {
		adv := face.Advance(line) / scale
		x := t.Left
		switch t.TextAlign {
		case "center":
			x += (t.Width - adv) / 2
		case "right":
			x += t.Width - adv
		}
		baseline := t.Top + float64(i)*t.LineHeight() + m.Ascent/scale
		dx, dy := dc.TransformPoint(x, baseline)
		dc.DrawString(line, dx, dy)
		if t.Underline {
			y := baseline + t.FontSize*0.1
			dc.SetLineWidth(math.Max(1, t.FontSize/15))
			dc.DrawLine(x, y, x+adv, y)
			if err := dc.Stroke(); err != nil {
				return err
			}
		}
	}
	return nil
}

// wrapText breaks content on newlines, then greedily on spaces so that
// no line exceeds width. A single word wider than the box stays whole.
func wrapText(content string, width float64, advance func(string) float64) []string {
	var out []string
	for _, para := range strings.Split(content, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 || width <= 0 {
			out = append(out, para)
			continue
		}
		line := words[0]
		for _, w := range words[1:] {
			if advance(line+" "+w) > width {
				out = append(out, line)
				line = w
				continue
			}
			line += " " + w
		}
		out = append(out, line)
	}
	return out
}

func drawImage(dc *gg.Context, o *document.Object, s *document.Image) error {
	img, err := decodeDataURL(s.Src)
	if err != nil {
		return err
	}
	dc.DrawImageEx(gg.ImageBufFromImage(img), gg.DrawImageOptions{
		X:         s.Left,
		Y:         s.Top,
		DstWidth:  s.Width,
		DstHeight: s.Height,
		Opacity:   o.Opacity,
	})
	return nil
}

func decodeDataURL(src string) (image.Image, error) {
	data, _, err := DataURL(src)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// DataURL splits a base64 data URL into its bytes and media type.
func DataURL(src string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(src, "data:")
	if !ok {
		return nil, "", fmt.Errorf("image source is not a data URL")
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok || !strings.HasSuffix(meta, ";base64") {
		return nil, "", fmt.Errorf("image data URL is not base64 encoded")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode image data URL: %w", err)
	}
	return data, strings.TrimSuffix(meta, ";base64"), nil
}

// ImageSize reads the pixel size of an encoded image without decoding it.
func ImageSize(data []byte) (int, int, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}
