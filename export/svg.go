package export

import (
	"bytes"
	"fmt"
	"html"
	"strconv"
	"strings"

	"tag-designer/document"
)

// renderSVG writes the document as standalone SVG markup at canvas size.
// Scale only affects the declared width and height.
func renderSVG(req *Request) ([]byte, error) {
	d := req.Document
	var b bytes.Buffer

	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" version="1.1" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(d.Width*req.Scale), num(d.Height*req.Scale), num(d.Width), num(d.Height))
	b.WriteString("\n")
	if d.Background != "" {
		fmt.Fprintf(&b, `<rect x="0" y="0" width="%s" height="%s" fill="%s"/>`+"\n",
			num(d.Width), num(d.Height), attr(d.Background))
	}
	if req.IncludeGrid {
		b.WriteString(`<g stroke="` + gridColor + `" stroke-width="1">` + "\n")
		for x := 0.0; x < d.Width; x += req.GridSize {
			fmt.Fprintf(&b, `<line x1="%s" y1="0" x2="%s" y2="%s"/>`+"\n", num(x), num(x), num(d.Height))
		}
		for y := 0.0; y < d.Height; y += req.GridSize {
			fmt.Fprintf(&b, `<line x1="0" y1="%s" x2="%s" y2="%s"/>`+"\n", num(y), num(d.Width), num(y))
		}
		b.WriteString("</g>\n")
	}
	for _, o := range d.Objects {
		writeSVGObject(&b, o)
	}
	b.WriteString("</svg>\n")
	return b.Bytes(), nil
}

func writeSVGObject(b *bytes.Buffer, o *document.Object) {
	common := svgPaint(o)
	if o.Angle != 0 {
		bb := o.Shape.Bounds()
		common += fmt.Sprintf(` transform="rotate(%s %s %s)"`,
			num(o.Angle), num(bb.Left+bb.Width/2), num(bb.Top+bb.Height/2))
	}

	switch s := o.Shape.(type) {
	case *document.Rect:
		fmt.Fprintf(b, `<rect id="%s" x="%s" y="%s" width="%s" height="%s"%s/>`+"\n",
			attr(o.ID), num(s.Left), num(s.Top), num(s.Width), num(s.Height), common)
	case *document.Ellipse:
		fmt.Fprintf(b, `<ellipse id="%s" cx="%s" cy="%s" rx="%s" ry="%s"%s/>`+"\n",
			attr(o.ID), num(s.CX), num(s.CY), num(s.RX), num(s.RY), common)
	case *document.Line:
		fmt.Fprintf(b, `<line id="%s" x1="%s" y1="%s" x2="%s" y2="%s"%s/>`+"\n",
			attr(o.ID), num(s.X1), num(s.Y1), num(s.X2), num(s.Y2), common)
	case *document.Path:
		tag := "polyline"
		if s.Closed {
			tag = "polygon"
		}
		pts := make([]string, len(s.Points))
		for i, p := range s.Points {
			pts[i] = num(p.X) + "," + num(p.Y)
		}
		fmt.Fprintf(b, `<%s id="%s" points="%s"%s/>`+"\n", tag, attr(o.ID), strings.Join(pts, " "), common)
	case *document.Image:
		fmt.Fprintf(b, `<image id="%s" x="%s" y="%s" width="%s" height="%s" preserveAspectRatio="none" xlink:href="%s"%s/>`+"\n",
			attr(o.ID), num(s.Left), num(s.Top), num(s.Width), num(s.Height), attr(s.Src), common)
	case *document.Text:
		writeSVGText(b, o, s, common)
	}
}

func svgPaint(o *document.Object) string {
	fill, stroke := o.Fill, o.Stroke
	switch o.Shape.(type) {
	case *document.Line:
		fill = ""
	case *document.Path:
		if !o.Shape.(*document.Path).Closed {
			fill = ""
		}
	case *document.Text, *document.Image:
		stroke = ""
	}
	if fill == "" {
		fill = "none"
	}
	out := ` fill="` + attr(fill) + `"`
	if stroke != "" && o.StrokeWidth > 0 {
		out += fmt.Sprintf(` stroke="%s" stroke-width="%s" stroke-linecap="round" stroke-linejoin="round"`,
			attr(stroke), num(o.StrokeWidth))
	}
	if o.Opacity != 1 {
		out += ` opacity="` + num(o.Opacity) + `"`
	}
	return out
}

func writeSVGText(b *bytes.Buffer, o *document.Object, t *document.Text, common string) {
	anchor, x := "start", t.Left
	switch t.TextAlign {
	case "center":
		anchor, x = "middle", t.Left+t.Width/2
	case "right":
		anchor, x = "end", t.Left+t.Width
	}
	fmt.Fprintf(b, `<text id="%s" font-family="%s" font-size="%s" font-weight="%s" font-style="%s" text-anchor="%s"`,
		attr(o.ID), attr(t.FontFamily), num(t.FontSize), attr(t.FontWeight), attr(t.FontStyle), anchor)
	if t.Underline {
		b.WriteString(` text-decoration="underline"`)
	}
	b.WriteString(common + ">")
	for i, line := range strings.Split(t.Content, "\n") {
		// The first baseline sits one font size below the top of the box.
		y := t.Top + t.FontSize + float64(i)*t.LineHeight()
		fmt.Fprintf(b, `<tspan x="%s" y="%s">%s</tspan>`, num(x), num(y), html.EscapeString(line))
	}
	b.WriteString("</text>\n")
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func attr(s string) string {
	return html.EscapeString(s)
}
