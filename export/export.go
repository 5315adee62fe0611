// Package export renders documents to downloadable artifacts: PNG and
// JPG through a software rasterizer, SVG markup, and PDF pages holding
// the PNG rendering.
package export

import (
	"context"
	"fmt"
	"math"
	"strings"

	"tag-designer/core"
	"tag-designer/document"

	"github.com/sirupsen/logrus"
)

type Format string

const (
	PNG Format = "png"
	JPG Format = "jpg"
	SVG Format = "svg"
	PDF Format = "pdf"
)

// ParseFormat accepts a format name in any case, with "jpeg" as an alias.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(s)); f {
	case PNG, JPG, SVG, PDF:
		return f, nil
	case "jpeg":
		return JPG, nil
	}
	return "", fmt.Errorf("format %q: %w", s, core.ErrConflictOnExport)
}

func (f Format) ContentType() string {
	switch f {
	case PNG:
		return "image/png"
	case JPG:
		return "image/jpeg"
	case SVG:
		return "image/svg+xml"
	case PDF:
		return "application/pdf"
	}
	return "application/octet-stream"
}

const (
	MinScale = 0.1
	MaxScale = 4
	// MaxPixels bounds either side of a raster rendering.
	MaxPixels = 16384
	// MinGridSize and MaxGridLines bound the work of drawing the grid.
	MinGridSize  = 1
	MaxGridLines = 1000

	gridColor = "#e0e0e0"
)

// Request describes one export.
type Request struct {
	Document *document.Document
	Format   Format
	// Quality in [0,1] applies to JPG only. Zero means full quality.
	Quality float64
	// Scale multiplies the canvas size of raster output. Zero means 1.
	Scale float64
	// IncludeGrid draws the editor grid. The editor always suppresses it.
	IncludeGrid bool
	GridSize    float64
	// Name is the file name without extension.
	Name string
}

// Artifact is an encoded export ready for download.
type Artifact struct {
	Name        string
	ContentType string
	Data        []byte
}

func (r *Request) normalize() error {
	if r.Document == nil {
		return core.Validationf("export: no document")
	}
	if err := r.Document.Validate(); err != nil {
		return err
	}
	f, err := ParseFormat(string(r.Format))
	if err != nil {
		return err
	}
	r.Format = f
	if r.Quality == 0 {
		r.Quality = 1
	}
	if r.Scale == 0 {
		r.Scale = 1
	}
	if math.IsNaN(r.Quality) || r.Quality < 0 || r.Quality > 1 {
		return core.Validationf("export quality %v out of [0,1]", r.Quality)
	}
	if math.IsNaN(r.Scale) || r.Scale < MinScale || r.Scale > MaxScale {
		return core.Validationf("export scale %v out of [%v,%v]", r.Scale, MinScale, MaxScale)
	}
	if r.IncludeGrid {
		if !(r.GridSize >= MinGridSize) || math.IsInf(r.GridSize, 0) {
			return core.Validationf("grid size %v below %v", r.GridSize, MinGridSize)
		}
		if lines := math.Max(r.Document.Width, r.Document.Height) / r.GridSize; lines > MaxGridLines {
			return core.Validationf("grid size %v draws more than %d lines", r.GridSize, MaxGridLines)
		}
	}
	if r.Format != SVG {
		w, h := r.pixelSize()
		if w > MaxPixels || h > MaxPixels {
			return fmt.Errorf("%dx%d pixels at scale %v: %w", w, h, r.Scale, core.ErrConflictOnExport)
		}
	}
	if r.Name == "" {
		r.Name = "design"
	}
	return nil
}

func (r *Request) pixelSize() (int, int) {
	return int(math.Ceil(r.Document.Width * r.Scale)), int(math.Ceil(r.Document.Height * r.Scale))
}

// Exporter is safe for concurrent use.
type Exporter struct {
	log *logrus.Entry
}

func New() *Exporter {
	return &Exporter{log: logrus.WithField("component", "export")}
}

// Export encodes req.Document. Rendering is not cancellable once started;
// ctx is only checked before work begins.
func (e *Exporter) Export(ctx context.Context, req Request) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.normalize(); err != nil {
		return nil, err
	}

	var (
		data []byte
		err  error
	)
	switch req.Format {
	case PNG, JPG:
		data, err = rasterize(&req)
	case SVG:
		data, err = renderSVG(&req)
	case PDF:
		data, err = renderPDF(&req)
	}
	if err != nil {
		e.log.WithFields(logrus.Fields{"format": req.Format, "error": err}).Error("Export failed")
		return nil, fmt.Errorf("export %s: %w", req.Format, err)
	}

	e.log.WithFields(logrus.Fields{
		"format":  req.Format,
		"objects": req.Document.Len(),
		"bytes":   len(data),
	}).Info("Document exported")
	return &Artifact{
		Name:        req.Name + "." + string(req.Format),
		ContentType: req.Format.ContentType(),
		Data:        data,
	}, nil
}
