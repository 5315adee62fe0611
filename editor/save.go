package editor

import (
	"context"
	"encoding/base64"
	"errors"
	"math"
	"strings"

	"tag-designer/core"
	"tag-designer/document"
	"tag-designer/export"

	"github.com/sirupsen/logrus"
)

func (c *Controller) scheduleAutosave() {
	c.cancelAutosave()
	if c.template == nil {
		return
	}
	c.timer = c.opts.Clock.AfterFunc(c.opts.AutosaveDelay, func() {
		c.dispatch(c.autosave)
	})
}

func (c *Controller) cancelAutosave() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Controller) dispatch(f func()) {
	if c.post != nil {
		c.post(f)
		return
	}
	f()
}

func (c *Controller) autosave() {
	c.timer = nil
	if c.template == nil || !c.Dirty() {
		return
	}
	c.log.WithField("template_id", c.template.ID).Debug("Autosaving template")
	c.RequestSave()
}

// saveJob is a snapshot taken on the owning goroutine. run may execute
// anywhere.
type saveJob struct {
	template   *core.Template
	doc        *document.Document
	revision   uint64
	generation uint64
	store      Persistence
	exporter   Exporter
	log        *logrus.Entry
}

func (c *Controller) beginSave() (*saveJob, error) {
	if c.opts.Persistence == nil {
		return nil, c.fail("save template", "Failed to save template", errors.New("no persistence configured"))
	}
	if c.saving {
		return nil, errSaveInFlight
	}
	snap, err := c.doc.Snapshot()
	if err != nil {
		return nil, c.fail("save template", "Failed to save template", err)
	}
	tpl := &core.Template{
		Name:        c.name,
		Description: c.description,
		Width:       c.doc.Width,
		Height:      c.doc.Height,
		Canvas:      snap,
	}
	if c.template != nil {
		tpl.ID = c.template.ID
		tpl.UserID = c.template.UserID
		tpl.CreatedAt = c.template.CreatedAt
	}
	c.saving = true
	return &saveJob{
		template:   tpl,
		doc:        c.doc.Clone(),
		revision:   c.revision,
		generation: c.generation,
		store:      c.opts.Persistence,
		exporter:   c.opts.Exporter,
		log:        c.log,
	}, nil
}

func (j *saveJob) run(ctx context.Context) error {
	if j.exporter != nil {
		scale := math.Max(export.MinScale, math.Min(1, ThumbnailWidth/j.doc.Width))
		art, err := j.exporter.Export(ctx, export.Request{Document: j.doc, Format: export.PNG, Scale: scale})
		if err != nil {
			j.log.WithField("error", err).Warn("Thumbnail rendering failed")
		} else {
			j.template.Thumbnail = "data:" + art.ContentType + ";base64," + base64.StdEncoding.EncodeToString(art.Data)
		}
	}
	return j.store.Save(ctx, j.template)
}

// finishSave applies the outcome of job on the owning goroutine. Edits
// made while the save was in flight keep the session dirty. A save that
// lands after the design was replaced or detached only reports its
// result. A save requested while job was running is started afterwards,
// even when job failed.
func (c *Controller) finishSave(job *saveJob, err error) error {
	c.saving = false
	queued := c.saveQueued
	c.saveQueued = false

	if err != nil {
		err = c.fail("save template", "Failed to save template", err)
		if queued {
			c.RequestSave()
		}
		return err
	}
	if job.generation != c.generation {
		c.log.WithField("template_id", job.template.ID).Info("Template saved after the design was replaced")
		c.notify(LevelSuccess, "Template saved successfully!")
		if queued {
			c.RequestSave()
		}
		return nil
	}
	c.template = job.template.Summary()
	c.savedRevision = job.revision
	c.log.WithFields(logrus.Fields{
		"template_id": c.template.ID,
		"dirty":       c.Dirty(),
	}).Info("Template saved")
	c.notify(LevelSuccess, "Template saved successfully!")

	if c.Dirty() {
		if queued {
			c.RequestSave()
		} else {
			c.scheduleAutosave()
		}
	}
	return nil
}

// Save persists the design and waits for the result.
func (c *Controller) Save(ctx context.Context) error {
	job, err := c.beginSave()
	if errors.Is(err, errSaveInFlight) {
		c.saveQueued = true
		return nil
	}
	if err != nil {
		return err
	}
	return c.finishSave(job, job.run(ctx))
}

// RequestSave starts a save without waiting for it. Under a Session the
// storage call runs off the session goroutine and the user can keep
// editing; a request made while a save is in flight runs once it lands.
func (c *Controller) RequestSave() {
	if c.post == nil {
		_ = c.Save(c.ctx)
		return
	}
	job, err := c.beginSave()
	if errors.Is(err, errSaveInFlight) {
		c.saveQueued = true
		return
	}
	if err != nil {
		return
	}
	ctx := c.ctx
	go func() {
		err := job.run(ctx)
		c.post(func() { _ = c.finishSave(job, err) })
	}()
}

// ExportOptions are the user-facing export settings.
type ExportOptions struct {
	Format  export.Format `json:"format" mapstructure:"format"`
	Quality float64       `json:"quality" mapstructure:"quality"`
	Scale   float64       `json:"scale" mapstructure:"scale"`
}

func (c *Controller) exportRequest(opts ExportOptions) (export.Request, error) {
	if c.opts.Exporter == nil {
		return export.Request{}, c.fail("export", "Export failed", errors.New("no exporter configured"))
	}
	return export.Request{
		Document: c.doc.Clone(),
		Format:   opts.Format,
		Quality:  opts.Quality,
		Scale:    opts.Scale,
		GridSize: c.grid.Size,
		Name:     c.name,
	}, nil
}

func (c *Controller) finishExport(art *export.Artifact, err error) (*export.Artifact, error) {
	if err != nil {
		msg := "Export failed"
		if errors.Is(err, core.ErrConflictOnExport) {
			msg = "Export format not supported"
		}
		c.notify(LevelError, msg)
		c.log.WithField("error", err).Error("Export failed")
		if errors.Is(err, core.ErrConflictOnExport) || errors.Is(err, core.ErrValidation) {
			return nil, err
		}
		return nil, core.Transport("export", err)
	}
	ext := art.Name[strings.LastIndexByte(art.Name, '.')+1:]
	c.notify(LevelSuccess, strings.ToUpper(ext)+" exported successfully!")
	return art, nil
}

// Export renders the design with the grid suppressed and waits for the
// artifact.
func (c *Controller) Export(ctx context.Context, opts ExportOptions) (*export.Artifact, error) {
	req, err := c.exportRequest(opts)
	if err != nil {
		return nil, err
	}
	art, err := c.opts.Exporter.Export(ctx, req)
	return c.finishExport(art, err)
}

// RequestExport renders off the session goroutine and hands the result
// to done on it. Without a Session it behaves like Export.
func (c *Controller) RequestExport(opts ExportOptions, done func(*export.Artifact, error)) {
	req, err := c.exportRequest(opts)
	if err != nil {
		done(nil, err)
		return
	}
	if c.post == nil {
		done(c.finishExport(c.opts.Exporter.Export(c.ctx, req)))
		return
	}
	exporter, ctx := c.opts.Exporter, c.ctx
	go func() {
		art, err := exporter.Export(ctx, req)
		c.post(func() { done(c.finishExport(art, err)) })
	}()
}
