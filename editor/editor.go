// Package editor implements the session controller that owns one open
// design: its document, history, tool machine, selection and view state.
// It talks to persistence and export collaborators and turns their
// failures into notifications.
package editor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"tag-designer/core"
	"tag-designer/document"
	"tag-designer/export"
	"tag-designer/history"
	"tag-designer/tool"

	"github.com/sirupsen/logrus"
)

var (
	ErrNoSelection    = fmt.Errorf("no object selected: %w", core.ErrValidation)
	ErrBusy           = fmt.Errorf("finish the current drawing first: %w", core.ErrValidation)
	ErrUnsavedChanges = errors.New("document has unsaved changes")
	ErrNoTemplate     = fmt.Errorf("no template loaded: %w", core.ErrValidation)
	errSaveInFlight   = errors.New("save in flight")
)

const (
	DefaultName          = "Untitled Template"
	DefaultAutosaveDelay = 5 * time.Second
	DefaultGridSize      = 20

	MinZoom  = 0.1
	MaxZoom  = 5
	ZoomStep = 0.1

	// Inserted gallery shapes fit a box this large around the canvas centre.
	GalleryShapeSize = 100
	// Inserted images are placed here and scaled to at most half the canvas.
	ImageInsertOffset = 100
	ThumbnailWidth    = 200
)

// Persistence stores the templates of the session's user.
type Persistence interface {
	Save(ctx context.Context, t *core.Template) error
	List(ctx context.Context, page, limit int) ([]*core.Template, int, error)
	Get(ctx context.Context, id string) (*core.Template, error)
	Delete(ctx context.Context, id string) error
}

type Exporter interface {
	Export(ctx context.Context, req export.Request) (*export.Artifact, error)
}

type Level string

const (
	LevelSuccess Level = "success"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Notification is a transient, user-facing message.
type Notification struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Clock schedules the autosave timer.
type Clock interface {
	AfterFunc(d time.Duration, f func()) Timer
}

type Timer interface {
	Stop() bool
}

type systemClock struct{}

func (systemClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Grid is the editor grid. It is never part of the document.
type Grid struct {
	Visible bool    `json:"visible" mapstructure:"visible"`
	Size    float64 `json:"size" mapstructure:"size"`
	Snap    bool    `json:"snap" mapstructure:"snap"`
}

type Options struct {
	Persistence Persistence
	Exporter    Exporter
	Notifier    Notifier
	Clock       Clock
	Logger      *logrus.Entry

	AutosaveDelay time.Duration
	Width, Height float64
	GridSize      float64
}

// Controller is not safe for concurrent use. Wrap it in a Session to
// drive it from several goroutines.
type Controller struct {
	opts    Options
	log     *logrus.Entry
	doc     *document.Document
	history *history.History
	machine *tool.Machine

	selection   string
	zoom        float64
	grid        Grid
	name        string
	description string
	template    *core.Template

	// dirty is revision != savedRevision
	revision      uint64
	savedRevision uint64

	timer      Timer
	saving     bool
	saveQueued bool
	// generation changes whenever the session stops being the design a
	// running save was taken from.
	generation uint64

	// post runs f on the goroutine that owns the controller. It is set
	// by Session; without one, callbacks run where they fire.
	post func(f func())
	ctx  context.Context
}

func NewController(opts Options) (*Controller, error) {
	if opts.Clock == nil {
		opts.Clock = systemClock{}
	}
	if opts.Notifier == nil {
		opts.Notifier = NotifierFunc(func(Notification) {})
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "editor")
	}
	if opts.AutosaveDelay <= 0 {
		opts.AutosaveDelay = DefaultAutosaveDelay
	}
	if opts.Width == 0 {
		opts.Width = document.DefaultWidth
	}
	if opts.Height == 0 {
		opts.Height = document.DefaultHeight
	}
	if !(opts.GridSize >= export.MinGridSize) {
		opts.GridSize = DefaultGridSize
	}

	c := &Controller{
		opts:    opts,
		log:     opts.Logger,
		history: history.New(),
		zoom:    1,
		grid:    Grid{Size: opts.GridSize},
		ctx:     context.Background(),
	}
	c.machine = tool.New(host{c})
	if err := c.New(true); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Controller) Dirty() bool { return c.revision != c.savedRevision }

// Document returns the live document. Callers must not modify it.
func (c *Controller) Document() *document.Document { return c.doc }

// Template returns the associated template without its payload, or nil
// for a document that was never saved.
func (c *Controller) Template() *core.Template { return c.template }

func (c *Controller) Selection() string { return c.selection }

func (c *Controller) notify(level Level, msg string) {
	c.opts.Notifier.Notify(Notification{Level: level, Message: msg})
}

// fail logs a collaborator failure, tells the user and returns it wrapped
// in the error taxonomy.
func (c *Controller) fail(op, msg string, err error) error {
	if errors.Is(err, core.ErrNotFound) {
		msg = "Template not found"
	}
	c.log.WithFields(logrus.Fields{"op": op, "error": err}).Error("Editor operation failed")
	c.notify(LevelError, msg)
	return core.Transport(op, err)
}

// touch records a document-changing mutation and restarts the autosave
// timer.
func (c *Controller) touch() {
	c.revision++
	c.scheduleAutosave()
}

func (c *Controller) apply(cmd document.Command) error {
	if err := cmd.Apply(c.doc); err != nil {
		return err
	}
	c.touch()
	return nil
}

func (c *Controller) checkpoint() error {
	return c.history.Record(c.doc)
}

// replace swaps in a new document with fresh history and a clean dirty
// flag.
func (c *Controller) replace(doc *document.Document, tpl *core.Template, name, description string) error {
	c.cancelAutosave()
	c.machine.Reset()
	c.history.Reset()
	c.generation++
	c.saveQueued = false
	if err := c.history.Record(doc); err != nil {
		return err
	}
	c.doc = doc
	c.template = tpl
	c.name = name
	c.description = description
	c.selection = ""
	c.revision++
	c.savedRevision = c.revision
	return nil
}

// New starts a blank design. A dirty session is only discarded when
// force is set.
func (c *Controller) New(force bool) error {
	if c.Dirty() && !force {
		return ErrUnsavedChanges
	}
	doc, err := document.New(c.opts.Width, c.opts.Height)
	if err != nil {
		return err
	}
	return c.replace(doc, nil, DefaultName, "")
}

// Load replaces the session with a stored template.
func (c *Controller) Load(ctx context.Context, id string, force bool) error {
	if c.Dirty() && !force {
		return ErrUnsavedChanges
	}
	if c.opts.Persistence == nil {
		return c.fail("load template", "Failed to load template", errors.New("no persistence configured"))
	}
	tpl, err := c.opts.Persistence.Get(ctx, id)
	if err != nil {
		return c.fail("load template", "Failed to load template", err)
	}
	doc, err := document.FromTemplate(tpl)
	if err != nil {
		return c.fail("load template", "Failed to load template", err)
	}
	if err := c.replace(doc, tpl.Summary(), tpl.Name, tpl.Description); err != nil {
		return err
	}
	c.log.WithField("template_id", tpl.ID).Info("Template loaded")
	c.notify(LevelSuccess, "Template loaded successfully!")
	return nil
}

// ListTemplates returns one page of the user's templates and the total.
func (c *Controller) ListTemplates(ctx context.Context, page, limit int) ([]*core.Template, int, error) {
	if c.opts.Persistence == nil {
		return nil, 0, c.fail("list templates", "Failed to load templates", errors.New("no persistence configured"))
	}
	list, total, err := c.opts.Persistence.List(ctx, page, limit)
	if err != nil {
		return nil, 0, c.fail("list templates", "Failed to load templates", err)
	}
	return list, total, nil
}

// DeleteTemplate removes a stored template. Deleting the loaded template
// detaches the session from it, so the design becomes unsaved work.
func (c *Controller) DeleteTemplate(ctx context.Context, id string) error {
	if c.opts.Persistence == nil {
		return c.fail("delete template", "Failed to delete template", errors.New("no persistence configured"))
	}
	if err := c.opts.Persistence.Delete(ctx, id); err != nil {
		return c.fail("delete template", "Failed to delete template", err)
	}
	if c.template != nil && c.template.ID == id {
		c.template = nil
		c.cancelAutosave()
		c.generation++
		c.saveQueued = false
		c.revision++
	}
	c.log.WithField("template_id", id).Info("Template deleted")
	c.notify(LevelSuccess, "Template deleted")
	return nil
}
