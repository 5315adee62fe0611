package editor

import (
	"context"
	"encoding/base64"
	"errors"
	"sync"

	"tag-designer/core"
	"tag-designer/document"
	designer "tag-designer/editor"
	"tag-designer/export"
	"tag-designer/handlers/auth"
	"tag-designer/stores"
	"tag-designer/tool"

	"github.com/mitchellh/mapstructure"
	"github.com/sirupsen/logrus"
)

const eventOpenSession = "open-session"

var errNoSession = errors.New("no open editor session")

// eventFunc runs one client event on the session goroutine. The returned
// map is sent back in the acknowledgement.
type eventFunc func(c *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error)

var events = map[string]eventFunc{
	"tool":            onTool,
	"pointer-down":    onPointer((*designer.Controller).PointerDown),
	"pointer-move":    onPointer((*designer.Controller).PointerMove),
	"pointer-up":      onPointer((*designer.Controller).PointerUp),
	"text-confirm":    onTextConfirm,
	"text-cancel":     onTextCancel,
	"select":          onSelect,
	"property":        onProperty,
	"key":             onKey,
	"undo":            simple((*designer.Controller).Undo),
	"redo":            simple((*designer.Controller).Redo),
	"delete":          simple((*designer.Controller).DeleteSelected),
	"duplicate":       simple((*designer.Controller).DuplicateSelected),
	"nudge":           onNudge,
	"zoom":            onZoom,
	"grid":            onGrid,
	"canvas":          onCanvas,
	"insert-shape":    onInsertShape,
	"insert-image":    onInsertImage,
	"new":             onNew,
	"load":            onLoad,
	"save":            onSave,
	"export":          onExport,
	"rename":          onRename,
	"list-templates":  onListTemplates,
	"delete-template": onDeleteTemplate,
}

// conn is the server side of one socket.
type conn struct {
	h      *Handler
	emit   func(event string, args ...any) error
	log    *logrus.Entry
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	session *designer.Session
}

func (c *conn) current() *designer.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *conn) handle(event string, datas []any) {
	ack, args := extractAck(datas)
	var payload map[string]any
	if len(args) > 0 {
		payload, _ = args[0].(map[string]any)
	}
	result, err := c.dispatch(event, payload)
	if err != nil {
		c.log.WithFields(logrus.Fields{"event": event, "error": err}).Debug("Editor event failed")
	}
	respondWithAck(ack, result, err)
}

// dispatch runs event and then pushes the resulting state to the client,
// whether or not the event succeeded.
func (c *conn) dispatch(event string, payload map[string]any) (map[string]any, error) {
	if event == eventOpenSession {
		return c.open(payload)
	}
	fn, ok := events[event]
	if !ok {
		return nil, core.Validationf("unknown event %q", event)
	}
	s := c.current()
	if s == nil {
		return nil, errNoSession
	}

	var (
		result map[string]any
		state  designer.State
	)
	err := s.Do(func(ed *designer.Controller) error {
		var err error
		result, err = fn(c, ed, payload)
		state = ed.State()
		return err
	})
	if errors.Is(err, designer.ErrSessionClosed) {
		return nil, errNoSession
	}
	_ = c.emit("state", state)
	return result, err
}

type openRequest struct {
	Token      string `mapstructure:"token"`
	TemplateID string `mapstructure:"templateId"`
}

func (c *conn) open(payload map[string]any) (map[string]any, error) {
	var req openRequest
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	claims, err := c.h.tokens.ParseJWT(req.Token)
	if err != nil {
		return nil, err
	}
	userID := claims.UserID()
	log := c.log.WithField("user_id", userID)

	// Notifications also mark the end of background saves and exports,
	// so the state goes out with them. They fire on the session goroutine.
	var ed *designer.Controller
	notifier := designer.NotifierFunc(func(n designer.Notification) {
		_ = c.emit("notification", n)
		if ed != nil {
			_ = c.emit("state", ed.State())
		}
	})
	ed, err = designer.NewController(designer.Options{
		Persistence:   stores.ForUser(c.h.store, userID),
		Exporter:      c.h.exporter,
		Notifier:      notifier,
		Logger:        log,
		AutosaveDelay: c.h.cfg.AutosaveDelay,
		Width:         c.h.cfg.CanvasWidth,
		Height:        c.h.cfg.CanvasHeight,
		GridSize:      c.h.cfg.GridSize,
	})
	if err != nil {
		return nil, err
	}
	s := designer.NewSession(ed)

	c.mu.Lock()
	old := c.session
	c.session = s
	c.mu.Unlock()
	if old != nil {
		old.Close()
	}
	log.Info("Editor session opened")

	var state designer.State
	err = s.Do(func(ed *designer.Controller) error {
		var err error
		if req.TemplateID != "" {
			err = ed.Load(c.ctx, req.TemplateID, true)
		}
		state = ed.State()
		return err
	})
	_ = c.emit("state", state)
	return map[string]any{"userId": userID}, err
}

func (c *conn) close() {
	c.cancel()
	c.mu.Lock()
	s := c.session
	c.session = nil
	c.mu.Unlock()
	if s != nil {
		s.Close()
	}
}

func decode(payload map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(payload); err != nil {
		return core.Validationf("malformed event payload: %v", err)
	}
	return nil
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, errNoSession):
		return "no-session"
	case errors.Is(err, auth.ErrInvalidToken):
		return "unauthorized"
	case errors.Is(err, designer.ErrUnsavedChanges):
		return "unsaved-changes"
	case errors.Is(err, core.ErrNotFound):
		return "not-found"
	case errors.Is(err, core.ErrValidation):
		return "invalid"
	case errors.Is(err, core.ErrConflictOnExport), errors.Is(err, core.ErrConflict):
		return "conflict"
	case errors.Is(err, core.ErrTransport):
		return "unavailable"
	}
	return "internal"
}

func simple(fn func(*designer.Controller) error) eventFunc {
	return func(_ *conn, ed *designer.Controller, _ map[string]any) (map[string]any, error) {
		return nil, fn(ed)
	}
}

func onTool(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Tool string `mapstructure:"tool"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	t, ok := tool.ParseTool(req.Tool)
	if !ok {
		return nil, core.Validationf("unknown tool %q", req.Tool)
	}
	return nil, ed.SelectTool(t)
}

func onPointer(fn func(*designer.Controller, document.Point) error) eventFunc {
	return func(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
		var p document.Point
		if err := decode(payload, &p); err != nil {
			return nil, err
		}
		return nil, fn(ed, p)
	}
}

func onTextConfirm(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Text string `mapstructure:"text"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return nil, ed.ConfirmText(req.Text)
}

func onTextCancel(_ *conn, ed *designer.Controller, _ map[string]any) (map[string]any, error) {
	ed.CancelText()
	return nil, nil
}

func onSelect(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		ID string `mapstructure:"id"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		ed.ClearSelection()
		return nil, nil
	}
	return nil, ed.Select(req.ID)
}

func onProperty(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Property document.Property `mapstructure:"property"`
		Value    document.Value    `mapstructure:"value"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return nil, ed.SetProperty(req.Property, req.Value)
}

func onKey(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var k designer.Key
	if err := decode(payload, &k); err != nil {
		return nil, err
	}
	handled, err := ed.HandleKey(k)
	return map[string]any{"handled": handled}, err
}

func onNudge(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		DX float64 `mapstructure:"dx"`
		DY float64 `mapstructure:"dy"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return nil, ed.Nudge(req.DX, req.DY)
}

// onZoom takes either an absolute level or a step direction.
func onZoom(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Zoom *float64 `mapstructure:"zoom"`
		Step string   `mapstructure:"step"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	switch {
	case req.Zoom != nil:
		ed.SetZoom(*req.Zoom)
	case req.Step == "in":
		ed.ZoomIn()
	case req.Step == "out":
		ed.ZoomOut()
	default:
		return nil, core.Validationf("zoom needs a level or a step of in or out")
	}
	return map[string]any{"zoom": ed.Zoom()}, nil
}

// onGrid updates only the grid settings present in the payload.
func onGrid(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	g := ed.State().Grid
	if err := decode(payload, &g); err != nil {
		return nil, err
	}
	return nil, ed.SetGrid(g)
}

func onCanvas(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Width      *float64 `mapstructure:"width"`
		Height     *float64 `mapstructure:"height"`
		Background string   `mapstructure:"background"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Width != nil || req.Height != nil {
		doc := ed.Document()
		w, h := doc.Width, doc.Height
		if req.Width != nil {
			w = *req.Width
		}
		if req.Height != nil {
			h = *req.Height
		}
		if err := ed.ResizeCanvas(w, h); err != nil {
			return nil, err
		}
	}
	if req.Background != "" {
		return nil, ed.SetBackground(req.Background)
	}
	return nil, nil
}

func onInsertShape(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Shape string `mapstructure:"shape"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return nil, ed.InsertGalleryShape(req.Shape)
}

func onInsertImage(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		DataURL string `mapstructure:"dataUrl"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return nil, ed.InsertImage(req.DataURL)
}

func onNew(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Force bool `mapstructure:"force"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	return nil, ed.New(req.Force)
}

func onLoad(c *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		ID    string `mapstructure:"id"`
		Force bool   `mapstructure:"force"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, core.Validationf("template id is required")
	}
	return nil, ed.Load(c.ctx, req.ID, req.Force)
}

// onSave starts the save in the background. The outcome arrives as a
// notification and a fresh state once the store answers.
func onSave(_ *conn, ed *designer.Controller, _ map[string]any) (map[string]any, error) {
	ed.RequestSave()
	return nil, nil
}

func onExport(c *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var opts designer.ExportOptions
	if err := decode(payload, &opts); err != nil {
		return nil, err
	}
	if opts.Format == "" {
		opts.Format = export.PNG
	}
	ed.RequestExport(opts, func(art *export.Artifact, err error) {
		if err != nil {
			c.log.WithField("error", err).Debug("Export not delivered")
			return
		}
		_ = c.emit("export-ready", map[string]any{
			"name":        art.Name,
			"contentType": art.ContentType,
			"data":        base64.StdEncoding.EncodeToString(art.Data),
		})
	})
	return nil, nil
}

func onRename(_ *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Name        string  `mapstructure:"name"`
		Description *string `mapstructure:"description"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if err := ed.SetName(req.Name); err != nil {
		return nil, err
	}
	if req.Description != nil {
		ed.SetDescription(*req.Description)
	}
	return nil, nil
}

func onListTemplates(c *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		Page  int `mapstructure:"page"`
		Limit int `mapstructure:"limit"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.Limit < 1 {
		req.Limit = core.DefaultPageLimit
	}
	list, total, err := ed.ListTemplates(c.ctx, req.Page, req.Limit)
	if err != nil {
		return nil, err
	}
	return map[string]any{"templates": list, "total": total, "page": req.Page, "limit": req.Limit}, nil
}

func onDeleteTemplate(c *conn, ed *designer.Controller, payload map[string]any) (map[string]any, error) {
	var req struct {
		ID string `mapstructure:"id"`
	}
	if err := decode(payload, &req); err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, core.Validationf("template id is required")
	}
	return nil, ed.DeleteTemplate(c.ctx, req.ID)
}
