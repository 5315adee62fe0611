package editor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/png"
	"testing"
	"time"

	"tag-designer/core"
	"tag-designer/document"
	"tag-designer/export"
	"tag-designer/tool"
)

type fixture struct {
	c     *Controller
	store *mockStore
	clock *fakeClock
	notes *recorder
	exp   *mockExporter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: newMockStore(), clock: &fakeClock{}, notes: &recorder{}, exp: &mockExporter{}}
	c, err := NewController(Options{
		Persistence: f.store,
		Exporter:    f.exp,
		Notifier:    f.notes,
		Clock:       f.clock,
	})
	if err != nil {
		t.Fatalf("NewController() failed: %v", err)
	}
	f.c = c
	return f
}

// drawRect draws a rectangle with the rectangle tool.
func (f *fixture) drawRect(t *testing.T, x1, y1, x2, y2 float64) string {
	t.Helper()
	c := f.c
	if err := c.SelectTool(tool.Rectangle); err != nil {
		t.Fatalf("SelectTool() failed: %v", err)
	}
	if err := c.PointerDown(document.Point{X: x1, Y: y1}); err != nil {
		t.Fatalf("PointerDown() failed: %v", err)
	}
	if err := c.PointerMove(document.Point{X: x2, Y: y2}); err != nil {
		t.Fatalf("PointerMove() failed: %v", err)
	}
	if err := c.PointerUp(document.Point{X: x2, Y: y2}); err != nil {
		t.Fatalf("PointerUp() failed: %v", err)
	}
	return c.Selection()
}

// loadTemplate stores a template holding an empty document and loads it.
func (f *fixture) loadTemplate(t *testing.T) *core.Template {
	t.Helper()
	d, _ := document.New(400, 300)
	snap, _ := d.Snapshot()
	tpl := &core.Template{ID: "tpl-x", UserID: "user-1", Name: "Badge", Width: 400, Height: 300, Canvas: snap}
	f.store.templates[tpl.ID] = tpl
	if err := f.c.Load(context.Background(), tpl.ID, false); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	return tpl
}

func TestNewController_BlankSession(t *testing.T) {
	f := newFixture(t)
	s := f.c.State()
	if s.Dirty || s.CanUndo || s.CanRedo {
		t.Errorf("fresh session dirty=%v canUndo=%v canRedo=%v", s.Dirty, s.CanUndo, s.CanRedo)
	}
	if s.Name != DefaultName || s.Template != nil {
		t.Errorf("name=%q template=%v", s.Name, s.Template)
	}
	if s.Document.Width != document.DefaultWidth || s.Zoom != 1 || s.Grid.Size != DefaultGridSize {
		t.Errorf("unexpected defaults: %+v", s)
	}
	if f.c.history.Len() != 1 {
		t.Errorf("history len = %d, want 1", f.c.history.Len())
	}
}

func TestDrawMarksDirtyAndRecords(t *testing.T) {
	f := newFixture(t)
	id := f.drawRect(t, 10, 10, 50, 40)
	if !f.c.Dirty() {
		t.Error("drawing should mark the session dirty")
	}
	if id == "" || f.c.Document().Find(id) == nil {
		t.Fatal("new rectangle should be selected")
	}
	if f.c.history.Len() != 2 {
		t.Errorf("history len = %d, want 2", f.c.history.Len())
	}
}

func TestDeleteSelected_OneEntryAndClearsSelection(t *testing.T) {
	f := newFixture(t)
	f.drawRect(t, 0, 0, 20, 20)
	before := f.c.history.Len()

	if err := f.c.DeleteSelected(); err != nil {
		t.Fatalf("DeleteSelected() failed: %v", err)
	}
	if f.c.Selection() != "" {
		t.Error("selection should be cleared")
	}
	if f.c.Document().Len() != 0 {
		t.Errorf("document has %d objects, want 0", f.c.Document().Len())
	}
	if got := f.c.history.Len() - before; got != 1 {
		t.Errorf("delete pushed %d entries, want 1", got)
	}
}

func TestSelectionScopedEdits(t *testing.T) {
	f := newFixture(t)
	if err := f.c.DeleteSelected(); !errors.Is(err, ErrNoSelection) {
		t.Errorf("DeleteSelected() without selection = %v, want ErrNoSelection", err)
	}
	if err := f.c.Nudge(1, 0); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Nudge() without selection = %v, want a validation error", err)
	}

	f.drawRect(t, 0, 0, 20, 20)
	_ = f.c.SelectTool(tool.Line)
	_ = f.c.PointerDown(document.Point{X: 1, Y: 1})
	if err := f.c.Select(f.c.Document().Objects[0].ID); err != nil {
		t.Fatalf("Select() failed: %v", err)
	}
	if f.c.Document().Len() != 1 {
		t.Errorf("selecting should discard the pending line")
	}

	_ = f.c.SelectTool(tool.Circle)
	_ = f.c.PointerDown(document.Point{X: 5, Y: 5})
	f.c.selection = f.c.Document().Objects[0].ID
	if err := f.c.DuplicateSelected(); !errors.Is(err, ErrBusy) {
		t.Errorf("DuplicateSelected() while drawing = %v, want ErrBusy", err)
	}
}

func TestSetProperty_HistoryOnlyForSignificant(t *testing.T) {
	f := newFixture(t)
	f.drawRect(t, 0, 0, 20, 20)
	n := f.c.history.Len()

	if err := f.c.SetProperty(document.PropFill, document.String("#ff0000")); err != nil {
		t.Fatalf("SetProperty(fill) failed: %v", err)
	}
	if f.c.history.Len() != n {
		t.Error("colour edit should not push history")
	}
	if err := f.c.SetProperty(document.PropWidth, document.Number(80)); err != nil {
		t.Fatalf("SetProperty(width) failed: %v", err)
	}
	if f.c.history.Len() != n+1 {
		t.Error("width edit should push history")
	}
	if err := f.c.SetProperty(document.PropOpacity, document.Number(2)); !errors.Is(err, core.ErrValidation) {
		t.Errorf("SetProperty(opacity 2) = %v, want ErrValidation", err)
	}
}

func TestDuplicateAndNudge(t *testing.T) {
	f := newFixture(t)
	src := f.drawRect(t, 10, 10, 30, 30)
	if err := f.c.DuplicateSelected(); err != nil {
		t.Fatalf("DuplicateSelected() failed: %v", err)
	}
	dup := f.c.Selection()
	if dup == src || f.c.Document().Len() != 2 {
		t.Fatalf("duplicate should be a new selected object")
	}
	r := f.c.Document().Find(dup).Shape.(*document.Rect)
	if r.Left != 20 || r.Top != 20 {
		t.Errorf("duplicate at %v,%v, want 20,20", r.Left, r.Top)
	}

	if err := f.c.Nudge(0, -10); err != nil {
		t.Fatalf("Nudge() failed: %v", err)
	}
	if r := f.c.Document().Find(dup).Shape.(*document.Rect); r.Top != 10 {
		t.Errorf("nudged top = %v, want 10", r.Top)
	}
}

func TestUndoRedo(t *testing.T) {
	f := newFixture(t)
	f.drawRect(t, 0, 0, 10, 10)
	f.drawRect(t, 20, 20, 30, 30)

	if err := f.c.Undo(); err != nil {
		t.Fatalf("Undo() failed: %v", err)
	}
	if f.c.Document().Len() != 1 {
		t.Errorf("after undo %d objects, want 1", f.c.Document().Len())
	}
	if f.c.Selection() != "" {
		t.Error("selection of an undone object should be cleared")
	}
	if err := f.c.Redo(); err != nil {
		t.Fatalf("Redo() failed: %v", err)
	}
	if f.c.Document().Len() != 2 {
		t.Errorf("after redo %d objects, want 2", f.c.Document().Len())
	}
	if err := f.c.Redo(); err != nil || f.c.Document().Len() != 2 {
		t.Errorf("redo at the end should be a no-op")
	}
	_ = f.c.Undo()
	_ = f.c.Undo()
	_ = f.c.Undo()
	if f.c.Document().Len() != 0 || f.c.CanUndo() {
		t.Errorf("undo past the start should stop at the blank document")
	}
}

func TestAutosave_NeverWithoutTemplate(t *testing.T) {
	f := newFixture(t)
	f.drawRect(t, 0, 0, 10, 10)
	f.clock.Advance(time.Minute)
	if f.store.saveCount() != 0 {
		t.Errorf("unsaved document was autosaved %d times", f.store.saveCount())
	}
	if f.clock.pending() != 0 {
		t.Error("no timer should be armed without a template")
	}
}

func TestAutosave_DebouncedAfterLastMutation(t *testing.T) {
	f := newFixture(t)
	f.loadTemplate(t)

	f.drawRect(t, 0, 0, 10, 10)
	f.clock.Advance(4 * time.Second)
	if f.store.saveCount() != 0 {
		t.Fatal("autosave fired early")
	}

	// A second mutation resets the timer.
	if err := f.c.Nudge(1, 1); err != nil {
		t.Fatalf("Nudge() failed: %v", err)
	}
	f.clock.Advance(4 * time.Second)
	if f.store.saveCount() != 0 {
		t.Fatal("autosave fired before the delay after the last mutation")
	}
	f.clock.Advance(time.Second)
	if f.store.saveCount() != 1 {
		t.Fatalf("saves = %d, want 1", f.store.saveCount())
	}
	if f.c.Dirty() {
		t.Error("session should be clean after autosave")
	}
	f.clock.Advance(time.Minute)
	if f.store.saveCount() != 1 {
		t.Errorf("saves = %d after idling, want 1", f.store.saveCount())
	}
}

func TestSave_NewTemplate(t *testing.T) {
	f := newFixture(t)
	f.drawRect(t, 0, 0, 10, 10)
	if err := f.c.SetName("Conference badge"); err != nil {
		t.Fatalf("SetName() failed: %v", err)
	}
	if err := f.c.Save(context.Background()); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	tpl := f.c.Template()
	if tpl == nil || tpl.ID == "" || tpl.Name != "Conference badge" {
		t.Fatalf("template after save = %+v", tpl)
	}
	if tpl.Canvas != "" {
		t.Error("session should keep the template summary only")
	}
	if f.c.Dirty() {
		t.Error("session should be clean after save")
	}
	stored := f.store.templates[tpl.ID]
	if _, err := document.Parse(stored.Canvas); err != nil {
		t.Errorf("stored canvas does not parse: %v", err)
	}
	if len(f.exp.requests) != 1 || f.exp.requests[0].Format != export.PNG {
		t.Errorf("save should render one PNG thumbnail, got %d requests", len(f.exp.requests))
	}
	if f.notes.last().Level != LevelSuccess {
		t.Errorf("last notification = %+v, want success", f.notes.last())
	}

	// Once associated, edits arm the autosave timer.
	_ = f.c.Nudge(1, 0)
	if f.clock.pending() != 1 {
		t.Errorf("pending timers = %d, want 1", f.clock.pending())
	}
}

func TestSave_FailureKeepsDirty(t *testing.T) {
	f := newFixture(t)
	f.loadTemplate(t)
	f.drawRect(t, 0, 0, 10, 10)
	f.store.saveErr = errors.New("disk full")

	err := f.c.Save(context.Background())
	if !errors.Is(err, core.ErrTransport) {
		t.Errorf("Save() error = %v, want ErrTransport", err)
	}
	if !f.c.Dirty() {
		t.Error("a failed save must leave the session dirty")
	}
	if n := f.notes.last(); n.Level != LevelError || n.Message != "Failed to save template" {
		t.Errorf("notification = %+v", n)
	}
	if f.c.Document().Len() != 1 {
		t.Error("a failed save must not touch the document")
	}
}

func TestLoad(t *testing.T) {
	f := newFixture(t)
	f.loadTemplate(t)
	s := f.c.State()
	if s.Name != "Badge" || s.Document.Width != 400 || s.Dirty || s.Template.ID != "tpl-x" {
		t.Errorf("state after load = %+v", s)
	}

	f.drawRect(t, 0, 0, 10, 10)
	if err := f.c.Load(context.Background(), "tpl-x", false); !errors.Is(err, ErrUnsavedChanges) {
		t.Errorf("Load() over unsaved work = %v, want ErrUnsavedChanges", err)
	}
	if err := f.c.Load(context.Background(), "missing", true); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Load(missing) = %v, want ErrNotFound", err)
	}
	if n := f.notes.last(); n.Message != "Template not found" {
		t.Errorf("notification = %+v", n)
	}
	if f.c.Document().Len() != 1 {
		t.Error("failed load must keep the current document")
	}

	f.store.templates["broken"] = &core.Template{ID: "broken", Name: "x", Width: 1, Height: 1, Canvas: "{"}
	if err := f.c.Load(context.Background(), "broken", true); !errors.Is(err, core.ErrValidation) {
		t.Errorf("Load(broken) = %v, want ErrValidation", err)
	}
}

func TestLoad_TemplateWithoutCanvas(t *testing.T) {
	f := newFixture(t)
	f.store.templates["blank"] = &core.Template{ID: "blank", UserID: "user-1", Name: "Badge", Width: 400, Height: 300}
	if err := f.c.Load(context.Background(), "blank", false); err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	s := f.c.State()
	if s.Document.Width != 400 || s.Document.Height != 300 || len(s.Document.Objects) != 0 {
		t.Errorf("document = %vx%v with %d objects", s.Document.Width, s.Document.Height, len(s.Document.Objects))
	}
	if s.Dirty || s.Template == nil || s.Template.ID != "blank" || s.Name != "Badge" {
		t.Errorf("state after load = %+v", s)
	}
}

func TestNew_RequiresForceWhenDirty(t *testing.T) {
	f := newFixture(t)
	f.drawRect(t, 0, 0, 10, 10)
	if err := f.c.New(false); !errors.Is(err, ErrUnsavedChanges) {
		t.Errorf("New(false) = %v, want ErrUnsavedChanges", err)
	}
	if err := f.c.New(true); err != nil {
		t.Fatalf("New(true) failed: %v", err)
	}
	if f.c.Dirty() || f.c.Document().Len() != 0 || f.c.CanUndo() {
		t.Error("New should reset document, history and dirty flag")
	}
}

func TestDeleteTemplate_DetachesLoaded(t *testing.T) {
	f := newFixture(t)
	f.loadTemplate(t)
	if err := f.c.DeleteTemplate(context.Background(), "tpl-x"); err != nil {
		t.Fatalf("DeleteTemplate() failed: %v", err)
	}
	if f.c.Template() != nil || !f.c.Dirty() {
		t.Errorf("deleting the loaded template should leave unsaved work")
	}
	if err := f.c.DeleteTemplate(context.Background(), "tpl-x"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second delete = %v, want ErrNotFound", err)
	}
}

func TestListTemplates(t *testing.T) {
	f := newFixture(t)
	f.loadTemplate(t)
	list, total, err := f.c.ListTemplates(context.Background(), 1, 10)
	if err != nil || total != 1 || len(list) != 1 || list[0].Canvas != "" {
		t.Errorf("ListTemplates() = %v,%d,%v", list, total, err)
	}
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	_ = f.c.SetGrid(Grid{Visible: true, Size: 25, Snap: false})
	art, err := f.c.Export(context.Background(), ExportOptions{Format: export.PNG, Quality: 1, Scale: 2})
	if err != nil {
		t.Fatalf("Export() failed: %v", err)
	}
	req := f.exp.requests[0]
	if req.IncludeGrid || req.Scale != 2 || req.Name != DefaultName {
		t.Errorf("export request = %+v", req)
	}
	if art.Name != DefaultName+".png" {
		t.Errorf("artifact name = %q", art.Name)
	}
	if n := f.notes.last(); n.Message != "PNG exported successfully!" {
		t.Errorf("notification = %+v", n)
	}

	f.exp.err = core.ErrConflictOnExport
	if _, err := f.c.Export(context.Background(), ExportOptions{Format: "tiff"}); !errors.Is(err, core.ErrConflictOnExport) {
		t.Errorf("Export() = %v, want ErrConflictOnExport", err)
	}
	f.exp.err = errors.New("encoder crashed")
	if _, err := f.c.Export(context.Background(), ExportOptions{Format: export.PDF}); !errors.Is(err, core.ErrTransport) {
		t.Errorf("Export() = %v, want ErrTransport", err)
	}
	if n := f.notes.last(); n.Level != LevelError {
		t.Errorf("notification = %+v", n)
	}
}

func TestZoomAndGrid(t *testing.T) {
	f := newFixture(t)
	f.c.SetZoom(10)
	if f.c.Zoom() != MaxZoom {
		t.Errorf("zoom = %v, want %v", f.c.Zoom(), MaxZoom)
	}
	f.c.SetZoom(0.15)
	f.c.ZoomOut()
	f.c.ZoomOut()
	if f.c.Zoom() != MinZoom {
		t.Errorf("zoom = %v, want %v", f.c.Zoom(), MinZoom)
	}
	f.c.ZoomIn()
	if f.c.Zoom() != 0.2 {
		t.Errorf("zoom = %v, want 0.2", f.c.Zoom())
	}
	if f.c.Dirty() {
		t.Error("zoom must not mark the design dirty")
	}
	if err := f.c.SetGrid(Grid{Size: 0}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("SetGrid(0) = %v, want ErrValidation", err)
	}
	if err := f.c.SetGrid(Grid{Visible: true, Size: 1e-6}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("SetGrid(1e-6) = %v, want ErrValidation", err)
	}
	if f.c.State().Grid.Size != DefaultGridSize {
		t.Errorf("rejected grid replaced the current one: %+v", f.c.State().Grid)
	}

	_ = f.c.SetGrid(Grid{Size: 10, Snap: true})
	f.drawRect(t, 12, 14, 38, 41)
	r := f.c.Document().Objects[0].Shape.(*document.Rect)
	if r.Left != 10 || r.Top != 10 || r.Width != 30 || r.Height != 30 {
		t.Errorf("snapped rect = %+v", *r)
	}
}

func TestInsertGalleryShapeAndImage(t *testing.T) {
	f := newFixture(t)
	if err := f.c.InsertGalleryShape("star"); err != nil {
		t.Fatalf("InsertGalleryShape() failed: %v", err)
	}
	o := f.c.Document().Find(f.c.Selection())
	if o == nil || o.Kind() != document.KindPath {
		t.Fatalf("inserted shape = %+v", o)
	}
	if err := f.c.InsertGalleryShape("unicorn"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("InsertGalleryShape(unicorn) = %v, want ErrNotFound", err)
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 1000, 400)))
	url := "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
	if err := f.c.InsertImage(url); err != nil {
		t.Fatalf("InsertImage() failed: %v", err)
	}
	img := f.c.Document().Find(f.c.Selection()).Shape.(*document.Image)
	if img.Width != 400 || img.Height != 160 || img.Left != ImageInsertOffset {
		t.Errorf("image = %+v", *img)
	}
	if err := f.c.InsertImage("data:text/plain;base64,aGk="); !errors.Is(err, core.ErrValidation) {
		t.Errorf("InsertImage(text) = %v, want ErrValidation", err)
	}
	if f.c.history.Len() != 3 {
		t.Errorf("history len = %d, want 3", f.c.history.Len())
	}
}

func TestSetName(t *testing.T) {
	f := newFixture(t)
	if err := f.c.SetName("  "); !errors.Is(err, core.ErrValidation) {
		t.Errorf("SetName(blank) = %v, want ErrValidation", err)
	}
	_ = f.c.SetName("Name tag")
	if !f.c.Dirty() || f.c.State().Name != "Name tag" {
		t.Error("rename should mark dirty")
	}
}
