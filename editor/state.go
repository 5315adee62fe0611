package editor

import (
	"tag-designer/core"
	"tag-designer/document"
	"tag-designer/tool"
)

// State is a serializable view of the session for clients.
type State struct {
	Document    *document.Document `json:"document"`
	Tool        tool.Tool          `json:"tool"`
	Mode        tool.State         `json:"state"`
	Selection   string             `json:"selection,omitempty"`
	Editing     string             `json:"editing,omitempty"`
	Zoom        float64            `json:"zoom"`
	Grid        Grid               `json:"grid"`
	Dirty       bool               `json:"dirty"`
	Saving      bool               `json:"saving"`
	CanUndo     bool               `json:"canUndo"`
	CanRedo     bool               `json:"canRedo"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Template    *core.Template     `json:"template,omitempty"`
}

// State returns a snapshot that stays valid after further edits.
func (c *Controller) State() State {
	var tpl *core.Template
	if c.template != nil {
		t := *c.template
		tpl = &t
	}
	return State{
		Document:    c.doc.Clone(),
		Tool:        c.machine.Tool(),
		Mode:        c.machine.State(),
		Selection:   c.selection,
		Editing:     c.machine.Editing(),
		Zoom:        c.zoom,
		Grid:        c.grid,
		Dirty:       c.Dirty(),
		Saving:      c.saving,
		CanUndo:     c.history.CanUndo(),
		CanRedo:     c.history.CanRedo(),
		Name:        c.name,
		Description: c.description,
		Template:    tpl,
	}
}
