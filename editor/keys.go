package editor

import (
	"strings"

	"tag-designer/tool"
)

// Key is a keyboard event. Meta is treated like Ctrl.
type Key struct {
	Key   string `json:"key" mapstructure:"key"`
	Ctrl  bool   `json:"ctrl" mapstructure:"ctrl"`
	Shift bool   `json:"shift" mapstructure:"shift"`
	Meta  bool   `json:"meta" mapstructure:"meta"`
}

// HandleKey runs the shortcut bound to k. It reports whether the key was
// bound; keys are ignored while text is being edited.
func (c *Controller) HandleKey(k Key) (bool, error) {
	if c.machine.State() == tool.TextEditing {
		return false, nil
	}
	ctrl := k.Ctrl || k.Meta
	key := strings.ToLower(k.Key)

	if ctrl {
		switch key {
		case "z":
			if k.Shift {
				return true, c.Redo()
			}
			return true, c.Undo()
		case "y":
			return true, c.Redo()
		case "d":
			if c.selection == "" {
				return false, nil
			}
			return true, c.DuplicateSelected()
		case "s":
			c.RequestSave()
			return true, nil
		}
		return false, nil
	}

	if t, ok := tool.ParseTool(key); ok && len(key) == 1 {
		return true, c.SelectTool(t)
	}

	if c.selection == "" {
		return false, nil
	}
	step := 1.0
	if k.Shift {
		step = 10
	}
	switch k.Key {
	case "Delete", "Backspace":
		return true, c.DeleteSelected()
	case "ArrowUp":
		return true, c.Nudge(0, -step)
	case "ArrowDown":
		return true, c.Nudge(0, step)
	case "ArrowLeft":
		return true, c.Nudge(-step, 0)
	case "ArrowRight":
		return true, c.Nudge(step, 0)
	}
	return false, nil
}
