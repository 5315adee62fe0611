package export

import (
	"strconv"
	"strings"

	"github.com/gogpu/gg"
	"golang.org/x/image/colornames"
)

// parseColor understands the CSS colour forms the editor produces: hex,
// rgb(), rgba() and the CSS colour names. ok is false for an absent or
// transparent paint, which is then skipped.
func parseColor(s string) (c gg.RGBA, ok bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "", "none", "transparent":
		return gg.RGBA{}, false
	}
	if named, ok := colornames.Map[s]; ok {
		return gg.FromColor(named), true
	}
	if strings.HasPrefix(s, "#") {
		switch len(s) {
		case 4, 5, 7, 9:
			return gg.Hex(s), true
		}
		return gg.RGBA{}, false
	}

	var args string
	switch {
	case strings.HasPrefix(s, "rgba(") && strings.HasSuffix(s, ")"):
		args = s[5 : len(s)-1]
	case strings.HasPrefix(s, "rgb(") && strings.HasSuffix(s, ")"):
		args = s[4 : len(s)-1]
	default:
		return gg.RGBA{}, false
	}
	parts := strings.Split(args, ",")
	if len(parts) != 3 && len(parts) != 4 {
		return gg.RGBA{}, false
	}
	v := [4]float64{0, 0, 0, 1}
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return gg.RGBA{}, false
		}
		if i < 3 {
			f /= 255
		}
		v[i] = clamp01(f)
	}
	if v[3] == 0 {
		return gg.RGBA{}, false
	}
	return gg.RGBA2(v[0], v[1], v[2], v[3]), true
}

func clamp01(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
