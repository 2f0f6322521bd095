package htmlmeta

import (
	"fmt"
	"strconv"
	"strings"
)

// PreviewTextLimit is the rune cap applied to descriptions before rendering.
const PreviewTextLimit = 260

// Truncate caps s at max runes, appending an ellipsis when cut. The cut does
// not respect word boundaries.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// FormatCount renders view and like counters the way the platforms display
// them: hundreds of millions as 亿, tens of thousands as 万, one decimal with
// a trailing .0 suppressed, anything smaller as a plain integer.
func FormatCount(n int64) string {
	switch {
	case n >= 100_000_000:
		return trimZeroDecimal(fmt.Sprintf("%.1f", float64(n)/100_000_000)) + "亿"
	case n >= 10_000:
		return trimZeroDecimal(fmt.Sprintf("%.1f", float64(n)/10_000)) + "万"
	default:
		return strconv.FormatInt(n, 10)
	}
}

func trimZeroDecimal(s string) string {
	return strings.TrimSuffix(s, ".0")
}

// FormatDuration renders a duration in seconds as mm:ss, or h:mm:ss past an
// hour.
func FormatDuration(seconds int64) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := seconds % 3600 / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
