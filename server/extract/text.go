package extract

import (
	"regexp"
	"sort"
	"strings"
)

const (
	// maxPayloadDepth bounds the walk into the raw vendor payload.
	maxPayloadDepth = 4
	// maxSegmentDepth bounds the walk into individual segment values.
	maxSegmentDepth = 2
	// maxCandidates caps collected strings so an adversarial payload cannot
	// make the walk unbounded. Hitting the cap stops collection silently.
	maxCandidates = 80
)

// linkHintPattern is a cheap relevance gate: a string with no hint cannot
// produce a target, so it is not worth carrying into the scan.
var linkHintPattern = regexp.MustCompile(`(?i)https?:|b23\.tv|xhslink|bilibili|xiaohongshu|douyin|\bbv[0-9a-z]{10}\b|\bav[0-9]+\b`)

// CollectText gathers every plausible text source of a post: the top-level
// message, flat segment values, and a bounded depth-first walk of the raw
// vendor payload. Only strings passing the link-hint check are kept,
// deduplicated, and joined with spaces.
func CollectText(message string, segments []any, payload any) string {
	c := &collector{seen: make(map[string]struct{})}
	c.add(message)
	for _, seg := range segments {
		if c.full() {
			break
		}
		walkValue(seg, maxSegmentDepth, c)
	}
	walkValue(payload, maxPayloadDepth, c)
	return strings.Join(c.parts, " ")
}

type collector struct {
	parts []string
	seen  map[string]struct{}
}

func (c *collector) full() bool {
	return len(c.parts) >= maxCandidates
}

func (c *collector) add(s string) {
	if c.full() {
		return
	}
	s = strings.TrimSpace(s)
	if s == "" || !linkHintPattern.MatchString(s) {
		return
	}
	if _, dup := c.seen[s]; dup {
		return
	}
	c.seen[s] = struct{}{}
	c.parts = append(c.parts, s)
}

// walkValue descends through the generic value tree (string, list, map),
// spending one level of depth per container. Map keys are visited in sorted
// order so the collected text is deterministic.
func walkValue(v any, depth int, c *collector) {
	if depth < 0 || c.full() {
		return
	}
	switch val := v.(type) {
	case string:
		c.add(val)
	case []any:
		for _, item := range val {
			if c.full() {
				return
			}
			walkValue(item, depth-1, c)
		}
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if c.full() {
				return
			}
			walkValue(val[k], depth-1, c)
		}
	}
}
