package htmlmeta

import (
	"encoding/json"
	"regexp"
	"strings"
)

// PageMeta is the generic metadata mined from a document. Absent fields stay
// empty; a page with no recognizable markers yields a zero PageMeta, never an
// error.
type PageMeta struct {
	Title       string
	Description string
	Image       string
	Images      []string
}

var (
	titlePattern  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	jsonLDPattern = regexp.MustCompile(`(?is)<script[^>]+type=["']application/ld\+json["'][^>]*>(.*?)</script>`)
)

// Extract runs the tag-level stages in priority order: og meta tags, the
// plain description meta tag, the title tag, then JSON-LD. Later stages only
// fill fields the earlier ones left empty.
func Extract(html string) PageMeta {
	meta := PageMeta{
		Title:       MetaContent(html, "og:title"),
		Description: MetaContent(html, "og:description"),
		Image:       AbsoluteURL(MetaContent(html, "og:image")),
	}
	if meta.Description == "" {
		meta.Description = MetaContent(html, "description")
	}
	if meta.Title == "" {
		meta.Title = TitleTag(html)
	}

	if ld, ok := ExtractJSONLD(html); ok {
		if meta.Title == "" {
			meta.Title = ld.Title
		}
		if meta.Description == "" {
			meta.Description = ld.Description
		}
		meta.Images = ld.Images
		if meta.Image == "" && len(ld.Images) > 0 {
			meta.Image = ld.Images[0]
		}
	}
	return meta
}

// MetaContent returns the decoded content attribute of the first meta tag
// whose property or name attribute equals key. Both attribute orders occur in
// the wild.
func MetaContent(html, key string) string {
	quoted := regexp.QuoteMeta(key)
	re := regexp.MustCompile(`(?is)<meta[^>]+(?:property|name)=["']` + quoted + `["'][^>]*content=["']([^"']*)["']`)
	m := re.FindStringSubmatch(html)
	if m == nil {
		re = regexp.MustCompile(`(?is)<meta[^>]+content=["']([^"']*)["'][^>]+(?:property|name)=["']` + quoted + `["']`)
		m = re.FindStringSubmatch(html)
	}
	if m == nil {
		return ""
	}
	return strings.TrimSpace(DecodeEntities(m[1]))
}

// TitleTag returns the decoded text of the document title tag.
func TitleTag(html string) string {
	m := titlePattern.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(DecodeEntities(m[1]))
}

// JSONLD holds the fields mined from a structured-data block.
type JSONLD struct {
	Title       string
	Description string
	Images      []string
}

// ExtractJSONLD decodes every ld+json script block and returns the first
// object carrying a headline, name, description, articleBody or image,
// recursing through @graph collections.
func ExtractJSONLD(html string) (JSONLD, bool) {
	for _, m := range jsonLDPattern.FindAllStringSubmatch(html, -1) {
		var doc any
		if err := json.Unmarshal([]byte(strings.TrimSpace(m[1])), &doc); err != nil {
			continue
		}
		if ld, ok := mineJSONLD(doc); ok {
			return ld, true
		}
	}
	return JSONLD{}, false
}

func mineJSONLD(doc any) (JSONLD, bool) {
	switch v := doc.(type) {
	case []any:
		for _, item := range v {
			if ld, ok := mineJSONLD(item); ok {
				return ld, true
			}
		}
	case map[string]any:
		ld := JSONLD{
			Title:       firstString(v, "headline", "name"),
			Description: firstString(v, "description", "articleBody"),
			Images:      imageRefs(v["image"]),
		}
		if ld.Title != "" || ld.Description != "" || len(ld.Images) > 0 {
			return ld, true
		}
		if graph, ok := v["@graph"]; ok {
			return mineJSONLD(graph)
		}
	}
	return JSONLD{}, false
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok {
			if trimmed := strings.TrimSpace(s); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}

// imageRefs accepts the image shapes seen in the wild: a bare string, a list,
// or an ImageObject map with a url field.
func imageRefs(v any) []string {
	var out []string
	switch img := v.(type) {
	case string:
		if u := AbsoluteURL(img); u != "" {
			out = append(out, u)
		}
	case []any:
		for _, item := range img {
			out = append(out, imageRefs(item)...)
		}
	case map[string]any:
		if s, ok := img["url"].(string); ok {
			if u := AbsoluteURL(s); u != "" {
				out = append(out, u)
			}
		}
	}
	return out
}

// AbsoluteURL upgrades protocol-relative references to https and keeps
// absolute http/https ones. Anything else yields "".
func AbsoluteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	}
	return ""
}
