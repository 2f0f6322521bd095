package htmlmeta

import (
	"regexp"
	"strings"
)

var (
	absoluteURLPattern      = regexp.MustCompile(`https?://[^\s"'<>\\)]+`)
	protocolRelativePattern = regexp.MustCompile(`//[a-zA-Z0-9][a-zA-Z0-9.-]*\.[a-zA-Z]{2,}/[^\s"'<>\\)]+`)
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".webp", ".gif", ".avif", ".heic"}

// imageCDNHosts are hosts whose URLs are images even without a file
// extension in the path.
var imageCDNHosts = []string{"xhscdn.com", "hdslb.com", "douyinpic.com", "pstatp.com"}

// assetPathMarkers exclude script, stylesheet and icon assets the sweep would
// otherwise pick up.
var assetPathMarkers = []string{".js", ".css", ".svg", "/static/js/", "/resource/"}

// videoExtensions keep streams off the image list even when they sit on a
// known image CDN host.
var videoExtensions = []string{".mp4", ".flv", ".mov", ".webm", ".m3u8"}

// SweepImageURLs is the last-resort harvest: scan the raw document for URL
// shapes, including protocol-relative and backslash-escaped forms, keeping
// the ones that look like content images. Results are deduped by
// transform-stripped key and returned in document order with their display
// form intact.
func SweepImageURLs(html string) []string {
	// Decode escaped forms first so / and \/ URLs surface as plain text.
	decoded := UnescapeUnicode(html)

	var out []string
	seen := make(map[string]struct{})
	collect := func(raw string) {
		u := AbsoluteURL(strings.TrimRight(raw, ".,;:"))
		if u == "" || !imageLikely(u) {
			return
		}
		key := StripImageTransform(u)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, u)
	}

	for _, m := range absoluteURLPattern.FindAllString(decoded, -1) {
		collect(m)
	}
	for _, m := range protocolRelativePattern.FindAllString(decoded, -1) {
		collect(m)
	}
	return out
}

func imageLikely(u string) bool {
	lower := strings.ToLower(u)
	for _, marker := range assetPathMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}

	path := lower
	if i := strings.Index(path, "?"); i >= 0 {
		path = path[:i]
	}
	if i := strings.Index(path, "!"); i >= 0 {
		path = path[:i]
	}
	for _, ext := range videoExtensions {
		if strings.HasSuffix(path, ext) {
			return false
		}
	}
	for _, ext := range imageExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	for _, host := range imageCDNHosts {
		if strings.Contains(lower, host) {
			return true
		}
	}
	return false
}

// StripImageTransform drops a trailing !suffix CDN transform from the last
// path segment. Size and format variants of one source image then share a
// dedup key while the display URL keeps its transform.
func StripImageTransform(u string) string {
	slash := strings.LastIndex(u, "/")
	if bang := strings.LastIndex(u, "!"); slash >= 0 && bang > slash {
		return u[:bang]
	}
	return u
}
