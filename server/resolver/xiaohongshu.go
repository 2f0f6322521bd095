package resolver

import (
	"encoding/json"
	"net/url"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/extract"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/htmlmeta"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/safeurl"
)

const (
	xhsShortHost    = "xhslink.com"
	xhsShareInfoAPI = "https://www.xiaohongshu.com/fe_api/burdock/weixin/v2/shareInfo"
	// xhsFallbackTitle stands in when a page yields no usable markers at
	// all, so the preview still reads as a note.
	xhsFallbackTitle = "小红书笔记"
)

// XiaohongshuResolver resolves xiaohongshu note pages and xhslink short
// links. Notes have no public JSON API, so metadata is mined from the page
// in layers: meta tags, the embedded app state, then a raw image sweep.
type XiaohongshuResolver struct {
	fetcher    *Fetcher
	downloader *Downloader
}

// NewXiaohongshuResolver creates the xiaohongshu resolver. downloader may be
// nil to disable media downloads.
func NewXiaohongshuResolver(fetcher *Fetcher, downloader *Downloader) *XiaohongshuResolver {
	return &XiaohongshuResolver{
		fetcher:    fetcher,
		downloader: downloader,
	}
}

// Name implements Resolver.
func (x *XiaohongshuResolver) Name() string {
	return "xiaohongshu"
}

// Match implements Resolver.
func (x *XiaohongshuResolver) Match(t extract.Target) bool {
	return t.Kind == extract.KindXiaohongshu
}

// ResolveID implements Resolver. Xiaohongshu targets are always URLs.
func (x *XiaohongshuResolver) ResolveID(idType, id string) (*Media, error) {
	return nil, nil
}

// ResolveURL implements Resolver.
func (x *XiaohongshuResolver) ResolveURL(rawURL string) (*Media, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid xiaohongshu URL %s", rawURL)
	}

	target := rawURL
	if u.Hostname() == xhsShortHost {
		target, err = x.fetcher.ResolveShortLink(rawURL)
		if err != nil {
			return nil, err
		}
	}

	result, err := x.fetcher.Get(target, nil)
	if err != nil {
		return nil, err
	}

	source := target
	if result.FinalURL != target {
		if n, err := safeurl.Normalize(result.FinalURL); err == nil {
			source = n
		}
	}

	html := string(result.Body)
	meta := htmlmeta.Extract(html)
	note := mineXhsNote(html)

	media := &Media{
		Platform:    "xiaohongshu",
		Title:       firstNonEmpty(note.title, meta.Title),
		Author:      note.author,
		AuthorLabel: "作者",
		Desc:        firstNonEmpty(note.desc, meta.Description),
		SourceURL:   source,
		Duration:    note.videoDuration,
		VideoURL:    note.videoURL,
		Stats:       note.stats,
	}

	if id := firstNonEmpty(note.id, noteIDFromPath(source)); id != "" {
		media.IDs = []string{id}
	}

	media.Images = collectXhsImages(html, note.images)
	media.CoverURL = meta.Image
	if media.CoverURL == "" && len(media.Images) > 0 {
		media.CoverURL = media.Images[0]
	}

	if media.Title == "" || media.Desc == "" {
		x.enrichShareInfo(media)
	}
	if media.Title == "" {
		media.Title = xhsFallbackTitle
	}

	if x.downloader != nil && x.downloader.WithinLimit(media.Duration) && media.VideoURL != "" {
		if dl, err := x.downloader.Download([]string{media.VideoURL}, nil, "mp4"); err == nil {
			media.VideoPath = dl.Path
			media.VideoData = dl.Data
			media.VideoName = dl.Name
		}
	}
	return media, nil
}

type xhsShareInfoResponse struct {
	Result  int  `json:"result"`
	Success bool `json:"success"`
	Data    *struct {
		Title   string `json:"title"`
		Content string `json:"content"`
		Desc    string `json:"desc"`
		Image   string `json:"image"`
	} `json:"data"`
}

// enrichShareInfo fills missing fields from the weixin share endpoint, which
// takes the note URL itself as a query parameter. Failures leave the media
// as is.
func (x *XiaohongshuResolver) enrichShareInfo(media *Media) {
	var info xhsShareInfoResponse
	endpoint := xhsShareInfoAPI + "?link=" + url.QueryEscape(media.SourceURL)
	if err := x.fetcher.GetJSON(endpoint, nil, &info); err != nil {
		return
	}
	if info.Data == nil {
		return
	}

	if media.Title == "" {
		media.Title = info.Data.Title
	}
	if media.Desc == "" {
		media.Desc = firstNonEmpty(info.Data.Content, info.Data.Desc)
	}
	if media.CoverURL == "" {
		media.CoverURL = htmlmeta.AbsoluteURL(info.Data.Image)
	}
}

// xhsNote carries whatever the embedded app state yielded. Zero values mean
// the page did not expose that field.
type xhsNote struct {
	id            string
	title         string
	desc          string
	author        string
	images        []string
	stats         []Stat
	videoURL      string
	videoDuration int64
}

// mineXhsNote digs the note object out of the inline script state. The note
// is located either directly behind a "noteData": marker or anywhere inside
// the window.__INITIAL_STATE__ blob; both paths tolerate the bare
// `undefined` tokens the server serializes into the state.
func mineXhsNote(html string) xhsNote {
	var note xhsNote

	obj := xhsNoteObject(html)
	if obj == nil {
		return note
	}

	note.id = asString(obj["noteId"])
	note.title = asString(obj["title"])
	note.desc = asString(obj["desc"])
	if user := asMap(obj["user"]); user != nil {
		note.author = firstNonEmpty(asString(user["nickname"]), asString(user["name"]))
	}
	for _, entry := range asSlice(obj["imageList"]) {
		if u := imageEntryURL(entry); u != "" {
			note.images = append(note.images, u)
		}
	}
	if video := asMap(obj["video"]); video != nil {
		note.videoURL = htmlmeta.AbsoluteURL(asString(video["url"]))
		note.videoDuration = asInt64(video["duration"])
	}
	if interact := asMap(obj["interactInfo"]); interact != nil {
		counters := []struct {
			label string
			value any
		}{
			{"点赞", interact["likedCount"]},
			{"收藏", interact["collectedCount"]},
			{"评论", interact["commentCount"]},
		}
		for _, c := range counters {
			if v := statValue(c.value); v != "" && v != "0" {
				note.stats = append(note.stats, Stat{Label: c.label, Value: v})
			}
		}
	}
	return note
}

// xhsNoteObject returns the decoded note map, or nil.
func xhsNoteObject(html string) map[string]any {
	if blob, ok := htmlmeta.ScanJSONAfterMarker(html, `"noteData":`); ok {
		if m := decodeXhsObject(blob); m != nil {
			if data := asMap(m["data"]); data != nil {
				return data
			}
			return m
		}
	}

	if blob, ok := htmlmeta.ScanJSONAfterMarker(html, "window.__INITIAL_STATE__"); ok {
		if m := decodeXhsObject(blob); m != nil {
			if note := findNoteObject(m, 8); note != nil {
				return note
			}
		}
	}
	return nil
}

func decodeXhsObject(blob string) map[string]any {
	var m map[string]any
	if err := json.Unmarshal([]byte(htmlmeta.SanitizeJSTokens(blob)), &m); err != nil {
		return nil
	}
	return m
}

// findNoteObject walks the state tree for the first map that looks like a
// note: it carries a noteId, or a title next to an imageList. Map keys are
// visited in sorted order so the walk is deterministic.
func findNoteObject(v any, depth int) map[string]any {
	if depth < 0 {
		return nil
	}
	switch val := v.(type) {
	case map[string]any:
		if asString(val["noteId"]) != "" {
			return val
		}
		if _, hasImages := val["imageList"]; hasImages && asString(val["title"]) != "" {
			return val
		}
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if note := findNoteObject(val[k], depth-1); note != nil {
				return note
			}
		}
	case []any:
		for _, child := range val {
			if note := findNoteObject(child, depth-1); note != nil {
				return note
			}
		}
	}
	return nil
}

// collectXhsImages merges state images, any standalone "imageList": block
// and the raw sweep, deduplicating on the transform-stripped form while
// keeping the original URL for display.
func collectXhsImages(html string, stateImages []string) []string {
	candidates := append([]string{}, stateImages...)

	if blob, ok := htmlmeta.ScanJSONAfterMarker(html, `"imageList":`); ok {
		var entries []any
		if err := json.Unmarshal([]byte(htmlmeta.SanitizeJSTokens(blob)), &entries); err == nil {
			for _, entry := range entries {
				if u := imageEntryURL(entry); u != "" {
					candidates = append(candidates, u)
				}
			}
		}
	}

	candidates = append(candidates, htmlmeta.SweepImageURLs(html)...)

	seen := make(map[string]struct{}, len(candidates))
	var images []string
	for _, c := range candidates {
		key := htmlmeta.StripImageTransform(c)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		images = append(images, c)
	}
	return images
}

// imageEntryURL reads one imageList element, which is either a bare URL
// string or an object naming the URL under urlDefault or url.
func imageEntryURL(entry any) string {
	switch v := entry.(type) {
	case string:
		return htmlmeta.AbsoluteURL(v)
	case map[string]any:
		return htmlmeta.AbsoluteURL(firstNonEmpty(asString(v["urlDefault"]), asString(v["url"])))
	}
	return ""
}

func noteIDFromPath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	segs := strings.Split(strings.Trim(u.Path, "/"), "/")
	last := segs[len(segs)-1]
	if last == "" || !strings.Contains(u.Path, "explore") && !strings.Contains(u.Path, "discovery") {
		return ""
	}
	return last
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

func asInt64(v any) int64 {
	f, _ := v.(float64)
	return int64(f)
}

// statValue renders one counter. The page serves them pre-formatted as
// strings; numbers are formatted the same way the other platforms are.
func statValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case float64:
		return htmlmeta.FormatCount(int64(val))
	}
	return ""
}
