// Package extract discovers platform link targets in message text and in the
// nested vendor payloads that ride along with a post.
package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/htmlmeta"
)

// Kind discriminates the supported target platforms.
type Kind string

const (
	// KindXiaohongshu is a xiaohongshu note or short link URL.
	KindXiaohongshu Kind = "xhs"
	// KindBilibili is a bilibili video or short link URL.
	KindBilibili Kind = "bili"
	// KindBilibiliID is a bare bilibili identifier (BV or av form).
	KindBilibiliID Kind = "bili-id"
	// KindDouyin is a douyin video, share or short link URL.
	KindDouyin Kind = "douyin"
)

// Target is one candidate reference found in a message: either a URL or a
// bare platform identifier. Targets are short-lived, one batch per message.
type Target struct {
	Kind   Kind
	URL    string
	IDType string
	ID     string
}

// MaxTargets caps how many targets one message may produce after dedup.
const MaxTargets = 5

// urlTail matches the remainder of a URL once the platform prefix anchored
// it, stopping at whitespace, quoting and CJK closing punctuation.
const urlTail = `[^\s<>"'` + "`" + `\\），。；：！？）】」]*`

type urlPattern struct {
	kind Kind
	re   *regexp.Regexp
}

var urlPatterns = []urlPattern{
	{KindBilibili, regexp.MustCompile(`https?://(?:www\.|m\.)?bilibili\.com/video/[0-9A-Za-z]+` + urlTail)},
	{KindBilibili, regexp.MustCompile(`https?://b23\.tv/[0-9A-Za-z]+`)},
	{KindXiaohongshu, regexp.MustCompile(`https?://(?:www\.)?xiaohongshu\.com/(?:explore|discovery/item)/[0-9A-Za-z]+` + urlTail)},
	{KindXiaohongshu, regexp.MustCompile(`https?://xhslink\.com/[0-9A-Za-z/]+`)},
	{KindDouyin, regexp.MustCompile(`https?://v\.douyin\.com/[0-9A-Za-z_-]+/?`)},
	{KindDouyin, regexp.MustCompile(`https?://(?:www\.)?douyin\.com/video/[0-9]+`)},
	{KindDouyin, regexp.MustCompile(`https?://(?:www\.)?iesdouyin\.com/share/video/[0-9]+` + urlTail)},
}

var (
	bvPattern = regexp.MustCompile(`\b[Bb][Vv][0-9A-Za-z]{10}\b`)
	avPattern = regexp.MustCompile(`\b[Aa][Vv]([0-9]+)\b`)
)

type located struct {
	pos    int
	target Target
}

// Targets scans decoded text for platform URLs and bare identifiers. The
// patterns run independently, so one blob may yield targets of several
// kinds, and a video URL also yields its embedded BV identifier. Matches are
// returned in order of first appearance and are not deduplicated here.
func Targets(text string) []Target {
	text = htmlmeta.DecodeEntities(text)

	var found []located
	for _, p := range urlPatterns {
		for _, idx := range p.re.FindAllStringIndex(text, -1) {
			raw := sanitizeURL(text[idx[0]:idx[1]])
			if raw == "" {
				continue
			}
			found = append(found, located{pos: idx[0], target: Target{Kind: p.kind, URL: raw}})
		}
	}
	for _, idx := range bvPattern.FindAllStringIndex(text, -1) {
		id := "BV" + text[idx[0]+2:idx[1]]
		found = append(found, located{pos: idx[0], target: Target{Kind: KindBilibiliID, IDType: "bv", ID: id}})
	}
	for _, idx := range avPattern.FindAllStringSubmatchIndex(text, -1) {
		id := text[idx[2]:idx[3]]
		found = append(found, located{pos: idx[0], target: Target{Kind: KindBilibiliID, IDType: "av", ID: id}})
	}

	sort.SliceStable(found, func(i, j int) bool { return found[i].pos < found[j].pos })

	out := make([]Target, 0, len(found))
	for _, f := range found {
		out = append(out, f.target)
	}
	return out
}

// sanitizeURL strips the trailing punctuation a URL picks up from being
// embedded in prose or serialized JSON.
func sanitizeURL(raw string) string {
	return strings.TrimRight(raw, `.,;:!?)"'`+"`")
}

// Dedupe collapses repeated targets (same kind and URL, or same kind and
// identifier), preserving first occurrence, and truncates the batch to
// MaxTargets. It does not cross-reference kinds; a URL and a bare identifier
// naming the same video both survive and collapse later on their canonical
// key.
func Dedupe(targets []Target) []Target {
	seen := make(map[string]struct{}, len(targets))
	out := make([]Target, 0, len(targets))
	for _, t := range targets {
		key := t.dedupeKey()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
		if len(out) == MaxTargets {
			break
		}
	}
	return out
}

// Short codes and BV identifiers are case-sensitive, so URL keys compare
// exactly; only later canonicalization may fold equivalent forms.
func (t Target) dedupeKey() string {
	if t.URL != "" {
		return string(t.Kind) + "|" + t.URL
	}
	return string(t.Kind) + "|" + t.IDType + "|" + t.ID
}
