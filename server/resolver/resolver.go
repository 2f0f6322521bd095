// Package resolver turns extracted link targets into rich media metadata by
// calling platform first-party APIs and mining the HTML pages behind short
// links. Each platform implements the same Resolver contract and shares one
// retrying fetch helper.
package resolver

import (
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/extract"
)

// Stat is one labeled counter on a piece of media, value already formatted
// for display.
type Stat struct {
	Label string
	Value string
}

// Media is the resolved preview of one piece of platform content. It lives
// for a single message-processing cycle; only dedup keys derived from it
// outlive the cycle.
type Media struct {
	Platform    string
	Title       string
	Author      string
	AuthorLabel string
	Desc        string
	Detail      string
	CoverURL    string
	SourceURL   string
	IDs         []string
	Images      []string
	Stats       []Stat

	Duration     int64 // seconds, 0 when unknown
	VideoURL     string
	VideoBackups []string

	// Filled when the media file was downloaded. Path is set when a spool
	// directory accepted the write, otherwise Data carries the bytes.
	VideoPath string
	VideoData []byte
	VideoName string

	// Snapshot of the content page, when page archiving is enabled.
	SnapshotName string
	SnapshotData []byte
}

// Resolver resolves one platform's targets. ResolveURL reports transport and
// input-rejection failures as errors; both methods return (nil, nil) when the
// platform answers but the content does not exist.
type Resolver interface {
	Name() string
	Match(t extract.Target) bool
	ResolveURL(rawURL string) (*Media, error)
	ResolveID(idType, id string) (*Media, error)
}

// For returns the first resolver matching the target, or nil.
func For(resolvers []Resolver, t extract.Target) Resolver {
	for _, r := range resolvers {
		if r.Match(t) {
			return r
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
