package resolver

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/go-shiori/obelisk"
	"github.com/pkg/errors"
)

const (
	// SnapshotTimeout bounds one page capture including subresources.
	SnapshotTimeout = 60 * time.Second
	// snapshotMaxSize caps the archived page (20MB). Content pages are
	// image-heavy but a preview attachment should stay shippable.
	snapshotMaxSize = 20 * 1024 * 1024
)

// Snapshotter captures a content page as a single self-contained HTML file,
// so a preview still has the page after the platform takes it down.
type Snapshotter struct {
	timeout time.Duration
}

// NewSnapshotter creates a snapshotter.
func NewSnapshotter(timeout time.Duration) *Snapshotter {
	if timeout == 0 {
		timeout = SnapshotTimeout
	}
	return &Snapshotter{timeout: timeout}
}

// Snapshot archives the page at rawURL with all subresources inlined and
// returns a filename and the HTML bytes.
func (s *Snapshotter) Snapshot(rawURL string) (string, []byte, error) {
	archiver := &obelisk.Archiver{
		RequestTimeout:        s.timeout,
		MaxConcurrentDownload: 5,
		UserAgent:             desktopUserAgent,
		SkipResourceURLError:  true,
	}
	archiver.Validate()

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	data, _, err := archiver.Archive(ctx, obelisk.Request{URL: rawURL})
	if err != nil {
		return "", nil, errors.Wrapf(err, "failed to snapshot %s", rawURL)
	}
	if len(data) == 0 {
		return "", nil, errors.New("snapshot came back empty")
	}
	if len(data) > snapshotMaxSize {
		return "", nil, errors.Errorf("snapshot size %d exceeds limit %d", len(data), snapshotMaxSize)
	}

	return snapshotName(rawURL), data, nil
}

// snapshotName derives a filename from the page URL, falling back to the
// host when the path has no usable segment.
func snapshotName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "page.html"
	}

	name := ""
	if segs := strings.Split(strings.Trim(u.Path, "/"), "/"); len(segs) > 0 {
		name = segs[len(segs)-1]
	}
	if name == "" {
		name = strings.ReplaceAll(u.Hostname(), ".", "_")
	}
	if name == "" {
		name = "page"
	}
	return name + ".html"
}
