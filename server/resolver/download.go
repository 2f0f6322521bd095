package resolver

import (
	"bytes"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/safeurl"
)

// DefaultMaxVideoSeconds is the duration ceiling above which a video is
// linked instead of downloaded.
const DefaultMaxVideoSeconds = 600

// DownloadResult is a fetched media file. Path is set when a spool directory
// accepted the write; otherwise Data holds the bytes for direct upload.
type DownloadResult struct {
	Path string
	Name string
	Data []byte
}

// Downloader fetches direct media URLs into memory and spools them to the
// first writable directory from an ordered candidate list.
type Downloader struct {
	fetcher     *Fetcher
	dirs        []string
	maxDuration int64
}

// NewDownloader creates a downloader. maxDuration below or equal zero falls
// back to DefaultMaxVideoSeconds.
func NewDownloader(fetcher *Fetcher, dirs []string, maxDuration int64) *Downloader {
	if maxDuration <= 0 {
		maxDuration = DefaultMaxVideoSeconds
	}
	return &Downloader{
		fetcher:     fetcher,
		dirs:        dirs,
		maxDuration: maxDuration,
	}
}

// WithinLimit reports whether a video of the given duration should be
// downloaded. Unknown durations are not.
func (d *Downloader) WithinLimit(seconds int64) bool {
	return seconds > 0 && seconds < d.maxDuration
}

// Download tries each URL in order until one fetch succeeds, names the file
// with a fresh UUID and the inferred extension, and writes it to the first
// candidate directory that accepts it. With no writable directory the bytes
// are returned in memory.
func (d *Downloader) Download(urls []string, header map[string]string, formatHint string) (*DownloadResult, error) {
	var lastErr error
	for _, u := range urls {
		if u == "" {
			continue
		}
		if err := safeurl.CheckPublicURL(u); err != nil {
			lastErr = err
			continue
		}
		result, err := d.fetcher.Get(u, header)
		if err != nil {
			lastErr = err
			continue
		}

		name := uuid.NewString() + inferExtension(result, u, formatHint)
		if p, ok := d.spool(name, result.Body); ok {
			return &DownloadResult{Path: p, Name: name}, nil
		}
		return &DownloadResult{Name: name, Data: result.Body}, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no media URL to download")
	}
	return nil, lastErr
}

// spool writes data under the first directory that accepts it.
func (d *Downloader) spool(name string, data []byte) (string, bool) {
	for _, dir := range d.dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			continue
		}
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, data, 0o644); err != nil {
			continue
		}
		return p, true
	}
	return "", false
}

// mediaExtensions bounds what a URL path may contribute; arbitrary trailing
// segments ("/1234567", "/play") must not become extensions.
var mediaExtensions = map[string]struct{}{
	".mp4": {}, ".flv": {}, ".mkv": {}, ".webm": {}, ".mov": {}, ".m4v": {}, ".avi": {},
	".jpg": {}, ".jpeg": {}, ".png": {}, ".webp": {}, ".gif": {},
}

var mimeExtensions = map[string]string{
	"video/mp4":        ".mp4",
	"video/x-flv":      ".flv",
	"video/x-matroska": ".mkv",
	"video/webm":       ".webm",
	"video/quicktime":  ".mov",
	"image/jpeg":       ".jpg",
	"image/png":        ".png",
	"image/webp":       ".webp",
	"image/gif":        ".gif",
}

// inferExtension picks the file extension from, in order: the
// Content-Disposition filename, the URL path, the response MIME type, magic
// bytes, and finally the caller's format hint.
func inferExtension(result *FetchResult, rawURL, formatHint string) string {
	if cd := result.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			if ext := knownExtension(filepath.Ext(params["filename"])); ext != "" {
				return ext
			}
		}
	}

	if u, err := url.Parse(rawURL); err == nil {
		if ext := knownExtension(path.Ext(u.Path)); ext != "" {
			return ext
		}
	}

	if ct := result.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil {
			if ext, ok := mimeExtensions[mt]; ok {
				return ext
			}
		}
	}

	if ext := sniffExtension(result.Body); ext != "" {
		return ext
	}

	if formatHint != "" {
		return "." + strings.TrimPrefix(strings.ToLower(formatHint), ".")
	}
	return ".bin"
}

func knownExtension(ext string) string {
	ext = strings.ToLower(ext)
	if _, ok := mediaExtensions[ext]; ok {
		return ext
	}
	return ""
}

var ebmlHeader = []byte{0x1A, 0x45, 0xDF, 0xA3}

// sniffExtension recognizes the common video container signatures: an MP4
// ftyp box, the FLV header, and the EBML header shared by mkv and webm.
func sniffExtension(data []byte) string {
	if len(data) >= 12 && bytes.Equal(data[4:8], []byte("ftyp")) {
		return ".mp4"
	}
	if bytes.HasPrefix(data, []byte("FLV")) {
		return ".flv"
	}
	if bytes.HasPrefix(data, ebmlHeader) {
		head := data
		if len(head) > 4096 {
			head = head[:4096]
		}
		if bytes.Contains(head, []byte("webm")) {
			return ".webm"
		}
		return ".mkv"
	}
	return ""
}
