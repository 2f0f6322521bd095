// Package forward renders resolved media into the ordered message segments
// the reply layer posts. Rendering is deterministic: cover, labeled text
// block, extra images, video, direct link. Fields the resolver could not
// fill simply have no line.
package forward

import (
	"strings"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/htmlmeta"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/resolver"
)

// SegmentType discriminates what a segment carries.
type SegmentType string

const (
	SegmentText  SegmentType = "text"
	SegmentImage SegmentType = "image"
	SegmentVideo SegmentType = "video"
	SegmentFile  SegmentType = "file"
)

// Segment is one piece of an outgoing preview.
type Segment struct {
	Type SegmentType
	Text string
	URL  string
	Path string
	Data []byte
	Name string
}

// Message is an ordered segment list attributed to the user whose post
// triggered the preview.
type Message struct {
	UserID   string
	UserName string
	Segments []Segment
}

// Render builds the preview messages for one resolved media. A media with
// nothing to show renders to nil.
func Render(media *resolver.Media, userID, userName string) []Message {
	if media == nil {
		return nil
	}

	var segments []Segment
	if media.CoverURL != "" {
		segments = append(segments, Segment{Type: SegmentImage, URL: media.CoverURL})
	}
	if text := infoText(media); text != "" {
		segments = append(segments, Segment{Type: SegmentText, Text: text})
	}
	for _, img := range extraImages(media) {
		segments = append(segments, Segment{Type: SegmentImage, URL: img})
	}
	if media.VideoPath != "" || len(media.VideoData) > 0 {
		segments = append(segments, Segment{
			Type: SegmentVideo,
			URL:  media.VideoURL,
			Path: media.VideoPath,
			Data: media.VideoData,
			Name: media.VideoName,
		})
	} else if media.VideoURL != "" {
		segments = append(segments, Segment{Type: SegmentText, Text: "视频直链：" + media.VideoURL})
	}
	if len(media.SnapshotData) > 0 {
		segments = append(segments, Segment{
			Type: SegmentFile,
			Data: media.SnapshotData,
			Name: media.SnapshotName,
		})
	}

	if len(segments) == 0 {
		return nil
	}
	return []Message{{UserID: userID, UserName: userName, Segments: segments}}
}

// infoText assembles the labeled text block: title, identifiers, author,
// detail, truncated description, stats, canonical link.
func infoText(media *resolver.Media) string {
	var lines []string
	if media.Title != "" {
		lines = append(lines, "标题："+media.Title)
	}
	if len(media.IDs) > 0 {
		lines = append(lines, strings.Join(media.IDs, " · "))
	}
	if media.Author != "" {
		label := media.AuthorLabel
		if label == "" {
			label = "作者"
		}
		lines = append(lines, label+"："+media.Author)
	}
	if media.Detail != "" {
		lines = append(lines, media.Detail)
	}
	if media.Desc != "" {
		lines = append(lines, "简介："+htmlmeta.Truncate(media.Desc, htmlmeta.PreviewTextLimit))
	}
	if len(media.Stats) > 0 {
		parts := make([]string, 0, len(media.Stats))
		for _, s := range media.Stats {
			parts = append(parts, s.Label+" "+s.Value)
		}
		lines = append(lines, "数据："+strings.Join(parts, " · "))
	}
	if media.SourceURL != "" {
		lines = append(lines, "链接："+media.SourceURL)
	}
	return strings.Join(lines, "\n")
}

// extraImages returns the media images minus the cover, comparing on the
// transform-stripped form so a resized cover variant is not repeated.
func extraImages(media *resolver.Media) []string {
	coverKey := htmlmeta.StripImageTransform(media.CoverURL)
	var out []string
	for _, img := range media.Images {
		if media.CoverURL != "" && htmlmeta.StripImageTransform(img) == coverKey {
			continue
		}
		out = append(out, img)
	}
	return out
}
