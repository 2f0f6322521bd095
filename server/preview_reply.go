package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/pkg/errors"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/forward"
)

// PreviewReplyService posts rendered previews as bot replies in the source
// post's thread.
type PreviewReplyService struct {
	api   plugin.API
	botID string
}

// NewPreviewReplyService creates a new preview reply service.
func NewPreviewReplyService(api plugin.API, botID string) *PreviewReplyService {
	return &PreviewReplyService{
		api:   api,
		botID: botID,
	}
}

// Reply maps one rendered message onto a Mattermost post: text segments
// become markdown blocks, image segments become markdown image lines, video
// and snapshot segments are uploaded and attached as files.
func (t *PreviewReplyService) Reply(post *model.Post, message forward.Message) error {
	// If the post is already a reply (has RootId), use that. Otherwise, use the post ID itself.
	rootID := post.Id
	if post.RootId != "" {
		rootID = post.RootId
	}

	var blocks []string
	var fileIDs []string

	for _, segment := range message.Segments {
		switch segment.Type {
		case forward.SegmentText:
			if segment.Text != "" {
				blocks = append(blocks, segment.Text)
			}
		case forward.SegmentImage:
			if segment.URL != "" {
				blocks = append(blocks, fmt.Sprintf("![preview](%s)", segment.URL))
			}
		case forward.SegmentVideo:
			fileID, err := t.uploadVideo(post.ChannelId, segment)
			if err != nil {
				t.api.LogWarn("Failed to upload video, falling back to direct link", "name", segment.Name, "error", err.Error())
				if segment.URL != "" {
					blocks = append(blocks, "视频直链："+segment.URL)
				}
				continue
			}
			fileIDs = append(fileIDs, fileID)
		case forward.SegmentFile:
			if len(segment.Data) == 0 {
				continue
			}
			info, appErr := t.api.UploadFile(segment.Data, post.ChannelId, segment.Name)
			if appErr != nil {
				t.api.LogWarn("Failed to upload page snapshot", "name", segment.Name, "error", appErr.Error())
				continue
			}
			fileIDs = append(fileIDs, info.Id)
		}
	}

	if len(blocks) == 0 && len(fileIDs) == 0 {
		return nil
	}

	replyPost := &model.Post{
		UserId:    t.botID,
		ChannelId: post.ChannelId,
		RootId:    rootID,
		Message:   strings.Join(blocks, "\n\n"),
		FileIds:   fileIDs,
		CreateAt:  model.GetMillis(),
	}

	if _, appErr := t.api.CreatePost(replyPost); appErr != nil {
		return errors.Wrap(appErr, "failed to create preview reply")
	}

	return nil
}

// uploadVideo attaches the downloaded media, reading it back from the spool
// file when the download landed on disk instead of in memory.
func (t *PreviewReplyService) uploadVideo(channelID string, segment forward.Segment) (string, error) {
	data := segment.Data
	if len(data) == 0 {
		if segment.Path == "" {
			return "", errors.New("video segment has no data")
		}
		spooled, err := os.ReadFile(segment.Path)
		if err != nil {
			return "", errors.Wrap(err, "failed to read spooled video")
		}
		data = spooled
	}

	info, appErr := t.api.UploadFile(data, channelID, segment.Name)
	if appErr != nil {
		return "", errors.Wrap(appErr, "failed to upload video")
	}

	if segment.Path != "" {
		// The spool file has served its purpose once the upload exists.
		if err := os.Remove(segment.Path); err != nil {
			t.api.LogDebug("Failed to remove spooled video", "path", segment.Path, "error", err.Error())
		}
	}

	return info.Id, nil
}
