package main

import (
	"strings"

	"github.com/mattermost/mattermost/server/public/model"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/resolver"
)

// ShareCard is the pre-rendered link metadata a client integration attached
// to the post, distinct from the plain message text.
type ShareCard struct {
	Title string
	Desc  string
	URL   string
}

// shareCardFromPost reads the first text-bearing attachment as a share card.
// Posts without integration attachments have no card.
func shareCardFromPost(post *model.Post) *ShareCard {
	for _, attachment := range post.Attachments() {
		if attachment == nil {
			continue
		}
		card := &ShareCard{
			Title: strings.TrimSpace(attachment.Title),
			Desc:  strings.TrimSpace(attachment.Text),
			URL:   strings.TrimSpace(attachment.TitleLink),
		}
		if card.Desc == "" {
			card.Desc = strings.TrimSpace(attachment.Fallback)
		}
		if card.Title == "" && card.Desc == "" {
			continue
		}
		return card
	}
	return nil
}

// placeholderMarkers identify pages the platform serves in place of removed
// or region-locked content. Their titles describe the takedown, not the media.
var placeholderMarkers = []string{
	"视频去哪了",
	"内容不存在",
	"页面不见了",
	"作品已删除",
	"404",
}

func unavailableTitle(title string) bool {
	if title == "" {
		return true
	}
	for _, marker := range placeholderMarkers {
		if strings.Contains(title, marker) {
			return true
		}
	}
	return false
}

// applyShareCard merges share-card metadata into resolved media under the
// configured precedence policy. Under the default fallback policy the card
// fills fields the live page left empty and replaces the title and
// description when the live page was an unavailable placeholder; under
// prefer the card always wins; under ignore the card is never consulted.
func applyShareCard(media *resolver.Media, card *ShareCard, policy string) {
	if media == nil || card == nil || policy == ShareCardIgnore {
		return
	}

	if policy == ShareCardPrefer {
		if card.Title != "" {
			media.Title = card.Title
		}
		if card.Desc != "" {
			media.Desc = card.Desc
		}
		return
	}

	if card.Title != "" && unavailableTitle(media.Title) {
		media.Title = card.Title
		if card.Desc != "" {
			media.Desc = card.Desc
		}
	}
	if media.Desc == "" {
		media.Desc = card.Desc
	}
}
