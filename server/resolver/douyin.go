package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/extract"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/htmlmeta"
)

const (
	douyinShortHost  = "v.douyin.com"
	douyinItemAPI    = "https://www.iesdouyin.com/web/api/v2/aweme/iteminfo/"
	douyinVideoStem  = "https://www.douyin.com/video/"
	douyinWatermark  = "/playwm/"
	douyinPlainVideo = "/play/"
)

var douyinItemIDPattern = regexp.MustCompile(`/video/([0-9]+)`)

// DouyinResolver resolves douyin share links and video URLs through the
// iteminfo API.
type DouyinResolver struct {
	fetcher    *Fetcher
	downloader *Downloader
}

// NewDouyinResolver creates the douyin resolver. downloader may be nil to
// disable media downloads.
func NewDouyinResolver(fetcher *Fetcher, downloader *Downloader) *DouyinResolver {
	return &DouyinResolver{
		fetcher:    fetcher,
		downloader: downloader,
	}
}

// Name implements Resolver.
func (d *DouyinResolver) Name() string {
	return "douyin"
}

// Match implements Resolver.
func (d *DouyinResolver) Match(t extract.Target) bool {
	return t.Kind == extract.KindDouyin
}

// ResolveID implements Resolver. Douyin targets are always URLs.
func (d *DouyinResolver) ResolveID(idType, id string) (*Media, error) {
	return nil, nil
}

// ResolveURL implements Resolver.
func (d *DouyinResolver) ResolveURL(rawURL string) (*Media, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid douyin URL %s", rawURL)
	}

	target := rawURL
	if u.Hostname() == douyinShortHost {
		target, err = d.fetcher.ResolveShortLink(rawURL)
		if err != nil {
			return nil, err
		}
	}

	m := douyinItemIDPattern.FindStringSubmatch(target)
	if m == nil {
		return nil, nil
	}
	return d.resolveItem(m[1])
}

type douyinItemResponse struct {
	StatusCode int          `json:"status_code"`
	ItemList   []douyinItem `json:"item_list"`
}

type douyinItem struct {
	AwemeID string `json:"aweme_id"`
	Desc    string `json:"desc"`
	Author  struct {
		Nickname string `json:"nickname"`
	} `json:"author"`
	Video struct {
		PlayAddr struct {
			URLList []string `json:"url_list"`
		} `json:"play_addr"`
		Cover struct {
			URLList []string `json:"url_list"`
		} `json:"cover"`
		OriginCover struct {
			URLList []string `json:"url_list"`
		} `json:"origin_cover"`
	} `json:"video"`
	Statistics struct {
		PlayCount    int64 `json:"play_count"`
		DiggCount    int64 `json:"digg_count"`
		CommentCount int64 `json:"comment_count"`
		ShareCount   int64 `json:"share_count"`
	} `json:"statistics"`
	Duration int64 `json:"duration"` // milliseconds
}

func (d *DouyinResolver) resolveItem(itemID string) (*Media, error) {
	var resp douyinItemResponse
	if err := d.fetcher.GetJSON(douyinItemAPI+"?item_ids="+itemID, nil, &resp); err != nil {
		return nil, err
	}
	if resp.StatusCode != 0 || len(resp.ItemList) == 0 {
		return nil, nil
	}
	item := resp.ItemList[0]

	media := &Media{
		Platform:    "douyin",
		Title:       item.Desc,
		Author:      item.Author.Nickname,
		AuthorLabel: "作者",
		SourceURL:   douyinVideoStem + itemID,
		IDs:         []string{itemID},
		Duration:    item.Duration / 1000,
	}

	if covers := item.Video.Cover.URLList; len(covers) > 0 {
		media.CoverURL = covers[0]
	} else if covers := item.Video.OriginCover.URLList; len(covers) > 0 {
		media.CoverURL = covers[0]
	}

	plays := item.Video.PlayAddr.URLList
	for i, p := range plays {
		// The play_addr URLs carry a watermark; the plain form is one
		// path segment away.
		plays[i] = strings.Replace(p, douyinWatermark, douyinPlainVideo, 1)
	}
	if len(plays) > 0 {
		media.VideoURL = plays[0]
		media.VideoBackups = plays[1:]
	}

	counters := []struct {
		label string
		value int64
	}{
		{"播放", item.Statistics.PlayCount},
		{"点赞", item.Statistics.DiggCount},
		{"评论", item.Statistics.CommentCount},
		{"转发", item.Statistics.ShareCount},
	}
	for _, c := range counters {
		if c.value > 0 {
			media.Stats = append(media.Stats, Stat{Label: c.label, Value: htmlmeta.FormatCount(c.value)})
		}
	}

	if d.downloader != nil && d.downloader.WithinLimit(media.Duration) && media.VideoURL != "" {
		urls := append([]string{media.VideoURL}, media.VideoBackups...)
		if dl, err := d.downloader.Download(urls, nil, "mp4"); err == nil {
			media.VideoPath = dl.Path
			media.VideoData = dl.Data
			media.VideoName = dl.Name
		}
	}
	return media, nil
}
