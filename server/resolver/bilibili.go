package resolver

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"

	"github.com/pkg/errors"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/extract"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/htmlmeta"
)

const (
	bilibiliViewAPI    = "https://api.bilibili.com/x/web-interface/view"
	bilibiliPlayAPI    = "https://api.bilibili.com/x/player/playurl"
	bilibiliShortHost  = "b23.tv"
	bilibiliReferer    = "https://www.bilibili.com"
	bilibiliVideoStem  = "https://www.bilibili.com/video/"
	bilibiliPlayFormat = "mp4"
)

var (
	bilibiliBVPath = regexp.MustCompile(`/video/([Bb][Vv][0-9A-Za-z]{10})`)
	bilibiliAVPath = regexp.MustCompile(`/video/[Aa][Vv]([0-9]+)`)
)

// BilibiliResolver resolves bilibili video URLs, b23.tv short links and bare
// BV/av identifiers through the web-interface view API.
type BilibiliResolver struct {
	fetcher    *Fetcher
	downloader *Downloader
}

// NewBilibiliResolver creates the bilibili resolver. downloader may be nil
// to disable media downloads.
func NewBilibiliResolver(fetcher *Fetcher, downloader *Downloader) *BilibiliResolver {
	return &BilibiliResolver{
		fetcher:    fetcher,
		downloader: downloader,
	}
}

// Name implements Resolver.
func (b *BilibiliResolver) Name() string {
	return "bilibili"
}

// Match implements Resolver.
func (b *BilibiliResolver) Match(t extract.Target) bool {
	return t.Kind == extract.KindBilibili || t.Kind == extract.KindBilibiliID
}

// ResolveURL implements Resolver. Short links are followed to the video page
// first; the video identifier is then read from the final URL path.
func (b *BilibiliResolver) ResolveURL(rawURL string) (*Media, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid bilibili URL %s", rawURL)
	}

	target := rawURL
	if u.Hostname() == bilibiliShortHost {
		target, err = b.fetcher.ResolveShortLink(rawURL)
		if err != nil {
			return nil, err
		}
	}

	if m := bilibiliBVPath.FindStringSubmatch(target); m != nil {
		return b.resolveVideo("bvid=" + "BV" + m[1][2:])
	}
	if m := bilibiliAVPath.FindStringSubmatch(target); m != nil {
		return b.resolveVideo("aid=" + m[1])
	}
	return nil, nil
}

// ResolveID implements Resolver.
func (b *BilibiliResolver) ResolveID(idType, id string) (*Media, error) {
	switch idType {
	case "bv":
		return b.resolveVideo("bvid=" + id)
	case "av":
		return b.resolveVideo("aid=" + id)
	default:
		return nil, errors.Errorf("unknown bilibili id type %q", idType)
	}
}

type bilibiliViewResponse struct {
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Data    *bilibiliViewData `json:"data"`
}

type bilibiliViewData struct {
	BVID     string `json:"bvid"`
	AID      int64  `json:"aid"`
	CID      int64  `json:"cid"`
	Title    string `json:"title"`
	Desc     string `json:"desc"`
	Pic      string `json:"pic"`
	Duration int64  `json:"duration"`
	Tname    string `json:"tname"`
	Owner    struct {
		Name string `json:"name"`
	} `json:"owner"`
	Stat struct {
		View     int64 `json:"view"`
		Danmaku  int64 `json:"danmaku"`
		Like     int64 `json:"like"`
		Coin     int64 `json:"coin"`
		Favorite int64 `json:"favorite"`
		Share    int64 `json:"share"`
	} `json:"stat"`
}

type bilibiliPlayResponse struct {
	Code int `json:"code"`
	Data *struct {
		Durl []struct {
			URL       string   `json:"url"`
			BackupURL []string `json:"backup_url"`
		} `json:"durl"`
	} `json:"data"`
}

func (b *BilibiliResolver) resolveVideo(query string) (*Media, error) {
	var view bilibiliViewResponse
	header := map[string]string{"Referer": bilibiliReferer}
	if err := b.fetcher.GetJSON(bilibiliViewAPI+"?"+query, header, &view); err != nil {
		return nil, err
	}
	if view.Code != 0 || view.Data == nil {
		return nil, nil
	}
	data := view.Data

	media := &Media{
		Platform:    "bilibili",
		Title:       data.Title,
		Author:      data.Owner.Name,
		AuthorLabel: "UP主",
		Desc:        data.Desc,
		CoverURL:    data.Pic,
		Duration:    data.Duration,
	}

	if data.BVID != "" {
		media.IDs = append(media.IDs, data.BVID)
		media.SourceURL = bilibiliVideoStem + data.BVID
	}
	if data.AID > 0 {
		media.IDs = append(media.IDs, "av"+strconv.FormatInt(data.AID, 10))
		if media.SourceURL == "" {
			media.SourceURL = bilibiliVideoStem + "av" + strconv.FormatInt(data.AID, 10)
		}
	}

	if data.Duration > 0 {
		media.Detail = "时长 " + htmlmeta.FormatDuration(data.Duration)
		if data.Tname != "" {
			media.Detail += " · 分区 " + data.Tname
		}
	} else if data.Tname != "" {
		media.Detail = "分区 " + data.Tname
	}

	media.Stats = bilibiliStats(data)

	// Best effort beyond here. The preview stands without a play URL.
	b.enrichPlayURL(media, data)
	if b.downloader != nil && b.downloader.WithinLimit(media.Duration) && media.VideoURL != "" {
		urls := append([]string{media.VideoURL}, media.VideoBackups...)
		if dl, err := b.downloader.Download(urls, header, bilibiliPlayFormat); err == nil {
			media.VideoPath = dl.Path
			media.VideoData = dl.Data
			media.VideoName = dl.Name
		}
	}
	return media, nil
}

func bilibiliStats(data *bilibiliViewData) []Stat {
	counters := []struct {
		label string
		value int64
	}{
		{"播放", data.Stat.View},
		{"点赞", data.Stat.Like},
		{"投币", data.Stat.Coin},
		{"收藏", data.Stat.Favorite},
		{"转发", data.Stat.Share},
		{"弹幕", data.Stat.Danmaku},
	}

	var stats []Stat
	for _, c := range counters {
		if c.value > 0 {
			stats = append(stats, Stat{Label: c.label, Value: htmlmeta.FormatCount(c.value)})
		}
	}
	return stats
}

// enrichPlayURL fetches a direct play URL for the video. Failures leave the
// media as is.
func (b *BilibiliResolver) enrichPlayURL(media *Media, data *bilibiliViewData) {
	if data.BVID == "" || data.CID == 0 {
		return
	}

	query := fmt.Sprintf("bvid=%s&cid=%d&qn=16&platform=html5", data.BVID, data.CID)
	var play bilibiliPlayResponse
	if err := b.fetcher.GetJSON(bilibiliPlayAPI+"?"+query, map[string]string{"Referer": bilibiliReferer}, &play); err != nil {
		return
	}
	if play.Code != 0 || play.Data == nil || len(play.Data.Durl) == 0 {
		return
	}

	media.VideoURL = play.Data.Durl[0].URL
	media.VideoBackups = play.Data.Durl[0].BackupURL
}
