package main

import (
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/dedupe"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/extract"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/forward"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/resolver"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/safeurl"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/store/kvstore"
)

// PreviewProcessor orchestrates the preview workflow: extract targets from a
// post, resolve each against its platform, render the result and reply in the
// post's thread.
type PreviewProcessor struct {
	api          plugin.API
	fetcher      *resolver.Fetcher
	snapshotter  *resolver.Snapshotter
	parsedCache  *dedupe.Cache
	eventCache   *dedupe.Cache
	kvstore      kvstore.KVStore
	replyService *PreviewReplyService
	metrics      *Metrics
	spoolDirs    func(*configuration) []string
}

// NewPreviewProcessor creates a new preview processor.
func NewPreviewProcessor(
	api plugin.API,
	fetcher *resolver.Fetcher,
	parsedCache *dedupe.Cache,
	eventCache *dedupe.Cache,
	kv kvstore.KVStore,
	replyService *PreviewReplyService,
	metrics *Metrics,
	spoolDirs func(*configuration) []string,
) *PreviewProcessor {
	return &PreviewProcessor{
		api:          api,
		fetcher:      fetcher,
		snapshotter:  resolver.NewSnapshotter(0),
		parsedCache:  parsedCache,
		eventCache:   eventCache,
		kvstore:      kv,
		replyService: replyService,
		metrics:      metrics,
		spoolDirs:    spoolDirs,
	}
}

// buildResolvers assembles the resolver set for the current configuration.
// Resolvers are cheap stateless wrappers around the shared fetcher, so they
// are rebuilt per post rather than kept in sync with configuration changes.
func (p *PreviewProcessor) buildResolvers(config *configuration) []resolver.Resolver {
	var downloader *resolver.Downloader
	if config.EnableVideoDownload {
		downloader = resolver.NewDownloader(p.fetcher, p.spoolDirs(config), int64(config.MaxVideoDurationSeconds))
	}

	var resolvers []resolver.Resolver
	if config.EnableBilibili {
		resolvers = append(resolvers, resolver.NewBilibiliResolver(p.fetcher, downloader))
	}
	if config.EnableXiaohongshu {
		resolvers = append(resolvers, resolver.NewXiaohongshuResolver(p.fetcher, downloader))
	}
	if config.EnableDouyin {
		resolvers = append(resolvers, resolver.NewDouyinResolver(p.fetcher, downloader))
	}
	return resolvers
}

// ProcessPost scans one post for platform links and identifiers and replies
// with a preview for each new piece of media. Per-target failures are logged
// and skipped; the returned error covers only conditions that abort the whole
// post.
func (p *PreviewProcessor) ProcessPost(post *model.Post, config *configuration) error {
	if post == nil || post.Id == "" {
		return nil
	}

	disabled, err := p.kvstore.IsChannelDisabled(post.ChannelId)
	if err != nil {
		p.api.LogWarn("Failed to read channel preview state, assuming enabled", "channelID", post.ChannelId, "error", err.Error())
	} else if disabled {
		p.api.LogDebug("Previews disabled in channel, skipping post", "channelID", post.ChannelId, "postID", post.Id)
		return nil
	}

	// The same post event can be delivered more than once. One short-lived
	// cache entry per post ID keeps replays from double-posting previews.
	if p.eventCache.CheckAndMark([]string{"event:" + post.Id}, time.Now()) {
		p.api.LogDebug("Post event already handled, skipping", "postID", post.Id)
		return nil
	}

	p.metrics.ObservePost()

	text := extract.CollectText(post.Message, attachmentValues(post), propsPayload(post))
	targets := extract.Targets(text)
	if len(targets) == 0 {
		return nil
	}
	p.metrics.ObserveTargets(len(targets))
	targets = extract.Dedupe(targets)

	resolvers := p.buildResolvers(config)
	card := shareCardFromPost(post)
	seen := dedupe.NewSeenSet()
	userName := p.authorName(post)

	for _, target := range targets {
		r := resolver.For(resolvers, target)
		if r == nil {
			p.api.LogDebug("No enabled resolver for target", "kind", string(target.Kind), "postID", post.Id)
			continue
		}

		normalized := ""
		if target.URL != "" {
			normalized, err = safeurl.Normalize(target.URL)
			if err != nil {
				p.api.LogWarn("Rejected link", "url", target.URL, "error", err.Error())
				continue
			}
		}

		if p.parsedCache.CheckAndMark(targetAliasKeys(r.Name(), target, normalized), time.Now()) {
			p.api.LogDebug("Media previewed recently, skipping", "platform", r.Name(), "postID", post.Id)
			p.metrics.ObserveDuplicate()
			continue
		}

		started := time.Now()
		var media *resolver.Media
		if normalized != "" {
			media, err = r.ResolveURL(normalized)
		} else {
			media, err = r.ResolveID(target.IDType, target.ID)
		}
		if err != nil {
			p.api.LogWarn("Failed to resolve media", "platform", r.Name(), "url", target.URL, "error", err.Error())
			p.metrics.ObserveFailure(r.Name())
			continue
		}
		if media == nil {
			p.api.LogDebug("No preview available", "platform", r.Name(), "url", target.URL)
			continue
		}
		p.metrics.ObserveResolved(r.Name(), time.Since(started))

		applyShareCard(media, card, config.ShareCardPolicy)

		// Resolution may surface identifiers and a canonical URL the target
		// string never contained. Marking them links every alias of this
		// media to the same suppression entry.
		p.parsedCache.Mark(mediaAliasKeys(r.Name(), media), time.Now())

		if canonical := safeurl.CanonicalKey(media.SourceURL); canonical != "" && seen.CheckAndAdd(canonical) {
			p.api.LogDebug("Duplicate media within post, skipping", "platform", r.Name(), "postID", post.Id)
			p.metrics.ObserveDuplicate()
			continue
		}

		if config.EnablePageSnapshot && media.SourceURL != "" {
			name, data, snapErr := p.snapshotter.Snapshot(media.SourceURL)
			if snapErr != nil {
				p.api.LogDebug("Page snapshot failed", "url", media.SourceURL, "error", snapErr.Error())
			} else {
				media.SnapshotName = name
				media.SnapshotData = data
			}
		}

		for _, message := range forward.Render(media, post.UserId, userName) {
			if replyErr := p.replyService.Reply(post, message); replyErr != nil {
				p.api.LogError("Failed to post preview reply", "platform", r.Name(), "postID", post.Id, "error", replyErr.Error())
			}
		}
	}

	return nil
}

// authorName resolves the posting user's name for the rendered message. A
// lookup failure degrades to an empty name rather than blocking the preview.
func (p *PreviewProcessor) authorName(post *model.Post) string {
	user, appErr := p.api.GetUser(post.UserId)
	if appErr != nil || user == nil {
		return ""
	}
	return user.Username
}

// attachmentValues exposes the text-bearing fields of the post's attachments
// to the extractor as one value per attachment.
func attachmentValues(post *model.Post) []any {
	var values []any
	for _, attachment := range post.Attachments() {
		if attachment == nil {
			continue
		}
		values = append(values, map[string]any{
			"pretext":    attachment.Pretext,
			"title":      attachment.Title,
			"title_link": attachment.TitleLink,
			"text":       attachment.Text,
			"footer":     attachment.Footer,
		})
	}
	return values
}

// propsPayload exposes the raw post props tree to the extractor's bounded
// walk. Client integrations stash share payloads in props under keys no
// schema anticipates, so the whole tree is offered.
func propsPayload(post *model.Post) any {
	props := post.GetProps()
	if len(props) == 0 {
		return nil
	}
	return map[string]any(props)
}

// targetAliasKeys builds the suppression keys knowable before resolution.
func targetAliasKeys(platform string, target extract.Target, normalized string) []string {
	if normalized != "" {
		return []string{platform + ":url:" + safeurl.CanonicalKey(normalized)}
	}
	id := target.ID
	if target.IDType == "av" {
		id = "av" + id
	}
	return []string{platform + ":id:" + id}
}

// mediaAliasKeys builds the suppression keys knowable after resolution.
func mediaAliasKeys(platform string, media *resolver.Media) []string {
	keys := make([]string, 0, len(media.IDs)+1)
	for _, id := range media.IDs {
		keys = append(keys, platform+":id:"+id)
	}
	if canonical := safeurl.CanonicalKey(media.SourceURL); canonical != "" {
		keys = append(keys, platform+":url:"+canonical)
	}
	return keys
}
