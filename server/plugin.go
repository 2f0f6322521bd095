package main

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/mattermost/mattermost/server/public/pluginapi/cluster"
	"github.com/pkg/errors"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/command"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/dedupe"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/resolver"
	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/store/kvstore"
)

// eventDedupWindow suppresses replays of the same post event. Mattermost can
// deliver MessageHasBeenPosted more than once for one post in HA setups.
const eventDedupWindow = time.Minute

// Plugin implements the interface expected by the Mattermost server to communicate between the server and plugin processes.
type Plugin struct {
	plugin.MattermostPlugin

	// kvstore is the client used to read/write KV records for this plugin.
	kvstore kvstore.KVStore

	// client is the Mattermost server API client.
	client *pluginapi.Client

	// commandClient is the client used to register and execute slash commands.
	commandClient command.Command

	backgroundJob *cluster.Job

	// configurationLock synchronizes access to the configuration.
	configurationLock sync.RWMutex

	// configuration is the active plugin configuration. Consult getConfiguration and
	// setConfiguration for usage.
	configuration *configuration

	// botService manages the preview bot account
	botService *BotService

	// previewProcessor turns posted links into preview replies
	previewProcessor *PreviewProcessor

	// parsedCache suppresses repeat previews of one piece of media, eventCache
	// suppresses repeat deliveries of one post event.
	parsedCache *dedupe.Cache
	eventCache  *dedupe.Cache

	// metrics counts pipeline activity for the /metrics endpoint
	metrics *Metrics
}

// OnActivate is invoked when the plugin is activated. If an error is returned, the plugin will be deactivated.
func (p *Plugin) OnActivate() error {
	p.client = pluginapi.NewClient(p.API, p.Driver)

	p.kvstore = kvstore.NewKVStore(p.client)

	p.commandClient = command.NewCommandHandler(p.client, p.kvstore)

	p.metrics = NewMetrics()

	// Initialize bot service and ensure bot exists
	p.botService = NewBotService(p.API)
	if err := p.botService.EnsureBotExists(); err != nil {
		return errors.Wrap(err, "failed to ensure bot account exists")
	}

	config := p.getConfiguration()
	p.parsedCache = dedupe.NewCache(config.dedupWindow())
	p.eventCache = dedupe.NewCache(eventDedupWindow)

	replyService := NewPreviewReplyService(p.API, p.botService.GetBotID())
	p.previewProcessor = NewPreviewProcessor(
		p.API,
		resolver.NewFetcher(),
		p.parsedCache,
		p.eventCache,
		p.kvstore,
		replyService,
		p.metrics,
		p.spoolDirs,
	)

	job, err := cluster.Schedule(
		p.API,
		"BackgroundJob",
		cluster.MakeWaitForRoundedInterval(1*time.Hour),
		p.runJob,
	)
	if err != nil {
		return errors.Wrap(err, "failed to schedule background job")
	}

	p.backgroundJob = job

	return nil
}

// OnDeactivate is invoked when the plugin is deactivated.
func (p *Plugin) OnDeactivate() error {
	if p.backgroundJob != nil {
		if err := p.backgroundJob.Close(); err != nil {
			p.API.LogError("Failed to close background job", "err", err)
		}
	}
	if p.parsedCache != nil {
		p.parsedCache.Close()
	}
	if p.eventCache != nil {
		p.eventCache.Close()
	}
	return nil
}

// runJob periodically reports cache occupancy. The caches sweep themselves;
// this job only makes their size visible in the server log.
func (p *Plugin) runJob() {
	p.API.LogInfo("Media preview cache report",
		"parsedEntries", p.parsedCache.Size(),
		"eventEntries", p.eventCache.Size(),
	)
}

// spoolDirs lists candidate directories for downloaded media, most preferred
// first. The configured directory wins, then the plugin data directory, then
// the system temp directory.
func (p *Plugin) spoolDirs(config *configuration) []string {
	var dirs []string
	if config.VideoSpoolDir != "" {
		dirs = append(dirs, config.VideoSpoolDir)
	}
	if bundlePath, err := p.API.GetBundlePath(); err == nil {
		dirs = append(dirs, filepath.Join(bundlePath, "data", "media"))
	}
	return append(dirs, filepath.Join(os.TempDir(), "mattermost-media-preview"))
}

// This will execute the commands that were registered in the NewCommandHandler function.
func (p *Plugin) ExecuteCommand(c *plugin.Context, args *model.CommandArgs) (*model.CommandResponse, *model.AppError) {
	response, err := p.commandClient.Handle(args)
	if err != nil {
		return nil, model.NewAppError("ExecuteCommand", "plugin.command.execute_command.app_error", nil, err.Error(), http.StatusInternalServerError)
	}
	return response, nil
}

// MessageHasBeenPosted is invoked when a message has been posted by a user.
// This hook is called after the message has been committed to the database.
func (p *Plugin) MessageHasBeenPosted(c *plugin.Context, post *model.Post) {
	// Ignore messages from the bot itself to prevent infinite loops
	if p.botService != nil && post.UserId == p.botService.GetBotID() {
		return
	}

	// Get current configuration
	config := p.getConfiguration()

	// Process the post for previews (async, non-blocking)
	go func() {
		if err := p.previewProcessor.ProcessPost(post, config); err != nil {
			p.API.LogError("Failed to process post for media previews", "postID", post.Id, "error", err.Error())
		}
	}()
}

// See https://developers.mattermost.com/extend/plugins/server/reference/
