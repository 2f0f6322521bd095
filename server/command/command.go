package command

import (
	"fmt"
	"strings"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/pluginapi"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/store/kvstore"
)

type Handler struct {
	client *pluginapi.Client
	kv     kvstore.KVStore
}

type Command interface {
	Handle(args *model.CommandArgs) (*model.CommandResponse, error)
}

const mediaPreviewTrigger = "mediapreview"

// Register all your slash commands in the NewCommandHandler function. It is
// later registered in the plugin's OnActivate hook.
func NewCommandHandler(client *pluginapi.Client, kv kvstore.KVStore) Command {
	err := client.SlashCommand.Register(&model.Command{
		Trigger:          mediaPreviewTrigger,
		AutoComplete:     true,
		AutoCompleteDesc: "Control media previews in this channel",
		AutoCompleteHint: "[status|enable|disable]",
		AutocompleteData: mediaPreviewAutocomplete(),
	})
	if err != nil {
		client.Log.Error("Failed to register command", "error", err)
	}

	return &Handler{
		client: client,
		kv:     kv,
	}
}

func mediaPreviewAutocomplete() *model.AutocompleteData {
	command := model.NewAutocompleteData(mediaPreviewTrigger, "[subcommand]", "Control media previews in this channel")
	command.AddCommand(model.NewAutocompleteData("status", "", "Show whether previews are enabled in this channel"))
	command.AddCommand(model.NewAutocompleteData("enable", "", "Enable media previews in this channel"))
	command.AddCommand(model.NewAutocompleteData("disable", "", "Disable media previews in this channel"))
	return command
}

// Handle routes the registered slash commands to their handlers.
func (c *Handler) Handle(args *model.CommandArgs) (*model.CommandResponse, error) {
	trigger := strings.TrimPrefix(strings.Fields(args.Command)[0], "/")
	switch trigger {
	case mediaPreviewTrigger:
		return c.executeMediaPreviewCommand(args), nil
	default:
		return &model.CommandResponse{
			ResponseType: model.CommandResponseTypeEphemeral,
			Text:         fmt.Sprintf("Unknown command: %s", args.Command),
		}, nil
	}
}

func (c *Handler) executeMediaPreviewCommand(args *model.CommandArgs) *model.CommandResponse {
	fields := strings.Fields(args.Command)
	subcommand := "status"
	if len(fields) > 1 {
		subcommand = fields[1]
	}

	switch subcommand {
	case "status":
		disabled, err := c.kv.IsChannelDisabled(args.ChannelId)
		if err != nil {
			c.client.Log.Warn("Failed to read channel preview state", "channelID", args.ChannelId, "error", err.Error())
			return ephemeral("Could not read the preview state for this channel.")
		}
		if disabled {
			return ephemeral("Media previews are currently **disabled** in this channel.")
		}
		return ephemeral("Media previews are currently **enabled** in this channel.")
	case "enable":
		if err := c.kv.SetChannelDisabled(args.ChannelId, false); err != nil {
			c.client.Log.Warn("Failed to enable previews", "channelID", args.ChannelId, "error", err.Error())
			return ephemeral("Could not enable previews for this channel.")
		}
		return ephemeral("Media previews enabled in this channel.")
	case "disable":
		if err := c.kv.SetChannelDisabled(args.ChannelId, true); err != nil {
			c.client.Log.Warn("Failed to disable previews", "channelID", args.ChannelId, "error", err.Error())
			return ephemeral("Could not disable previews for this channel.")
		}
		return ephemeral("Media previews disabled in this channel.")
	default:
		return ephemeral(fmt.Sprintf("Unknown subcommand: %s. Use status, enable or disable.", subcommand))
	}
}

func ephemeral(text string) *model.CommandResponse {
	return &model.CommandResponse{
		ResponseType: model.CommandResponseTypeEphemeral,
		Text:         text,
	}
}
