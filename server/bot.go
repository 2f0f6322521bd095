package main

import (
	"os"
	"path/filepath"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
	"github.com/pkg/errors"
)

const (
	// BotUsername is the username the preview replies are posted under
	BotUsername = "media-preview"
	// BotDisplayName is the display name for the preview bot
	BotDisplayName = "Media Preview"
	// BotDescription is the description for the preview bot
	BotDescription = "Expands bilibili, xiaohongshu and douyin links into rich previews"
)

// BotService owns the bot account the plugin posts previews as.
type BotService struct {
	api   plugin.API
	botID string
}

// NewBotService creates a new bot service
func NewBotService(api plugin.API) *BotService {
	return &BotService{api: api}
}

// EnsureBotExists looks up the preview bot account, creating it on first
// activation and refreshing its profile when the plugin's bot metadata
// changed across an upgrade.
func (b *BotService) EnsureBotExists() error {
	user, appErr := b.api.GetUserByUsername(BotUsername)
	if appErr != nil || user == nil {
		created, err := b.createBot()
		if err != nil {
			return err
		}
		user = created
	}
	b.botID = user.Id

	if user.Nickname != BotDisplayName || user.Position != BotDescription {
		user.Nickname = BotDisplayName
		user.FirstName = BotDisplayName
		user.Position = BotDescription
		if _, appErr := b.api.UpdateUser(user); appErr != nil {
			b.api.LogWarn("Failed to refresh bot profile", "error", appErr.Error())
		}
	}

	if err := b.setBotProfileImage(); err != nil {
		b.api.LogWarn("Failed to set bot profile image", "error", err.Error())
	}

	return nil
}

func (b *BotService) createBot() (*model.User, error) {
	user, appErr := b.api.CreateUser(&model.User{
		Username:            BotUsername,
		FirstName:           BotDisplayName,
		Email:               BotUsername + "@localhost",
		Password:            model.NewId(),
		Nickname:            BotDisplayName,
		Position:            BotDescription,
		Roles:               model.SystemUserRoleId,
		Locale:              "zh-CN",
		DisableWelcomeEmail: true,
	})
	if appErr != nil {
		return nil, errors.Wrap(appErr, "failed to create bot user")
	}
	return user, nil
}

// setBotProfileImage reads the bundled icon and applies it to the bot account.
func (b *BotService) setBotProfileImage() error {
	bundlePath, err := b.api.GetBundlePath()
	if err != nil {
		return errors.Wrap(err, "failed to get bundle path")
	}

	iconData, err := os.ReadFile(filepath.Join(bundlePath, "assets", "icon.png"))
	if err != nil {
		return errors.Wrap(err, "failed to read icon file")
	}

	if appErr := b.api.SetProfileImage(b.botID, iconData); appErr != nil {
		return errors.Wrap(appErr, "failed to set profile image")
	}

	return nil
}

// GetBotID returns the bot user ID
func (b *BotService) GetBotID() string {
	return b.botID
}
