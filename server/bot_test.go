package main

import (
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupBotService(t *testing.T) (*plugintest.API, *BotService) {
	t.Helper()

	api := &plugintest.API{}
	for i := 1; i <= 21; i += 2 {
		args := make([]interface{}, i)
		for j := range args {
			args[j] = mock.Anything
		}
		api.On("LogWarn", args...).Maybe()
	}

	return api, NewBotService(api)
}

func TestEnsureBotCreatesAccount(t *testing.T) {
	api, bot := setupBotService(t)

	api.On("GetUserByUsername", BotUsername).
		Return(nil, model.NewAppError("GetUserByUsername", "app.user.missing_account.const", nil, "", http.StatusNotFound))

	var created *model.User
	api.On("CreateUser", mock.AnythingOfType("*model.User")).
		Run(func(args mock.Arguments) {
			created = args.Get(0).(*model.User)
		}).
		Return(&model.User{
			Id:       "bot1",
			Username: BotUsername,
			Nickname: BotDisplayName,
			Position: BotDescription,
		}, nil)
	api.On("GetBundlePath").Return(t.TempDir(), nil)

	require.NoError(t, bot.EnsureBotExists())

	assert.Equal(t, "bot1", bot.GetBotID())
	require.NotNil(t, created)
	assert.Equal(t, model.SystemUserRoleId, created.Roles)
	assert.NotEmpty(t, created.Password)
	assert.True(t, created.DisableWelcomeEmail)
	api.AssertNotCalled(t, "UpdateUser", mock.Anything)
}

func TestEnsureBotRefreshesStaleProfile(t *testing.T) {
	api, bot := setupBotService(t)

	api.On("GetUserByUsername", BotUsername).Return(&model.User{
		Id:       "bot1",
		Username: BotUsername,
		Nickname: "Link Preview",
		Position: "Old description",
	}, nil)

	var updated *model.User
	api.On("UpdateUser", mock.AnythingOfType("*model.User")).
		Run(func(args mock.Arguments) {
			updated = args.Get(0).(*model.User)
		}).
		Return(&model.User{Id: "bot1"}, nil)
	api.On("GetBundlePath").Return(t.TempDir(), nil)

	require.NoError(t, bot.EnsureBotExists())

	require.NotNil(t, updated)
	assert.Equal(t, BotDisplayName, updated.Nickname)
	assert.Equal(t, BotDescription, updated.Position)
	api.AssertNotCalled(t, "CreateUser", mock.Anything)
}

func TestEnsureBotKeepsFreshProfile(t *testing.T) {
	api, bot := setupBotService(t)

	api.On("GetUserByUsername", BotUsername).Return(&model.User{
		Id:       "bot1",
		Username: BotUsername,
		Nickname: BotDisplayName,
		Position: BotDescription,
	}, nil)

	bundle := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(bundle, "assets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(bundle, "assets", "icon.png"), []byte("png-bytes"), 0o600))
	api.On("GetBundlePath").Return(bundle, nil)
	api.On("SetProfileImage", "bot1", []byte("png-bytes")).Return(nil)

	require.NoError(t, bot.EnsureBotExists())

	assert.Equal(t, "bot1", bot.GetBotID())
	api.AssertNotCalled(t, "CreateUser", mock.Anything)
	api.AssertNotCalled(t, "UpdateUser", mock.Anything)
	api.AssertCalled(t, "SetProfileImage", "bot1", []byte("png-bytes"))
}
