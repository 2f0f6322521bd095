package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin/plugintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/qzhao-dev/mattermost-plugin-media-preview/server/store/kvstore/mocks"
)

func setupAPIPlugin(t *testing.T) (*Plugin, *plugintest.API, *mocks.MockKVStore) {
	t.Helper()

	api := &plugintest.API{}
	for i := 1; i <= 21; i += 2 {
		args := make([]interface{}, i)
		for j := range args {
			args[j] = mock.Anything
		}
		api.On("LogDebug", args...).Maybe().Return(nil)
		api.On("LogInfo", args...).Maybe().Return(nil)
		api.On("LogWarn", args...).Maybe().Return(nil)
		api.On("LogError", args...).Maybe().Return(nil)
	}

	ctrl := gomock.NewController(t)
	kv := mocks.NewMockKVStore(ctrl)

	p := &Plugin{kvstore: kv}
	p.SetAPI(api)
	return p, api, kv
}

func serveJSON(t *testing.T, p *Plugin, r *http.Request, out any) *http.Response {
	t.Helper()

	w := httptest.NewRecorder()
	p.ServeHTTP(nil, w, r)
	result := w.Result()
	t.Cleanup(func() { result.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(result.Body).Decode(out))
	}
	return result
}

func TestServeHTTPRequiresSession(t *testing.T) {
	p, _, _ := setupAPIPlugin(t)

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", http.NoBody)
	p.ServeHTTP(nil, w, r)

	result := w.Result()
	defer result.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
}

func TestServeHTTPStatus(t *testing.T) {
	p, _, _ := setupAPIPlugin(t)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", http.NoBody)
	r.Header.Set("Mattermost-User-ID", "user1")

	var status struct {
		Platforms       map[string]bool `json:"platforms"`
		ShareCardPolicy string          `json:"shareCardPolicy"`
	}
	result := serveJSON(t, p, r, &status)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.True(t, status.Platforms["bilibili"])
	assert.True(t, status.Platforms["xiaohongshu"])
	assert.True(t, status.Platforms["douyin"])
	assert.Equal(t, ShareCardFallback, status.ShareCardPolicy)
}

func TestServeHTTPMetricsNeedsNoSession(t *testing.T) {
	p, _, _ := setupAPIPlugin(t)
	p.metrics = NewMetrics()
	p.metrics.ObservePost()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	p.ServeHTTP(nil, w, r)

	result := w.Result()
	defer result.Body.Close()
	require.Equal(t, http.StatusOK, result.StatusCode)

	body, err := io.ReadAll(result.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "mediapreview_posts_scanned_total 1")
}

func TestGetConfigRequiresAdmin(t *testing.T) {
	p, api, _ := setupAPIPlugin(t)
	api.On("GetUser", "user1").Return(&model.User{Id: "user1", Roles: model.SystemUserRoleId}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/config", http.NoBody)
	r.Header.Set("Mattermost-User-ID", "user1")

	result := serveJSON(t, p, r, nil)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
}

func TestGetConfigAsAdmin(t *testing.T) {
	p, api, _ := setupAPIPlugin(t)
	api.On("GetUser", "admin1").Return(&model.User{
		Id:    "admin1",
		Roles: model.SystemUserRoleId + " " + model.SystemAdminRoleId,
	}, nil)

	r := httptest.NewRequest(http.MethodGet, "/api/v1/config", http.NoBody)
	r.Header.Set("Mattermost-User-ID", "admin1")

	var config configuration
	result := serveJSON(t, p, r, &config)

	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.True(t, config.EnableBilibili)
	assert.Equal(t, defaultDedupWindowMinutes, config.DedupWindowMinutes)
}

func TestGetChannelPreviewState(t *testing.T) {
	t.Run("open channel", func(t *testing.T) {
		p, api, kv := setupAPIPlugin(t)
		api.On("GetChannel", "channel1").Return(&model.Channel{Id: "channel1", Type: model.ChannelTypeOpen}, nil)
		kv.EXPECT().IsChannelDisabled("channel1").Return(true, nil)

		r := httptest.NewRequest(http.MethodGet, "/api/v1/channels/channel1/preview", http.NoBody)
		r.Header.Set("Mattermost-User-ID", "user1")

		var state struct {
			Disabled bool `json:"disabled"`
		}
		result := serveJSON(t, p, r, &state)

		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.True(t, state.Disabled)
	})

	t.Run("unknown channel", func(t *testing.T) {
		p, api, _ := setupAPIPlugin(t)
		api.On("GetChannel", "missing").Return(nil, model.NewAppError("GetChannel", "not_found", nil, "", http.StatusNotFound))

		r := httptest.NewRequest(http.MethodGet, "/api/v1/channels/missing/preview", http.NoBody)
		r.Header.Set("Mattermost-User-ID", "user1")

		result := serveJSON(t, p, r, nil)
		assert.Equal(t, http.StatusNotFound, result.StatusCode)
	})

	t.Run("private channel without membership", func(t *testing.T) {
		p, api, _ := setupAPIPlugin(t)
		api.On("GetChannel", "secret").Return(&model.Channel{Id: "secret", Type: model.ChannelTypePrivate}, nil)
		api.On("GetChannelMember", "secret", "user1").Return(nil, model.NewAppError("GetChannelMember", "not_found", nil, "", http.StatusNotFound))

		r := httptest.NewRequest(http.MethodGet, "/api/v1/channels/secret/preview", http.NoBody)
		r.Header.Set("Mattermost-User-ID", "user1")

		result := serveJSON(t, p, r, nil)
		assert.Equal(t, http.StatusForbidden, result.StatusCode)
	})
}

func TestSetChannelPreviewState(t *testing.T) {
	t.Run("admin can disable", func(t *testing.T) {
		p, api, kv := setupAPIPlugin(t)
		api.On("GetUser", "admin1").Return(&model.User{
			Id:    "admin1",
			Roles: model.SystemUserRoleId + " " + model.SystemAdminRoleId,
		}, nil)
		kv.EXPECT().SetChannelDisabled("channel1", true).Return(nil)

		r := httptest.NewRequest(http.MethodPost, "/api/v1/channels/channel1/preview", strings.NewReader(`{"disabled":true}`))
		r.Header.Set("Mattermost-User-ID", "admin1")

		var state struct {
			Disabled bool `json:"disabled"`
		}
		result := serveJSON(t, p, r, &state)

		assert.Equal(t, http.StatusOK, result.StatusCode)
		assert.True(t, state.Disabled)
	})

	t.Run("non-admin is rejected", func(t *testing.T) {
		p, api, _ := setupAPIPlugin(t)
		api.On("GetUser", "user1").Return(&model.User{Id: "user1", Roles: model.SystemUserRoleId}, nil)

		r := httptest.NewRequest(http.MethodPost, "/api/v1/channels/channel1/preview", strings.NewReader(`{"disabled":true}`))
		r.Header.Set("Mattermost-User-ID", "user1")

		result := serveJSON(t, p, r, nil)
		assert.Equal(t, http.StatusForbidden, result.StatusCode)
	})

	t.Run("bad body", func(t *testing.T) {
		p, api, _ := setupAPIPlugin(t)
		api.On("GetUser", "admin1").Return(&model.User{
			Id:    "admin1",
			Roles: model.SystemUserRoleId + " " + model.SystemAdminRoleId,
		}, nil)

		r := httptest.NewRequest(http.MethodPost, "/api/v1/channels/channel1/preview", strings.NewReader("not json"))
		r.Header.Set("Mattermost-User-ID", "admin1")

		result := serveJSON(t, p, r, nil)
		assert.Equal(t, http.StatusBadRequest, result.StatusCode)
	})
}
