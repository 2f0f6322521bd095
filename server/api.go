package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/mattermost/mattermost/server/public/model"
	"github.com/mattermost/mattermost/server/public/plugin"
)

// ServeHTTP exposes the plugin's HTTP surface.
// The root URL is currently <siteUrl>/plugins/me.qzhao.media-preview/. Replace me.qzhao.media-preview with the plugin ID.
func (p *Plugin) ServeHTTP(c *plugin.Context, w http.ResponseWriter, r *http.Request) {
	router := mux.NewRouter()

	// Prometheus scrapers hold no Mattermost session, so /metrics stays
	// outside the session middleware.
	if p.metrics != nil {
		router.Handle("/metrics", p.metrics.Handler()).Methods(http.MethodGet)
	}

	apiRouter := router.PathPrefix("/api/v1").Subrouter()

	// Middleware to require that the user is logged in
	apiRouter.Use(p.MattermostAuthorizationRequired)

	apiRouter.HandleFunc("/status", p.GetStatus).Methods(http.MethodGet)
	apiRouter.HandleFunc("/config", p.GetConfig).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channels/{channelId}/preview", p.GetChannelPreviewState).Methods(http.MethodGet)
	apiRouter.HandleFunc("/channels/{channelId}/preview", p.SetChannelPreviewState).Methods(http.MethodPost)

	router.ServeHTTP(w, r)
}

func (p *Plugin) MattermostAuthorizationRequired(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get("Mattermost-User-ID")
		if userID == "" {
			// Log for debugging - Mattermost should automatically add this header
			p.API.LogWarn("Missing Mattermost-User-ID header in request", "path", r.URL.Path, "method", r.Method)
			http.Error(w, "Not authorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetStatus reports which platforms are active and how busy the caches are.
func (p *Plugin) GetStatus(w http.ResponseWriter, r *http.Request) {
	config := p.getConfiguration()

	status := struct {
		Platforms       map[string]bool `json:"platforms"`
		ShareCardPolicy string          `json:"shareCardPolicy"`
		VideoDownload   bool            `json:"videoDownload"`
		PageSnapshot    bool            `json:"pageSnapshot"`
		ParsedEntries   int             `json:"parsedEntries"`
		EventEntries    int             `json:"eventEntries"`
	}{
		Platforms: map[string]bool{
			"bilibili":    config.EnableBilibili,
			"xiaohongshu": config.EnableXiaohongshu,
			"douyin":      config.EnableDouyin,
		},
		ShareCardPolicy: config.ShareCardPolicy,
		VideoDownload:   config.EnableVideoDownload,
		PageSnapshot:    config.EnablePageSnapshot,
	}
	if p.parsedCache != nil {
		status.ParsedEntries = p.parsedCache.Size()
	}
	if p.eventCache != nil {
		status.EventEntries = p.eventCache.Size()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(status); err != nil {
		p.API.LogError("Failed to encode status", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// GetConfig returns the current plugin configuration (admin only)
func (p *Plugin) GetConfig(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("Mattermost-User-ID")

	// Check if user is system admin
	user, appErr := p.API.GetUser(userID)
	if appErr != nil || !user.IsInRole(model.SystemAdminRoleId) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	config := p.getConfiguration()

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(config); err != nil {
		p.API.LogError("Failed to encode config", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// GetChannelPreviewState returns whether previews are disabled in a channel.
func (p *Plugin) GetChannelPreviewState(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("Mattermost-User-ID")

	channelID := mux.Vars(r)["channelId"]
	if channelID == "" {
		http.Error(w, "Channel ID is required", http.StatusBadRequest)
		return
	}

	channel, appErr := p.API.GetChannel(channelID)
	if appErr != nil {
		http.Error(w, "Channel not found", http.StatusNotFound)
		return
	}

	// Check channel membership
	if !channel.IsOpen() && !channel.IsGroupOrDirect() {
		member, appErr := p.API.GetChannelMember(channelID, userID)
		if appErr != nil || member == nil {
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
	}

	disabled, err := p.kvstore.IsChannelDisabled(channelID)
	if err != nil {
		p.API.LogError("Failed to read channel preview state", "channelID", channelID, "error", err.Error())
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	p.writeChannelPreviewState(w, disabled)
}

// SetChannelPreviewState enables or disables previews in a channel (admin only)
func (p *Plugin) SetChannelPreviewState(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("Mattermost-User-ID")

	// Check if user is system admin
	user, appErr := p.API.GetUser(userID)
	if appErr != nil || !user.IsInRole(model.SystemAdminRoleId) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	channelID := mux.Vars(r)["channelId"]
	if channelID == "" {
		http.Error(w, "Channel ID is required", http.StatusBadRequest)
		return
	}

	var request struct {
		Disabled bool `json:"disabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := p.kvstore.SetChannelDisabled(channelID, request.Disabled); err != nil {
		p.API.LogError("Failed to update channel preview state", "channelID", channelID, "error", err.Error())
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	p.writeChannelPreviewState(w, request.Disabled)
}

func (p *Plugin) writeChannelPreviewState(w http.ResponseWriter, disabled bool) {
	response := struct {
		Disabled bool `json:"disabled"`
	}{
		Disabled: disabled,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		p.API.LogError("Failed to encode channel preview state", "error", err)
	}
}
