package main

import (
	"reflect"
	"time"

	"github.com/pkg/errors"
)

const (
	// ShareCardFallback fills preview fields from the share card only when the
	// live page left them empty or unavailable.
	ShareCardFallback = "fallback"
	// ShareCardPrefer lets share-card fields win over live page data.
	ShareCardPrefer = "prefer"
	// ShareCardIgnore never consults the share card.
	ShareCardIgnore = "ignore"
)

const defaultDedupWindowMinutes = 30

// configuration captures the plugin's external configuration as exposed in the Mattermost server
// configuration, as well as values computed from the configuration. Any public fields will be
// deserialized from the Mattermost server configuration in OnConfigurationChange.
//
// As plugins are inherently concurrent (hooks being called asynchronously), and the plugin
// configuration can change at any time, access to the configuration must be synchronized. The
// strategy used in this plugin is to guard a pointer to the configuration, and clone the entire
// struct whenever it changes. You may replace this with whatever strategy you choose.
//
// If you add non-reference types to your configuration struct, be sure to rewrite Clone as a deep
// copy appropriate for your types.
type configuration struct {
	EnableBilibili          bool   `json:"EnableBilibili"`
	EnableXiaohongshu       bool   `json:"EnableXiaohongshu"`
	EnableDouyin            bool   `json:"EnableDouyin"`
	DedupWindowMinutes      int    `json:"DedupWindowMinutes"`
	ShareCardPolicy         string `json:"ShareCardPolicy"`
	EnableVideoDownload     bool   `json:"EnableVideoDownload"`
	MaxVideoDurationSeconds int    `json:"MaxVideoDurationSeconds"`
	VideoSpoolDir           string `json:"VideoSpoolDir"`
	EnablePageSnapshot      bool   `json:"EnablePageSnapshot"`
}

// Clone shallow copies the configuration. Your implementation may require a deep copy if
// your configuration has reference types.
func (c *configuration) Clone() *configuration {
	var clone = *c
	return &clone
}

// setDefaults fills in values the admin left unset or out of range.
func (c *configuration) setDefaults() {
	if c.DedupWindowMinutes <= 0 {
		c.DedupWindowMinutes = defaultDedupWindowMinutes
	}
	switch c.ShareCardPolicy {
	case ShareCardFallback, ShareCardPrefer, ShareCardIgnore:
	default:
		c.ShareCardPolicy = ShareCardFallback
	}
	if c.MaxVideoDurationSeconds <= 0 {
		c.MaxVideoDurationSeconds = 600
	}
}

// platformEnabled reports whether the named resolver platform is switched on.
func (c *configuration) platformEnabled(name string) bool {
	switch name {
	case "bilibili":
		return c.EnableBilibili
	case "xiaohongshu":
		return c.EnableXiaohongshu
	case "douyin":
		return c.EnableDouyin
	}
	return false
}

// dedupWindow returns the configured preview suppression window.
func (c *configuration) dedupWindow() time.Duration {
	return time.Duration(c.DedupWindowMinutes) * time.Minute
}

// getConfiguration retrieves the active configuration under lock, making it safe to use
// concurrently. The active configuration may change underneath the client of this method, but
// the struct returned by this API call is considered immutable.
func (p *Plugin) getConfiguration() *configuration {
	p.configurationLock.RLock()
	defer p.configurationLock.RUnlock()

	if p.configuration == nil {
		config := &configuration{
			EnableBilibili:    true,
			EnableXiaohongshu: true,
			EnableDouyin:      true,
		}
		config.setDefaults()
		return config
	}

	return p.configuration
}

// setConfiguration replaces the active configuration under lock.
//
// Do not call setConfiguration while holding the configurationLock, as sync.Mutex is not
// reentrant. In particular, avoid using the plugin API entirely, as this may in turn trigger a
// hook back into the plugin. If that hook attempts to acquire this lock, a deadlock may occur.
//
// This method panics if setConfiguration is called with the existing configuration. This almost
// certainly means that the configuration was modified without being cloned and may result in
// an unsafe access.
func (p *Plugin) setConfiguration(configuration *configuration) {
	p.configurationLock.Lock()
	defer p.configurationLock.Unlock()

	if configuration != nil && p.configuration == configuration {
		// Ignore assignment if the configuration struct is empty. Go will optimize the
		// allocation for same to point at the same memory address, breaking the check
		// above.
		if reflect.ValueOf(*configuration).NumField() == 0 {
			return
		}

		panic("setConfiguration called with the existing configuration")
	}

	p.configuration = configuration
}

// OnConfigurationChange is invoked when configuration changes may have been made.
func (p *Plugin) OnConfigurationChange() error {
	var configuration = new(configuration)

	// Load the public configuration fields from the Mattermost server configuration.
	if err := p.API.LoadPluginConfiguration(configuration); err != nil {
		return errors.Wrap(err, "failed to load plugin configuration")
	}

	configuration.setDefaults()

	p.setConfiguration(configuration)

	// The suppression window is the one live component fed directly by a
	// setting. Resolvers and downloaders read the configuration per post, so
	// only the caches need a nudge here. Both are nil until OnActivate runs.
	if p.parsedCache != nil {
		p.parsedCache.SetWindow(configuration.dedupWindow())
	}

	return nil
}
