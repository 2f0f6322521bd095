package kvstore

import (
	"github.com/mattermost/mattermost/server/public/pluginapi"
	"github.com/pkg/errors"
)

// We expose our calls to the KVStore pluginapi methods through this interface for testability and stability.
// This allows us to better control which values are stored with which keys.

const channelDisabledKeyPrefix = "channel_disabled-"

type Client struct {
	client *pluginapi.Client
}

func NewKVStore(client *pluginapi.Client) KVStore {
	return Client{
		client: client,
	}
}

// IsChannelDisabled reports whether previews were switched off in a channel.
// A missing key means the channel uses the default enabled state.
func (kv Client) IsChannelDisabled(channelID string) (bool, error) {
	var disabled bool
	err := kv.client.KV.Get(channelDisabledKeyPrefix+channelID, &disabled)
	if err != nil {
		return false, errors.Wrap(err, "failed to get channel preview state")
	}
	return disabled, nil
}

// SetChannelDisabled records the channel's preview state. Re-enabling deletes
// the key so the store only carries exceptions from the default.
func (kv Client) SetChannelDisabled(channelID string, disabled bool) error {
	key := channelDisabledKeyPrefix + channelID

	if !disabled {
		if err := kv.client.KV.Delete(key); err != nil {
			return errors.Wrap(err, "failed to clear channel preview state")
		}
		return nil
	}

	if _, err := kv.client.KV.Set(key, true); err != nil {
		return errors.Wrap(err, "failed to set channel preview state")
	}
	return nil
}
