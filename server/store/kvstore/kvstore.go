package kvstore

//go:generate mockgen -source=kvstore.go -destination=mocks/mock_kvstore.go -package=mocks

// KVStore holds the plugin's channel preferences. Previews default to
// enabled; only the disabled state is recorded.
type KVStore interface {
	IsChannelDisabled(channelID string) (bool, error)
	SetChannelDisabled(channelID string, disabled bool) error
}
