package env

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{
		"TELEGRAM_BOT_TOKEN", "TARGET_CHANNEL_ID", "SOURCE_CHANNEL_ID", "TELEGRAM_ADMIN_CHAT_ID",
		"TELEGRAM_LOG_CHAT_ID", "RPC_ENDPOINT", "DATABASE_URL", "REDIS_URL", "PORT", "CONFIG_PATH", "APP_ENV",
	} {
		t.Setenv(k, "")
	}
}

func TestFromEnvironment_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TARGET_CHANNEL_ID", "-1001234567890")

	v, err := FromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", v.TelegramBotToken)
	assert.Equal(t, int64(-1001234567890), v.TargetChannelID)
	assert.Equal(t, v.TargetChannelID, v.SourceChannelID, "source defaults to target")
	assert.Equal(t, DefaultRPCEndpoint, v.RPCEndpoint)
	assert.Equal(t, "8080", v.Port)
	assert.Equal(t, "agent/config.yaml", v.ConfigPath)
	assert.Equal(t, "development", v.Environment)
	assert.Zero(t, v.AdminChatID)
}

func TestFromEnvironment_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("TELEGRAM_BOT_TOKEN", "123:abc")
	t.Setenv("TARGET_CHANNEL_ID", "-100200")
	t.Setenv("SOURCE_CHANNEL_ID", "-100300")
	t.Setenv("TELEGRAM_ADMIN_CHAT_ID", "42")
	t.Setenv("RPC_ENDPOINT", "https://rpc.example")
	t.Setenv("PORT", "9090")

	v, err := FromEnvironment()
	require.NoError(t, err)
	assert.Equal(t, int64(-100300), v.SourceChannelID)
	assert.Equal(t, int64(42), v.AdminChatID)
	assert.Equal(t, "https://rpc.example", v.RPCEndpoint)
	assert.Equal(t, "9090", v.Port)
}

func TestFromEnvironment_ConfigurationErrors(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]string
		key  string
	}{
		{name: "missing token", set: map[string]string{"TARGET_CHANNEL_ID": "-1"}, key: "TELEGRAM_BOT_TOKEN"},
		{name: "missing target", set: map[string]string{"TELEGRAM_BOT_TOKEN": "x"}, key: "TARGET_CHANNEL_ID"},
		{name: "zero target", set: map[string]string{"TELEGRAM_BOT_TOKEN": "x", "TARGET_CHANNEL_ID": "0"}, key: "TARGET_CHANNEL_ID"},
		{name: "non numeric source", set: map[string]string{"TELEGRAM_BOT_TOKEN": "x", "TARGET_CHANNEL_ID": "-1", "SOURCE_CHANNEL_ID": "abc"}, key: "SOURCE_CHANNEL_ID"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.set {
				t.Setenv(k, v)
			}
			_, err := FromEnvironment()
			var cfgErr *ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.key, cfgErr.Key)
		})
	}
}
