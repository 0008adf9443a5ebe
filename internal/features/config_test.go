package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlagManager_LoadFromConfig(t *testing.T) {
	fm := NewDefaultFlagManager()

	err := fm.LoadFromConfig(map[string]bool{
		FlagRateLimiting:  false,
		FlagFlagsEndpoint: true,
	})
	require.NoError(t, err)
	assert.False(t, fm.IsEnabled(FlagRateLimiting))
	assert.True(t, fm.IsEnabled(FlagFlagsEndpoint))
}

func TestFlagManager_LoadFromConfigRejectsUnknown(t *testing.T) {
	fm := NewDefaultFlagManager()

	err := fm.LoadFromConfig(map[string]bool{
		"rate_limitting":  false,
		"event_publisher": false,
		FlagClaimPurge:    false,
	})
	require.Error(t, err)
	assert.Equal(t, "unknown feature flags: event_publisher, rate_limitting", err.Error())
	// known names in the same map still apply
	assert.False(t, fm.IsEnabled(FlagClaimPurge))
	assert.True(t, fm.IsEnabled(FlagRateLimiting))
}

func TestFlagManager_LoadFromEnvironment(t *testing.T) {
	t.Setenv("COMMROUTER_FEATURE_RATE_LIMITING", "false")
	t.Setenv("COMMROUTER_FEATURE_FLAGS_ENDPOINT", "1")
	t.Setenv("COMMROUTER_FEATURE_EVENT_PUBLISHING", "maybe")
	t.Setenv("COMMROUTER_FEATURE_UNKNOWN_FLAG", "true")

	fm := NewDefaultFlagManager()
	fm.LoadFromEnvironment()

	assert.False(t, fm.IsEnabled(FlagRateLimiting))
	assert.True(t, fm.IsEnabled(FlagFlagsEndpoint))
	assert.True(t, fm.IsEnabled(FlagEventPublishing), "unparseable values keep the current state")
	assert.False(t, fm.IsEnabled("unknown_flag"))
}

func TestFlagManager_LoadFromEnvironmentDisableAll(t *testing.T) {
	t.Setenv("COMMROUTER_FEATURES_DISABLE_ALL", "true")
	t.Setenv("COMMROUTER_FEATURE_RATE_LIMITING", "true")

	fm := NewDefaultFlagManager()
	fm.LoadFromEnvironment()

	for _, flag := range fm.ListFlags() {
		assert.False(t, flag.Enabled, flag.Name)
	}
}

func TestFlagManager_ToConfig(t *testing.T) {
	fm := NewDefaultFlagManager()
	require.NoError(t, fm.Enable(FlagFlagsEndpoint))

	cfg := fm.ToConfig()
	assert.Len(t, cfg, len(DefaultFlags))
	assert.True(t, cfg[FlagFlagsEndpoint])

	restored := NewDefaultFlagManager()
	require.NoError(t, restored.LoadFromConfig(cfg))
	assert.True(t, restored.IsEnabled(FlagFlagsEndpoint))
}
