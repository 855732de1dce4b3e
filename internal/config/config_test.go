package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "ko-KR", cfg.Browser.Locale)
	assert.Equal(t, "Asia/Seoul", cfg.Browser.TimezoneID)
	assert.Equal(t, 1440, cfg.Browser.ViewportWidth)

	assert.Equal(t, []string{"known-selector", "heading-text", "ad-link-density", "attribute-scan"}, cfg.Locator.Strategies)
	assert.Equal(t, 3, cfg.Locator.MinAdLinks)

	assert.Equal(t, []string{"element", "bounding-box-clip", "scroll-crop", "full-page"}, cfg.Capture.Methods)
	assert.Equal(t, 8.0, cfg.Capture.Margin)
	assert.Equal(t, 3*time.Second, cfg.Capture.RateLimitMin)

	assert.Equal(t, "searcap-captures", cfg.ObjectStore.Bucket)
	assert.Equal(t, "ap-northeast-2", cfg.ObjectStore.Region)

	assert.Equal(t, 6*time.Hour, cfg.Cache.SeenTTL)

	require.NoError(t, cfg.Validate())
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("BROWSER_HEADLESS", "false")
	t.Setenv("CAPTURE_MARGIN", "12.5")
	t.Setenv("CAPTURE_TIMEOUT", "20s")
	t.Setenv("LOCATOR_MIN_AD_LINKS", "5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, 12.5, cfg.Capture.Margin)
	assert.Equal(t, 20*time.Second, cfg.Capture.Timeout)
	assert.Equal(t, 5, cfg.Locator.MinAdLinks)
}

func TestStringSliceParsing(t *testing.T) {
	t.Setenv("LOCATOR_STRATEGIES", " known-selector , heading-text ,, ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"known-selector", "heading-text"}, cfg.Locator.Strategies)
}

func TestInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("BROWSER_VIEWPORT_WIDTH", "wide")
	t.Setenv("CAPTURE_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 1440, cfg.Browser.ViewportWidth)
	assert.Equal(t, 15*time.Second, cfg.Capture.Timeout)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "no strategies",
			mutate: func(c *Config) { c.Locator.Strategies = nil },
		},
		{
			name:   "no capture methods",
			mutate: func(c *Config) { c.Capture.Methods = nil },
		},
		{
			name:   "negative margin",
			mutate: func(c *Config) { c.Capture.Margin = -1 },
		},
		{
			name: "inverted rate limit range",
			mutate: func(c *Config) {
				c.Capture.RateLimitMin = 10 * time.Second
				c.Capture.RateLimitMax = time.Second
			},
		},
		{
			name:   "min ad links below one",
			mutate: func(c *Config) { c.Locator.MinAdLinks = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Load()
			require.NoError(t, err)

			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
