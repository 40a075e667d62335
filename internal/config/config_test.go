package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValidWithCredentials(t *testing.T) {
	cfg := Default()
	cfg.Telegram.Token = "test-token"
	cfg.Telegram.ChannelID = "@test_channel"

	require.NoError(t, cfg.Validate())

	assert.Equal(t, 60*time.Minute, cfg.CheckInterval())
	assert.Equal(t, 30*time.Minute, cfg.PublishDelay())
	assert.Equal(t, 5*time.Second, cfg.PostPause())
	assert.Equal(t, 4500, cfg.MaxPostLength)
	assert.Equal(t, 30, cfg.DaysToKeepHistory)
	assert.NotEmpty(t, cfg.Sources)
	assert.NotEmpty(t, cfg.Keywords.Conflict)
	assert.NotEmpty(t, cfg.Keywords.HighImportance)
}

func TestValidateFailures(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Telegram.Token = "t"
		cfg.Telegram.ChannelID = "@c"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }},
		{"missing channel", func(c *Config) { c.Telegram.ChannelID = "" }},
		{"zero check interval", func(c *Config) { c.CheckIntervalMinutes = 0 }},
		{"negative publish delay", func(c *Config) { c.PublishDelayMinutes = -1 }},
		{"no sources", func(c *Config) { c.Sources = nil }},
		{"source without url", func(c *Config) { c.Sources = []Source{{Name: "x"}} }},
		{"bad merge similarity", func(c *Config) { c.PendingMergeSimilarity = 1.5 }},
		{"bad cluster similarity", func(c *Config) { c.ClusterSimilarity = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadAppliesYAMLAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
checkIntervalMinutes: 15
digest:
  hour: 21
  minute: 30
  bucketCap: 7
breaking:
  baseThreshold: 9.5
sources:
  - name: "Тестовый источник"
    url: "https://example.org/rss"
    category: general
    weight: 1.0
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	t.Setenv(configPathEnv, path)
	t.Setenv("BOT_TOKEN", "env-token")
	t.Setenv("CHANNEL_ID", "@env_channel")
	t.Setenv("PUBLISH_DELAY_MINUTES", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "env-token", cfg.Telegram.Token)
	assert.Equal(t, "@env_channel", cfg.Telegram.ChannelID)
	assert.Equal(t, 15, cfg.CheckIntervalMinutes)
	assert.Equal(t, 10, cfg.PublishDelayMinutes)
	assert.Equal(t, 21, cfg.Digest.Hour)
	assert.Equal(t, 7, cfg.Digest.BucketCap)
	assert.InDelta(t, 9.5, cfg.Breaking.BaseThreshold, 1e-9)
	require.Len(t, cfg.Sources, 1)
	assert.Equal(t, "Тестовый источник", cfg.Sources[0].Name)
}

func TestLoadMissingConfigFile(t *testing.T) {
	t.Setenv(configPathEnv, filepath.Join(t.TempDir(), "nope.yaml"))
	t.Setenv("BOT_TOKEN", "t")
	t.Setenv("CHANNEL_ID", "@c")

	_, err := Load()
	assert.Error(t, err)
}

func TestSourceWeights(t *testing.T) {
	cfg := Default()
	weights := cfg.SourceWeights()
	assert.InDelta(t, 1.2, weights["ТАСС"], 1e-9)
	_, ok := weights["неизвестный"]
	assert.False(t, ok)
}

func TestStopWordSet(t *testing.T) {
	cfg := Default()
	set := cfg.StopWordSet()
	_, ok := set["когда"]
	assert.True(t, ok)
}
