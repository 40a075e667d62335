// Package config loads the bot configuration: a YAML file merged with
// environment overrides. Keyword lists, source descriptors and thresholds
// are configuration data, not code, so the pipeline behavior can be tuned
// without a rebuild.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configPathEnv = "VESTNIK_CONFIG"

	defaultTimezone = "Europe/Moscow"
)

// Source describes one RSS feed: display name, URL, the static category
// label attached by the editor and a reliability weight for scoring.
type Source struct {
	Name     string  `yaml:"name"`
	URL      string  `yaml:"url"`
	Category string  `yaml:"category"`
	Weight   float64 `yaml:"weight"`
}

// TelegramConfig wires the channel publisher.
type TelegramConfig struct {
	Token     string `yaml:"token"`
	ChannelID string `yaml:"channelId"`
}

// DigestConfig defines the daily digest schedule and shape.
type DigestConfig struct {
	Hour                  int    `yaml:"hour"`
	Minute                int    `yaml:"minute"`
	Timezone              string `yaml:"timezone"`
	LookbackHours         int    `yaml:"lookbackHours"`
	BucketCap             int    `yaml:"bucketCap"`
	SecondWaveDelayMinute int    `yaml:"secondWaveDelayMinutes"`
}

// SecondWaveDelay is how long overflow items wait before the follow-up
// digest.
func (d DigestConfig) SecondWaveDelay() time.Duration {
	return time.Duration(d.SecondWaveDelayMinute) * time.Minute
}

// Location resolves the digest timezone, falling back to Moscow time.
func (d DigestConfig) Location() *time.Location {
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	return loc
}

// BreakingConfig controls the breaking-news fast path.
type BreakingConfig struct {
	Enabled        bool    `yaml:"enabled"`
	BaseThreshold  float64 `yaml:"baseThreshold"`
	ThresholdDelta float64 `yaml:"thresholdDelta"`
	LargeBatch     int     `yaml:"largeBatch"`
	SmallBatch     int     `yaml:"smallBatch"`
	MaxPerHour     int     `yaml:"maxPerHour"`
}

// Keywords groups every keyword list the pipeline matches against. Matching
// is plain case-insensitive substring search over title+description, so the
// lists carry word stems rather than full forms.
type Keywords struct {
	Russia        []string `yaml:"russia"`
	World         []string `yaml:"world"`
	Economy       []string `yaml:"economy"`
	Society       []string `yaml:"society"`
	Politics      []string `yaml:"politics"`
	Conflict      []string `yaml:"conflict"`
	ConflictNoise []string `yaml:"conflictNoise"`

	LocalCrime   []string `yaml:"localCrime"`
	LocalMarkers []string `yaml:"localMarkers"`

	Crime              []string `yaml:"crime"`
	AllowedGlobalCrime []string `yaml:"allowedGlobalCrime"`

	LowValuePatterns []string `yaml:"lowValuePatterns"`

	ExcludedSources []string `yaml:"excludedSources"`
	ExcludedTopics  []string `yaml:"excludedTopics"`

	HighImportance   []string `yaml:"highImportance"`
	MediumImportance []string `yaml:"mediumImportance"`

	StopWords []string `yaml:"stopWords"`
}

// MonitoringConfig enables the optional HTTP endpoint with health, metrics
// and store statistics.
type MonitoringConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Config holds every setting the bot needs.
type Config struct {
	Telegram TelegramConfig `yaml:"telegram"`

	DatabasePath string `yaml:"databasePath"`

	CheckIntervalMinutes int `yaml:"checkIntervalMinutes"`
	PublishDelayMinutes  int `yaml:"publishDelayMinutes"`
	PostPauseSeconds     int `yaml:"postPauseSeconds"`
	CooldownSeconds      int `yaml:"cooldownSeconds"`

	MaxPostLength     int `yaml:"maxPostLength"`
	PerSourceLimit    int `yaml:"perSourceLimit"`
	DaysToKeepHistory int `yaml:"daysToKeepHistory"`

	MinDescriptionLength int `yaml:"minDescriptionLength"`

	RequestTimeoutSeconds int `yaml:"requestTimeoutSeconds"`
	RetryAttempts         int `yaml:"retryAttempts"`
	RetryDelaySeconds     int `yaml:"retryDelaySeconds"`

	FreshnessHalfLifeHours float64            `yaml:"freshnessHalfLifeHours"`
	TopicPriorities        map[string]float64 `yaml:"topicPriorities"`

	PendingMergeSimilarity float64 `yaml:"pendingMergeSimilarity"`
	ClusterSimilarity      float64 `yaml:"clusterSimilarity"`

	Digest     DigestConfig     `yaml:"digest"`
	Breaking   BreakingConfig   `yaml:"breaking"`
	Monitoring MonitoringConfig `yaml:"monitoring"`

	Sources  []Source `yaml:"sources"`
	Keywords Keywords `yaml:"keywords"`

	Debug bool `yaml:"debug"`
}

// CheckInterval is the pause between collection cycles.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalMinutes) * time.Minute
}

// PublishDelay is the maturation window a pending topic spends aggregating
// near-duplicates before it may be published.
func (c *Config) PublishDelay() time.Duration {
	return time.Duration(c.PublishDelayMinutes) * time.Minute
}

// PostPause is the delay between consecutive channel posts.
func (c *Config) PostPause() time.Duration {
	return time.Duration(c.PostPauseSeconds) * time.Second
}

// Cooldown is how long the scheduler sleeps after a failed cycle.
func (c *Config) Cooldown() time.Duration {
	return time.Duration(c.CooldownSeconds) * time.Second
}

// RequestTimeout bounds a single feed or API request.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// RetryDelay is the base delay of the linear retry backoff.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.RetryDelaySeconds) * time.Second
}

// StopWordSet returns the stop words as a lookup set for the tokenizer.
func (c *Config) StopWordSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Keywords.StopWords))
	for _, w := range c.Keywords.StopWords {
		set[w] = struct{}{}
	}
	return set
}

// SourceWeights maps source name to its configured reliability weight.
// Unconfigured sources default to 1.0 at the scorer.
func (c *Config) SourceWeights() map[string]float64 {
	weights := make(map[string]float64, len(c.Sources))
	for _, s := range c.Sources {
		if s.Weight > 0 {
			weights[s.Name] = s.Weight
		}
	}
	return weights
}

// Load reads the YAML config (path from VESTNIK_CONFIG, optional) on top of
// the defaults and applies environment overrides. A missing file is not an
// error; missing credentials are caught by Validate.
func Load() (*Config, error) {
	// Match the original deployment: secrets come from a local .env when
	// present.
	_ = godotenv.Load()

	cfg := Default()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("BOT_TOKEN"); v != "" {
		c.Telegram.Token = v
	}
	if v := os.Getenv("CHANNEL_ID"); v != "" {
		c.Telegram.ChannelID = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	c.CheckIntervalMinutes = getEnvIntOrDefault("CHECK_INTERVAL_MINUTES", c.CheckIntervalMinutes)
	c.PublishDelayMinutes = getEnvIntOrDefault("PUBLISH_DELAY_MINUTES", c.PublishDelayMinutes)
	c.DaysToKeepHistory = getEnvIntOrDefault("DAYS_TO_KEEP_HISTORY", c.DaysToKeepHistory)
	if os.Getenv("DEBUG") == "true" {
		c.Debug = true
	}
	if v := os.Getenv("MONITORING_ADDR"); v != "" {
		c.Monitoring.Enabled = true
		c.Monitoring.Addr = v
	}
}

// Validate checks the settings a running bot cannot do without.
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("BOT_TOKEN is required")
	}
	if c.Telegram.ChannelID == "" {
		return fmt.Errorf("CHANNEL_ID is required")
	}
	if c.CheckIntervalMinutes < 1 {
		return fmt.Errorf("check interval must be at least 1 minute")
	}
	if c.PublishDelayMinutes < 0 {
		return fmt.Errorf("publish delay must not be negative")
	}
	if len(c.Sources) == 0 {
		return fmt.Errorf("at least one news source is required")
	}
	for _, s := range c.Sources {
		if s.Name == "" || s.URL == "" {
			return fmt.Errorf("source entries need both name and url")
		}
	}
	if c.PendingMergeSimilarity <= 0 || c.PendingMergeSimilarity > 1 {
		return fmt.Errorf("pending merge similarity must be in (0, 1]")
	}
	if c.ClusterSimilarity <= 0 || c.ClusterSimilarity > 1 {
		return fmt.Errorf("cluster similarity must be in (0, 1]")
	}
	return nil
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
