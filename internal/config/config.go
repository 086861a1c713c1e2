package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// NotionConfig holds connection settings for the Notion API. The API key
// itself never lives in the config file; it is read from the environment
// (NOTION_API_KEY) at startup.
type NotionConfig struct {
	// EmailDatabaseID is the data source the email digest pages go to.
	EmailDatabaseID string `yaml:"email_database_id"`
	// CanvasDatabaseID is the data source Canvas assignments go to.
	CanvasDatabaseID string `yaml:"canvas_database_id"`
	// APIVersion is the Notion-Version request header value.
	APIVersion string `yaml:"api_version"`
	// MaxRetries bounds retry attempts for rate-limit and server errors.
	MaxRetries int `yaml:"max_retries"`
	// BaseBackoffSeconds is the exponential backoff base, in seconds.
	BaseBackoffSeconds float64 `yaml:"base_backoff_seconds"`
}

// GmailAccount describes one mailbox to pull from.
type GmailAccount struct {
	// TokenFile is the path to the authorized-user token JSON.
	TokenFile string `yaml:"token_file"`
	// TokenEnv names an environment variable holding the same JSON,
	// used when TokenFile does not exist (e.g. in CI).
	TokenEnv string `yaml:"token_env"`
	// UserIndex is the Gmail web UI account index used in deep links
	// (https://mail.google.com/mail/u/<index>/...).
	UserIndex int `yaml:"user_index"`
	// Label tags records from this account (e.g. "personal", "career").
	Label string `yaml:"label"`
}

// CanvasConfig describes the Canvas ICS feed subscription.
type CanvasConfig struct {
	FeedURL string `yaml:"feed_url"`
	// HorizonDays bounds how far into the future recurring feed entries
	// are expanded.
	HorizonDays int `yaml:"horizon_days"`
}

// ScheduleConfig holds the cron expressions used by daemon mode.
type ScheduleConfig struct {
	Morning string `yaml:"morning"`
	Evening string `yaml:"evening"`
	Canvas  string `yaml:"canvas"`
}

// LogConfig controls log level and the optional rotating log file.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// Config is the top-level application configuration.
type Config struct {
	Notion   NotionConfig   `yaml:"notion"`
	Gmail    []GmailAccount `yaml:"gmail"`
	Canvas   CanvasConfig   `yaml:"canvas"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Log      LogConfig      `yaml:"log"`

	// Model is the Anthropic model used for email clustering.
	Model string `yaml:"model"`

	// TrackerPath is where the run-window cursor record is persisted.
	TrackerPath string `yaml:"tracker_path"`
	// LockPath is the file lock that serializes cycles in daemon mode.
	LockPath string `yaml:"lock_path"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Notion: NotionConfig{
			APIVersion:         "2025-09-03",
			MaxRetries:         5,
			BaseBackoffSeconds: 1.0,
		},
		Gmail: []GmailAccount{},
		Canvas: CanvasConfig{
			HorizonDays: 90,
		},
		Schedule: ScheduleConfig{
			Morning: "0 8 * * *",
			Evening: "0 20 * * *",
			Canvas:  "0 */6 * * *",
		},
		Log: LogConfig{
			Level: "info",
		},
		Model:       "claude-sonnet-4-5",
		TrackerPath: "email_summary_tracking.json",
		LockPath:    ".automation.lock",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Notion.APIVersion == "" {
		c.Notion.APIVersion = "2025-09-03"
	}
	if c.Notion.MaxRetries <= 0 {
		c.Notion.MaxRetries = 5
	}
	if c.Notion.BaseBackoffSeconds <= 0 {
		c.Notion.BaseBackoffSeconds = 1.0
	}
	if c.Gmail == nil {
		c.Gmail = []GmailAccount{}
	}
	if c.Canvas.HorizonDays <= 0 {
		c.Canvas.HorizonDays = 90
	}
	if c.Schedule.Morning == "" {
		c.Schedule.Morning = "0 8 * * *"
	}
	if c.Schedule.Evening == "" {
		c.Schedule.Evening = "0 20 * * *"
	}
	if c.Schedule.Canvas == "" {
		c.Schedule.Canvas = "0 */6 * * *"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Model == "" {
		c.Model = "claude-sonnet-4-5"
	}
	if c.TrackerPath == "" {
		c.TrackerPath = "email_summary_tracking.json"
	}
	if c.LockPath == "" {
		c.LockPath = ".automation.lock"
	}
}

// Validate checks the settings a sync run cannot do without. Credentials
// are checked separately at startup so that a missing key fails before
// any network activity.
func (c *Config) Validate() error {
	if c.Notion.EmailDatabaseID == "" && c.Notion.CanvasDatabaseID == "" {
		return errors.New("config: at least one of notion.email_database_id or notion.canvas_database_id is required")
	}
	for i, acct := range c.Gmail {
		if acct.TokenFile == "" && acct.TokenEnv == "" {
			return fmt.Errorf("config: gmail account %d needs token_file or token_env", i)
		}
	}
	return nil
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written there
//     (0600) and returned.
//   - Otherwise the YAML is unmarshaled and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes the configuration atomically: marshal to a temp file in
// the target directory, fsync, chmod 0600, then rename over the path.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".automation-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
