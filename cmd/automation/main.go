package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Sectonic/Automation/internal/config"
	"github.com/Sectonic/Automation/internal/daemon"
	"github.com/Sectonic/Automation/internal/gmail"
	"github.com/Sectonic/Automation/internal/ics"
	appLog "github.com/Sectonic/Automation/internal/log"
	"github.com/Sectonic/Automation/internal/model"
	"github.com/Sectonic/Automation/internal/notion"
	"github.com/Sectonic/Automation/internal/summarize"
	"github.com/Sectonic/Automation/internal/sync"
	"github.com/Sectonic/Automation/internal/tracker"
)

var (
	configPath string
	cycleFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "automation",
	Short: "Sync Gmail digests and Canvas assignments into Notion",
	Long: `automation pulls from two read-only sources and pushes into Notion:

  email  - fetch a window of Gmail messages, cluster them into labeled
           digest groups with an LLM, and create one Notion page per group
  canvas - mirror the Canvas ICS feed into a Notion database, creating
           only assignments that are not already there
  daemon - run both flows on cron schedules`,
	SilenceUsage: true,
}

var emailCmd = &cobra.Command{
	Use:   "email",
	Short: "Run one email digest cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		cycle := model.Cycle(cycleFlag)
		if !cycle.Valid() {
			return fmt.Errorf("invalid --cycle %q (want morning or evening)", cycleFlag)
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		emailSync, err := buildEmailSync(ctx, cfg)
		if err != nil {
			return err
		}
		return emailSync.Run(ctx, cycle)
	},
}

var canvasCmd = &cobra.Command{
	Use:   "canvas",
	Short: "Sync the Canvas assignment feed once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		canvasSync, err := buildCanvasSync(cfg)
		if err != nil {
			return err
		}
		return canvasSync.Run(cmd.Context())
	},
}

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run both sync flows on cron schedules",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		d := daemon.Daemon{
			Schedule: cfg.Schedule,
			LockPath: cfg.LockPath,
		}
		if cfg.Notion.EmailDatabaseID != "" {
			emailSync, err := buildEmailSync(ctx, cfg)
			if err != nil {
				return err
			}
			d.Email = emailSync
		}
		if cfg.Notion.CanvasDatabaseID != "" {
			canvasSync, err := buildCanvasSync(cfg)
			if err != nil {
				return err
			}
			d.Canvas = canvasSync
		}
		if d.Email == nil && d.Canvas == nil {
			return errors.New("daemon: no database IDs configured, nothing to schedule")
		}

		return d.Run(ctx)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "automation.yaml", "Path to config file")
	emailCmd.Flags().StringVar(&cycleFlag, "cycle", string(model.CycleMorning), "Cycle kind: morning or evening")

	rootCmd.AddCommand(emailCmd)
	rootCmd.AddCommand(canvasCmd)
	rootCmd.AddCommand(daemonCmd)
}

// loadConfig loads and validates the YAML config and applies log
// settings. Credentials are checked later, per flow, so that e.g. the
// canvas command never demands an Anthropic key.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", configPath, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	appLog.SetLevel(appLog.ParseLevel(cfg.Log.Level))
	appLog.SetFile(cfg.Log.File, cfg.Log.MaxSizeMB, cfg.Log.MaxBackups)

	return cfg, nil
}

// notionKey returns the API key or a startup error naming the variable.
// Requiring this before any network activity is deliberate.
func notionKey() (string, error) {
	key := os.Getenv("NOTION_API_KEY")
	if key == "" {
		return "", errors.New("NOTION_API_KEY environment variable is required")
	}
	return key, nil
}

func newNotionClient(cfg *config.Config) (*notion.Client, error) {
	key, err := notionKey()
	if err != nil {
		return nil, err
	}
	return notion.NewClient(key, notion.Options{
		APIVersion:  cfg.Notion.APIVersion,
		MaxRetries:  cfg.Notion.MaxRetries,
		BaseBackoff: time.Duration(cfg.Notion.BaseBackoffSeconds * float64(time.Second)),
	}), nil
}

func buildEmailSync(ctx context.Context, cfg *config.Config) (*sync.EmailSync, error) {
	if cfg.Notion.EmailDatabaseID == "" {
		return nil, errors.New("notion.email_database_id is not configured")
	}
	if len(cfg.Gmail) == 0 {
		return nil, errors.New("no gmail accounts configured")
	}
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")
	if anthropicKey == "" {
		return nil, errors.New("ANTHROPIC_API_KEY environment variable is required")
	}

	client, err := newNotionClient(cfg)
	if err != nil {
		return nil, err
	}

	fetchers := make([]sync.MailFetcher, 0, len(cfg.Gmail))
	for _, acct := range cfg.Gmail {
		account, err := gmail.NewAccount(ctx, acct)
		if err != nil {
			return nil, err
		}
		fetchers = append(fetchers, account)
	}

	return &sync.EmailSync{
		Tracker:      tracker.New(cfg.TrackerPath),
		Fetchers:     fetchers,
		Summarizer:   summarize.NewClaude(anthropicKey, cfg.Model),
		Notion:       client,
		DataSourceID: cfg.Notion.EmailDatabaseID,
	}, nil
}

func buildCanvasSync(cfg *config.Config) (*sync.CanvasSync, error) {
	if cfg.Notion.CanvasDatabaseID == "" {
		return nil, errors.New("notion.canvas_database_id is not configured")
	}
	if cfg.Canvas.FeedURL == "" {
		return nil, errors.New("canvas.feed_url is not configured")
	}

	client, err := newNotionClient(cfg)
	if err != nil {
		return nil, err
	}

	return &sync.CanvasSync{
		Fetcher:      ics.NewFetcher(),
		Notion:       client,
		DataSourceID: cfg.Notion.CanvasDatabaseID,
		FeedURL:      cfg.Canvas.FeedURL,
		Horizon:      time.Duration(cfg.Canvas.HorizonDays) * 24 * time.Hour,
	}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		appLog.Error("fatal", err)
		os.Exit(1)
	}
}
