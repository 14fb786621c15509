package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/robertmeta/rss-toot/config"
	"github.com/robertmeta/rss-toot/extract"
	"github.com/robertmeta/rss-toot/feed"
	"github.com/robertmeta/rss-toot/logger"
	"github.com/robertmeta/rss-toot/model"
	"github.com/robertmeta/rss-toot/pipeline"
	"github.com/robertmeta/rss-toot/rules"
	"github.com/robertmeta/rss-toot/social"
	"github.com/robertmeta/rss-toot/store"
	"github.com/urfave/cli/v2"
)

const (
	ExitSuccess      = 0
	ExitGeneralError = 1
	ExitUsageError   = 2
	ExitDataError    = 3
)

func main() {
	app := &cli.App{
		Name:    "rss-toot",
		Usage:   "Post new RSS/Atom feed entries to a Mastodon account",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Value:   "/data/cache.db",
				Usage:   "Database file path",
				EnvVars: []string{"DATABASE_PATH"},
			},
			dryRunFlag(),
		},
		// Running without a command publishes, as the container entrypoint expects.
		Action: runBot,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Publish new feed entries",
				Flags:  []cli.Flag{dryRunFlag()},
				Action: runBot,
			},
			{
				Name:  "history",
				Usage: "List published entries",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "limit",
						Aliases: []string{"l"},
						Value:   50,
						Usage:   "Maximum number of records to return",
					},
					&cli.StringFlag{
						Name:    "instance",
						Aliases: []string{"i"},
						Usage:   "Filter by Mastodon instance",
					},
				},
				Action: listHistory,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneralError)
	}
}

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Compose posts and print them as JSON without publishing or recording",
	}
}

func getStore(c *cli.Context) (*store.Store, error) {
	dbPath := c.String("db")

	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	s, err := store.New(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return s, nil
}

func outputJSON(v interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

func runBot(c *cli.Context) error {
	ctx := c.Context
	dryRun := c.Bool("dry-run")

	cfg, err := config.Load(ctx)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}

	log, err := logger.New(os.Stderr, cfg.LoggerFormat, cfg.LogLevel)
	if err != nil {
		return cli.Exit(err.Error(), ExitUsageError)
	}
	slog.SetDefault(log)

	textRules, err := rules.Load(cfg.RulesFile)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to load rules: %v", err), ExitUsageError)
	}

	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	ctx = logger.Ctx(ctx, slog.String("feed", cfg.FeedURL), slog.String("instance", cfg.Instance))

	deps := pipeline.Deps{
		Store:  s,
		Pages:  feed.NewPageFetcher(cfg.UserAgent),
		Rules:  textRules,
		DryRun: dryRun,
	}
	if !dryRun {
		client, err := social.Login(ctx, social.Credentials{
			Server:       cfg.InstanceURL(),
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			AccessToken:  cfg.AccessToken,
		})
		if err != nil {
			return cli.Exit(err.Error(), ExitGeneralError)
		}
		deps.Publisher = client
	}

	_, entries, err := feed.NewFetcher(cfg.UserAgent).Fetch(ctx, cfg.FeedURL)
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to fetch feed: %v", err), ExitGeneralError)
	}
	slog.InfoContext(ctx, fmt.Sprintf("Retrieved %d feed entries", len(entries)))

	p := pipeline.New(cfg, deps)
	stats, err := p.Run(ctx, entries)
	slog.InfoContext(ctx, "Run finished",
		"seen", stats.Seen,
		"known", stats.Known,
		"stale", stats.Stale,
		"sponsored", stats.Sponsored,
		"failed", stats.Failed,
		"published", stats.Published,
	)
	if err != nil {
		return cli.Exit(err.Error(), exitCode(err))
	}

	if dryRun {
		return outputJSON(map[string]interface{}{
			"stats":  stats,
			"drafts": p.Drafts(),
		})
	}
	return nil
}

func exitCode(err error) int {
	var missing *extract.MissingTitleError
	if errors.As(err, &missing) || errors.Is(err, model.ErrNoIdentity) {
		return ExitDataError
	}
	return ExitGeneralError
}

func listHistory(c *cli.Context) error {
	s, err := getStore(c)
	if err != nil {
		return cli.Exit(err.Error(), ExitDataError)
	}
	defer s.Close()

	records, err := s.List(c.Context, store.ListOptions{
		Limit:    c.Int("limit"),
		Instance: c.String("instance"),
	})
	if err != nil {
		return cli.Exit(fmt.Sprintf("Failed to get records: %v", err), ExitDataError)
	}

	return outputJSON(map[string]interface{}{
		"count":   len(records),
		"records": records,
	})
}
