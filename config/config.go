// Package config loads the rss-toot run configuration from the environment.
package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/robertmeta/rss-toot/feed"
	"github.com/sethvargo/go-envconfig"
)

// Config is built once at startup and passed to every component.
type Config struct {
	FeedURL      string `env:"RSS_FEED_URL, required"`
	Instance     string `env:"MASTODON_INSTANCE, required"`
	TagsToAdd    string `env:"TAGS_TO_ADD, required"`
	DaysToCheck  int    `env:"DAYS_TO_CHECK, required"`
	ClientID     string `env:"CLIENT_ID, required"`
	ClientSecret string `env:"CLIENT_SECRET, required"`
	AccessToken  string `env:"ACCESS_TOKEN, required"`

	IncludeLinkThumbnail bool   `env:"INCLUDE_LINK_THUMBNAIL, default=true"`
	IncludeImages        bool   `env:"INCLUDE_IMAGES, default=true"`
	IncludeDescription   bool   `env:"INCLUDE_DESCRIPTION, default=false"`
	Language             string `env:"LANGUAGE, default=de"`
	MaxPosts             int    `env:"MAXIMUM_TOOTS_COUNT, default=1"`
	IgnoreImages         string `env:"IGNORE_IMAGES"`

	UserAgent    string `env:"USER_AGENT"`
	RulesFile    string `env:"RULES_FILE"`
	LoggerFormat string `env:"LOGGER_FORMAT, default=text"`
	LogLevel     string `env:"LOG_LEVEL, default=info"`

	// Not configurable from the environment.
	IncludeAuthor      bool
	UsePrivacyFrontend bool
	UseShortlink       bool
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return load(ctx, envconfig.OsLookuper())
}

// LoadFrom reads the configuration from a fixed set of variables.
func LoadFrom(ctx context.Context, env map[string]string) (*Config, error) {
	return load(ctx, envconfig.MapLookuper(env))
}

func load(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	cfg.IncludeAuthor = false
	cfg.UsePrivacyFrontend = true
	cfg.UseShortlink = true
	if cfg.UserAgent == "" {
		cfg.UserAgent = feed.DefaultUserAgent
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	if c.DaysToCheck <= 0 {
		return fmt.Errorf("DAYS_TO_CHECK must be positive, got %d", c.DaysToCheck)
	}
	if c.MaxPosts <= 0 {
		return fmt.Errorf("MAXIMUM_TOOTS_COUNT must be positive, got %d", c.MaxPosts)
	}
	if strings.Contains(c.Instance, "/") {
		return fmt.Errorf("MASTODON_INSTANCE must be a host name, got %q", c.Instance)
	}
	return nil
}

// IgnoredImages returns the media URLs that must never be uploaded.
// The list is split on single spaces, so URLs cannot contain spaces.
func (c *Config) IgnoredImages() []string {
	var urls []string
	for _, u := range strings.Split(c.IgnoreImages, " ") {
		if u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// InstanceURL is the API base URL of the target instance.
func (c *Config) InstanceURL() string {
	return "https://" + c.Instance
}
