package config

import (
	"context"
	"testing"

	"github.com/robertmeta/rss-toot/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func requiredEnv() map[string]string {
	return map[string]string{
		"RSS_FEED_URL":      "https://example.com/rss",
		"MASTODON_INSTANCE": "mastodon.example",
		"TAGS_TO_ADD":       "#news",
		"DAYS_TO_CHECK":     "3",
		"CLIENT_ID":         "id",
		"CLIENT_SECRET":     "secret",
		"ACCESS_TOKEN":      "token",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom(context.Background(), requiredEnv())
	require.NoError(t, err)

	assert.Equal(t, "https://example.com/rss", cfg.FeedURL)
	assert.Equal(t, "mastodon.example", cfg.Instance)
	assert.Equal(t, "#news", cfg.TagsToAdd)
	assert.Equal(t, 3, cfg.DaysToCheck)

	assert.True(t, cfg.IncludeLinkThumbnail)
	assert.True(t, cfg.IncludeImages)
	assert.False(t, cfg.IncludeDescription)
	assert.False(t, cfg.IncludeAuthor)
	assert.True(t, cfg.UsePrivacyFrontend)
	assert.True(t, cfg.UseShortlink)
	assert.Equal(t, "de", cfg.Language)
	assert.Equal(t, 1, cfg.MaxPosts)
	assert.Empty(t, cfg.IgnoredImages())
	assert.Equal(t, feed.DefaultUserAgent, cfg.UserAgent)
	assert.Equal(t, "https://mastodon.example", cfg.InstanceURL())
}

func TestLoadFrom_Overrides(t *testing.T) {
	env := requiredEnv()
	env["INCLUDE_LINK_THUMBNAIL"] = "FALSE"
	env["INCLUDE_IMAGES"] = "FALSE"
	env["INCLUDE_DESCRIPTION"] = "TRUE"
	env["LANGUAGE"] = "ro"
	env["MAXIMUM_TOOTS_COUNT"] = "5"
	env["IGNORE_IMAGES"] = "https://a.example/x.png https://b.example/y.png"
	env["USER_AGENT"] = "custom/1.0"

	cfg, err := LoadFrom(context.Background(), env)
	require.NoError(t, err)

	assert.False(t, cfg.IncludeLinkThumbnail)
	assert.False(t, cfg.IncludeImages)
	assert.True(t, cfg.IncludeDescription)
	assert.Equal(t, "ro", cfg.Language)
	assert.Equal(t, 5, cfg.MaxPosts)
	assert.Equal(t, []string{"https://a.example/x.png", "https://b.example/y.png"}, cfg.IgnoredImages())
	assert.Equal(t, "custom/1.0", cfg.UserAgent)
}

func TestLoadFrom_MissingRequired(t *testing.T) {
	for key := range requiredEnv() {
		t.Run(key, func(t *testing.T) {
			env := requiredEnv()
			delete(env, key)

			_, err := LoadFrom(context.Background(), env)
			assert.Error(t, err)
		})
	}
}

func TestLoadFrom_InvalidValues(t *testing.T) {
	tests := map[string]string{
		"DAYS_TO_CHECK":       "0",
		"MAXIMUM_TOOTS_COUNT": "-1",
		"MASTODON_INSTANCE":   "https://mastodon.example/",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			env := requiredEnv()
			env[key] = value

			_, err := LoadFrom(context.Background(), env)
			assert.Error(t, err)
		})
	}

	env := requiredEnv()
	env["DAYS_TO_CHECK"] = "three"
	_, err := LoadFrom(context.Background(), env)
	assert.Error(t, err)
}
