// Package social is the Mastodon API session used to upload media and
// publish statuses.
package social

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mattn/go-mastodon"
	"github.com/sethvargo/go-retry"
)

// VisibilityPublic posts to the public timeline.
const VisibilityPublic = "public"

// Credentials identify the application and account on an instance.
type Credentials struct {
	Server       string
	ClientID     string
	ClientSecret string
	AccessToken  string
}

// Post is a status to publish.
type Post struct {
	Body       string
	MediaIDs   []string
	Visibility string
	Sensitive  bool
	Language   string
}

// Client is an authenticated Mastodon session.
type Client struct {
	api *mastodon.Client
}

// Login creates a client and verifies the credentials by fetching the
// current account. The check is retried on transport errors.
func Login(ctx context.Context, creds Credentials) (*Client, error) {
	api := mastodon.NewClient(&mastodon.Config{
		Server:       creds.Server,
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		AccessToken:  creds.AccessToken,
	})
	api.Client = http.Client{Timeout: 60 * time.Second}

	var account *mastodon.Account
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		account, err = api.GetAccountCurrentUser(ctx)
		if err != nil && !isAPIError(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to log into %s: %w", creds.Server, err)
	}

	slog.InfoContext(ctx, "Logged in", "server", creds.Server, "account", account.Acct)
	return &Client{api: api}, nil
}

// isAPIError reports a response from the instance, as opposed to a
// transport failure. Rejected credentials are not worth retrying.
func isAPIError(err error) bool {
	var apiErr *mastodon.APIError
	return errors.As(err, &apiErr)
}

// UploadMedia uploads data and returns the attachment id. The instance
// detects the media type from the content; mimeType is only logged.
func (c *Client) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("media is empty")
	}

	attachment, err := c.api.UploadMediaFromReader(ctx, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to upload %s media: %w", mimeType, err)
	}
	return string(attachment.ID), nil
}

// Publish posts a status and returns its id.
func (c *Client) Publish(ctx context.Context, post Post) (string, error) {
	toot := &mastodon.Toot{
		Status:     post.Body,
		Sensitive:  post.Sensitive,
		Visibility: post.Visibility,
		Language:   post.Language,
	}
	for _, id := range post.MediaIDs {
		toot.MediaIDs = append(toot.MediaIDs, mastodon.ID(id))
	}

	status, err := c.api.PostStatus(ctx, toot)
	if err != nil {
		return "", fmt.Errorf("failed to post status: %w", err)
	}
	if status.ID == "" {
		return "", errors.New("instance returned a status without id")
	}
	return string(status.ID), nil
}
