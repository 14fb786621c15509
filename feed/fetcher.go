// Package feed provides RSS/Atom feed fetching and linked-page retrieval
// for rss-toot.
package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"
	"github.com/robertmeta/rss-toot/model"
	"github.com/sethvargo/go-retry"
)

// DefaultUserAgent is a desktop Firefox identity. Several feed and page
// hosts refuse requests from non-browser clients.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

// Fetcher handles fetching and parsing RSS/Atom feeds.
type Fetcher struct {
	parser *gofeed.Parser
}

// NewFetcher creates a new Fetcher that identifies itself with userAgent.
func NewFetcher(userAgent string) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	parser.Client = &http.Client{Timeout: 30 * time.Second}

	return &Fetcher{parser: parser}
}

// Fetch retrieves and parses a feed from a URL. Entries are returned in
// feed order, which is newest-first for well-behaved feeds. Transport
// failures and 5xx responses are retried.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*model.Feed, []*model.Entry, error) {
	var parsedFeed *gofeed.Feed
	backoff := retry.WithMaxRetries(2, retry.NewFibonacci(time.Second))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var err error
		parsedFeed, err = f.parser.ParseURLWithContext(url, ctx)
		if err != nil && isTransient(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch feed from %s: %w", url, err)
	}

	feed, entries := f.convert(parsedFeed, url)
	return feed, entries, nil
}

// Parse parses feed content from a string.
func (f *Fetcher) Parse(content string) (*model.Feed, []*model.Entry, error) {
	if content == "" {
		return nil, nil, fmt.Errorf("feed content is empty")
	}

	parsedFeed, err := f.parser.ParseString(content)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	feed, entries := f.convert(parsedFeed, "")
	return feed, entries, nil
}

func isTransient(err error) bool {
	var httpErr gofeed.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// convert converts a gofeed.Feed to our model types.
func (f *Fetcher) convert(gf *gofeed.Feed, url string) (*model.Feed, []*model.Entry) {
	feed := &model.Feed{
		Title: gf.Title,
		URL:   url,
	}

	// Use feed link if URL not provided
	if feed.URL == "" && gf.Link != "" {
		feed.URL = gf.Link
	}

	entries := make([]*model.Entry, 0, len(gf.Items))
	for _, item := range gf.Items {
		entries = append(entries, f.convertItem(item))
	}

	return feed, entries
}

// convertItem converts a gofeed.Item to a model.Entry.
func (f *Fetcher) convertItem(item *gofeed.Item) *model.Entry {
	entry := &model.Entry{
		GUID:      item.GUID,
		Title:     item.Title,
		Link:      item.Link,
		Published: item.PublishedParsed,
		Updated:   item.UpdatedParsed,
	}

	// Prefer the description, it is what feeds fill with the teaser markup
	if item.Description != "" {
		entry.Summary = item.Description
	} else {
		entry.Summary = item.Content
	}

	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		entry.Attachments = append(entry.Attachments, model.Attachment{
			Href:     enc.URL,
			MimeType: enc.Type,
		})
	}

	for _, author := range item.Authors {
		if author != nil && author.Name != "" {
			entry.Authors = append(entry.Authors, author.Name)
		}
	}

	return entry
}
