// Package pipeline drives one run of rss-toot: every eligible feed entry
// is extracted, composed, published and recorded, oldest first.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robertmeta/rss-toot/compose"
	"github.com/robertmeta/rss-toot/config"
	"github.com/robertmeta/rss-toot/extract"
	"github.com/robertmeta/rss-toot/feed"
	"github.com/robertmeta/rss-toot/logger"
	"github.com/robertmeta/rss-toot/model"
	"github.com/robertmeta/rss-toot/social"
)

// RecordStore is the durable publish record table.
type RecordStore interface {
	RecordLookup
	Record(ctx context.Context, r model.Record) error
}

// Publisher is the social API session.
type Publisher interface {
	compose.MediaUploader
	Publish(ctx context.Context, post social.Post) (string, error)
}

// PageFetcher retrieves the page an entry links to.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*feed.Page, error)
}

// EntryError ties a run-aborting error to the entry that caused it.
type EntryError struct {
	EntryID string
	Link    string
	Err     error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("entry %s (%s): %v", e.EntryID, e.Link, e.Err)
}

func (e *EntryError) Unwrap() error {
	return e.Err
}

// Deps are the collaborators of a run.
type Deps struct {
	Store     RecordStore
	Publisher Publisher // unused in dry runs
	Pages     PageFetcher
	Rules     compose.TextRules
	Now       func() time.Time
	DryRun    bool
}

// Stats counts what happened to the entries of a run.
type Stats struct {
	Seen      int `json:"seen"`
	Known     int `json:"known"`
	Stale     int `json:"stale"`
	Sponsored int `json:"sponsored"`
	Failed    int `json:"failed"`
	Published int `json:"published"`
}

// Pipeline processes the entries of one feed for one instance.
type Pipeline struct {
	cfg       *config.Config
	feed      *model.Feed
	deps      Deps
	freshness *Freshness
	extractor *extract.Extractor
	composer  *compose.Composer
	media     *compose.MediaResolver

	drafts []*model.Draft
}

// New wires a Pipeline from the run configuration.
func New(cfg *config.Config, deps Deps) *Pipeline {
	f := &model.Feed{URL: cfg.FeedURL}

	p := &Pipeline{
		cfg:       cfg,
		feed:      f,
		deps:      deps,
		freshness: NewFreshness(deps.Store, cfg.Instance, cfg.DaysToCheck, deps.Now),
		extractor: extract.New(f, extract.Options{IncludeLinkThumbnail: cfg.IncludeLinkThumbnail}),
		composer: compose.New(deps.Rules, compose.Options{
			Language:           cfg.Language,
			StaticTags:         cfg.TagsToAdd,
			IncludeDescription: cfg.IncludeDescription,
			IncludeAuthor:      cfg.IncludeAuthor,
			UsePrivacyFrontend: cfg.UsePrivacyFrontend,
			UseShortlink:       cfg.UseShortlink,
		}),
	}
	if !deps.DryRun {
		p.media = compose.NewMediaResolver(deps.Publisher, compose.MediaOptions{
			IncludeImages: cfg.IncludeImages,
			Ignore:        cfg.IgnoredImages(),
			UserAgent:     cfg.UserAgent,
		})
	}
	return p
}

// Drafts returns the drafts composed so far. Only dry runs keep them.
func (p *Pipeline) Drafts() []*model.Draft {
	return p.drafts
}

// Run processes entries, given newest-first as feeds list them, in
// chronological order. It stops after cfg.MaxPosts publications. A
// missing-title entry, an entry without identity, or a failed record
// write aborts the run with an *EntryError.
func (p *Pipeline) Run(ctx context.Context, entries []*model.Entry) (Stats, error) {
	var stats Stats

	for i := len(entries) - 1; i >= 0; i-- {
		entry := entries[i]
		stats.Seen++

		id, err := entry.Identity()
		if err != nil {
			return stats, &EntryError{Link: entry.Link, Err: err}
		}
		entryCtx := logger.Ctx(ctx, slog.String("entry", id))

		published, err := p.process(entryCtx, id, entry, &stats)
		if err != nil {
			return stats, &EntryError{EntryID: id, Link: entry.Link, Err: err}
		}
		if !published {
			continue
		}

		stats.Published++
		if stats.Published >= p.cfg.MaxPosts {
			slog.InfoContext(ctx, "Reached the maximum number of posts per run", "max", p.cfg.MaxPosts)
			break
		}
	}

	return stats, nil
}

// process handles one entry and reports whether a post was published.
func (p *Pipeline) process(ctx context.Context, id string, entry *model.Entry, stats *Stats) (bool, error) {
	ts := entry.Timestamp()
	slog.InfoContext(ctx, "Entry found", "date", ts, "age", entry.Age(p.now()).Round(time.Second))

	verdict, err := p.freshness.Check(ctx, id, ts)
	if err != nil {
		return false, err
	}
	switch verdict {
	case Known:
		stats.Known++
		slog.DebugContext(ctx, "Already posted, skipping")
		return false, nil
	case Stale:
		stats.Stale++
		slog.DebugContext(ctx, "Too old, skipping")
		return false, nil
	}

	slog.InfoContext(ctx, "Processing entry", "link", entry.Link)

	res, err := p.extractor.Extract(entry, p.linkedPage(ctx, entry.Link))
	if errors.Is(err, extract.ErrSponsored) {
		stats.Sponsored++
		slog.InfoContext(ctx, "This entry is an ad, skipping")
		return false, nil
	}
	var missing *extract.MissingTitleError
	if errors.As(err, &missing) {
		slog.ErrorContext(ctx, "The title is missing", "title", missing.Title, "link", entry.Link)
		return false, err
	}
	if err != nil {
		return false, err
	}

	draft := p.composer.Compose(compose.Input{
		Title:       res.Title,
		Description: res.Description,
		Link:        res.Link,
		Shortlink:   res.Shortlink,
		Author:      entry.FirstAuthor(),
	})
	draft.Source = id

	if p.deps.DryRun {
		for _, m := range res.Media {
			draft.Media = append(draft.Media, m.URL)
		}
		p.drafts = append(p.drafts, draft)
		slog.InfoContext(ctx, "Composed draft", "length", len([]rune(draft.Body)), "media", len(draft.Media))
		return true, nil
	}

	draft.Media = p.media.Resolve(ctx, res.Media)

	postID, err := p.deps.Publisher.Publish(ctx, social.Post{
		Body:       draft.Body,
		MediaIDs:   draft.Media,
		Visibility: social.VisibilityPublic,
		Sensitive:  false,
		Language:   p.cfg.Language,
	})
	if err != nil {
		stats.Failed++
		slog.WarnContext(ctx, "Failed to publish", "error", err)
		return false, nil
	}

	if err := p.deps.Store.Record(ctx, model.Record{
		EntryID:  id,
		PostID:   postID,
		FeedURL:  p.cfg.FeedURL,
		Instance: p.cfg.Instance,
	}); err != nil {
		return false, fmt.Errorf("published as %s but not recorded: %w", postID, err)
	}

	slog.InfoContext(ctx, "Published", "post", postID, "media", len(draft.Media))
	return true, nil
}

// linkedPage fetches the entry's page. Failures are logged and yield nil
// so extraction continues from feed data alone.
func (p *Pipeline) linkedPage(ctx context.Context, link string) extract.LinkedPage {
	if link == "" || p.deps.Pages == nil {
		return nil
	}

	slog.DebugContext(ctx, "Retrieving the linked page", "url", link)
	page, err := p.deps.Pages.Fetch(ctx, link)
	if err != nil {
		slog.WarnContext(ctx, "Failed to retrieve the linked page", "url", link, "error", err)
		return nil
	}
	if page == nil {
		return nil
	}
	return page
}

func (p *Pipeline) now() time.Time {
	if p.deps.Now != nil {
		return p.deps.Now()
	}
	return time.Now()
}
