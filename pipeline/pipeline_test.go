package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/robertmeta/rss-toot/config"
	"github.com/robertmeta/rss-toot/extract"
	"github.com/robertmeta/rss-toot/feed"
	"github.com/robertmeta/rss-toot/model"
	"github.com/robertmeta/rss-toot/social"
	"github.com/robertmeta/rss-toot/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

type fakeRules struct{}

func (fakeRules) Apply(text, lang string) string { return text }
func (fakeRules) Tags(body, lang string) string  { return "" }

type fakePublisher struct {
	mu       sync.Mutex
	posts    []social.Post
	uploads  [][]byte
	failBody string
}

func (p *fakePublisher) UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.uploads = append(p.uploads, data)
	return fmt.Sprintf("media-%d", len(p.uploads)), nil
}

func (p *fakePublisher) Publish(ctx context.Context, post social.Post) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failBody != "" && strings.Contains(post.Body, p.failBody) {
		return "", errors.New("422 Validation failed")
	}
	p.posts = append(p.posts, post)
	return fmt.Sprintf("post-%d", len(p.posts)), nil
}

type failingPages struct{}

func (failingPages) Fetch(ctx context.Context, url string) (*feed.Page, error) {
	return nil, errors.New("connection refused")
}

func testConfig() *config.Config {
	return &config.Config{
		FeedURL:              "https://news.example/rss",
		Instance:             "mastodon.example",
		TagsToAdd:            "#tech",
		DaysToCheck:          3,
		IncludeLinkThumbnail: true,
		IncludeImages:        true,
		Language:             "de",
		MaxPosts:             1,
		UsePrivacyFrontend:   true,
		UseShortlink:         true,
		UserAgent:            feed.DefaultUserAgent,
	}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entryAt(title, link string, age time.Duration) *model.Entry {
	published := testNow.Add(-age)
	return &model.Entry{GUID: link, Title: title, Link: link, Published: &published}
}

func newPipeline(cfg *config.Config, s RecordStore, pub *fakePublisher, pages PageFetcher) *Pipeline {
	return New(cfg, Deps{
		Store:     s,
		Publisher: pub,
		Pages:     pages,
		Rules:     fakeRules{},
		Now:       func() time.Time { return testNow },
	})
}

func TestRun_SingleNewEntry(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := newTestStore(t)
	pub := &fakePublisher{}

	entry := entryAt("My Title", "https://news.example/my-title", 24*time.Hour)
	stats, err := newPipeline(cfg, s, pub, failingPages{}).Run(ctx, []*model.Entry{entry})
	require.NoError(t, err)

	assert.Equal(t, Stats{Seen: 1, Published: 1}, stats)
	require.Len(t, pub.posts, 1)

	post := pub.posts[0]
	assert.Contains(t, post.Body, "My Title")
	assert.Contains(t, post.Body, "\n\n🔗 https://news.example/my-title")
	assert.Equal(t, 1, strings.Count(post.Body, "#tech"))
	assert.LessOrEqual(t, utf8.RuneCountInString(post.Body), 500)
	assert.Equal(t, social.VisibilityPublic, post.Visibility)
	assert.False(t, post.Sensitive)
	assert.Equal(t, "de", post.Language)
	assert.Empty(t, post.MediaIDs)

	id, err := entry.Identity()
	require.NoError(t, err)
	records, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, []model.Record{{EntryID: id, PostID: "post-1", FeedURL: cfg.FeedURL, Instance: cfg.Instance}}, records)
}

func TestRun_Idempotent(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxPosts = 10
	s := newTestStore(t)
	pub := &fakePublisher{}

	entries := []*model.Entry{
		entryAt("Second", "https://news.example/2", time.Hour),
		entryAt("First", "https://news.example/1", 2*time.Hour),
	}

	stats, err := newPipeline(cfg, s, pub, nil).Run(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Published)

	stats, err = newPipeline(cfg, s, pub, nil).Run(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, Stats{Seen: 2, Known: 2}, stats)

	records, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Len(t, records, 2)
	assert.Len(t, pub.posts, 2)
}

func TestRun_OldestFirstUpToMax(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPosts = 2
	pub := &fakePublisher{}

	entries := []*model.Entry{
		entryAt("Newest", "https://news.example/3", time.Hour),
		entryAt("Middle", "https://news.example/2", 2*time.Hour),
		entryAt("Oldest", "https://news.example/1", 3*time.Hour),
	}

	stats, err := newPipeline(cfg, newTestStore(t), pub, nil).Run(context.Background(), entries)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Published)
	assert.Equal(t, 2, stats.Seen, "run stops at the cap")
	require.Len(t, pub.posts, 2)
	assert.True(t, strings.HasPrefix(pub.posts[0].Body, "Oldest"))
	assert.True(t, strings.HasPrefix(pub.posts[1].Body, "Middle"))
}

func TestRun_SkipsDoNotCount(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := newTestStore(t)
	pub := &fakePublisher{}

	known := entryAt("Known", "https://news.example/known", time.Hour)
	knownID, _ := known.Identity()
	require.NoError(t, s.Record(ctx, model.Record{EntryID: knownID, PostID: "old", FeedURL: cfg.FeedURL, Instance: cfg.Instance}))

	entries := []*model.Entry{
		entryAt("Wanted", "https://news.example/wanted", time.Hour),
		entryAt("Shopping deals (P)", "https://news.example/ad", 2*time.Hour),
		known,
		entryAt("Ancient", "https://news.example/ancient", 30*24*time.Hour),
	}

	stats, err := newPipeline(cfg, s, pub, nil).Run(ctx, entries)
	require.NoError(t, err)

	assert.Equal(t, Stats{Seen: 4, Known: 1, Stale: 1, Sponsored: 1, Published: 1}, stats)
	require.Len(t, pub.posts, 1)
	assert.True(t, strings.HasPrefix(pub.posts[0].Body, "Wanted"))
}

func TestRun_MissingTitleAborts(t *testing.T) {
	cfg := testConfig()
	cfg.MaxPosts = 5
	pub := &fakePublisher{}

	entries := []*model.Entry{
		entryAt("After", "https://news.example/after", time.Hour),
		entryAt(" - Digi", "https://news.example/broken", 2*time.Hour),
		entryAt("Before", "https://news.example/before", 3*time.Hour),
	}

	stats, err := newPipeline(cfg, newTestStore(t), pub, nil).Run(context.Background(), entries)
	require.Error(t, err)

	var missing *extract.MissingTitleError
	assert.True(t, errors.As(err, &missing))
	var entryErr *EntryError
	require.True(t, errors.As(err, &entryErr))
	assert.Equal(t, "https://news.example/broken", entryErr.Link)
	assert.NotEmpty(t, entryErr.EntryID)

	assert.Equal(t, 1, stats.Published)
	require.Len(t, pub.posts, 1)
	assert.True(t, strings.HasPrefix(pub.posts[0].Body, "Before"))
}

func TestRun_NoIdentityAborts(t *testing.T) {
	_, err := newPipeline(testConfig(), newTestStore(t), &fakePublisher{}, nil).
		Run(context.Background(), []*model.Entry{{Summary: "anonymous"}})
	assert.ErrorIs(t, err, model.ErrNoIdentity)
}

func TestRun_PublishFailureIsNotRecorded(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	cfg.MaxPosts = 5
	s := newTestStore(t)
	pub := &fakePublisher{failBody: "Rejected"}

	entries := []*model.Entry{
		entryAt("Accepted", "https://news.example/ok", time.Hour),
		entryAt("Rejected", "https://news.example/bad", 2*time.Hour),
	}

	stats, err := newPipeline(cfg, s, pub, nil).Run(ctx, entries)
	require.NoError(t, err)
	assert.Equal(t, Stats{Seen: 2, Failed: 1, Published: 1}, stats)

	records, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	acceptedID, _ := entries[0].Identity()
	assert.Equal(t, acceptedID, records[0].EntryID)
}

func TestRun_LinkedPage(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/article":
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprintf(w, `<html><head>
<title>Page Headline | News Example</title>
<meta property="og:image" content="%s/thumb.jpg">
<link rel="shortlink" href="%s/?p=42">
</head></html>`, srv.URL, srv.URL)
		case "/thumb.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("jpeg-bytes"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cfg := testConfig()
	pub := &fakePublisher{}
	published := testNow.Add(-time.Hour)
	entry := &model.Entry{Link: srv.URL + "/article", Published: &published}

	stats, err := newPipeline(cfg, newTestStore(t), pub, feed.NewPageFetcher(cfg.UserAgent)).
		Run(context.Background(), []*model.Entry{entry})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Published)

	require.Len(t, pub.posts, 1)
	assert.True(t, strings.HasPrefix(pub.posts[0].Body, "Page Headline\n\n"), pub.posts[0].Body)
	assert.Contains(t, pub.posts[0].Body, "🔗 "+srv.URL+"/?p=42")
	assert.Equal(t, []string{"media-1"}, pub.posts[0].MediaIDs)
	require.Len(t, pub.uploads, 1)
	assert.Equal(t, "jpeg-bytes", string(pub.uploads[0]))
}

func TestRun_DryRun(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig()
	s := newTestStore(t)

	p := New(cfg, Deps{
		Store:  s,
		Pages:  failingPages{},
		Rules:  fakeRules{},
		Now:    func() time.Time { return testNow },
		DryRun: true,
	})

	entry := entryAt("My Title", "https://news.example/my-title", time.Hour)
	entry.Summary = `<img src="https://i.redd.it/abc.png">`

	stats, err := p.Run(ctx, []*model.Entry{entry})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Published)

	drafts := p.Drafts()
	require.Len(t, drafts, 1)
	assert.Contains(t, drafts[0].Body, "My Title")
	assert.Equal(t, []string{"https://i.redd.it/abc.png"}, drafts[0].Media)

	records, err := s.List(ctx, store.ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, records, "dry runs record nothing")
}
