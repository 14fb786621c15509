// Package model defines the core data structures for rss-toot.
package model

import (
	"errors"
	"strings"
	"time"
)

// Feed represents the polled RSS/Atom feed source.
type Feed struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// Validate checks if the feed has required fields.
func (f *Feed) Validate() error {
	if f.URL == "" {
		return errors.New("feed URL is required")
	}
	return nil
}

// IsRepostSource reports whether the feed mirrors posts from a social
// network, in which case entry titles are not meaningful and the
// description is used instead.
func (f *Feed) IsRepostSource() bool {
	return strings.Contains(f.URL, "twitter.com") || strings.Contains(f.URL, "/twitter/")
}

// Attachment is a typed link attached to an entry (RSS enclosure, Atom
// rel=enclosure).
type Attachment struct {
	Href     string `json:"href"`
	MimeType string `json:"mime_type"`
}

// IsImage returns true if the declared MIME type names an image.
func (a Attachment) IsImage() bool {
	return strings.Contains(a.MimeType, "image")
}

// Entry is a read-only view of a single feed entry.
type Entry struct {
	GUID        string       `json:"guid"`
	Title       string       `json:"title"`
	Link        string       `json:"link"`
	Summary     string       `json:"summary"`
	Published   *time.Time   `json:"published,omitempty"`
	Updated     *time.Time   `json:"updated,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Authors     []string     `json:"authors,omitempty"`
}

// Timestamp returns the published time, falling back to the updated time.
// The zero time is returned when neither is set.
func (e *Entry) Timestamp() time.Time {
	if e.Published != nil {
		return *e.Published
	}
	if e.Updated != nil {
		return *e.Updated
	}
	return time.Time{}
}

// Age returns how long before now the entry was published.
func (e *Entry) Age(now time.Time) time.Duration {
	return now.Sub(e.Timestamp())
}

// FirstAuthor returns the display name of the first author, if any.
func (e *Entry) FirstAuthor() string {
	for _, a := range e.Authors {
		if a != "" {
			return a
		}
	}
	return ""
}

// Record is a durable note that an entry was published to an instance.
type Record struct {
	EntryID  string `json:"entry_id" db:"feed_entry_id"`
	PostID   string `json:"post_id" db:"toot_id"`
	FeedURL  string `json:"feed_url" db:"rss_feed_url"`
	Instance string `json:"instance" db:"mastodon_instance"`
}

// MediaCandidate is a media URL that may be uploaded with a post.
// MimeType is only set when the feed declared it.
type MediaCandidate struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type,omitempty"`
}

// Draft is the composed, not yet published post.
type Draft struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Link   string   `json:"link"`
	Media  []string `json:"media,omitempty"`
	Tags   []string `json:"tags,omitempty"`
	Source string   `json:"source,omitempty"`
}
