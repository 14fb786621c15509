// Package extract derives the title, link, description and media of a
// feed entry from the entry itself and, when available, its linked page.
package extract

import (
	"errors"
	"fmt"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/robertmeta/rss-toot/model"
)

// SponsoredMarker flags advertorial entries in titles.
const SponsoredMarker = "(P)"

// ErrSponsored is returned for entries whose title carries the sponsored
// marker. Such entries are skipped, not failed.
var ErrSponsored = errors.New("entry is sponsored content")

// MissingTitleError reports a title that is only a dash and a site name,
// which the source feed emits when it lost the real title. It aborts the run.
type MissingTitleError struct {
	Title string
}

func (e *MissingTitleError) Error() string {
	return fmt.Sprintf("the title is missing: %q", e.Title)
}

var (
	missingTitlePattern = regexp.MustCompile(`^[ ]*- [A-Z][a-z]*$`)
	siteSuffixPattern   = regexp.MustCompile(` [|-] .*$`)
)

// LinkedPage is the parsed page an entry links to.
type LinkedPage interface {
	Title() string
	OGTitle() string
	Image() string
	Shortlink() string
}

// Options controls optional extraction steps.
type Options struct {
	IncludeLinkThumbnail bool
}

// Result is everything the composer needs from one entry.
type Result struct {
	Title       string
	Description string
	Link        string
	Shortlink   string
	Media       []model.MediaCandidate
}

// Extractor extracts content from the entries of one feed.
type Extractor struct {
	feed  *model.Feed
	opts  Options
	strip *bluemonday.Policy
}

// New creates an Extractor for entries of feed.
func New(feed *model.Feed, opts Options) *Extractor {
	return &Extractor{
		feed:  feed,
		opts:  opts,
		strip: bluemonday.StrictPolicy(),
	}
}

// Extract builds the Result for entry. page may be nil when the linked
// page could not be fetched. ErrSponsored and *MissingTitleError are
// returned for the two title policies.
func (x *Extractor) Extract(entry *model.Entry, page LinkedPage) (*Result, error) {
	title := x.title(entry, page)

	if strings.Contains(title, SponsoredMarker) {
		return nil, ErrSponsored
	}
	if missingTitlePattern.MatchString(title) {
		return nil, &MissingTitleError{Title: title}
	}

	res := &Result{
		Title:       title,
		Description: entry.Summary,
		Link:        entry.Link,
		Media:       SummaryMedia(entry.Summary),
	}

	if page != nil {
		res.Shortlink = page.Shortlink()
		if x.opts.IncludeLinkThumbnail {
			if thumb := page.Image(); thumb != "" {
				res.Media = append(res.Media, model.MediaCandidate{URL: thumb})
			}
		}
	}

	for _, a := range entry.Attachments {
		if a.IsImage() {
			res.Media = append(res.Media, model.MediaCandidate{URL: a.Href, MimeType: a.MimeType})
		}
	}

	return res, nil
}

func (x *Extractor) title(entry *model.Entry, page LinkedPage) string {
	switch {
	case x.feed.IsRepostSource():
		return x.stripHTML(entry.Summary)
	case entry.Title != "":
		return entry.Title
	case page != nil:
		title := page.Title()
		if title == "" {
			title = page.OGTitle()
		}
		return siteSuffixPattern.ReplaceAllString(title, "")
	}
	return ""
}

func (x *Extractor) stripHTML(s string) string {
	return strings.TrimSpace(html.UnescapeString(x.strip.Sanitize(s)))
}
