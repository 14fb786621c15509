// Package compose turns extracted entry content into a post draft: text
// replacements, link rewriting, hashtags and length containment.
package compose

import (
	"strings"

	"github.com/robertmeta/rss-toot/model"
)

// LinkGlyph prefixes the link paragraph.
const LinkGlyph = "🔗"

// TextRules is the replacement and tag suggestion collaborator.
type TextRules interface {
	Apply(text, lang string) string
	Tags(body, lang string) string
}

// Options controls which parts are composed into the post.
type Options struct {
	Language           string
	StaticTags         string
	IncludeDescription bool
	IncludeAuthor      bool
	UsePrivacyFrontend bool
	UseShortlink       bool
}

// Input is the extracted content of one entry.
type Input struct {
	Title       string
	Description string
	Link        string
	Shortlink   string
	Author      string
}

// Composer builds drafts.
type Composer struct {
	rules TextRules
	opts  Options
}

// New creates a Composer.
func New(rules TextRules, opts Options) *Composer {
	return &Composer{rules: rules, opts: opts}
}

// Compose builds the draft post for in. The body never exceeds MaxLength
// characters.
func (c *Composer) Compose(in Input) *model.Draft {
	draft := &model.Draft{
		Title: c.rules.Apply(in.Title, c.opts.Language),
	}

	var body strings.Builder
	body.WriteString(draft.Title)

	if c.opts.IncludeDescription && in.Description != "" {
		body.WriteString("\n\n")
		body.WriteString(in.Description)
	}

	draft.Link = c.link(in)
	if draft.Link != "" {
		body.WriteString("\n\n" + LinkGlyph + " ")
		body.WriteString(draft.Link)
	}

	if c.opts.IncludeAuthor && in.Author != "" {
		body.WriteString("\nby ")
		body.WriteString(in.Author)
	}

	text := body.String()
	suggested := c.rules.Tags(text, c.opts.Language)
	draft.Tags = FilterTags(text, c.opts.StaticTags, suggested)
	if len(draft.Tags) > 0 {
		text += "\n\n" + strings.Join(draft.Tags, " ")
	}

	draft.Body = Fit(text)
	return draft
}

func (c *Composer) link(in Input) string {
	link := in.Link
	if c.opts.UseShortlink && in.Shortlink != "" {
		link = in.Shortlink
	}
	if link == "" {
		return ""
	}
	if c.opts.UsePrivacyFrontend {
		link = PrivacyFrontend(link)
	}
	return CleanLink(link)
}
