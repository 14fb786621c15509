package store

import (
	sq "github.com/Masterminds/squirrel"
)

// ListOptions specifies how to query publish records.
type ListOptions struct {
	Limit    int
	Offset   int
	Instance string
	FeedURL  string
}

// selectQuery builds the record query. toot_id is stored as text and
// NULL columns from older databases are read back as empty strings.
func (o ListOptions) selectQuery() sq.SelectBuilder {
	query := sq.Select(
		"COALESCE(feed_entry_id, '') AS feed_entry_id",
		"COALESCE(toot_id, '') AS toot_id",
		"COALESCE(rss_feed_url, '') AS rss_feed_url",
		"COALESCE(mastodon_instance, '') AS mastodon_instance",
	).From(entriesTable)

	if o.Instance != "" {
		query = query.Where(sq.Eq{"mastodon_instance": o.Instance})
	}
	if o.FeedURL != "" {
		query = query.Where(sq.Eq{"rss_feed_url": o.FeedURL})
	}

	// Rows are append-only, so rowid order is insertion order
	query = query.OrderBy("rowid DESC")

	if o.Limit > 0 {
		query = query.Limit(uint64(o.Limit))
		// SQLite only accepts OFFSET after LIMIT
		if o.Offset > 0 {
			query = query.Offset(uint64(o.Offset))
		}
	}
	return query
}
