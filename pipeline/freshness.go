package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Verdict is the freshness decision for one entry.
type Verdict int

const (
	// Fresh entries are unseen and inside the freshness window.
	Fresh Verdict = iota
	// Known entries were already published to the instance.
	Known
	// Stale entries are too old to post.
	Stale
)

func (v Verdict) String() string {
	switch v {
	case Fresh:
		return "fresh"
	case Known:
		return "known"
	case Stale:
		return "stale"
	}
	return fmt.Sprintf("Verdict(%d)", int(v))
}

// RecordLookup reports whether an entry was already published.
type RecordLookup interface {
	HasRecord(ctx context.Context, entryID, instance string) (bool, error)
}

// Freshness decides whether an entry should be processed.
type Freshness struct {
	records  RecordLookup
	instance string
	maxAge   time.Duration
	now      func() time.Time
}

// NewFreshness creates a filter for instance with a window of days.
func NewFreshness(records RecordLookup, instance string, days int, now func() time.Time) *Freshness {
	if now == nil {
		now = time.Now
	}
	return &Freshness{
		records:  records,
		instance: instance,
		maxAge:   time.Duration(days) * 24 * time.Hour,
		now:      now,
	}
}

// Check returns the verdict for the entry identified by entryID and
// published at ts. An entry exactly maxAge old is stale.
func (f *Freshness) Check(ctx context.Context, entryID string, ts time.Time) (Verdict, error) {
	found, err := f.records.HasRecord(ctx, entryID, f.instance)
	if err != nil {
		return 0, fmt.Errorf("failed to check publish record: %w", err)
	}
	if found {
		return Known, nil
	}
	if f.now().Sub(ts) >= f.maxAge {
		return Stale, nil
	}
	return Fresh, nil
}

// ShouldProcess is Check reduced to a yes or no.
func (f *Freshness) ShouldProcess(ctx context.Context, entryID string, ts time.Time) (bool, error) {
	v, err := f.Check(ctx, entryID, ts)
	return v == Fresh, err
}
