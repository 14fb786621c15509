package compose

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/robertmeta/rss-toot/model"
)

const maxMediaSize = 40 * 1024 * 1024

// MediaUploader stores media on the instance and returns its reference.
type MediaUploader interface {
	UploadMedia(ctx context.Context, data []byte, mimeType string) (string, error)
}

// MediaOptions controls which candidates are uploaded.
type MediaOptions struct {
	IncludeImages bool
	Ignore        []string
	UserAgent     string
}

// MediaResolver downloads media candidates and uploads them.
type MediaResolver struct {
	uploader MediaUploader
	client   *http.Client
	opts     MediaOptions
}

// NewMediaResolver creates a MediaResolver.
func NewMediaResolver(uploader MediaUploader, opts MediaOptions) *MediaResolver {
	return &MediaResolver{
		uploader: uploader,
		client:   &http.Client{Timeout: 30 * time.Second},
		opts:     opts,
	}
}

// Resolve uploads the usable candidates in order and returns their media
// references. Each URL is tried once; a failed candidate is logged and
// dropped.
func (r *MediaResolver) Resolve(ctx context.Context, candidates []model.MediaCandidate) []string {
	if !r.opts.IncludeImages {
		return nil
	}

	var refs []string
	tried := make(map[string]bool)
	for _, c := range candidates {
		if c.URL == "" || c.URL == "None" || tried[c.URL] {
			continue
		}
		tried[c.URL] = true

		if slices.Contains(r.opts.Ignore, c.URL) {
			slog.DebugContext(ctx, "Skipping ignored media", "url", c.URL)
			continue
		}

		slog.InfoContext(ctx, "Uploading media", "url", c.URL)
		ref, err := r.upload(ctx, c)
		if err != nil {
			slog.WarnContext(ctx, "Failed to upload media", "url", c.URL, "error", err)
			continue
		}
		refs = append(refs, ref)
	}
	return refs
}

func (r *MediaResolver) upload(ctx context.Context, c model.MediaCandidate) (string, error) {
	data, contentType, err := r.download(ctx, c.URL)
	if err != nil {
		return "", err
	}

	mimeType := c.MimeType
	if mimeType == "" {
		mimeType = contentType
	}

	ref, err := r.uploader.UploadMedia(ctx, data, mimeType)
	if err != nil {
		return "", fmt.Errorf("upload failed: %w", err)
	}
	return ref, nil
}

func (r *MediaResolver) download(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	if r.opts.UserAgent != "" {
		req.Header.Set("User-Agent", r.opts.UserAgent)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("HTTP error: %s", resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read media: %w", err)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
