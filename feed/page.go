package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
)

const maxPageSize = 4 * 1024 * 1024

// Page is a fetched and parsed linked page.
type Page struct {
	doc *goquery.Document
}

// NewPage parses HTML markup into a Page.
func NewPage(r io.Reader) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return &Page{doc: doc}, nil
}

// Title returns the text of the first <title> element.
func (p *Page) Title() string {
	return strings.TrimSpace(p.doc.Find("title").First().Text())
}

// OGTitle returns the og:title meta value.
func (p *Page) OGTitle() string {
	return p.metaProperty("og:title")
}

// Image returns the og:image meta value.
func (p *Page) Image() string {
	return p.metaProperty("og:image")
}

// Shortlink returns the href of a <link rel="shortlink"> element.
func (p *Page) Shortlink() string {
	href, _ := p.doc.Find(`link[rel="shortlink"]`).First().Attr("href")
	return strings.TrimSpace(href)
}

func (p *Page) metaProperty(property string) string {
	content, _ := p.doc.Find(fmt.Sprintf(`meta[property=%q]`, property)).First().Attr("content")
	return strings.TrimSpace(content)
}

// PageFetcher retrieves linked pages with a browser identity.
type PageFetcher struct {
	client    *http.Client
	userAgent string
}

// NewPageFetcher creates a PageFetcher.
func NewPageFetcher(userAgent string) *PageFetcher {
	return &PageFetcher{
		client: &http.Client{
			Timeout: 15 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		userAgent: userAgent,
	}
}

// Fetch downloads and parses the page at url.
func (f *PageFetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %s", resp.Status)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, maxPageSize), resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("failed to detect charset: %w", err)
	}

	return NewPage(body)
}
