// Package metadata relays cover lookups to OpenLibrary. It is only used by the
// optional enrichment path; every failure degrades to "no cover found".
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/shelfsync/internal/entities"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultMaxRedirects = 3
	maxCoverBytes       = 5 << 20
	userAgent           = "shelfsync/1.0 (https://github.com/mrlokans/shelfsync)"
)

// ErrNoCover means the lookup finished without finding a usable image.
var ErrNoCover = errors.New("no cover found")

// CoverMatch is the best search hit for a book.
type CoverMatch struct {
	Title    string `json:"title"`
	Author   string `json:"author,omitempty"`
	ISBN     string `json:"isbn,omitempty"`
	CoverURL string `json:"cover_url"`
}

type ClientOptions struct {
	BaseURL      string
	CoversURL    string
	Timeout      time.Duration
	MaxRedirects int
	RateInterval time.Duration
}

// OpenLibraryClient searches OpenLibrary and downloads cover images.
type OpenLibraryClient struct {
	httpClient  *http.Client
	baseURL     string
	coversURL   string
	rateLimiter *rateLimiter
}

type rateLimiter struct {
	mu       sync.Mutex
	lastCall time.Time
	interval time.Duration
}

func newRateLimiter(interval time.Duration) *rateLimiter {
	return &rateLimiter{interval: interval}
}

func (r *rateLimiter) wait() {
	r.mu.Lock()
	defer r.mu.Unlock()

	since := time.Since(r.lastCall)
	if since < r.interval {
		time.Sleep(r.interval - since)
	}
	r.lastCall = time.Now()
}

// NewOpenLibraryClient creates a client with a hard timeout and a redirect cap.
func NewOpenLibraryClient(opts ClientOptions) *OpenLibraryClient {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://openlibrary.org"
	}
	if opts.CoversURL == "" {
		opts.CoversURL = "https://covers.openlibrary.org"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = DefaultMaxRedirects
	}
	maxRedirects := opts.MaxRedirects
	return &OpenLibraryClient{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
			CheckRedirect: func(_ *http.Request, via []*http.Request) error {
				if len(via) > maxRedirects {
					return fmt.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		coversURL:   strings.TrimRight(opts.CoversURL, "/"),
		rateLimiter: newRateLimiter(opts.RateInterval),
	}
}

// CoverURLForISBN returns the large cover image URL for an ISBN.
func (c *OpenLibraryClient) CoverURLForISBN(isbn string) string {
	isbn = entities.NormalizeISBN(isbn)
	if !entities.ValidISBN(isbn) {
		return ""
	}
	// default=false makes OpenLibrary answer 404 instead of a blank image
	return fmt.Sprintf("%s/b/isbn/%s-L.jpg?default=false", c.coversURL, isbn)
}

// SearchByTitle looks up a book by title and author, returning the best match
// that has a cover.
func (c *OpenLibraryClient) SearchByTitle(ctx context.Context, title, author string) (*CoverMatch, error) {
	if strings.TrimSpace(title) == "" {
		return nil, fmt.Errorf("title is required")
	}

	c.rateLimiter.wait()

	q := url.Values{}
	q.Set("title", title)
	if author != "" {
		q.Set("author", author)
	}
	q.Set("limit", "5")
	q.Set("fields", "title,author_name,isbn,cover_i")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search.json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search books: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	var result searchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	best := findBestMatch(result.Docs, title, author)
	if best == nil {
		return nil, ErrNoCover
	}
	match := &CoverMatch{Title: best.Title}
	if len(best.AuthorName) > 0 {
		match.Author = best.AuthorName[0]
	}
	if len(best.ISBN) > 0 {
		match.ISBN = best.ISBN[0]
	}
	if best.CoverI != 0 {
		match.CoverURL = fmt.Sprintf("%s/b/id/%d-L.jpg", c.coversURL, best.CoverI)
	} else {
		match.CoverURL = c.CoverURLForISBN(match.ISBN)
	}
	if match.CoverURL == "" {
		return nil, ErrNoCover
	}
	return match, nil
}

// FetchCover downloads an image. Non-image responses count as no cover.
func (c *OpenLibraryClient) FetchCover(ctx context.Context, coverURL string) ([]byte, error) {
	c.rateLimiter.wait()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, coverURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNoCover
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("%w: content type %s", ErrNoCover, ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read cover: %w", err)
	}
	if len(data) > maxCoverBytes {
		return nil, fmt.Errorf("cover larger than %d bytes", maxCoverBytes)
	}
	if len(data) == 0 {
		return nil, ErrNoCover
	}
	return data, nil
}

// findBestMatch scores title and author similarity; only docs with a cover
// or an ISBN are candidates.
func findBestMatch(docs []searchDoc, title, author string) *searchDoc {
	titleLower := strings.ToLower(title)
	authorLower := strings.ToLower(author)

	var best *searchDoc
	bestScore := -1
	for i := range docs {
		doc := &docs[i]
		if doc.CoverI == 0 && len(doc.ISBN) == 0 {
			continue
		}
		score := 0
		docTitle := strings.ToLower(doc.Title)
		if docTitle == titleLower {
			score += 10
		} else if strings.Contains(docTitle, titleLower) {
			score += 5
		}
		if author != "" {
			for _, a := range doc.AuthorName {
				a = strings.ToLower(a)
				if a == authorLower {
					score += 10
					break
				} else if strings.Contains(a, authorLower) {
					score += 5
					break
				}
			}
		}
		if doc.CoverI != 0 {
			score++
		}
		if score > bestScore {
			bestScore = score
			best = doc
		}
	}
	return best
}

type searchResult struct {
	NumFound int         `json:"numFound"`
	Docs     []searchDoc `json:"docs"`
}

type searchDoc struct {
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
	ISBN       []string `json:"isbn"`
	CoverI     int      `json:"cover_i"`
}
