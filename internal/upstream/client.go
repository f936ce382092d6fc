// Package upstream fetches paginated channel listings from the third-party
// channel API.
package upstream

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"

	"github.com/voyagen/fiootv/internal/models"
)

// Record is one channel as returned upstream.
type Record struct {
	Number models.FlexString `json:"number"`
	Title  string            `json:"title"`
	Genre  string            `json:"Genre"`
}

// Page is one page of results for a genre.
type Page struct {
	Total json.Number `json:"total"`
	Data  []Record    `json:"data"`
}

// TotalCount returns Total as an int; unparsable values count as 0.
func (p *Page) TotalCount() int {
	n, err := p.Total.Int64()
	if err != nil {
		f, ferr := p.Total.Float64()
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return int(n)
}

// Query selects one page of channels.
type Query struct {
	Search string
	Genre  string
	Page   int
}

// Client calls the channel listing endpoint.
type Client struct {
	endpoint   string
	referer    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a client for endpoint. The Referer header is derived
// from the endpoint's origin.
func NewClient(endpoint, userAgent string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("upstream url must be http or https: %q", endpoint)
	}
	return &Client{
		endpoint:   endpoint,
		referer:    u.Scheme + "://" + u.Host + "/",
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// FetchPage requests one page, authenticating with the given Cookie header value.
func (c *Client) FetchPage(ctx context.Context, cookie string, q Query) (*Page, error) {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url: %w", err)
	}
	params := u.Query()
	params.Set("search", q.Search)
	params.Set("genre", q.Genre)
	params.Set("page", strconv.Itoa(q.Page))
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("NewRequest: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Referer", c.referer)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	// Setting Accept-Encoding turns off the transport's transparent gzip, so
	// decodeBody handles both encodings.
	req.Header.Set("Accept-Encoding", "br, gzip")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch genre %s, page %d: %w", q.Genre, q.Page, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("Failed to fetch data for genre %s, page %d: %s", q.Genre, q.Page, resp.Status)
	}
	body, err := decodeBody(resp)
	if err != nil {
		return nil, fmt.Errorf("read genre %s, page %d: %w", q.Genre, q.Page, err)
	}
	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode genre %s, page %d: %w", q.Genre, q.Page, err)
	}
	return &page, nil
}

// decodeBody reads the response body, undoing any content encoding.
func decodeBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "br":
		r = brotli.NewReader(resp.Body)
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}
	return io.ReadAll(r)
}
