package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/licdata/licmerge/internal/archive"
)

// maxResponseBytes caps a single response body read. Registry pages are a
// few hundred KB at most; anything larger is a broken response.
const maxResponseBytes = 8 << 20

// Client is the shared HTTP client for the live registry origin.
//
// Every request waits on a courtesy limiter of one request per configured
// delay. Per-entity fetches are already spaced by the dispatch scheduler,
// but roster paging is not, and the limiter keeps the combined request
// stream under the same ceiling either way.
//
// When an archive is attached, every response body is captured and
// journaled before it is parsed, so a failed parse still leaves the raw
// evidence on disk.
type Client struct {
	httpc   *http.Client
	baseURL string
	token   string
	limiter *rate.Limiter
	arch    *archive.Archive
	runID   string
}

// ClientOptions configures a Client.
type ClientOptions struct {
	BaseURL string
	Token   string        // bearer credential for the live origin; empty disables the header
	Delay   time.Duration // courtesy spacing between requests
	Archive *archive.Archive
	RunID   string
	HTTPC   *http.Client // overridable for tests; nil selects a 30s-timeout default
}

// NewClient creates a live-origin client.
func NewClient(opts ClientOptions) *Client {
	httpc := opts.HTTPC
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	limit := rate.Inf
	if opts.Delay > 0 {
		limit = rate.Every(opts.Delay)
	}
	return &Client{
		httpc:   httpc,
		baseURL: opts.BaseURL,
		token:   opts.Token,
		limiter: rate.NewLimiter(limit, 1),
		arch:    opts.Archive,
		runID:   opts.RunID,
	}
}

// get performs one rate-limited GET and returns the body, capturing it
// under (source, name) when an archive is attached.
func (c *Client) get(ctx context.Context, source, name, path string, query url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if c.arch != nil {
		if _, err := c.arch.SaveResponse(ctx, c.runID, source, name, body); err != nil {
			// The record is still usable; the archive is just missing
			// one body. Log and carry on.
			slog.Warn("capture failed", "source", source, "name", name, "error", err)
		}
	}
	return body, nil
}
