package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// HTTP fetches plain resources with a GET request.
type HTTP struct {
	http *http.Client
}

// NewHTTP creates an HTTP fetcher. A nil client means http.DefaultClient;
// the request context is the only deadline.
func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{http: client}
}

func (h *HTTP) Fetch(ctx context.Context, locator string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("download body: %w", err)
	}
	return nil
}
