package passage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxPayloadBytes = 8 << 20

// Client fetches surah text from an alquran.cloud compatible API.
type Client struct {
	BaseURL   string
	UserAgent string
	HTTP      *http.Client
}

// NewClient constructs a content client with a bounded request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Surah fetches every verse of surah in the given text edition.
func (c *Client) Surah(ctx context.Context, surah int, edition string) (Passage, error) {
	if surah < 1 || surah > 114 {
		return Passage{}, fmt.Errorf("surah %d out of range 1..114", surah)
	}
	edition = strings.TrimSpace(edition)
	if edition == "" {
		return Passage{}, fmt.Errorf("edition must not be empty")
	}

	url := fmt.Sprintf("%s/surah/%d/%s", c.BaseURL, surah, edition)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Passage{}, fmt.Errorf("build request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Passage{}, fmt.Errorf("fetch surah %d: %w", surah, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Passage{}, fmt.Errorf("fetch surah %d: HTTP %d from %s", surah, resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return Passage{}, fmt.Errorf("read surah %d: %w", surah, err)
	}

	p, err := decodeSurah(body)
	if err != nil {
		return Passage{}, fmt.Errorf("surah %d: %w", surah, err)
	}
	if p.Edition == "" {
		p.Edition = edition
	}
	return p, nil
}

// Ping checks that the content API answers the surah index.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/surah", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("HTTP %d from %s/surah", resp.StatusCode, c.BaseURL)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
}
