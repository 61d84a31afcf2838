package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"net/http"
	"net/url"
	"regexp"
)

const ResultsURL = "https://www.youtube.com/results"

var (
	ErrNoResults = errors.New("no video found")

	videoIDRe = regexp.MustCompile(`watch\?v=([A-Za-z0-9_-]{11})|"videoId":"([A-Za-z0-9_-]{11})"`)
)

type Opener interface {
	Open(url string) error
}

// WebPlayer plays the top search result for a query in the browser.
type WebPlayer struct {
	client     *http.Client
	browser    Opener
	resultsURL string
}

func NewWebPlayer(client *http.Client, browser Opener) *WebPlayer {
	if client == nil {
		client = http.DefaultClient
	}
	return &WebPlayer{client: client, browser: browser, resultsURL: ResultsURL}
}

func (p *WebPlayer) Play(ctx context.Context, query string) error {
	id, err := p.search(ctx, query)
	if err != nil {
		return err
	}

	log.Info("Playing video", "query", query, "id", id)
	return p.browser.Open(watchURL + id)
}

func (p *WebPlayer) search(ctx context.Context, query string) (string, error) {
	u := p.resultsURL + "?" + url.Values{"search_query": {query}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("search %q: %w", query, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("search %q: status %s", query, resp.Status)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read results: %w", err)
	}

	m := videoIDRe.FindSubmatch(body)
	if m == nil {
		return "", fmt.Errorf("%w for %q", ErrNoResults, query)
	}
	if len(m[1]) > 0 {
		return string(m[1]), nil
	}
	return string(m[2]), nil
}
