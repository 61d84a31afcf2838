package youtube

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"net"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	yt "google.golang.org/api/youtube/v3"
)

var ErrNotAuthorized = errors.New("youtube client not authorized")

// LoadOAuthConfig reads a Google "installed app" client secret file.
func LoadOAuthConfig(secretPath string) (*oauth2.Config, error) {
	data, err := os.ReadFile(secretPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret: %w", err)
	}

	cfg, err := google.ConfigFromJSON(data, yt.YoutubeReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	return cfg, nil
}

// TokenFile persists an OAuth token as JSON.
type TokenFile struct {
	Path string
}

func (f TokenFile) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, err
	}

	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return &tok, nil
}

func (f TokenFile) Save(tok *oauth2.Token) error {
	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	return os.WriteFile(f.Path, data, 0o600)
}

// savingSource writes refreshed tokens back to the token file.
type savingSource struct {
	mu   sync.Mutex
	src  oauth2.TokenSource
	file TokenFile
	last string
}

func (s *savingSource) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken != s.last {
		s.last = tok.AccessToken
		if err := s.file.Save(tok); err != nil {
			log.Warn("Failed to persist refreshed token", "path", s.file.Path, "err", err)
		}
	}
	return tok, nil
}

// TokenSource returns a token source that refreshes tok as needed and
// keeps the token file current.
func TokenSource(ctx context.Context, cfg *oauth2.Config, tok *oauth2.Token, file TokenFile) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(tok, &savingSource{
		src:  cfg.TokenSource(ctx, tok),
		file: file,
		last: tok.AccessToken,
	})
}

// Authorize runs the installed-app consent flow: it serves a one-shot
// callback on a loopback port, hands the consent URL to open and
// exchanges the returned code for a token.
func Authorize(ctx context.Context, cfg *oauth2.Config, open func(url string) error) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("listen for callback: %w", err)
	}

	conf := *cfg
	conf.RedirectURL = fmt.Sprintf("http://%s/", ln.Addr().String())
	state := uuid.NewString()

	type callback struct {
		code string
		err  error
	}
	result := make(chan callback, 1)

	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			return
		case q.Get("error") != "":
			fmt.Fprintln(w, "Authorization denied. You can close this window.")
			select {
			case result <- callback{err: fmt.Errorf("consent denied: %s", q.Get("error"))}:
			default:
			}
			return
		}
		fmt.Fprintln(w, "Authorization complete. You can close this window.")
		select {
		case result <- callback{code: q.Get("code")}:
		default:
		}
	})}

	go srv.Serve(ln)
	defer srv.Close()

	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	log.Info("Waiting for YouTube authorization", "url", authURL)
	if err := open(authURL); err != nil {
		log.Warn("Failed to open browser, visit the URL manually", "err", err)
	}

	var cb callback
	select {
	case cb = <-result:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if cb.err != nil {
		return nil, cb.err
	}

	tok, err := conf.Exchange(ctx, cb.code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	return tok, nil
}
