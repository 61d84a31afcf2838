package youtube

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
)

const (
	LikedPlaylist = "LL"
	likedPageSize = 50
	likedCacheKey = "liked"
	watchURL      = "https://www.youtube.com/watch?v="
)

// Video is one entry of the liked playlist.
type Video struct {
	ID    string
	Title string
}

func (v Video) URL() string { return watchURL + v.ID }

type Config struct {
	SecretPath  string
	TokenPath   string
	Interactive bool
	CacheTTL    time.Duration
	HTTPClient  *http.Client // base client for OAuth and API traffic
	Open        func(url string) error
}

// LikedClient searches the user's liked videos. A client that could not
// be authorized stays usable and reports no match.
type LikedClient struct {
	svc   *yt.Service
	cache *cache.Cache
}

// Connect authorizes against YouTube with a cached token, refreshing it
// or, when Interactive is set, running the consent flow. Failures are
// logged and yield an unauthorized client.
func Connect(ctx context.Context, cfg Config) *LikedClient {
	c, err := connect(ctx, cfg)
	if err != nil {
		log.Warn("YouTube liked search disabled", "err", err)
		return Disabled()
	}
	return c
}

// Disabled returns a client that never finds a match.
func Disabled() *LikedClient {
	return &LikedClient{cache: newCache(0)}
}

func connect(ctx context.Context, cfg Config) (*LikedClient, error) {
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}

	oauthCfg, err := LoadOAuthConfig(cfg.SecretPath)
	if err != nil {
		return nil, err
	}

	file := TokenFile{Path: cfg.TokenPath}
	tok, err := file.Load()
	switch {
	case err == nil:
	case errors.Is(err, os.ErrNotExist) && cfg.Interactive && cfg.Open != nil:
		if tok, err = Authorize(ctx, oauthCfg, cfg.Open); err != nil {
			return nil, fmt.Errorf("authorize: %w", err)
		}
		if err := file.Save(tok); err != nil {
			log.Warn("Failed to persist token", "path", file.Path, "err", err)
		}
	default:
		return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
	}

	// Token refreshes happen lazily, long after ctx's caller returned.
	httpClient := oauth2.NewClient(context.WithoutCancel(ctx), TokenSource(context.WithoutCancel(ctx), oauthCfg, tok, file))

	return NewLikedClient(ctx, option.WithHTTPClient(httpClient), cfg.CacheTTL)
}

// NewLikedClient builds a client from API options directly.
func NewLikedClient(ctx context.Context, opt option.ClientOption, ttl time.Duration) (*LikedClient, error) {
	svc, err := yt.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("youtube service: %w", err)
	}
	return &LikedClient{svc: svc, cache: newCache(ttl)}, nil
}

func newCache(ttl time.Duration) *cache.Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return cache.New(ttl, 2*ttl)
}

func (c *LikedClient) Authorized() bool { return c.svc != nil }

// SearchLiked returns the URL of the first liked video whose title
// contains query, case-insensitively.
func (c *LikedClient) SearchLiked(ctx context.Context, query string) (string, bool) {
	videos, err := c.Liked(ctx)
	if err != nil {
		log.Warn("Liked search failed", "query", query, "err", err)
		return "", false
	}

	if v, ok := Match(videos, query); ok {
		log.Info("Found liked video", "query", query, "title", v.Title)
		return v.URL(), true
	}

	log.Debug("No liked video matched", "query", query, "searched", len(videos))
	return "", false
}

// Liked lists the first page of the liked playlist.
func (c *LikedClient) Liked(ctx context.Context) ([]Video, error) {
	if c.svc == nil {
		return nil, ErrNotAuthorized
	}
	if v, ok := c.cache.Get(likedCacheKey); ok {
		return v.([]Video), nil
	}

	resp, err := c.svc.PlaylistItems.List([]string{"snippet"}).
		PlaylistId(LikedPlaylist).
		MaxResults(likedPageSize).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list liked: %w", err)
	}

	videos := make([]Video, 0, len(resp.Items))
	for _, it := range resp.Items {
		if it.Snippet == nil || it.Snippet.ResourceId == nil {
			continue
		}
		videos = append(videos, Video{
			ID:    it.Snippet.ResourceId.VideoId,
			Title: it.Snippet.Title,
		})
	}

	c.cache.SetDefault(likedCacheKey, videos)
	return videos, nil
}

// Match picks the first video whose title contains query.
func Match(videos []Video, query string) (Video, bool) {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return Video{}, false
	}
	for _, v := range videos {
		if v.ID != "" && strings.Contains(strings.ToLower(v.Title), q) {
			return v, true
		}
	}
	return Video{}, false
}
