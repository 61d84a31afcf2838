package youtube

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"
)

const likedPage = `{
	"items": [
		{"snippet": {"title": "Lofi Beats to Study To", "resourceId": {"videoId": "aaaaaaaaaaa"}}},
		{"snippet": {"title": "Imagine - Remastered", "resourceId": {"videoId": "bbbbbbbbbbb"}}},
		{"snippet": {"title": "Deleted video"}}
	]
}`

func newLikedServer(t *testing.T, hits *atomic.Int32) *LikedClient {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/youtube/v3/playlistItems", r.URL.Path)
		assert.Equal(t, LikedPlaylist, r.URL.Query().Get("playlistId"))
		assert.Equal(t, "50", r.URL.Query().Get("maxResults"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(likedPage))
	}))
	t.Cleanup(srv.Close)

	c, err := NewLikedClient(context.Background(),
		option.WithHTTPClient(srv.Client()), time.Minute)
	require.NoError(t, err)
	c.svc.BasePath = srv.URL + "/"
	return c
}

func TestLikedClient_SearchLiked(t *testing.T) {
	var hits atomic.Int32
	c := newLikedServer(t, &hits)

	u, ok := c.SearchLiked(context.Background(), "IMAGINE")
	require.True(t, ok)
	assert.Equal(t, "https://www.youtube.com/watch?v=bbbbbbbbbbb", u)

	_, ok = c.SearchLiked(context.Background(), "workout mix")
	assert.False(t, ok)

	assert.Equal(t, int32(1), hits.Load(), "playlist is cached")
}

func TestLikedClient_ServerErrorIsNoMatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"code": 401, "message": "unauthorized"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewLikedClient(context.Background(), option.WithHTTPClient(srv.Client()), time.Minute)
	require.NoError(t, err)
	c.svc.BasePath = srv.URL + "/"

	_, ok := c.SearchLiked(context.Background(), "imagine")
	assert.False(t, ok)
}

func TestConnect_MissingSecretIsUnauthorized(t *testing.T) {
	dir := t.TempDir()
	c := Connect(context.Background(), Config{
		SecretPath: filepath.Join(dir, "client_secret.json"),
		TokenPath:  filepath.Join(dir, "youtube_token.json"),
	})

	assert.False(t, c.Authorized())
	_, ok := c.SearchLiked(context.Background(), "imagine")
	assert.False(t, ok)

	_, err := c.Liked(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestMatch(t *testing.T) {
	videos := []Video{
		{ID: "1", Title: "Lofi Beats"},
		{ID: "", Title: "Imagine (private)"},
		{ID: "2", Title: "Imagine"},
	}

	v, ok := Match(videos, "  imagine ")
	require.True(t, ok)
	assert.Equal(t, "2", v.ID)

	_, ok = Match(videos, "")
	assert.False(t, ok)
}

func TestTokenFile_RoundTrip(t *testing.T) {
	f := TokenFile{Path: filepath.Join(t.TempDir(), "token.json")}
	tok := &oauth2.Token{AccessToken: "at", RefreshToken: "rt", TokenType: "Bearer"}

	require.NoError(t, f.Save(tok))
	got, err := f.Load()
	require.NoError(t, err)
	assert.Equal(t, "at", got.AccessToken)
	assert.Equal(t, "rt", got.RefreshToken)
}

func TestAuthorize(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "at",
			"refresh_token": "rt",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	}))
	defer tokenSrv.Close()

	cfg := &oauth2.Config{
		ClientID:     "id",
		ClientSecret: "secret",
		Endpoint: oauth2.Endpoint{
			AuthURL:  "https://accounts.example.com/auth",
			TokenURL: tokenSrv.URL,
		},
	}

	open := func(consent string) error {
		u, err := url.Parse(consent)
		if err != nil {
			return err
		}
		q := u.Query()
		cb := q.Get("redirect_uri") + "?" + url.Values{
			"state": {q.Get("state")},
			"code":  {"the-code"},
		}.Encode()
		resp, err := http.Get(cb)
		if err != nil {
			return err
		}
		return resp.Body.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok, err := Authorize(ctx, cfg, open)
	require.NoError(t, err)
	assert.Equal(t, "at", tok.AccessToken)
	assert.Equal(t, "rt", tok.RefreshToken)
}

func TestAuthorize_ContextDone(t *testing.T) {
	cfg := &oauth2.Config{Endpoint: oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth"}}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Authorize(ctx, cfg, func(string) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

type fakeOpener struct {
	urls []string
}

func (o *fakeOpener) Open(u string) error {
	o.urls = append(o.urls, u)
	return nil
}

func TestWebPlayer_Play(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("search_query")
		_, _ = w.Write([]byte(`<html><script>var d = {"videoId":"dQw4w9WgXcQ","title":"x"};</script></html>`))
	}))
	defer srv.Close()

	b := &fakeOpener{}
	p := NewWebPlayer(srv.Client(), b)
	p.resultsURL = srv.URL + "/results"

	require.NoError(t, p.Play(context.Background(), "My Supermix"))
	assert.Equal(t, "My Supermix", query)
	assert.Equal(t, []string{"https://www.youtube.com/watch?v=dQw4w9WgXcQ"}, b.urls)
}

func TestWebPlayer_NoResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>nothing here</html>`))
	}))
	defer srv.Close()

	b := &fakeOpener{}
	p := NewWebPlayer(srv.Client(), b)
	p.resultsURL = srv.URL + "/results"

	err := p.Play(context.Background(), "qwertyuiop")
	assert.ErrorIs(t, err, ErrNoResults)
	assert.Empty(t, b.urls)
}
