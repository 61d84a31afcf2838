package action

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
)

const (
	YouTubeHome   = "https://www.youtube.com"
	SupermixQuery = "My Supermix"
)

type Launcher interface {
	Launch(ctx context.Context, name string) error
}

type Browser interface {
	Open(url string) error
}

// VideoPlayer plays the best web match for a free-text query.
type VideoPlayer interface {
	Play(ctx context.Context, query string) error
}

// LikedSearcher finds a video in the user's liked list. It reports
// false on any failure.
type LikedSearcher interface {
	SearchLiked(ctx context.Context, query string) (string, bool)
}

type Executor struct {
	launcher Launcher
	browser  Browser
	player   VideoPlayer
	liked    LikedSearcher
}

func NewExecutor(l Launcher, b Browser, p VideoPlayer, s LikedSearcher) *Executor {
	return &Executor{
		launcher: l,
		browser:  b,
		player:   p,
		liked:    s,
	}
}

// ExecuteAll runs actions sequentially in the given order.
func (e *Executor) ExecuteAll(ctx context.Context, actions []Action) {
	for _, a := range actions {
		e.Execute(ctx, a)
	}
}

// Execute performs a single action. Failures, including panics in a
// collaborator, are logged and never returned.
func (e *Executor) Execute(ctx context.Context, a Action) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Action panicked", "kind", a.Kind, "payload", a.Payload, "panic", fmt.Sprint(r))
		}
	}()

	log.Info("Executing action", "kind", a.Kind, "payload", a.Payload)

	var err error
	switch a.Kind {
	case Open:
		err = e.open(ctx, a.Payload)
	case Play:
		err = e.player.Play(ctx, a.Payload)
	case Liked:
		err = e.playLiked(ctx, a.Payload)
	default:
		err = fmt.Errorf("unsupported action kind %d", a.Kind)
	}

	if err != nil {
		log.Warn("Action failed", "kind", a.Kind, "payload", a.Payload, "err", err)
	}
}

func (e *Executor) open(ctx context.Context, name string) error {
	name = strings.ToLower(name)
	if strings.Contains(name, "youtube") {
		return e.browser.Open(YouTubeHome)
	}
	return e.launcher.Launch(ctx, name)
}

func (e *Executor) playLiked(ctx context.Context, query string) error {
	if url, ok := e.liked.SearchLiked(ctx, query); ok {
		return e.browser.Open(url)
	}

	q := strings.ToLower(query)
	if strings.Contains(q, "history") || strings.Contains(q, "mix") {
		return e.player.Play(ctx, SupermixQuery)
	}

	return e.player.Play(ctx, query)
}
