package notify

import (
	"bytes"
	"context"
	"fmt"
	log "log/slog"
	"os/exec"
	"strings"

	"optimus/internal/session"
)

// Player plays a short audio file to the end. *tts.Speaker satisfies it.
type Player interface {
	PlayFile(ctx context.Context, path string) error
}

type Notifier struct {
	chime   string
	player  Player
	desktop bool
	run     func(ctx context.Context, name string, args ...string) error
}

// New builds a Notifier. An empty chime path disables the listen chime.
func New(chime string, player Player, desktop bool) *Notifier {
	return &Notifier{
		chime:   chime,
		player:  player,
		desktop: desktop,
		run:     runCommand,
	}
}

// Follow announces every entry into Listening until updates is closed
// or ctx is done.
func (n *Notifier) Follow(ctx context.Context, updates <-chan session.Snapshot) {
	prev := session.Standby
	for {
		select {
		case <-ctx.Done():
			return
		case s, ok := <-updates:
			if !ok {
				return
			}
			if s.Status == session.Listening && prev != session.Listening && prev != session.Awaiting {
				n.Listening(ctx)
			}
			prev = s.Status
		}
	}
}

func (n *Notifier) Listening(ctx context.Context) {
	if n.chime != "" && n.player != nil {
		if err := n.player.PlayFile(ctx, n.chime); err != nil {
			log.Warn("Failed to play chime", "path", n.chime, "err", err)
		}
	}
	n.Notify(ctx, "Optimus", "Listening...")
}

// Notify shows a desktop notification through notify-send.
func (n *Notifier) Notify(ctx context.Context, summary, body string) {
	if !n.desktop {
		return
	}
	if err := n.run(ctx, "notify-send", "-a", "optimus", "-t", "2000", summary, body); err != nil {
		log.Debug("Desktop notification failed", "err", err)
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
