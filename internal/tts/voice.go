package tts

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyAudio means synthesis finished without producing audio.
var ErrEmptyAudio = errors.New("synthesized audio is empty")

type Synthesizer interface {
	Synthesize(ctx context.Context, text, voice, path string) error
}

type Player interface {
	PlayFile(ctx context.Context, path string) error
}

// Ducker lowers other playback while the assistant talks.
// *audio.Ducker satisfies it.
type Ducker interface {
	Duck(ctx context.Context, factor float64, d time.Duration) error
	Restore(ctx context.Context, d time.Duration) error
}

type VoiceConfig struct {
	Dir        string // artifact directory, defaults to os.TempDir()
	DuckFactor float64
	DuckFade   time.Duration
}

// Voice renders text to a temporary audio file, plays it to the end and
// removes the file.
type Voice struct {
	synth  Synthesizer
	player Player
	ducker Ducker
	cfg    VoiceConfig
}

// NewVoice builds a Voice. ducker may be nil.
func NewVoice(synth Synthesizer, player Player, ducker Ducker, cfg VoiceConfig) *Voice {
	if cfg.Dir == "" {
		cfg.Dir = os.TempDir()
	}
	if cfg.DuckFactor <= 0 || cfg.DuckFactor > 1 {
		cfg.DuckFactor = 0.3
	}
	return &Voice{synth: synth, player: player, ducker: ducker, cfg: cfg}
}

func (v *Voice) Say(ctx context.Context, text, voice string) error {
	path := filepath.Join(v.cfg.Dir, "optimus-voice-"+uuid.NewString()+".wav")
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Warn("Failed to remove voice artifact", "path", path, "err", err)
		}
	}()

	if err := v.synth.Synthesize(ctx, text, voice, path); err != nil {
		return fmt.Errorf("synthesize: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat artifact: %w", err)
	}
	if info.Size() == 0 {
		return ErrEmptyAudio
	}

	if v.ducker != nil {
		if err := v.ducker.Duck(ctx, v.cfg.DuckFactor, v.cfg.DuckFade); err != nil {
			log.Warn("Failed to duck other streams", "err", err)
		}
		defer func() {
			if err := v.ducker.Restore(context.Background(), v.cfg.DuckFade); err != nil {
				log.Warn("Failed to restore other streams", "err", err)
			}
		}()
	}

	log.Debug("Speaking", "voice", voice, "bytes", info.Size())

	if err := v.player.PlayFile(ctx, path); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}
