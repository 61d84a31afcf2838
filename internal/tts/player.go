package tts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

// OutputRate is the rate the speaker is opened at; sources at other
// rates are resampled.
const OutputRate beep.SampleRate = 44100

// Speaker plays wav and mp3 files through the default output device.
type Speaker struct {
	once    sync.Once
	initErr error
	mu      sync.Mutex
}

func NewSpeaker() *Speaker { return &Speaker{} }

func (s *Speaker) init() error {
	s.once.Do(func() {
		s.initErr = speaker.Init(OutputRate, OutputRate.N(time.Second/10))
	})
	return s.initErr
}

// PlayFile blocks until the file finished playing or ctx is done.
func (s *Speaker) PlayFile(ctx context.Context, path string) error {
	if err := s.init(); err != nil {
		return fmt.Errorf("speaker init: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}

	streamer, format, err := decode(f, path)
	if err != nil {
		f.Close()
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	defer streamer.Close()

	var src beep.Streamer = streamer
	if format.SampleRate != OutputRate {
		src = beep.Resample(4, format.SampleRate, OutputRate, streamer)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	done := make(chan struct{})
	speaker.Play(beep.Seq(src, beep.Callback(func() {
		close(done)
	})))

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		speaker.Clear()
		return ctx.Err()
	}
}

func decode(f *os.File, path string) (beep.StreamSeekCloser, beep.Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return mp3.Decode(f)
	case ".wav":
		return wav.Decode(f)
	default:
		return nil, beep.Format{}, fmt.Errorf("unsupported audio file %q", filepath.Ext(path))
	}
}
