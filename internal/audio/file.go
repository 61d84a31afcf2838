package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"optimus/pkg/audioconv"
)

// FileMicrophone replays recorded utterances instead of the device.
// Each Listen returns the next file; the last one repeats.
type FileMicrophone struct {
	mu    sync.Mutex
	paths []string
	next  int
}

func NewFileMicrophone(paths ...string) *FileMicrophone {
	return &FileMicrophone{paths: paths}
}

func (m *FileMicrophone) Open() (*FileStream, error) {
	if len(m.paths) == 0 {
		return nil, errors.New("no input files")
	}
	return &FileStream{mic: m}, nil
}

type FileStream struct {
	mic *FileMicrophone
}

func (s *FileStream) Listen(ctx context.Context, _ time.Duration, limit time.Duration) ([]float32, error) {
	path := s.mic.take()

	pcm, err := audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{
		MaxSamples: int(limit.Seconds() * SampleRate),
	})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if len(pcm) == 0 {
		return nil, ErrNoSpeech
	}

	return pcm, nil
}

func (s *FileStream) Close() error { return nil }

func (m *FileMicrophone) take() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	p := m.paths[m.next]
	if m.next < len(m.paths)-1 {
		m.next++
	}
	return p
}
