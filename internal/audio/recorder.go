package audio

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

const (
	SampleRate = 16000

	frameSize        = 320 // 20ms
	frameDuration    = 20 * time.Millisecond
	silenceThreshRMS = 0.015
	silenceHold      = 800 * time.Millisecond
	ambientWindow    = 200 * time.Millisecond
)

type noSpeechError struct{}

func (noSpeechError) Error() string { return "no speech before onset timeout" }
func (noSpeechError) Timeout() bool { return true }

// ErrNoSpeech is returned by Listen when nobody starts talking in time.
var ErrNoSpeech error = noSpeechError{}

// Microphone wraps the portaudio default input device.
type Microphone struct {
	mu   sync.Mutex
	busy bool
}

func NewMicrophone() *Microphone { return &Microphone{} }

func (m *Microphone) Init() error {
	return portaudio.Initialize()
}

func (m *Microphone) Terminate() {
	portaudio.Terminate()
}

// Open starts an input stream. Only one stream may be open at a time;
// it must be closed by the caller.
func (m *Microphone) Open() (*Stream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.busy {
		return nil, errors.New("microphone already in use")
	}

	buf := make([]float32, frameSize)
	stream, err := portaudio.OpenDefaultStream(1, 0, SampleRate, len(buf), buf)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, fmt.Errorf("start stream: %w", err)
	}

	m.busy = true
	return &Stream{mic: m, stream: stream, buf: buf}, nil
}

type Stream struct {
	mic    *Microphone
	stream *portaudio.Stream
	buf    []float32
	once   sync.Once
}

// Listen calibrates against ambient noise, waits up to onset for speech
// and records until trailing silence or limit.
func (s *Stream) Listen(ctx context.Context, onset, limit time.Duration) ([]float32, error) {
	ambient, err := s.ambient(ctx)
	if err != nil {
		return nil, err
	}
	threshold := calibrate(silenceThreshRMS, ambient)
	log.Debug("Calibrated microphone", "ambient", ambient, "threshold", threshold)

	det := newDetector(threshold, frameDuration, onset, limit, silenceHold)
	out := make([]float32, 0, SampleRate*3)

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if err := s.read(); err != nil {
			return nil, err
		}

		switch det.step(frameRMS(s.buf)) {
		case vadNoOnset:
			return nil, ErrNoSpeech
		case vadSpeech:
			out = append(out, s.buf...)
		case vadDone:
			out = append(out, s.buf...)
			return out, nil
		}
	}
}

func (s *Stream) ambient(ctx context.Context) (float64, error) {
	n := framesIn(ambientWindow, frameDuration)

	var sum float64
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := s.read(); err != nil {
			return 0, err
		}
		sum += frameRMS(s.buf)
	}
	return sum / float64(n), nil
}

// read fills buf with the next frame. Overflows happen when nobody read
// the stream for a while, e.g. during the await pause, and are harmless.
func (s *Stream) read() error {
	err := s.stream.Read()
	if errors.Is(err, portaudio.InputOverflowed) {
		return nil
	}
	return err
}

func (s *Stream) Close() error {
	var err error
	s.once.Do(func() {
		s.stream.Stop()
		err = s.stream.Close()

		s.mic.mu.Lock()
		s.mic.busy = false
		s.mic.mu.Unlock()
	})
	return err
}
