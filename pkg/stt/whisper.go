package stt

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

var (
	ErrNoAudio = errors.New("no audio samples provided")

	// whisper marks non-speech with bracketed or parenthesised tags such
	// as [BLANK_AUDIO], [Music] or (coughs).
	markerRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)`)
	spaceRe  = regexp.MustCompile(`\s+`)
)

type Options struct {
	Threads       int    // <=0 => NumCPU()
	InitialPrompt string // optional prefix prompt, e.g. the wake word
	BeamSize      int    // 0 = greedy
}

type Transcriber struct {
	mu    sync.Mutex
	model whisper.Model
	opt   Options
}

func NewTranscriber(modelPath string, opt Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Transcriber{model: m, opt: opt}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// Transcribe converts mono 16 kHz samples to text in the language named
// by locale ("en-IN", "hi-IN", ...). Non-speech markers are dropped, so
// silence yields an empty string and no error.
func (t *Transcriber) Transcribe(ctx context.Context, pcm []float32, locale string) (string, error) {
	if t.model == nil {
		return "", errors.New("nil model")
	}
	if len(pcm) == 0 {
		return "", ErrNoAudio
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("new context: %w", err)
	}

	if err := wctx.SetLanguage(LanguageOf(locale)); err != nil {
		return "", fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(false)

	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if t.opt.BeamSize > 0 {
		wctx.SetBeamSize(t.opt.BeamSize)
	}
	if t.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opt.InitialPrompt)
	}

	if err := wctx.Process(pcm, nil, nil, nil); err != nil {
		return "", fmt.Errorf("process: %w", err)
	}

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("next segment: %w", err)
		}
		parts = append(parts, s.Text)
	}

	return Clean(strings.Join(parts, " ")), nil
}

// LanguageOf maps a BCP-47 locale to the whisper language code.
func LanguageOf(locale string) string {
	code, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(locale)), "-")
	if code == "" {
		return "auto"
	}
	return code
}

// Clean strips non-speech markers and collapses whitespace.
func Clean(text string) string {
	text = markerRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(text, " "))
}
