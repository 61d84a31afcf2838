package session

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"optimus/internal/lang"
)

// Listen bounds are fixed per stage.
const (
	OnsetTimeout = 20 * time.Second
	PhraseLimit  = 60 * time.Second
	AwaitPause   = 2500 * time.Millisecond
)

// Microphone hands out exclusive capture sessions.
type Microphone interface {
	Open() (Capture, error)
}

// MicrophoneFunc adapts a function to Microphone.
type MicrophoneFunc func() (Capture, error)

func (f MicrophoneFunc) Open() (Capture, error) { return f() }

// Capture records utterances until closed. Listen returns an error
// with Timeout() == true when no speech starts within onset.
type Capture interface {
	Listen(ctx context.Context, onset, limit time.Duration) ([]float32, error)
	Close() error
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32, locale string) (string, error)
}

type Brain interface {
	Decide(ctx context.Context, command string, mode lang.Mode) string
}

type Voice interface {
	Say(ctx context.Context, text, voice string) error
}

type Config struct {
	WakeWord string
	Ack      string
	Voices   map[lang.Mode]string
	Language lang.Mode
}

func DefaultConfig() Config {
	return Config{
		WakeWord: "optimus",
		Ack:      "Yes sir?",
		Language: lang.Default,
	}
}

// Controller drives one listen session at a time: capture, wake word,
// engine call, and spoken reply.
type Controller struct {
	mic   Microphone
	stt   Transcriber
	brain Brain
	voice Voice
	cfg   Config

	status    *StatusMachine
	listening atomic.Bool

	speechMu sync.Mutex // guards pending
	pending  int
	playMu   sync.Mutex // serializes playback

	tasks      sync.WaitGroup
	awaitPause time.Duration
}

func NewController(mic Microphone, stt Transcriber, brain Brain, voice Voice, cfg Config) *Controller {
	def := DefaultConfig()
	if cfg.WakeWord == "" {
		cfg.WakeWord = def.WakeWord
	}
	if cfg.Ack == "" {
		cfg.Ack = def.Ack
	}
	if cfg.Language == "" {
		cfg.Language = def.Language
	}
	cfg.WakeWord = strings.ToLower(cfg.WakeWord)

	return &Controller{
		mic:        mic,
		stt:        stt,
		brain:      brain,
		voice:      voice,
		cfg:        cfg,
		status:     NewStatusMachine(cfg.Language),
		awaitPause: AwaitPause,
	}
}

func (c *Controller) Status() Status { return c.status.Status() }

func (c *Controller) Language() lang.Mode { return c.status.Language() }

func (c *Controller) SetLanguage(mode lang.Mode) {
	log.Info("Language selected", "lang", mode)
	c.status.SetLanguage(mode)
}

func (c *Controller) Snapshot() Snapshot { return c.status.Snapshot() }

func (c *Controller) Watch() <-chan Snapshot { return c.status.Watch() }

// Wait blocks until every listen and speak task has finished.
func (c *Controller) Wait() { c.tasks.Wait() }

// Trigger starts a listen session. It reports false, doing nothing,
// when a session is already running.
func (c *Controller) Trigger() bool {
	if !c.listening.CompareAndSwap(false, true) {
		log.Debug("Already listening, trigger ignored")
		return false
	}

	c.spawn("listen", func(ctx context.Context) error {
		defer c.listening.Store(false)
		defer c.status.CompareAndSet(Standby, Listening, Awaiting, Processing)
		return c.listen(ctx)
	})

	return true
}

func (c *Controller) listen(ctx context.Context) error {
	mode := c.Language()

	capture, err := c.mic.Open()
	if err != nil {
		return fmt.Errorf("open microphone: %w", err)
	}
	defer capture.Close()

	c.status.Set(Listening)

	heard, err := c.hear(ctx, capture, mode)
	if err != nil {
		return err
	}
	log.Info("Heard", "text", heard, "lang", mode)

	command, addressed := ExtractCommand(heard, c.cfg.WakeWord, mode)
	if !addressed {
		return ErrNotAddressed
	}

	if command == "" {
		c.speak(c.cfg.Ack, mode)
		c.status.Set(Awaiting)
		time.Sleep(c.awaitPause)
		c.status.Set(Listening)

		command, err = c.hear(ctx, capture, mode)
		if err != nil {
			return err
		}
		log.Info("Heard follow-up", "text", command)
	}

	c.status.Set(Processing)
	reply := c.brain.Decide(ctx, command, mode)
	c.speak(reply, mode)

	return nil
}

func (c *Controller) hear(ctx context.Context, capture Capture, mode lang.Mode) (string, error) {
	pcm, err := capture.Listen(ctx, OnsetTimeout, PhraseLimit)
	if err != nil {
		return "", fmt.Errorf("capture: %w", err)
	}

	text, err := c.stt.Transcribe(ctx, pcm, mode.Locale())
	if err != nil {
		return "", fmt.Errorf("transcribe: %w", err)
	}

	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return "", ErrUnintelligible
	}

	return text, nil
}

// speak sets Speaking immediately and plays text in the background.
// Overlapping calls queue behind each other; the status returns to
// Standby after the last queued utterance.
func (c *Controller) speak(text string, mode lang.Mode) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	c.speechMu.Lock()
	c.pending++
	c.status.Set(Speaking)
	c.speechMu.Unlock()

	voice := c.voiceFor(mode)

	c.spawn("speak", func(ctx context.Context) error {
		defer c.finishSpeech()

		c.playMu.Lock()
		defer c.playMu.Unlock()

		return c.voice.Say(ctx, text, voice)
	})
}

func (c *Controller) finishSpeech() {
	c.speechMu.Lock()
	defer c.speechMu.Unlock()

	c.pending--
	if c.pending == 0 {
		c.status.CompareAndSet(Standby, Speaking)
	}
}

func (c *Controller) voiceFor(mode lang.Mode) string {
	if v, ok := c.cfg.Voices[mode]; ok && v != "" {
		return v
	}
	return mode.Voice()
}

func (c *Controller) spawn(name string, fn func(context.Context) error) *Task {
	c.tasks.Add(1)
	return startTask(context.Background(), name, isQuiet, fn, c.tasks.Done)
}

// ExtractCommand applies the wake-word rule. In the default language
// the transcript must contain wake; in other languages every utterance
// is addressed. The wake word and punctuation are removed from the
// command.
func ExtractCommand(transcript, wake string, mode lang.Mode) (string, bool) {
	if mode.IsDefault() && !strings.Contains(transcript, wake) {
		return "", false
	}

	var words []string
	for _, w := range strings.Fields(strings.ReplaceAll(transcript, wake, "")) {
		if w = strings.Trim(w, ",.!?;:"); w != "" {
			words = append(words, w)
		}
	}
	return strings.Join(words, " "), true
}

type timeout interface {
	Timeout() bool
}

func isQuiet(err error) bool {
	if errors.Is(err, ErrNotAddressed) || errors.Is(err, ErrUnintelligible) {
		return true
	}
	var t timeout
	return errors.As(err, &t) && t.Timeout()
}
