package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"optimus/internal/lang"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type timeoutErr struct{}

func (timeoutErr) Error() string { return "no speech" }
func (timeoutErr) Timeout() bool { return true }

type fakeMic struct {
	mu      sync.Mutex
	opens   int
	closes  int
	listens int
	errs    []error
	gate    chan struct{}
	openErr error
}

func (m *fakeMic) Open() (Capture, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opens++
	return &fakeCapture{mic: m}, nil
}

type fakeCapture struct {
	mic *fakeMic
}

func (c *fakeCapture) Listen(ctx context.Context, onset, limit time.Duration) ([]float32, error) {
	if c.mic.gate != nil {
		<-c.mic.gate
	}

	c.mic.mu.Lock()
	defer c.mic.mu.Unlock()

	i := c.mic.listens
	c.mic.listens++
	if i < len(c.mic.errs) && c.mic.errs[i] != nil {
		return nil, c.mic.errs[i]
	}
	return []float32{0.1, 0.2}, nil
}

func (c *fakeCapture) Close() error {
	c.mic.mu.Lock()
	defer c.mic.mu.Unlock()
	c.mic.closes++
	return nil
}

type fakeSTT struct {
	mu          sync.Mutex
	transcripts []string
	locales     []string
	panics      bool
}

func (s *fakeSTT) Transcribe(_ context.Context, _ []float32, locale string) (string, error) {
	if s.panics {
		panic("model crashed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.locales = append(s.locales, locale)
	if len(s.transcripts) == 0 {
		return "", nil
	}
	t := s.transcripts[0]
	s.transcripts = s.transcripts[1:]
	return t, nil
}

type fakeBrain struct {
	mu       sync.Mutex
	reply    string
	commands []string
	statuses []Status
	ctrl     *Controller
}

func (b *fakeBrain) Decide(_ context.Context, command string, mode lang.Mode) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.commands = append(b.commands, command)
	if b.ctrl != nil {
		b.statuses = append(b.statuses, b.ctrl.Status())
	}
	return b.reply
}

func (b *fakeBrain) calls() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.commands...)
}

type fakeVoice struct {
	mu      sync.Mutex
	said    []string
	voices  []string
	err     error
	delay   time.Duration
	active  atomic.Int32
	overlap atomic.Bool
}

func (v *fakeVoice) Say(_ context.Context, text, voice string) error {
	if v.active.Add(1) > 1 {
		v.overlap.Store(true)
	}
	defer v.active.Add(-1)

	time.Sleep(v.delay)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.said = append(v.said, text)
	v.voices = append(v.voices, voice)
	return v.err
}

func (v *fakeVoice) spoken() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.said...)
}

type harness struct {
	mic   *fakeMic
	stt   *fakeSTT
	brain *fakeBrain
	voice *fakeVoice
	ctrl  *Controller
}

func newHarness(transcripts ...string) *harness {
	h := &harness{
		mic:   &fakeMic{},
		stt:   &fakeSTT{transcripts: transcripts},
		brain: &fakeBrain{reply: "Opening notepad."},
		voice: &fakeVoice{},
	}
	h.ctrl = NewController(h.mic, h.stt, h.brain, h.voice, DefaultConfig())
	h.ctrl.awaitPause = 10 * time.Millisecond
	h.brain.ctrl = h.ctrl
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	require.True(t, h.ctrl.Trigger())
	h.ctrl.Wait()
}

func TestController_DirectPath(t *testing.T) {
	h := newHarness("Optimus, open notepad.")
	h.run(t)

	assert.Equal(t, []string{"open notepad"}, h.brain.calls())
	assert.Equal(t, []Status{Processing}, h.brain.statuses)
	assert.Equal(t, []string{"Opening notepad."}, h.voice.spoken())
	assert.Equal(t, []string{"en-gb"}, h.voice.voices)
	assert.Equal(t, []string{"en-IN"}, h.stt.locales)
	assert.Equal(t, Standby, h.ctrl.Status())
	assert.Equal(t, 1, h.mic.opens)
	assert.Equal(t, 1, h.mic.closes)
}

func TestController_MissingWakeWord(t *testing.T) {
	h := newHarness("open notepad")
	h.run(t)

	assert.Empty(t, h.brain.calls())
	assert.Empty(t, h.voice.spoken())
	assert.Equal(t, Standby, h.ctrl.Status())
	assert.Equal(t, 1, h.mic.closes)
}

func TestController_NonDefaultLanguageNeedsNoWakeWord(t *testing.T) {
	h := newHarness("नोटपैड खोलो")
	h.ctrl.SetLanguage(lang.Hindi)
	h.run(t)

	assert.Equal(t, []string{"नोटपैड खोलो"}, h.brain.calls())
	assert.Equal(t, []string{"hi-IN"}, h.stt.locales)
	assert.Equal(t, []string{"hi"}, h.voice.voices)
}

func TestController_WakeWordOnlyAwaitsFollowUp(t *testing.T) {
	h := newHarness("optimus", "play imagine")
	h.ctrl.awaitPause = 200 * time.Millisecond

	require.True(t, h.ctrl.Trigger())
	assert.Eventually(t, func() bool { return h.ctrl.Status() == Awaiting }, time.Second, time.Millisecond)
	h.ctrl.Wait()

	assert.Equal(t, []string{"play imagine"}, h.brain.calls())
	assert.Equal(t, []string{"Yes sir?", "Opening notepad."}, h.voice.spoken())
	assert.Equal(t, 2, h.mic.listens)
	assert.Equal(t, 1, h.mic.opens, "follow-up reuses the open capture")
	assert.Equal(t, 1, h.mic.closes)
	assert.Equal(t, Standby, h.ctrl.Status())
}

func TestController_FollowUpSkipsWakeCheck(t *testing.T) {
	h := newHarness("optimus!", "what time is it")
	h.run(t)

	assert.Equal(t, []string{"what time is it"}, h.brain.calls())
}

func TestController_CaptureTimeout(t *testing.T) {
	h := newHarness("optimus hello")
	h.mic.errs = []error{timeoutErr{}}
	h.run(t)

	assert.Empty(t, h.brain.calls())
	assert.Equal(t, Standby, h.ctrl.Status())
	assert.Equal(t, 1, h.mic.closes)
}

func TestController_MicrophoneUnavailable(t *testing.T) {
	h := newHarness("optimus hello")
	h.mic.openErr = errors.New("device busy")
	h.run(t)

	assert.Empty(t, h.brain.calls())
	assert.Equal(t, Standby, h.ctrl.Status())
	assert.True(t, h.ctrl.Trigger(), "guard is released after failure")
	h.ctrl.Wait()
}

func TestController_Unintelligible(t *testing.T) {
	h := newHarness("   ")
	h.run(t)

	assert.Empty(t, h.brain.calls())
	assert.Equal(t, Standby, h.ctrl.Status())
}

func TestController_PanicEndsTurnQuietly(t *testing.T) {
	h := newHarness()
	h.stt.panics = true
	h.run(t)

	assert.Equal(t, Standby, h.ctrl.Status())
	assert.Equal(t, 1, h.mic.closes)
	assert.True(t, h.ctrl.Trigger())
	h.ctrl.Wait()
}

func TestController_TriggerWhileListeningIsNoop(t *testing.T) {
	h := newHarness("optimus hello")
	h.mic.gate = make(chan struct{})

	require.True(t, h.ctrl.Trigger())
	assert.False(t, h.ctrl.Trigger())

	close(h.mic.gate)
	h.ctrl.Wait()

	assert.Equal(t, 1, h.mic.opens)
	assert.Equal(t, []string{"hello"}, h.brain.calls())
}

func TestController_EmptyReplyIsNotSpoken(t *testing.T) {
	h := newHarness("optimus play imagine")
	h.brain.reply = ""
	h.run(t)

	assert.Empty(t, h.voice.spoken())
	assert.Equal(t, Standby, h.ctrl.Status())
}

func TestController_VoiceFailureReturnsToStandby(t *testing.T) {
	h := newHarness("optimus hello")
	h.voice.err = errors.New("espeak missing")
	h.run(t)

	assert.Equal(t, []string{"Opening notepad."}, h.voice.spoken())
	assert.Equal(t, Standby, h.ctrl.Status())
}

func TestController_SpeechIsSerialized(t *testing.T) {
	h := newHarness()
	h.voice.delay = 20 * time.Millisecond

	h.ctrl.speak("one", lang.English)
	h.ctrl.speak("two", lang.English)
	h.ctrl.speak("three", lang.English)
	assert.Equal(t, Speaking, h.ctrl.Status())
	h.ctrl.Wait()

	assert.False(t, h.voice.overlap.Load())
	assert.Len(t, h.voice.spoken(), 3)
	assert.Equal(t, Standby, h.ctrl.Status())
}

func TestController_ConfiguredVoice(t *testing.T) {
	h := newHarness("optimus hi")
	cfg := DefaultConfig()
	cfg.Voices = map[lang.Mode]string{lang.English: "en-us"}
	h.ctrl = NewController(h.mic, h.stt, h.brain, h.voice, cfg)
	h.run(t)

	assert.Equal(t, []string{"en-us"}, h.voice.voices)
}

func TestExtractCommand(t *testing.T) {
	tests := []struct {
		transcript    string
		mode          lang.Mode
		wantCommand   string
		wantAddressed bool
	}{
		{"optimus open notepad", lang.English, "open notepad", true},
		{"hey optimus, play some jazz.", lang.English, "hey play some jazz", true},
		{"optimus", lang.English, "", true},
		{"optimus?", lang.English, "", true},
		{"open notepad", lang.English, "", false},
		{"गाना बजाओ", lang.Hindi, "गाना बजाओ", true},
		{"optimus गाना बजाओ", lang.Hindi, "गाना बजाओ", true},
	}

	for _, tt := range tests {
		t.Run(tt.transcript, func(t *testing.T) {
			cmd, ok := ExtractCommand(tt.transcript, "optimus", tt.mode)
			assert.Equal(t, tt.wantAddressed, ok)
			assert.Equal(t, tt.wantCommand, cmd)
		})
	}
}
