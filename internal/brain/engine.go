package brain

import (
	"context"
	log "log/slog"
	"strings"
	"time"

	"optimus/internal/action"
	"optimus/internal/lang"
	"optimus/internal/memory"
)

// EmptyAck replaces a reply that consisted only of directives.
const EmptyAck = "Done."

type Config struct {
	Name          string
	HistoryWindow int
	MaxTokens     int
	Temperature   float64
	Timeout       time.Duration
}

func DefaultConfig() Config {
	return Config{
		Name:          "Optimus",
		HistoryWindow: 6,
		MaxTokens:     200,
		Temperature:   0.7,
		Timeout:       60 * time.Second,
	}
}

// Dispatcher runs the actions of a turn. *action.Executor satisfies it.
type Dispatcher interface {
	ExecuteAll(ctx context.Context, actions []action.Action)
}

type stage string

const (
	stageContextBuilt      stage = "context_built"
	stageModelInvoked      stage = "model_invoked"
	stageFailed            stage = "failed"
	stagePersisted         stage = "persisted"
	stageActionsDispatched stage = "actions_dispatched"
)

// Engine runs one conversation turn at a time.
type Engine struct {
	chat     Completer
	history  *memory.History
	dispatch Dispatcher
	cfg      Config
}

func NewEngine(chat Completer, history *memory.History, dispatch Dispatcher, cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.Name == "" {
		cfg.Name = def.Name
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = def.HistoryWindow
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = def.MaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	return &Engine{
		chat:     chat,
		history:  history,
		dispatch: dispatch,
		cfg:      cfg,
	}
}

// Decide sends command to the model and returns the text to show and
// speak. It never returns directive markers or raw error text.
func (e *Engine) Decide(ctx context.Context, command string, mode lang.Mode) string {
	messages := e.buildMessages(command, mode)
	e.trace(stageContextBuilt, "messages", len(messages))

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	raw, err := e.chat.Complete(callCtx, Request{
		Messages:    messages,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		e.trace(stageFailed)
		log.Error("Failed to call model", "err", err)
		return mode.FailureReply()
	}
	raw = strings.TrimSpace(raw)
	e.trace(stageModelInvoked, "chars", len(raw))

	parsed := action.Parse(raw)
	for _, ig := range parsed.Ignored {
		log.Warn("Ignored directive", "token", ig.Token, "reason", ig.Reason)
	}

	remembered := parsed.Cleaned
	if remembered == "" {
		remembered = EmptyAck
	}

	err = e.history.Append(ctx,
		memory.Turn{Role: memory.RoleUser, Content: command},
		memory.Turn{Role: memory.RoleAssistant, Content: remembered},
	)
	if err != nil {
		// The turn stays in the in-memory history; actions are skipped.
		e.trace(stageFailed)
		log.Error("Failed to persist memory", "err", err)
		return mode.FailureReply()
	}
	e.trace(stagePersisted, "turns", e.history.Len())

	e.dispatch.ExecuteAll(ctx, parsed.Actions)
	e.trace(stageActionsDispatched, "actions", len(parsed.Actions))

	return parsed.Cleaned
}

func (e *Engine) buildMessages(command string, mode lang.Mode) []memory.Turn {
	recent := e.history.Recent(e.cfg.HistoryWindow)

	messages := make([]memory.Turn, 0, len(recent)+2)
	messages = append(messages, memory.Turn{
		Role:    memory.RoleSystem,
		Content: SystemInstruction(e.cfg.Name, mode),
	})
	messages = append(messages, recent...)
	messages = append(messages, memory.Turn{Role: memory.RoleUser, Content: command})

	return messages
}

func (e *Engine) trace(s stage, args ...any) {
	log.Debug("Turn", append([]any{"stage", s}, args...)...)
}
