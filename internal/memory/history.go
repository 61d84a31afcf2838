package memory

import (
	"context"
	"sync"
)

// History is the in-process view of a session's memory. Turns are
// serialized by the listen protocol; mu guards readers against Append.
type History struct {
	mu    sync.Mutex
	turns []Turn
	store Store
}

// Open loads the persisted history from store.
func Open(ctx context.Context, store Store) (*History, error) {
	turns, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &History{turns: turns, store: store}, nil
}

// Recent returns a copy of the last n turns, oldest first.
func (h *History) Recent(n int) []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	return copyTurns(Window(h.turns, n))
}

// All returns a copy of the whole history.
func (h *History) All() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()

	return copyTurns(h.turns)
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.turns)
}

// Append adds turns in memory and persists the whole history. The
// in-memory append is kept even if persisting fails.
func (h *History) Append(ctx context.Context, turns ...Turn) error {
	h.mu.Lock()
	h.turns = append(h.turns, turns...)
	snapshot := copyTurns(h.turns)
	h.mu.Unlock()

	return h.store.Save(ctx, snapshot)
}

// Window returns the trailing n turns of history without copying.
func Window(history []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

func copyTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
