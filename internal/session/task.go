package session

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"time"
)

var (
	// ErrNotAddressed means the utterance lacked the wake word.
	ErrNotAddressed = errors.New("utterance not addressed to assistant")
	// ErrUnintelligible means transcription produced no text.
	ErrUnintelligible = errors.New("unintelligible utterance")
	ErrPanic          = errors.New("task panicked")
)

// Result is the outcome of a finished task.
type Result struct {
	Name    string
	Err     error
	Elapsed time.Duration
}

// Task is a single listen or speak operation running in its own
// goroutine.
type Task struct {
	done chan struct{}
	res  Result
}

// Wait blocks until the task finished and returns its result.
func (t *Task) Wait() Result {
	<-t.done
	return t.res
}

// startTask runs fn in a goroutine. Errors for which quiet reports true
// are logged at debug level. onDone, if set, runs after the result is
// recorded.
func startTask(ctx context.Context, name string, quiet func(error) bool, fn func(context.Context) error, onDone func()) *Task {
	t := &Task{done: make(chan struct{})}

	go func() {
		start := time.Now()
		defer func() {
			close(t.done)
			if onDone != nil {
				onDone()
			}
		}()

		err := runGuarded(ctx, fn)
		t.res = Result{Name: name, Err: err, Elapsed: time.Since(start)}

		switch {
		case err == nil:
			log.Debug("Task finished", "task", name, "elapsed", t.res.Elapsed)
		case quiet != nil && quiet(err):
			log.Debug("Task abandoned", "task", name, "reason", err)
		default:
			log.Warn("Task failed", "task", name, "err", err)
		}
	}()

	return t
}

func runGuarded(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPanic, r)
		}
	}()
	return fn(ctx)
}
