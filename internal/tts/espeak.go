package tts

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Espeak renders speech with the espeak-ng command line tool.
type Espeak struct {
	Bin   string // defaults to "espeak-ng"
	Speed int    // words per minute, 0 = espeak default
}

// Synthesize writes a wav file for text spoken with voice to path.
func (e Espeak) Synthesize(ctx context.Context, text, voice, path string) error {
	bin := e.Bin
	if bin == "" {
		bin = "espeak-ng"
	}

	args := []string{"-v", voice, "-w", path}
	if e.Speed > 0 {
		args = append(args, "-s", fmt.Sprint(e.Speed))
	}
	args = append(args, "--", text)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", bin, err, msg)
		}
		return fmt.Errorf("%s: %w", bin, err)
	}
	return nil
}
