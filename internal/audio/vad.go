package audio

import (
	"math"
	"time"
)

type verdict int

const (
	vadWaiting verdict = iota // no speech yet
	vadSpeech                 // inside an utterance
	vadDone                   // utterance ended by trailing silence or limit
	vadNoOnset                // nothing said before the onset deadline
)

// detector is an RMS voice-activity gate fed one frame at a time.
type detector struct {
	threshold float64

	onsetFrames   int
	limitFrames   int
	silenceFrames int

	frames   int
	voiced   int
	silent   int
	speaking bool
}

func newDetector(threshold float64, frame, onset, limit, silence time.Duration) *detector {
	return &detector{
		threshold:     threshold,
		onsetFrames:   framesIn(onset, frame),
		limitFrames:   framesIn(limit, frame),
		silenceFrames: framesIn(silence, frame),
	}
}

func framesIn(d, frame time.Duration) int {
	n := int(d / frame)
	if n < 1 {
		n = 1
	}
	return n
}

// step classifies the next frame. Frames are worth keeping while the
// verdict is vadSpeech or vadDone.
func (d *detector) step(rms float64) verdict {
	d.frames++

	if !d.speaking {
		if rms > d.threshold {
			d.speaking = true
			d.voiced = 1
			return vadSpeech
		}
		if d.frames >= d.onsetFrames {
			return vadNoOnset
		}
		return vadWaiting
	}

	d.voiced++
	if rms > d.threshold {
		d.silent = 0
	} else {
		d.silent++
		if d.silent >= d.silenceFrames {
			return vadDone
		}
	}

	if d.voiced >= d.limitFrames {
		return vadDone
	}
	return vadSpeech
}

// calibrate raises the threshold above the measured ambient level.
func calibrate(base, ambient float64) float64 {
	if t := ambient * 1.5; t > base {
		return t
	}
	return base
}

func frameRMS(f []float32) float64 {
	if len(f) == 0 {
		return 0
	}
	var s float64
	for _, x := range f {
		s += float64(x * x)
	}
	return math.Sqrt(s / float64(len(f)))
}
