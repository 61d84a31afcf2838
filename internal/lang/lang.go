package lang

import (
	"errors"
	"fmt"
	"strings"
)

// Mode is the process-wide language selection.
type Mode string

const (
	English  Mode = "en"
	Hindi    Mode = "hi"
	Gujarati Mode = "gu"

	Default = English
)

var ErrUnknownMode = errors.New("unknown language mode")

type profile struct {
	name    string
	locale  string
	voice   string
	failure string
}

var profiles = map[Mode]profile{
	English: {
		name:    "English",
		locale:  "en-IN",
		voice:   "en-gb",
		failure: "System Error.",
	},
	Hindi: {
		name:    "Hindi",
		locale:  "hi-IN",
		voice:   "hi",
		failure: "सिस्टम त्रुटि।",
	},
	Gujarati: {
		name:    "Gujarati",
		locale:  "gu-IN",
		voice:   "gu",
		failure: "સિસ્ટમ ભૂલ.",
	},
}

// Modes lists every selectable mode in selector order.
func Modes() []Mode { return []Mode{English, Hindi, Gujarati} }

func Parse(code string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(code)))
	if _, ok := profiles[m]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownMode, code)
	}
	return m, nil
}

func (m Mode) profile() profile {
	if p, ok := profiles[m]; ok {
		return p
	}
	return profiles[Default]
}

// Name is the language name embedded in the model instruction.
func (m Mode) Name() string { return m.profile().name }

// Locale is the speech-recognition locale tag, e.g. "hi-IN".
func (m Mode) Locale() string { return m.profile().locale }

// Voice is the default synthesis voice for the mode.
func (m Mode) Voice() string { return m.profile().voice }

// FailureReply is the fixed text spoken when a turn fails.
func (m Mode) FailureReply() string { return m.profile().failure }

func (m Mode) IsDefault() bool { return m == Default }

func (m Mode) String() string { return string(m) }
