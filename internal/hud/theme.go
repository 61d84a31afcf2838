package hud

import (
	"optimus/internal/lang"
	"optimus/internal/session"
)

// Theme is what the HUD draws for a status: the label under the radar,
// the ring colour and the fill of the inner disc.
type Theme struct {
	Label string `json:"label"`
	Ring  string `json:"ring"`
	Glow  string `json:"glow"`
}

var (
	red    = Theme{Ring: "#ff2d2d", Glow: "#550000"}
	yellow = Theme{Ring: "#ffd500", Glow: "#554400"}
	green  = Theme{Ring: "#00ff9c", Glow: "#005533"}
	orange = Theme{Ring: "#ff9900", Glow: "#553300"}
	cyan   = Theme{Ring: "#00eaff", Glow: "#003a44"}
)

// ThemeFor maps a status to its colours. Standby takes the colour of
// the selected language.
func ThemeFor(s session.Status, mode lang.Mode) Theme {
	var t Theme
	switch s {
	case session.Listening:
		t, t.Label = red, "LISTENING..."
	case session.Awaiting:
		t, t.Label = red, "AWAITING..."
	case session.Processing:
		t, t.Label = yellow, "PROCESSING..."
	case session.Speaking:
		t, t.Label = green, "SPEAKING..."
	default:
		t, t.Label = Accent(mode), "STANDBY"
	}
	return t
}

// Accent is the colour of a language selector button when selected.
func Accent(mode lang.Mode) Theme {
	switch mode {
	case lang.Hindi:
		return orange
	case lang.Gujarati:
		return green
	default:
		return cyan
	}
}
