package action

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		reply       string
		wantCleaned string
		wantActions []Action
		wantIgnored int
	}{
		{
			name:        "plain text",
			reply:       "  Hello there.  ",
			wantCleaned: "Hello there.",
		},
		{
			name:        "open directive",
			reply:       "Sure! [[OPEN: Notepad]]",
			wantCleaned: "Sure!",
			wantActions: []Action{{Kind: Open, Payload: "notepad"}},
		},
		{
			name:        "play keeps case",
			reply:       "[[PLAY: Imagine Dragons]] Playing.",
			wantCleaned: "Playing.",
			wantActions: []Action{{Kind: Play, Payload: "Imagine Dragons"}},
		},
		{
			name:        "no space after colon",
			reply:       "[[LIKED:workout mix]]",
			wantCleaned: "",
			wantActions: []Action{{Kind: Liked, Payload: "workout mix"}},
		},
		{
			name:        "priority order not input order",
			reply:       "[[LIKED: lofi]] then [[PLAY: jazz]] then [[OPEN: Firefox]]",
			wantCleaned: "then then",
			wantActions: []Action{
				{Kind: Open, Payload: "firefox"},
				{Kind: Play, Payload: "jazz"},
				{Kind: Liked, Payload: "lofi"},
			},
		},
		{
			name:        "first of a kind wins",
			reply:       "[[PLAY: first]] and [[PLAY: second]]",
			wantCleaned: "and",
			wantActions: []Action{{Kind: Play, Payload: "first"}},
			wantIgnored: 1,
		},
		{
			name:        "unrecognized directive stripped",
			reply:       "Noted [[NOTE: buy milk]] and [[just brackets]].",
			wantCleaned: "Noted and .",
			wantIgnored: 2,
		},
		{
			name:        "lowercase keyword is not a directive",
			reply:       "ok [[open: notepad]]",
			wantCleaned: "ok",
			wantIgnored: 1,
		},
		{
			name:        "empty payload",
			reply:       "[[OPEN:   ]]Done",
			wantCleaned: "Done",
			wantIgnored: 1,
		},
		{
			name:        "non-greedy payload",
			reply:       "[[OPEN: calc]] middle [[PLAY: song]]",
			wantCleaned: "middle",
			wantActions: []Action{
				{Kind: Open, Payload: "calc"},
				{Kind: Play, Payload: "song"},
			},
		},
		{
			name:        "trailing doubled brackets",
			reply:       "[[OPEN: x]]]] hi",
			wantCleaned: "hi",
			wantActions: []Action{{Kind: Open, Payload: "x"}},
		},
		{
			name:        "nested brackets keep inner directive",
			reply:       "Sure [[[[OPEN: notepad]]]]",
			wantCleaned: "Sure",
			wantActions: []Action{{Kind: Open, Payload: "notepad"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Parse(tt.reply)

			assert.Equal(t, tt.wantCleaned, res.Cleaned)
			assert.Equal(t, tt.wantActions, res.Actions)
			assert.Len(t, res.Ignored, tt.wantIgnored)
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	replies := []string{
		"Sure! [[OPEN: Notepad]]",
		"[[PLAY: a]][[PLAY: b]][[LIKED: c]]",
		"[[[[OPEN: x]]]]",
		"text [[NOTE: y]] more",
		"multi\nline [[PLAY: one\ntwo]] reply",
	}

	for _, r := range replies {
		first := Parse(r)
		second := Parse(first.Cleaned)

		assert.Empty(t, second.Actions, "reply %q", r)
		assert.Equal(t, first.Cleaned, second.Cleaned, "reply %q", r)
	}
}

func TestParse_NoDirectiveLeakage(t *testing.T) {
	kinds := []string{"OPEN", "PLAY", "LIKED"}

	for n := 0; n <= 3; n++ {
		var b strings.Builder
		b.WriteString("Here you go.")
		for i := 0; i < n; i++ {
			b.WriteString(" [[" + kinds[i%len(kinds)] + ": item]] ok")
		}

		res := Parse(b.String())
		require.Len(t, res.Actions, n)
		assert.NotContains(t, res.Cleaned, "[[")
		assert.NotContains(t, res.Cleaned, "]]")
	}

	for _, reply := range []string{
		"[[OPEN: x]]]] hi",
		"Sure [[[[OPEN: notepad]]]]",
		"[[[PLAY: song]]] now",
		"oops [[ unterminated",
		"closing only ]] here",
	} {
		res := Parse(reply)
		assert.NotContains(t, res.Cleaned, "[[", "reply %q", reply)
		assert.NotContains(t, res.Cleaned, "]]", "reply %q", reply)
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "OPEN", Open.String())
	assert.Equal(t, "LIKED", Liked.String())
	assert.Equal(t, "UNKNOWN", Kind(42).String())
}
