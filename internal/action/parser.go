package action

import (
	"regexp"
	"sort"
	"strings"
)

// Kind identifies a side effect the model may request.
type Kind int

const (
	Open Kind = iota
	Play
	Liked
)

var keywords = map[string]Kind{
	"OPEN":  Open,
	"PLAY":  Play,
	"LIKED": Liked,
}

func (k Kind) String() string {
	switch k {
	case Open:
		return "OPEN"
	case Play:
		return "PLAY"
	case Liked:
		return "LIKED"
	default:
		return "UNKNOWN"
	}
}

// Action is one directive extracted from a reply.
type Action struct {
	Kind    Kind
	Payload string
}

// Ignored is a bracketed token that was stripped but not dispatched.
type Ignored struct {
	Token  string
	Reason string
}

const (
	ReasonUnrecognized = "unrecognized directive"
	ReasonDuplicate    = "duplicate kind"
	ReasonEmpty        = "empty payload"
)

type Result struct {
	// Cleaned is the reply with every [[...]] token removed.
	Cleaned string
	// Actions holds at most one action per kind, in Open, Play, Liked order.
	Actions []Action
	Ignored []Ignored
}

var (
	tokenRe     = regexp.MustCompile(`\[\[([^\[\]]*)\]\]`)
	strayRe     = regexp.MustCompile(`\[\[+|\]\]+`)
	directiveRe = regexp.MustCompile(`(?s)^([A-Z]+):\s*(.*)$`)
	blankRunRe  = regexp.MustCompile(`[ \t]{2,}`)
)

// Parse extracts directives of the form [[KIND: payload]] from reply.
// The first directive of each kind wins; later ones of the same kind
// and tokens with an unknown keyword are stripped and reported in
// Ignored.
func Parse(reply string) Result {
	var (
		res  Result
		seen = make(map[Kind]bool)
	)

	for _, m := range tokenRe.FindAllStringSubmatch(reply, -1) {
		token, inner := m[0], m[1]

		d := directiveRe.FindStringSubmatch(inner)
		if d == nil {
			res.Ignored = append(res.Ignored, Ignored{Token: token, Reason: ReasonUnrecognized})
			continue
		}

		kind, ok := keywords[d[1]]
		if !ok {
			res.Ignored = append(res.Ignored, Ignored{Token: token, Reason: ReasonUnrecognized})
			continue
		}

		payload := normalize(kind, d[2])
		switch {
		case payload == "":
			res.Ignored = append(res.Ignored, Ignored{Token: token, Reason: ReasonEmpty})
		case seen[kind]:
			res.Ignored = append(res.Ignored, Ignored{Token: token, Reason: ReasonDuplicate})
		default:
			seen[kind] = true
			res.Actions = append(res.Actions, Action{Kind: kind, Payload: payload})
		}
	}

	sort.SliceStable(res.Actions, func(i, j int) bool {
		return res.Actions[i].Kind < res.Actions[j].Kind
	})

	res.Cleaned = Strip(reply)

	return res
}

// Strip removes every [[...]] token from s, then any unpaired bracket
// runs, and tidies the whitespace left behind.
func Strip(s string) string {
	s = tokenRe.ReplaceAllString(s, "")
	s = strayRe.ReplaceAllString(s, "")
	s = blankRunRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// normalize applies the payload contract of each consumer: app names
// are matched case-insensitively, queries are passed through as said.
func normalize(kind Kind, payload string) string {
	payload = strings.TrimSpace(payload)
	if kind == Open {
		payload = strings.ToLower(payload)
	}
	return payload
}
