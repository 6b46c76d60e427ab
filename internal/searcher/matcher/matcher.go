// Package matcher evaluates compiled phrases against a document's token
// stream.
package matcher

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/parser"
	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
)

// Mode controls how discourse groupings constrain a match.
type Mode int

const (
	// ModeLoose only requires adjacent tokens on one side and line.
	ModeLoose Mode = iota
	// ModeBoundary additionally keeps each query word inside one grouping and
	// puts consecutive words in different groupings.
	ModeBoundary
	// ModeStrict additionally forbids the match from being embedded in a
	// larger grouping at either end.
	ModeStrict
)

func (m Mode) String() string {
	switch m {
	case ModeLoose:
		return "loose"
	case ModeBoundary:
		return "boundary"
	case ModeStrict:
		return "strict"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode accepts the mode names used on the wire. Empty selects loose.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "loose":
		return ModeLoose, nil
	case "boundary", "boundary-respecting":
		return ModeBoundary, nil
	case "strict", "all-boundaries":
		return ModeStrict, nil
	default:
		return ModeLoose, apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest, "unknown boundary mode %q", s)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type Options struct {
	Mode Mode
	// IncludeSuperfluous keeps superfluous-marked tokens in the stream.
	IncludeSuperfluous bool
}

// For returns the options a phrase is evaluated under. NOT phrases always
// run loose over the full stream.
func (o Options) For(p parser.Phrase) Options {
	if p.Polarity == parser.PolarityNOT {
		return Options{Mode: ModeLoose, IncludeSuperfluous: true}
	}
	return o
}

// Occurrence is one match of a phrase: the consumed tokens in order.
type Occurrence struct {
	Tokens []corpus.Token
}

func (o Occurrence) Start() int {
	return o.Tokens[0].Position
}

// Stream returns the tokens a phrase is matched against.
func Stream(tokens []corpus.Token, includeSuperfluous bool) []corpus.Token {
	if includeSuperfluous {
		return tokens
	}
	out := make([]corpus.Token, 0, len(tokens))
	for _, t := range tokens {
		if !t.Markup.Has(corpus.MarkupSuperfluous) {
			out = append(out, t)
		}
	}
	return out
}

type step struct {
	readings corpus.ReadingSet
	// wordStart is true for the first slot of a query word.
	wordStart bool
}

func steps(p parser.Phrase) []step {
	out := make([]step, 0, p.Len())
	for _, w := range p.Words {
		for i, s := range w.Slots {
			out = append(out, step{readings: s.Readings, wordStart: i == 0})
		}
	}
	return out
}

// Find returns every occurrence of p in stream under mode. The stream must
// already be filtered with Stream.
func Find(stream []corpus.Token, p parser.Phrase, mode Mode) []Occurrence {
	var out []Occurrence
	scan(stream, p, mode, func(o Occurrence) bool {
		out = append(out, o)
		return true
	})
	return out
}

// Matches reports whether p occurs anywhere in stream under mode.
func Matches(stream []corpus.Token, p parser.Phrase, mode Mode) bool {
	found := false
	scan(stream, p, mode, func(Occurrence) bool {
		found = true
		return false
	})
	return found
}

func scan(stream []corpus.Token, p parser.Phrase, mode Mode, emit func(Occurrence) bool) {
	st := steps(p)
	n := len(st)
	if n == 0 || !p.Resolvable() {
		return
	}
	for start := 0; start+n <= len(stream); start++ {
		if matchAt(stream, start, st, mode) {
			if !emit(Occurrence{Tokens: stream[start : start+n]}) {
				return
			}
		}
	}
}

func matchAt(stream []corpus.Token, start int, st []step, mode Mode) bool {
	for k, s := range st {
		tok := stream[start+k]
		if !s.readings.Contains(tok.Reading) {
			return false
		}
		if k == 0 {
			continue
		}
		prev := stream[start+k-1]
		if tok.Side != prev.Side || tok.Line != prev.Line {
			return false
		}
		if mode == ModeLoose {
			continue
		}
		same := corpus.SameGroup(prev, tok)
		if s.wordStart == same {
			return false
		}
	}
	if mode != ModeStrict {
		return true
	}
	if start > 0 && corpus.SameGroup(stream[start-1], stream[start]) {
		return false
	}
	last := start + len(st) - 1
	if last+1 < len(stream) && corpus.SameGroup(stream[last], stream[last+1]) {
		return false
	}
	return true
}
