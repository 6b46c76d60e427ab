package matcher

import (
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/parser"
)

// Decision is the document-level outcome of one phrase.
type Decision struct {
	Polarity parser.Polarity
	// Matched is true when the phrase occurs at least once.
	Matched     bool
	Occurrences []Occurrence
}

// Evaluation holds the decision of every phrase of a query for one document,
// in query order.
type Evaluation struct {
	Document  corpus.Document
	Decisions []Decision
}

// Evaluate matches every phrase of q against seq. AND phrases collect all of
// their occurrences; NOT phrases stop at the first.
func Evaluate(seq corpus.Sequence, q *parser.Query, opts Options) Evaluation {
	ev := Evaluation{
		Document:  seq.Document,
		Decisions: make([]Decision, 0, len(q.Phrases)),
	}
	streams := make(map[bool][]corpus.Token, 2)
	stream := func(include bool) []corpus.Token {
		s, ok := streams[include]
		if !ok {
			s = Stream(seq.Tokens, include)
			streams[include] = s
		}
		return s
	}
	for _, p := range q.Phrases {
		po := opts.For(p)
		d := Decision{Polarity: p.Polarity}
		if p.Polarity == parser.PolarityNOT {
			d.Matched = Matches(stream(po.IncludeSuperfluous), p, po.Mode)
		} else {
			d.Occurrences = Find(stream(po.IncludeSuperfluous), p, po.Mode)
			d.Matched = len(d.Occurrences) > 0
		}
		ev.Decisions = append(ev.Decisions, d)
	}
	return ev
}
