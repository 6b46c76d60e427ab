// Package parser turns a raw transliteration query into a compiled
// co-occurrence query: semicolon-separated phrases, each AND or NOT, each an
// ordered list of words made of sign slots.
package parser

import (
	"context"
	"fmt"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/normalize"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/wildcard"
	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
)

const (
	PhraseSeparator = ";"
	NegationPrefix  = "!"
)

type Polarity int

const (
	PolarityAND Polarity = iota
	PolarityNOT
)

func (p Polarity) String() string {
	if p == PolarityNOT {
		return "NOT"
	}
	return "AND"
}

// Limits bound the expansion of one query. Zero means unlimited.
type Limits struct {
	MaxCandidatesPerSlot int
	MaxSlots             int
}

// Slot is one sign position of a query word.
type Slot struct {
	Token     string
	Pattern   wildcard.Pattern
	Expansion wildcard.Expansion
	Readings  corpus.ReadingSet
}

type Word struct {
	Raw   string
	Slots []Slot
}

type Phrase struct {
	Raw      string
	Polarity Polarity
	Words    []Word
}

// Len returns the number of slots across all words.
func (p Phrase) Len() int {
	n := 0
	for _, w := range p.Words {
		n += len(w.Slots)
	}
	return n
}

// Resolvable reports whether every slot resolved to at least one reading.
// A phrase that is not resolvable can never match.
func (p Phrase) Resolvable() bool {
	for _, w := range p.Words {
		for _, s := range w.Slots {
			if len(s.Readings) == 0 {
				return false
			}
		}
	}
	return true
}

// QueryPlan is a parsed and validated query whose slots are expanded but not
// yet resolved against the catalog.
type QueryPlan struct {
	RawQuery string
	Phrases  []Phrase
	// Slots and Candidates are totals used for logging and metrics.
	Slots      int
	Candidates int
}

// Query is a compiled query ready for matching.
type Query struct {
	RawQuery string
	Phrases  []Phrase
}

func (q *Query) And() []Phrase { return q.filter(PolarityAND) }

func (q *Query) Not() []Phrase { return q.filter(PolarityNOT) }

func (q *Query) filter(pol Polarity) []Phrase {
	var out []Phrase
	for _, p := range q.Phrases {
		if p.Polarity == pol {
			out = append(out, p)
		}
	}
	return out
}

// Resolver resolves expanded slots, positionally aligned.
type Resolver interface {
	Resolve(ctx context.Context, slots []wildcard.Expansion) ([]corpus.ReadingSet, error)
}

// Parse normalizes, segments and validates query. Limits are enforced before
// any slot is expanded. An empty query yields an empty plan.
func Parse(query string, limits Limits) (*QueryPlan, error) {
	plan := &QueryPlan{RawQuery: query}
	for _, raw := range strings.Split(query, PhraseSeparator) {
		text := strings.TrimSpace(raw)
		phrase := Phrase{Raw: text, Polarity: PolarityAND}
		if strings.HasPrefix(text, NegationPrefix) {
			phrase.Polarity = PolarityNOT
			text = strings.TrimSpace(strings.TrimPrefix(text, NegationPrefix))
		}
		for _, w := range normalize.Words(text) {
			word := Word{Raw: w}
			for _, token := range normalize.Segment(w) {
				pattern, err := wildcard.Parse(token)
				if err != nil {
					return nil, err
				}
				if n := pattern.Count(); limits.MaxCandidatesPerSlot > 0 && n > limits.MaxCandidatesPerSlot {
					return nil, apperrors.TooComplexf("%q expands to more than %d candidates", token, limits.MaxCandidatesPerSlot)
				}
				word.Slots = append(word.Slots, Slot{Token: token, Pattern: pattern})
			}
			if len(word.Slots) > 0 {
				phrase.Words = append(phrase.Words, word)
			}
		}
		if len(phrase.Words) == 0 {
			continue
		}
		plan.Slots += phrase.Len()
		if limits.MaxSlots > 0 && plan.Slots > limits.MaxSlots {
			return nil, apperrors.TooComplexf("query has more than %d signs", limits.MaxSlots)
		}
		plan.Phrases = append(plan.Phrases, phrase)
	}

	for pi := range plan.Phrases {
		for wi := range plan.Phrases[pi].Words {
			slots := plan.Phrases[pi].Words[wi].Slots
			for si := range slots {
				slots[si].Expansion = slots[si].Pattern.Expand()
				plan.Candidates += len(slots[si].Expansion.Candidates)
			}
		}
	}
	return plan, nil
}

// Compile resolves every slot of the plan in one batch.
func (p *QueryPlan) Compile(ctx context.Context, r Resolver) (*Query, error) {
	var expansions []wildcard.Expansion
	for _, phrase := range p.Phrases {
		for _, word := range phrase.Words {
			for _, slot := range word.Slots {
				expansions = append(expansions, slot.Expansion)
			}
		}
	}
	q := &Query{RawQuery: p.RawQuery}
	if len(expansions) == 0 {
		return q, nil
	}
	sets, err := r.Resolve(ctx, expansions)
	if err != nil {
		return nil, fmt.Errorf("resolving query slots: %w", err)
	}
	if len(sets) != len(expansions) {
		return nil, fmt.Errorf("resolver returned %d sets for %d slots", len(sets), len(expansions))
	}

	i := 0
	for _, phrase := range p.Phrases {
		compiled := Phrase{Raw: phrase.Raw, Polarity: phrase.Polarity}
		for _, word := range phrase.Words {
			w := Word{Raw: word.Raw, Slots: make([]Slot, len(word.Slots))}
			for si, slot := range word.Slots {
				slot.Readings = sets[i]
				w.Slots[si] = slot
				i++
			}
			compiled.Words = append(compiled.Words, w)
		}
		q.Phrases = append(q.Phrases, compiled)
	}
	return q, nil
}

// Compile parses query and resolves it.
func Compile(ctx context.Context, query string, limits Limits, r Resolver) (*Query, error) {
	plan, err := Parse(query, limits)
	if err != nil {
		return nil, err
	}
	return plan.Compile(ctx, r)
}
