// Package assembler applies the AND/NOT decision rule to per-document
// evaluations and shapes the surviving documents into results.
package assembler

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/parser"
)

// Match is one document in the result set.
type Match struct {
	Document   corpus.DocumentID `json:"document_id"`
	Name       string            `json:"name"`
	Lines      []Line            `json:"lines"`
	Highlights []int             `json:"highlights"`
}

// Line identifies a line touched by a matching AND occurrence.
type Line struct {
	Side string `json:"side"`
	Line int    `json:"line"`
}

// Accepted reports whether every AND decision matched and no NOT decision
// did. An evaluation without AND decisions is never accepted.
func Accepted(ev matcher.Evaluation) bool {
	ands := 0
	for _, d := range ev.Decisions {
		switch d.Polarity {
		case parser.PolarityAND:
			if !d.Matched {
				return false
			}
			ands++
		case parser.PolarityNOT:
			if d.Matched {
				return false
			}
		}
	}
	return ands > 0
}

// Assemble keeps accepted documents that are not hidden and orders them by
// name, then id.
func Assemble(evals []matcher.Evaluation, hidden map[corpus.DocumentID]struct{}) []Match {
	out := make([]Match, 0, len(evals))
	for _, ev := range evals {
		if !Accepted(ev) {
			continue
		}
		if _, ok := hidden[ev.Document.ID]; ok {
			continue
		}
		out = append(out, build(ev))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Document < out[j].Document
	})
	return out
}

func build(ev matcher.Evaluation) Match {
	lines := make(map[Line]struct{})
	positions := make(map[int]struct{})
	for _, d := range ev.Decisions {
		if d.Polarity != parser.PolarityAND {
			continue
		}
		for _, occ := range d.Occurrences {
			for _, t := range occ.Tokens {
				lines[Line{Side: t.Side, Line: t.Line}] = struct{}{}
				positions[t.Position] = struct{}{}
			}
		}
	}
	m := Match{
		Document:   ev.Document.ID,
		Name:       ev.Document.Name,
		Lines:      make([]Line, 0, len(lines)),
		Highlights: make([]int, 0, len(positions)),
	}
	for l := range lines {
		m.Lines = append(m.Lines, l)
	}
	sort.Slice(m.Lines, func(i, j int) bool {
		if m.Lines[i].Line != m.Lines[j].Line {
			return m.Lines[i].Line < m.Lines[j].Line
		}
		return m.Lines[i].Side < m.Lines[j].Side
	})
	for p := range positions {
		m.Highlights = append(m.Highlights, p)
	}
	sort.Ints(m.Highlights)
	return m
}

// Page returns the 1-based page of size limit. Out-of-range pages are empty.
func Page(matches []Match, page, limit int) []Match {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		return []Match{}
	}
	start := (page - 1) * limit
	if start >= len(matches) {
		return []Match{}
	}
	end := start + limit
	if end > len(matches) {
		end = len(matches)
	}
	return matches[start:end]
}
