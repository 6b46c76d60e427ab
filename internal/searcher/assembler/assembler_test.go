package assembler

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/parser"
)

func occ(tokens ...corpus.Token) matcher.Occurrence {
	return matcher.Occurrence{Tokens: tokens}
}

func at(pos, line int) corpus.Token {
	return corpus.Token{Position: pos, Side: "obv.", Line: line}
}

func and(matched bool, occs ...matcher.Occurrence) matcher.Decision {
	return matcher.Decision{Polarity: parser.PolarityAND, Matched: matched, Occurrences: occs}
}

func not(matched bool) matcher.Decision {
	return matcher.Decision{Polarity: parser.PolarityNOT, Matched: matched}
}

func eval(id corpus.DocumentID, name string, ds ...matcher.Decision) matcher.Evaluation {
	return matcher.Evaluation{Document: corpus.Document{ID: id, Name: name}, Decisions: ds}
}

func TestAccepted(t *testing.T) {
	tests := []struct {
		name string
		ev   matcher.Evaluation
		want bool
	}{
		{"all and matched", eval(1, "a", and(true), and(true)), true},
		{"one and missed", eval(1, "a", and(true), and(false)), false},
		{"not matched excludes", eval(1, "a", and(true), not(true)), false},
		{"not missed keeps", eval(1, "a", and(true), not(false)), true},
		{"no and phrases", eval(1, "a", not(false)), false},
		{"no decisions", eval(1, "a"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Accepted(tt.ev); got != tt.want {
				t.Errorf("Accepted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssembleOrdersAndFilters(t *testing.T) {
	evals := []matcher.Evaluation{
		eval(3, "T3", and(true, occ(at(5, 2)))),
		eval(1, "T1", and(true, occ(at(1, 1), at(2, 1)), occ(at(9, 3)))),
		eval(2, "T2", and(true, occ(at(1, 1))), not(true)),
		eval(4, "T0", and(true, occ(at(1, 1)))),
		eval(5, "T1", and(true, occ(at(1, 1)))),
	}
	hidden := map[corpus.DocumentID]struct{}{3: {}}

	got := Assemble(evals, hidden)
	wantIDs := []corpus.DocumentID{4, 1, 5}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d matches: %+v", len(got), got)
	}
	for i, id := range wantIDs {
		if got[i].Document != id {
			t.Errorf("match %d = doc %d, want %d", i, got[i].Document, id)
		}
	}
	t1 := got[1]
	if len(t1.Lines) != 2 || t1.Lines[0].Line != 1 || t1.Lines[1].Line != 3 {
		t.Errorf("T1 lines = %+v", t1.Lines)
	}
	if len(t1.Highlights) != 3 || t1.Highlights[0] != 1 || t1.Highlights[2] != 9 {
		t.Errorf("T1 highlights = %v", t1.Highlights)
	}
}

func TestPage(t *testing.T) {
	matches := make([]Match, 5)
	for i := range matches {
		matches[i].Document = corpus.DocumentID(i + 1)
	}
	tests := []struct {
		page, limit int
		first, n    int
	}{
		{1, 2, 1, 2},
		{3, 2, 5, 1},
		{4, 2, 0, 0},
		{0, 10, 1, 5},
		{1, 0, 0, 0},
	}
	for _, tt := range tests {
		got := Page(matches, tt.page, tt.limit)
		if len(got) != tt.n {
			t.Errorf("Page(%d, %d) len = %d, want %d", tt.page, tt.limit, len(got), tt.n)
			continue
		}
		if tt.n > 0 && got[0].Document != corpus.DocumentID(tt.first) {
			t.Errorf("Page(%d, %d) first = %d, want %d", tt.page, tt.limit, got[0].Document, tt.first)
		}
	}
}
