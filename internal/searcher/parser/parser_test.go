package parser

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/wildcard"
	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
)

type stubResolver struct {
	readings map[string]corpus.ReadingID
	calls    int
}

func (s *stubResolver) Resolve(_ context.Context, slots []wildcard.Expansion) ([]corpus.ReadingSet, error) {
	s.calls++
	out := make([]corpus.ReadingSet, len(slots))
	for i, slot := range slots {
		out[i] = corpus.NewReadingSet()
		for _, c := range slot.Candidates {
			if id, ok := s.readings[c]; ok {
				out[i][id] = struct{}{}
			}
		}
	}
	return out, nil
}

func TestParsePhrasesAndPolarity(t *testing.T) {
	plan, err := Parse(" a-na šar-ri ; !na ;; ", Limits{})
	if err != nil {
		t.Fatal(err)
	}
	if len(plan.Phrases) != 2 {
		t.Fatalf("got %d phrases, want 2", len(plan.Phrases))
	}
	first, second := plan.Phrases[0], plan.Phrases[1]
	if first.Polarity != PolarityAND || second.Polarity != PolarityNOT {
		t.Errorf("polarities = %s, %s", first.Polarity, second.Polarity)
	}
	if len(first.Words) != 2 || len(first.Words[0].Slots) != 2 || len(first.Words[1].Slots) != 2 {
		t.Errorf("first phrase shape = %+v", first.Words)
	}
	if first.Len() != 4 || plan.Slots != 5 {
		t.Errorf("Len() = %d, plan slots = %d", first.Len(), plan.Slots)
	}
	if second.Words[0].Slots[0].Token != "na" {
		t.Errorf("NOT phrase token = %q", second.Words[0].Slots[0].Token)
	}
}

func TestParseEmptyQuery(t *testing.T) {
	for _, q := range []string{"", "   ", ";", "!", " ; ! ;"} {
		plan, err := Parse(q, Limits{})
		if err != nil {
			t.Errorf("Parse(%q): %v", q, err)
			continue
		}
		if len(plan.Phrases) != 0 {
			t.Errorf("Parse(%q) gave %d phrases", q, len(plan.Phrases))
		}
	}
}

func TestParseNormalizesTokens(t *testing.T) {
	plan, err := Parse("du3-a", Limits{})
	if err != nil {
		t.Fatal(err)
	}
	if got := plan.Phrases[0].Words[0].Slots[0].Token; got != "du₃" {
		t.Errorf("token = %q, want du₃", got)
	}
}

func TestParseKeepsBracketMembersLiteral(t *testing.T) {
	tests := []struct {
		query string
		want  []string
	}{
		{"[sz]a", []string{"sa", "za"}},
		{"[ts]a", []string{"sa", "ta"}},
		{"[SZ]u", []string{"Su", "Zu"}},
		{"sz[ia]", []string{"ša", "ši"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			plan, err := Parse(tt.query, Limits{})
			if err != nil {
				t.Fatal(err)
			}
			got := append([]string(nil), plan.Phrases[0].Words[0].Slots[0].Expansion.Candidates...)
			sort.Strings(got)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("candidates = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseRejectsBadSyntax(t *testing.T) {
	_, err := Parse("a-[na", Limits{})
	if !errors.Is(err, apperrors.ErrInvalidSyntax) {
		t.Errorf("err = %v, want ErrInvalidSyntax", err)
	}
}

func TestParseEnforcesCandidateLimit(t *testing.T) {
	_, err := Parse("CCa", Limits{MaxCandidatesPerSlot: 100})
	if !errors.Is(err, apperrors.ErrQueryTooComplex) {
		t.Errorf("err = %v, want ErrQueryTooComplex", err)
	}
	if _, err := Parse("Ca", Limits{MaxCandidatesPerSlot: 100}); err != nil {
		t.Errorf("Ca within limit: %v", err)
	}
}

func TestParseEnforcesSlotLimit(t *testing.T) {
	q := strings.Repeat("a-", 10) + "a"
	_, err := Parse(q, Limits{MaxSlots: 10})
	if !errors.Is(err, apperrors.ErrQueryTooComplex) {
		t.Errorf("err = %v, want ErrQueryTooComplex", err)
	}
}

func TestLimitsCheckedBeforeResolution(t *testing.T) {
	r := &stubResolver{}
	_, err := Compile(context.Background(), "CCCC", Limits{MaxCandidatesPerSlot: 2048}, r)
	if !errors.Is(err, apperrors.ErrQueryTooComplex) {
		t.Fatalf("err = %v", err)
	}
	if r.calls != 0 {
		t.Errorf("resolver called %d times", r.calls)
	}
}

func TestCompileResolvesSlots(t *testing.T) {
	r := &stubResolver{readings: map[string]corpus.ReadingID{"a": 1, "na": 2}}
	q, err := Compile(context.Background(), "a-na;!na;ki", Limits{}, r)
	if err != nil {
		t.Fatal(err)
	}
	if r.calls != 1 {
		t.Errorf("resolver called %d times, want one batch", r.calls)
	}
	and, not := q.And(), q.Not()
	if len(and) != 2 || len(not) != 1 {
		t.Fatalf("and=%d not=%d", len(and), len(not))
	}
	slots := and[0].Words[0].Slots
	if !slots[0].Readings.Contains(1) || !slots[1].Readings.Contains(2) {
		t.Errorf("resolved slots = %v %v", slots[0].Readings, slots[1].Readings)
	}
	if !and[0].Resolvable() {
		t.Error("a-na should be resolvable")
	}
	if and[1].Resolvable() {
		t.Error("ki has no readings and should not be resolvable")
	}
}
