package store

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	client, err := sqlite.New(config.SQLiteConfig{Path: sqlite.MemoryPath, BusyTimeout: time.Second})
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	if err := Migrate(ctx, client.DB); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	s := New(client.DB, SQLite)

	if err := s.InsertReadings(ctx, []corpus.CatalogEntry{
		{Reading: 1, Value: "a", Sign: 1},
		{Reading: 2, Value: "na", Sign: 2},
		{Reading: 3, Value: "lì", Sign: 3},
		{Reading: 4, Value: "ni", Sign: 3},
		{Reading: 5, Value: "ì", Sign: 3},
	}); err != nil {
		t.Fatalf("InsertReadings: %v", err)
	}
	if err := s.InsertText(ctx, corpus.Document{ID: 10, Name: "T1"}, []corpus.Token{
		{Position: 2, Side: "obv.", Line: 1, Group: 7, Grouped: true, Reading: 2},
		{Position: 1, Side: "obv.", Line: 1, Group: 7, Grouped: true, Reading: 1},
		{Position: 3, Side: "obv.", Line: 2, Reading: 4, Markup: corpus.MarkupSuperfluous},
	}); err != nil {
		t.Fatalf("InsertText T1: %v", err)
	}
	if err := s.InsertText(ctx, corpus.Document{ID: 11, Name: "T2"}, []corpus.Token{
		{Position: 1, Side: "rev.", Line: 4, Group: 9, Grouped: true, Reading: 5},
	}); err != nil {
		t.Fatalf("InsertText T2: %v", err)
	}
	return s
}

func TestDocumentsWithReadings(t *testing.T) {
	s := newTestStore(t)
	got, err := s.DocumentsWithReadings(context.Background(), []corpus.ReadingID{4, 5, 99})
	if err != nil {
		t.Fatalf("DocumentsWithReadings: %v", err)
	}
	want := []corpus.DocumentID{10, 11}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestSequencesOrderedByPosition(t *testing.T) {
	s := newTestStore(t)
	seqs, err := s.Sequences(context.Background(), []corpus.DocumentID{10})
	if err != nil {
		t.Fatalf("Sequences: %v", err)
	}
	if len(seqs) != 1 {
		t.Fatalf("got %d sequences, want 1", len(seqs))
	}
	seq := seqs[0]
	if seq.Document.Name != "T1" {
		t.Errorf("name = %q, want T1", seq.Document.Name)
	}
	var positions []int
	for _, tok := range seq.Tokens {
		positions = append(positions, tok.Position)
	}
	if !reflect.DeepEqual(positions, []int{1, 2, 3}) {
		t.Errorf("positions = %v, want [1 2 3]", positions)
	}
	last := seq.Tokens[2]
	if last.Grouped {
		t.Errorf("token without discourse id reported as grouped: %+v", last)
	}
	if !last.Markup.Has(corpus.MarkupSuperfluous) {
		t.Errorf("superfluous flag lost: %+v", last)
	}
	if !corpus.SameGroup(seq.Tokens[0], seq.Tokens[1]) {
		t.Errorf("tokens 1 and 2 should share group 7")
	}
}

func TestResolveLiteralAndAlternates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	lit, err := s.ResolveLiteral(ctx, []string{"lì", "na", "missing"})
	if err != nil {
		t.Fatalf("ResolveLiteral: %v", err)
	}
	if !reflect.DeepEqual(lit, []corpus.ReadingID{2, 3}) {
		t.Errorf("ResolveLiteral = %v, want [2 3]", lit)
	}

	alt, err := s.ResolveAlternates(ctx, []string{"lì"})
	if err != nil {
		t.Fatalf("ResolveAlternates: %v", err)
	}
	if !reflect.DeepEqual(alt, []corpus.ReadingID{3, 4, 5}) {
		t.Errorf("ResolveAlternates = %v, want [3 4 5]", alt)
	}

	none, err := s.ResolveLiteral(ctx, nil)
	if err != nil || len(none) != 0 {
		t.Errorf("ResolveLiteral(nil) = %v, %v", none, err)
	}
}

func TestCachedCatalogMatchesStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	cached, err := NewCachedCatalog(ctx, s)
	if err != nil {
		t.Fatalf("NewCachedCatalog: %v", err)
	}
	for _, values := range [][]string{{"a"}, {"lì"}, {"ni", "na"}, {"zz"}} {
		fromDB, _ := s.ResolveAlternates(ctx, values)
		fromMem, _ := cached.ResolveAlternates(ctx, values)
		if !reflect.DeepEqual(fromDB, fromMem) {
			t.Errorf("alternates %v: store %v, cache %v", values, fromDB, fromMem)
		}
		litDB, _ := s.ResolveLiteral(ctx, values)
		litMem, _ := cached.ResolveLiteral(ctx, values)
		if !reflect.DeepEqual(litDB, litMem) {
			t.Errorf("literal %v: store %v, cache %v", values, litDB, litMem)
		}
	}

	if err := s.InsertReadings(ctx, []corpus.CatalogEntry{{Reading: 6, Value: "lu", Sign: 4}}); err != nil {
		t.Fatal(err)
	}
	if got, _ := cached.ResolveLiteral(ctx, []string{"lu"}); len(got) != 0 {
		t.Errorf("snapshot changed before reload: %v", got)
	}
	if err := cached.Reload(ctx); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if got, _ := cached.ResolveLiteral(ctx, []string{"lu"}); !reflect.DeepEqual(got, []corpus.ReadingID{6}) {
		t.Errorf("after reload got %v, want [6]", got)
	}
}

func TestHiddenRespectsGrants(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	if err := s.Restrict(ctx, 11); err != nil {
		t.Fatal(err)
	}
	if err := s.Grant(ctx, 11, "reader-1"); err != nil {
		t.Fatal(err)
	}

	hidden, err := s.Hidden(ctx, "")
	if err != nil {
		t.Fatalf("Hidden: %v", err)
	}
	if _, ok := hidden[11]; !ok || len(hidden) != 1 {
		t.Errorf("anonymous hidden = %v, want {11}", hidden)
	}

	hidden, err = s.Hidden(ctx, "reader-1")
	if err != nil {
		t.Fatalf("Hidden: %v", err)
	}
	if len(hidden) != 0 {
		t.Errorf("granted caller hidden = %v, want empty", hidden)
	}
}

func TestChunks(t *testing.T) {
	got := chunks(1201)
	want := [][2]int{{0, 500}, {500, 1000}, {1000, 1201}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("chunks(1201) = %v, want %v", got, want)
	}
	if len(chunks(0)) != 0 {
		t.Errorf("chunks(0) should be empty")
	}
}
