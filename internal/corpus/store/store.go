// Package store reads the corpus tables (texts, sign occurrences, readings,
// visibility restrictions) from PostgreSQL or SQLite. It implements the token
// store, reading catalog and visibility collaborators of the search engine.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
)

// maxBindParams keeps IN lists below the SQLite host-parameter limit.
const maxBindParams = 500

// Store runs read queries against the corpus schema.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// New returns a Store over db using the given parameter dialect.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		logger:  slog.Default().With("component", "corpus-store"),
	}
}

// DocumentsWithReadings returns the ids of documents containing at least one
// occurrence of any of the given readings, in ascending order.
func (s *Store) DocumentsWithReadings(ctx context.Context, readings []corpus.ReadingID) ([]corpus.DocumentID, error) {
	seen := make(map[corpus.DocumentID]struct{})
	for _, chunk := range chunks(len(readings)) {
		batch := readings[chunk[0]:chunk[1]]
		query := fmt.Sprintf(
			`SELECT DISTINCT text_id FROM sign_occurrences WHERE reading_id IN (%s)`,
			s.dialect.placeholders(1, len(batch)),
		)
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = int64(id)
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("querying documents by reading: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning document id: %w", err)
			}
			seen[corpus.DocumentID(id)] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating document ids: %w", err)
		}
	}
	ids := make([]corpus.DocumentID, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sortDocumentIDs(ids)
	return ids, nil
}

// Sequences loads the full ordered token stream of every requested document.
// Documents without tokens are omitted.
func (s *Store) Sequences(ctx context.Context, docs []corpus.DocumentID) ([]corpus.Sequence, error) {
	out := make([]corpus.Sequence, 0, len(docs))
	for _, chunk := range chunks(len(docs)) {
		batch := docs[chunk[0]:chunk[1]]
		query := fmt.Sprintf(
			`SELECT o.text_id, t.name, o.position, o.side, o.line, o.discourse_id, o.reading_id, o.markup
			 FROM sign_occurrences o
			 JOIN texts t ON t.id = o.text_id
			 WHERE o.text_id IN (%s)
			 ORDER BY o.text_id, o.position`,
			s.dialect.placeholders(1, len(batch)),
		)
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = int64(id)
		}
		seqs, err := s.scanSequences(ctx, query, args)
		if err != nil {
			return nil, err
		}
		out = append(out, seqs...)
	}
	return out, nil
}

func (s *Store) scanSequences(ctx context.Context, query string, args []any) ([]corpus.Sequence, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sign occurrences: %w", err)
	}
	defer rows.Close()

	var seqs []corpus.Sequence
	for rows.Next() {
		var (
			docID     int64
			name      string
			tok       corpus.Token
			discourse sql.NullInt64
			reading   int64
			markup    int64
		)
		if err := rows.Scan(&docID, &name, &tok.Position, &tok.Side, &tok.Line, &discourse, &reading, &markup); err != nil {
			return nil, fmt.Errorf("scanning sign occurrence: %w", err)
		}
		tok.Document = corpus.DocumentID(docID)
		tok.Reading = corpus.ReadingID(reading)
		tok.Markup = corpus.Markup(markup)
		if discourse.Valid {
			tok.Group = corpus.GroupID(discourse.Int64)
			tok.Grouped = true
		}
		if n := len(seqs); n == 0 || seqs[n-1].Document.ID != tok.Document {
			seqs = append(seqs, corpus.Sequence{
				Document: corpus.Document{ID: tok.Document, Name: name},
			})
		}
		last := &seqs[len(seqs)-1]
		last.Tokens = append(last.Tokens, tok)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sign occurrences: %w", err)
	}
	return seqs, nil
}

// ResolveLiteral returns every reading whose value equals one of the given
// strings exactly.
func (s *Store) ResolveLiteral(ctx context.Context, values []string) ([]corpus.ReadingID, error) {
	return s.resolve(ctx, `SELECT id FROM readings WHERE value IN (%s)`, values)
}

// ResolveAlternates returns every reading that shares a sign with any of the
// given values, including the readings of the values themselves.
func (s *Store) ResolveAlternates(ctx context.Context, values []string) ([]corpus.ReadingID, error) {
	return s.resolve(ctx,
		`SELECT DISTINCT alt.id
		 FROM readings r
		 JOIN readings alt ON alt.sign_id = r.sign_id
		 WHERE r.value IN (%s)`,
		values,
	)
}

func (s *Store) resolve(ctx context.Context, tmpl string, values []string) ([]corpus.ReadingID, error) {
	set := corpus.NewReadingSet()
	for _, chunk := range chunks(len(values)) {
		batch := values[chunk[0]:chunk[1]]
		args := make([]any, len(batch))
		for i, v := range batch {
			args[i] = v
		}
		rows, err := s.db.QueryContext(ctx, fmt.Sprintf(tmpl, s.dialect.placeholders(1, len(batch))), args...)
		if err != nil {
			return nil, fmt.Errorf("querying reading catalog: %w", err)
		}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scanning reading id: %w", err)
			}
			set[corpus.ReadingID(id)] = struct{}{}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("iterating reading ids: %w", err)
		}
	}
	s.logger.Debug("catalog lookup",
		"values", joinValues(values),
		"readings", len(set),
	)
	return set.Sorted(), nil
}

// CatalogEntries returns the whole reading catalog.
func (s *Store) CatalogEntries(ctx context.Context) ([]corpus.CatalogEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, value, sign_id FROM readings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing reading catalog: %w", err)
	}
	defer rows.Close()

	var entries []corpus.CatalogEntry
	for rows.Next() {
		var id, sign int64
		var value string
		if err := rows.Scan(&id, &value, &sign); err != nil {
			return nil, fmt.Errorf("scanning catalog entry: %w", err)
		}
		entries = append(entries, corpus.CatalogEntry{
			Reading: corpus.ReadingID(id),
			Value:   value,
			Sign:    corpus.SignID(sign),
		})
	}
	return entries, rows.Err()
}

// Hidden returns the restricted documents the caller holds no grant for.
// An empty caller sees no restricted document.
func (s *Store) Hidden(ctx context.Context, caller string) (map[corpus.DocumentID]struct{}, error) {
	query := fmt.Sprintf(
		`SELECT r.text_id FROM restricted_texts r
		 WHERE NOT EXISTS (
			SELECT 1 FROM text_grants g WHERE g.text_id = r.text_id AND g.caller_id = %s
		 )`,
		s.dialect.Placeholder(1),
	)
	rows, err := s.db.QueryContext(ctx, query, caller)
	if err != nil {
		return nil, fmt.Errorf("querying restricted texts: %w", err)
	}
	defer rows.Close()

	hidden := make(map[corpus.DocumentID]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning restricted text: %w", err)
		}
		hidden[corpus.DocumentID(id)] = struct{}{}
	}
	return hidden, rows.Err()
}

// Ping checks that the database answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// chunks splits n items into [start, end) ranges of at most maxBindParams.
func chunks(n int) [][2]int {
	var out [][2]int
	for start := 0; start < n; start += maxBindParams {
		end := start + maxBindParams
		if end > n {
			end = n
		}
		out = append(out, [2]int{start, end})
	}
	return out
}

func sortDocumentIDs(ids []corpus.DocumentID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// joinValues is used in log lines only.
func joinValues(values []string) string {
	if len(values) > 8 {
		return strings.Join(values[:8], ",") + ",…"
	}
	return strings.Join(values, ",")
}
