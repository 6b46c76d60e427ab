package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
)

// InsertText stores a document and its sign occurrences in one transaction.
// It is used to seed local corpora and fixtures; production ingestion owns
// these tables.
func (s *Store) InsertText(ctx context.Context, doc corpus.Document, tokens []corpus.Token) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO texts (id, name) VALUES (%s)`, s.dialect.placeholders(1, 2)),
			int64(doc.ID), doc.Name,
		); err != nil {
			return fmt.Errorf("inserting text %s: %w", doc.Name, err)
		}
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO sign_occurrences (text_id, position, side, line, discourse_id, reading_id, markup)
			 VALUES (%s)`, s.dialect.placeholders(1, 7)))
		if err != nil {
			return fmt.Errorf("preparing occurrence insert: %w", err)
		}
		defer stmt.Close()
		for _, tok := range tokens {
			var discourse sql.NullInt64
			if tok.Grouped {
				discourse = sql.NullInt64{Int64: int64(tok.Group), Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				int64(doc.ID), tok.Position, tok.Side, tok.Line, discourse, int64(tok.Reading), int64(tok.Markup),
			); err != nil {
				return fmt.Errorf("inserting occurrence %d of %s: %w", tok.Position, doc.Name, err)
			}
		}
		return nil
	})
}

// InsertReadings adds catalog entries.
func (s *Store) InsertReadings(ctx context.Context, entries []corpus.CatalogEntry) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, fmt.Sprintf(
			`INSERT INTO readings (id, value, sign_id) VALUES (%s)`, s.dialect.placeholders(1, 3)))
		if err != nil {
			return fmt.Errorf("preparing reading insert: %w", err)
		}
		defer stmt.Close()
		for _, e := range entries {
			if _, err := stmt.ExecContext(ctx, int64(e.Reading), e.Value, int64(e.Sign)); err != nil {
				return fmt.Errorf("inserting reading %q: %w", e.Value, err)
			}
		}
		return nil
	})
}

// Restrict hides a document from every caller without a grant.
func (s *Store) Restrict(ctx context.Context, doc corpus.DocumentID) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO restricted_texts (text_id) VALUES (%s)`, s.dialect.Placeholder(1)),
		int64(doc),
	)
	if err != nil {
		return fmt.Errorf("restricting text %d: %w", doc, err)
	}
	return nil
}

// Grant lets caller see a restricted document.
func (s *Store) Grant(ctx context.Context, doc corpus.DocumentID, caller string) error {
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO text_grants (text_id, caller_id) VALUES (%s)`, s.dialect.placeholders(1, 2)),
		int64(doc), caller,
	)
	if err != nil {
		return fmt.Errorf("granting text %d to %s: %w", doc, caller, err)
	}
	return nil
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back transaction after error %v: %w", rbErr, err)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
