package executor

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/parser"
)

// evaluate loads candidate sequences in batches and evaluates every phrase
// against each, with up to MatchConcurrency batches in flight.
func (e *Executor) evaluate(ctx context.Context, docs []corpus.DocumentID, q *parser.Query, opts matcher.Options) ([]matcher.Evaluation, error) {
	batches := batch(docs, e.cfg.LoadBatchSize)
	perBatch := make([][]matcher.Evaluation, len(batches))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MatchConcurrency)
	for i, ids := range batches {
		g.Go(func() error {
			var seqs []corpus.Sequence
			err := e.guard(func() error {
				var err error
				seqs, err = e.tokens.Sequences(gctx, ids)
				return err
			})
			if err != nil {
				return fmt.Errorf("loading %d sequences: %w", len(ids), err)
			}
			evals := make([]matcher.Evaluation, 0, len(seqs))
			for _, seq := range seqs {
				if err := gctx.Err(); err != nil {
					return err
				}
				evals = append(evals, matcher.Evaluate(seq, q, opts))
			}
			perBatch[i] = evals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []matcher.Evaluation
	for _, evals := range perBatch {
		out = append(out, evals...)
	}
	e.logger.Debug("evaluated candidates",
		"documents", len(docs),
		"batches", len(batches),
		"sequences", len(out),
	)
	return out, nil
}

func batch(ids []corpus.DocumentID, size int) [][]corpus.DocumentID {
	var out [][]corpus.DocumentID
	for start := 0; start < len(ids); start += size {
		end := start + size
		if end > len(ids) {
			end = len(ids)
		}
		out = append(out, ids[start:end])
	}
	return out
}

// intersect returns the ids present in every list, ascending. It starts from
// the shortest list.
func intersect(lists [][]corpus.DocumentID) []corpus.DocumentID {
	if len(lists) == 0 {
		return nil
	}
	shortest := 0
	for i, l := range lists {
		if len(l) < len(lists[shortest]) {
			shortest = i
		}
	}
	candidates := make(map[corpus.DocumentID]struct{}, len(lists[shortest]))
	for _, id := range lists[shortest] {
		candidates[id] = struct{}{}
	}
	for i, l := range lists {
		if i == shortest {
			continue
		}
		present := make(map[corpus.DocumentID]struct{}, len(l))
		for _, id := range l {
			present[id] = struct{}{}
		}
		for id := range candidates {
			if _, ok := present[id]; !ok {
				delete(candidates, id)
			}
		}
	}
	out := make([]corpus.DocumentID, 0, len(candidates))
	for id := range candidates {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
