package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/assembler"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/matcher"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/translit-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/translit-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/translit-search/pkg/tracing"
)

// TokenStore provides ordered per-document token sequences.
type TokenStore interface {
	// DocumentsWithReadings returns the documents containing at least one of
	// readings.
	DocumentsWithReadings(ctx context.Context, readings []corpus.ReadingID) ([]corpus.DocumentID, error)
	Sequences(ctx context.Context, docs []corpus.DocumentID) ([]corpus.Sequence, error)
}

// Visibility supplies the documents a caller may not see.
type Visibility interface {
	Hidden(ctx context.Context, caller string) (map[corpus.DocumentID]struct{}, error)
}

type Request struct {
	Query              string       `json:"query"`
	Mode               matcher.Mode `json:"mode"`
	IncludeSuperfluous bool         `json:"include_superfluous"`
	Page               int          `json:"page"`
	Limit              int          `json:"limit"`
	Caller             string       `json:"caller,omitempty"`
}

// Stats describes the work one search did.
type Stats struct {
	Phrases            int `json:"phrases"`
	Slots              int `json:"slots"`
	Candidates         int `json:"candidates"`
	CandidateDocuments int `json:"candidate_documents"`
}

type SearchResult struct {
	Query   string            `json:"query"`
	Mode    string            `json:"mode"`
	Total   int               `json:"total"`
	Page    int               `json:"page"`
	Limit   int               `json:"limit"`
	Results []assembler.Match `json:"results"`
	Stats   Stats             `json:"stats"`
}

// residentCatalog is implemented by catalogs served from memory. Their
// lookups do not go through the store breaker.
type residentCatalog interface {
	Resident() bool
}

// Deps are the collaborators of an Executor. Visibility, Breaker, Tracer and
// Metrics are optional.
type Deps struct {
	Tokens     TokenStore
	Catalog    resolver.Catalog
	Visibility Visibility
	Breaker    *resilience.CircuitBreaker
	Tracer     *tracing.Tracer
	Metrics    *metrics.Metrics
}

type Executor struct {
	tokens     TokenStore
	resolver   *resolver.Resolver
	resident   bool
	visibility Visibility
	breaker    *resilience.CircuitBreaker
	tracer     *tracing.Tracer
	metrics    *metrics.Metrics
	cfg        config.SearchConfig
	logger     *slog.Logger
}

func New(deps Deps, cfg config.SearchConfig) *Executor {
	if cfg.MatchConcurrency <= 0 {
		cfg.MatchConcurrency = 1
	}
	if cfg.LoadBatchSize <= 0 {
		cfg.LoadBatchSize = 200
	}
	rc, ok := deps.Catalog.(residentCatalog)
	return &Executor{
		tokens:     deps.Tokens,
		resolver:   resolver.New(deps.Catalog, cfg.ResolveConcurrency),
		resident:   ok && rc.Resident(),
		visibility: deps.Visibility,
		breaker:    deps.Breaker,
		tracer:     deps.Tracer,
		metrics:    deps.Metrics,
		cfg:        cfg,
		logger:     slog.Default().With("component", "query-executor"),
	}
}

func (e *Executor) limits() parser.Limits {
	return parser.Limits{
		MaxCandidatesPerSlot: e.cfg.MaxCandidatesPerSlot,
		MaxSlots:             e.cfg.MaxSlots,
	}
}

// Search runs req and returns the requested page of the match set.
func (e *Executor) Search(ctx context.Context, req Request) (*SearchResult, error) {
	matches, stats, err := e.run(ctx, "search", req)
	if err != nil {
		return nil, err
	}
	return &SearchResult{
		Query:   req.Query,
		Mode:    req.Mode.String(),
		Total:   len(matches),
		Page:    req.Page,
		Limit:   req.Limit,
		Results: assembler.Page(matches, req.Page, req.Limit),
		Stats:   stats,
	}, nil
}

// Count returns the size of the match set Search pages over.
func (e *Executor) Count(ctx context.Context, req Request) (int, error) {
	matches, _, err := e.run(ctx, "count", req)
	if err != nil {
		return 0, err
	}
	return len(matches), nil
}

func (e *Executor) run(ctx context.Context, op string, req Request) ([]assembler.Match, Stats, error) {
	ctx, root := e.tracer.Start(ctx, op, logger.RequestID(ctx))
	root.SetAttr("query", req.Query)
	root.SetAttr("mode", req.Mode.String())
	defer e.tracer.Finish(root)

	type outcome struct {
		matches []assembler.Match
		stats   Stats
	}
	var out outcome
	err := resilience.WithTimeout(ctx, e.cfg.Timeout, op, func(ctx context.Context) error {
		matches, stats, err := e.execute(ctx, req)
		if err != nil {
			return err
		}
		out = outcome{matches: matches, stats: stats}
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrTimeout) {
			e.logger.Warn("search timed out", "query", req.Query, "timeout", e.cfg.Timeout)
		}
		root.SetAttr("error", err.Error())
		return nil, Stats{}, err
	}
	root.SetAttr("results", len(out.matches))
	return out.matches, out.stats, nil
}

func (e *Executor) execute(ctx context.Context, req Request) ([]assembler.Match, Stats, error) {
	var stats Stats
	var query *parser.Query
	err := e.stage(ctx, "compile", func(ctx context.Context) error {
		plan, err := parser.Parse(req.Query, e.limits())
		if err != nil {
			e.reject(err)
			return err
		}
		stats.Phrases = len(plan.Phrases)
		stats.Slots = plan.Slots
		stats.Candidates = plan.Candidates
		if e.metrics != nil {
			e.metrics.QuerySlots.Observe(float64(plan.Slots))
			e.metrics.QueryCandidates.Observe(float64(plan.Candidates))
		}
		compile := func() error {
			query, err = plan.Compile(ctx, e.resolver)
			return err
		}
		if e.resident {
			return compile()
		}
		return e.guard(compile)
	})
	if err != nil {
		return nil, stats, e.storeError("compiling query", err)
	}

	ands := query.And()
	if len(ands) == 0 {
		return []assembler.Match{}, stats, nil
	}
	for _, p := range ands {
		if !p.Resolvable() {
			e.logger.Debug("phrase has an unresolvable slot", "phrase", p.Raw)
			return []assembler.Match{}, stats, nil
		}
	}

	var candidates []corpus.DocumentID
	err = e.stage(ctx, "prefilter", func(ctx context.Context) error {
		var err error
		candidates, err = e.prefilter(ctx, ands)
		return err
	})
	if err != nil {
		return nil, stats, e.storeError("prefiltering documents", err)
	}
	stats.CandidateDocuments = len(candidates)
	if e.metrics != nil {
		e.metrics.CandidateDocuments.Observe(float64(len(candidates)))
	}
	if len(candidates) == 0 {
		return []assembler.Match{}, stats, nil
	}

	opts := matcher.Options{Mode: req.Mode, IncludeSuperfluous: req.IncludeSuperfluous}
	var evals []matcher.Evaluation
	err = e.stage(ctx, "match", func(ctx context.Context) error {
		var err error
		evals, err = e.evaluate(ctx, candidates, query, opts)
		return err
	})
	if err != nil {
		return nil, stats, e.storeError("matching documents", err)
	}

	hidden := map[corpus.DocumentID]struct{}{}
	if e.visibility != nil {
		err = e.stage(ctx, "visibility", func(ctx context.Context) error {
			return e.guard(func() error {
				var err error
				hidden, err = e.visibility.Hidden(ctx, req.Caller)
				return err
			})
		})
		if err != nil {
			return nil, stats, e.storeError("loading visibility", err)
		}
	}

	_, span := tracing.StartChildSpan(ctx, "assemble")
	start := time.Now()
	matches := assembler.Assemble(evals, hidden)
	span.End()
	e.observeStage("assemble", start)

	e.logger.Info("query executed",
		"query", req.Query,
		"mode", req.Mode.String(),
		"phrases", stats.Phrases,
		"slots", stats.Slots,
		"candidates", stats.Candidates,
		"candidate_documents", stats.CandidateDocuments,
		"results", len(matches),
	)
	return matches, stats, nil
}

// prefilter narrows the corpus to documents containing a reading of the
// first slot of every word of every AND phrase.
func (e *Executor) prefilter(ctx context.Context, ands []parser.Phrase) ([]corpus.DocumentID, error) {
	var probes []corpus.ReadingSet
	for _, p := range ands {
		for _, w := range p.Words {
			probes = append(probes, w.Slots[0].Readings)
		}
	}
	perProbe := make([][]corpus.DocumentID, len(probes))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MatchConcurrency)
	for i, probe := range probes {
		g.Go(func() error {
			return e.guard(func() error {
				docs, err := e.tokens.DocumentsWithReadings(gctx, probe.Sorted())
				if err != nil {
					return fmt.Errorf("documents with readings: %w", err)
				}
				perProbe[i] = docs
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return intersect(perProbe), nil
}

func (e *Executor) guard(fn func() error) error {
	if e.breaker == nil {
		return fn()
	}
	return e.breaker.Execute(fn)
}

func (e *Executor) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracing.StartChildSpan(ctx, name)
	start := time.Now()
	err := fn(ctx)
	span.End()
	if err != nil {
		span.SetAttr("error", err.Error())
	}
	e.observeStage(name, start)
	return err
}

func (e *Executor) observeStage(name string, start time.Time) {
	if e.metrics != nil {
		e.metrics.SearchStageDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	}
}

func (e *Executor) reject(err error) {
	if e.metrics != nil {
		e.metrics.QueryRejections.WithLabelValues(apperrors.Reason(err)).Inc()
	}
}

// storeError classifies a failure. Query errors and timeouts pass through
// and an open breaker becomes ErrStoreUnavailable. Anything else is internal.
func (e *Executor) storeError(op string, err error) error {
	var appErr *apperrors.AppError
	switch {
	case errors.As(err, &appErr):
		return err
	case errors.Is(err, apperrors.ErrTimeout), errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrTimeout, err)
	case errors.Is(err, resilience.ErrCircuitOpen):
		e.logger.Warn("corpus store circuit open", "op", op, "error", err)
		return apperrors.New(apperrors.ErrStoreUnavailable, http.StatusServiceUnavailable, "search temporarily unavailable")
	default:
		e.logger.Error("corpus store failure", "op", op, "error", err)
		return fmt.Errorf("%s: %w: %w", op, apperrors.ErrInternal, err)
	}
}
