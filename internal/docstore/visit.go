package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"docselect/internal/bucket"
	"docselect/internal/document"
	"docselect/internal/selection"
)

const (
	defaultParallelism = 4
	defaultPageSize    = 256
)

// VisitOptions controls a visit.
type VisitOptions struct {
	// Ordered visits orderdoc documents in ordering order, starting at the
	// bound the selection gives for Direction. Unordered visits fan out one
	// scan per selected bucket.
	Ordered   bool
	Direction selection.Direction

	// Parallelism caps concurrent bucket scans. Zero means 4.
	Parallelism int

	// PageSize is the number of rows each scan reads per query. Zero means
	// 256.
	PageSize int

	// RateLimit caps matched documents delivered per second. Zero means
	// unlimited.
	RateLimit rate.Limit
	Burst     int

	// Clock is the time source for now(). Nil means time.Now.
	Clock func() time.Time
}

// VisitStats summarizes a finished visit.
type VisitStats struct {
	Session string
	Buckets int // bucket scans issued; zero for a full or ordered scan
	Scanned int64
	Matched int64
	Invalid int64 // documents the selection was not well-defined for
	Faults  int64 // documents whose evaluation failed
}

// Visit streams every stored document matching sel to fn. Only documents for
// which the selection evaluates to TRUE are delivered. fn is never called
// concurrently. A non-nil error from fn stops the visit and is returned.
func (s *Store) Visit(ctx context.Context, sel *selection.Selector, opts VisitOptions, fn func(*document.Document) error) (VisitStats, error) {
	sessionID, err := uuid.NewV7()
	if err != nil {
		return VisitStats{}, fmt.Errorf("session id: %w", err)
	}
	stats := VisitStats{Session: sessionID.String()}

	if opts.Parallelism <= 0 {
		opts.Parallelism = defaultParallelism
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	var limiter *rate.Limiter
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(opts.RateLimit, max(opts.Burst, 1))
	}
	var evalOpts []selection.ContextOption
	if opts.Clock != nil {
		evalOpts = append(evalOpts, selection.WithClock(opts.Clock))
	}

	logger := s.logger.With("session", stats.Session)
	logger.Info("visit starting", "selection", sel.String(), "ordered", opts.Ordered)
	start := time.Now()

	v := &visitor{
		store:    s,
		sel:      sel,
		evalOpts: evalOpts,
		limiter:  limiter,
		pageSize: opts.PageSize,
		fn:       fn,
	}

	buckets, constrained := sel.Buckets()
	switch {
	case constrained && len(buckets) == 0:
		logger.Debug("selection matches no bucket")
	case opts.Ordered || !constrained:
		if q, ok := orderedQuery(sel, opts, buckets, constrained); ok {
			err = v.scan(ctx, q)
		}
	default:
		stats.Buckets = len(buckets)
		err = v.scanBuckets(ctx, buckets.Sorted(), opts.Parallelism)
	}

	stats.Scanned = v.scanned.Load()
	stats.Matched = v.matched.Load()
	stats.Invalid = v.invalid.Load()
	stats.Faults = v.faults.Load()

	if err != nil {
		logger.Warn("visit aborted", "error", err, "scanned", stats.Scanned, "matched", stats.Matched)
		return stats, err
	}
	logger.Info("visit finished",
		"buckets", stats.Buckets,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"invalid", stats.Invalid,
		"faults", stats.Faults,
		"duration", time.Since(start))
	return stats, nil
}

// scanQuery is one paged scan over the documents table. Pages are cut with a
// keyset on (ordering, id) so fn may write to the store between pages.
type scanQuery struct {
	where []string
	args  []any
	// byOrdering sorts on ordering before id, NULLs last.
	byOrdering bool
	desc       bool
}

// scanCursor is the sort key of the last row of a page.
type scanCursor struct {
	id       string
	ordering sql.NullInt64
}

func bucketQuery(b bucket.ID) scanQuery {
	return scanQuery{
		where: []string{"(loc & ?) = ?"},
		args:  []any{int64(b.LocationMask()), int64(b.Location())},
	}
}

// orderedQuery builds the single scan used for ordered visits and for
// selections that constrain no bucket. ok is false when the ordered bound
// cannot match anything.
func orderedQuery(sel *selection.Selector, opts VisitOptions, buckets bucket.Set, constrained bool) (scanQuery, bool) {
	var q scanQuery
	if constrained {
		var or []string
		for _, b := range buckets.Sorted() {
			or = append(or, "(loc & ?) = ?")
			q.args = append(q.args, int64(b.LocationMask()), int64(b.Location()))
		}
		q.where = append(q.where, "("+strings.Join(or, " OR ")+")")
	}
	if !opts.Ordered {
		return q, true
	}

	q.byOrdering = true
	q.desc = opts.Direction == selection.Descending
	if spec, ok := sel.Ordering(opts.Direction); ok {
		// Orderings are unsigned: a negative start is below every value.
		if q.desc && spec.Start < 0 {
			return scanQuery{}, false
		}
		q.where = append(q.where, "width = ?", "division = ?")
		q.args = append(q.args, int64(spec.WidthBits), int64(spec.DivisionBits))
		if q.desc {
			q.where = append(q.where, "ordering <= ?")
			q.args = append(q.args, spec.Start)
		} else if spec.Start > 0 {
			q.where = append(q.where, "ordering >= ?")
			q.args = append(q.args, spec.Start)
		}
	}
	return q, true
}

// page renders the query for the page after c, or the first page when c is
// nil.
func (q scanQuery) page(c *scanCursor, limit int) (string, []any) {
	where := slices.Clone(q.where)
	args := slices.Clone(q.args)
	cmp, dir := ">", "ASC"
	if q.desc {
		cmp, dir = "<", "DESC"
	}
	if c != nil {
		switch {
		case !q.byOrdering:
			where = append(where, "id "+cmp+" ?")
			args = append(args, c.id)
		case c.ordering.Valid:
			where = append(where, "(ordering "+cmp+" ? OR ordering IS NULL OR (ordering = ? AND id "+cmp+" ?))")
			args = append(args, c.ordering.Int64, c.ordering.Int64, c.id)
		default:
			where = append(where, "(ordering IS NULL AND id "+cmp+" ?)")
			args = append(args, c.id)
		}
	}

	query := "SELECT id, ordering, body FROM documents"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	order := "id " + dir
	if q.byOrdering {
		order = "ordering " + dir + " NULLS LAST, " + order
	}
	return query + " ORDER BY " + order + " LIMIT ?", append(args, limit)
}

type visitor struct {
	store    *Store
	sel      *selection.Selector
	evalOpts []selection.ContextOption
	limiter  *rate.Limiter
	pageSize int

	fnMu sync.Mutex
	fn   func(*document.Document) error

	scanned, matched, invalid, faults atomic.Int64
}

func (v *visitor) scanBuckets(ctx context.Context, buckets []bucket.ID, parallelism int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, b := range buckets {
		g.Go(func() error {
			return v.scan(gctx, bucketQuery(b))
		})
	}
	return g.Wait()
}

func (v *visitor) scan(ctx context.Context, q scanQuery) error {
	var after *scanCursor
	for {
		bodies, last, err := v.fetch(ctx, q, after)
		if err != nil {
			return err
		}
		for _, body := range bodies {
			if err := ctx.Err(); err != nil {
				return err
			}
			doc, err := decodeDocument(body, v.store.reg)
			if err != nil {
				return err
			}
			v.scanned.Add(1)
			if err := v.visit(ctx, doc); err != nil {
				return err
			}
		}
		if len(bodies) < v.pageSize {
			return nil
		}
		after = &last
	}
}

// fetch reads one page of bodies before evaluating so the single connection
// is free for fn to use the store.
func (v *visitor) fetch(ctx context.Context, q scanQuery, after *scanCursor) ([][]byte, scanCursor, error) {
	query, args := q.page(after, v.pageSize)
	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, scanCursor{}, fmt.Errorf("scan documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var (
		bodies [][]byte
		last   scanCursor
	)
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&last.id, &last.ordering, &body); err != nil {
			return nil, scanCursor{}, fmt.Errorf("scan document: %w", err)
		}
		bodies = append(bodies, body)
	}
	if err := rows.Err(); err != nil {
		return nil, scanCursor{}, fmt.Errorf("scan documents: %w", err)
	}
	return bodies, last, nil
}

func (v *visitor) visit(ctx context.Context, doc *document.Document) error {
	res, err := v.sel.Evaluate(&document.Put{Document: doc}, v.evalOpts...)
	if err != nil {
		var evalErr *selection.EvalError
		if !errors.As(err, &evalErr) {
			return err
		}
		v.faults.Add(1)
		v.store.logger.Debug("evaluation fault", "id", doc.ID.String(), "error", err)
		return nil
	}
	switch res {
	case selection.Invalid:
		v.invalid.Add(1)
		return nil
	case selection.False:
		return nil
	}

	if v.limiter != nil {
		if err := v.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	v.matched.Add(1)

	v.fnMu.Lock()
	defer v.fnMu.Unlock()
	return v.fn(doc)
}
