package query

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cityjson/flatcitybuf/attrindex/errs"
	"github.com/cityjson/flatcitybuf/attrindex/index"
	"github.com/cityjson/flatcitybuf/attrindex/internal/obs"
	"github.com/cityjson/flatcitybuf/attrindex/internal/options"
	"github.com/cityjson/flatcitybuf/attrindex/rangeio"
	"github.com/cityjson/flatcitybuf/attrindex/stream"
)

// EngineOption configures an Engine.
type EngineOption = options.Option[*Engine]

// WithLogger sets the zap logger Engine.Execute uses to correlate a query's
// conditions under one request ID. The default is obs.NopLogger.
func WithLogger(logger *zap.Logger) EngineOption {
	return options.New(func(e *Engine) error {
		e.logger = logger
		return nil
	})
}

// WithMetrics attaches a prometheus metrics bundle. The default records
// nothing (every obs helper tolerates a nil *obs.Metrics).
func WithMetrics(m *obs.Metrics) EngineOption {
	return options.New(func(e *Engine) error {
		e.metrics = m
		return nil
	})
}

// WithCombineThreshold sets the gap (in bytes, against the feature file the
// offsets address) below which ExecuteHTTP coalesces adjacent offsets into
// one ranged read (spec.md §4.5's combine_request_threshold). The default
// is 0, which merges only records that touch or overlap.
func WithCombineThreshold(n uint64) EngineOption {
	return options.New(func(e *Engine) error {
		e.combineThreshold = n
		return nil
	})
}

// Engine executes a Query across a set of per-field stream.Readers (C6,
// spec.md §4.6). It is the runtime counterpart of catalog.Catalog: the
// catalog tells you which fields exist and where; the Engine is what a
// caller actually runs conditions against.
type Engine struct {
	readers          map[string]*stream.Reader
	logger           *zap.Logger
	metrics          *obs.Metrics
	combineThreshold uint64
}

// NewEngine creates an empty Engine. Fields are added via Register, or in
// bulk via NewEngineFromReaders (the common case of a catalog.OpenReaders
// result).
func NewEngine(opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		readers: make(map[string]*stream.Reader),
		logger:  obs.NopLogger(),
	}

	if err := options.Apply(e, opts...); err != nil {
		return nil, err
	}

	return e, nil
}

// NewEngineFromReaders builds an Engine already registered with every
// (field, reader) pair in readers — the shape catalog.OpenReaders returns.
func NewEngineFromReaders(readers map[string]*stream.Reader, opts ...EngineOption) (*Engine, error) {
	e, err := NewEngine(opts...)
	if err != nil {
		return nil, err
	}

	for field, r := range readers {
		e.readers[field] = r
	}

	return e, nil
}

// Register adds or replaces the reader backing field.
func (e *Engine) Register(field string, r *stream.Reader) {
	e.readers[field] = r
}

// Fields returns every field name the Engine currently has a reader for.
func (e *Engine) Fields() []string {
	out := make([]string, 0, len(e.readers))
	for field := range e.readers {
		out = append(out, field)
	}

	sort.Strings(out)

	return out
}

// Execute runs q against the registered readers and returns the ascending,
// deduplicated intersection of every condition's matching offsets (spec.md
// §4.6). A Query with no conditions is rejected with ErrEmptyQuery; a
// condition naming an unregistered field is rejected with ErrUnknownField.
//
// Conditions execute in the order given; v1 does not reorder by estimated
// selectivity (spec.md §4.6). A Ne condition costs O(n) in that field's
// index size, since it must visit every entry except the matched one
// (spec.md §4.6) — callers pairing a Ne with a more selective condition
// should list the selective one first, so an empty intersection short-
// circuits the loop before the Ne ever runs.
// Around each condition, Execute saves and
// restores the reader's client cursor when the client implements
// rangeio.CursorClient (spec.md §4.4.3) — neither FileClient nor HTTPClient
// needs this, since both serve ReadRange without a shared cursor, but a
// host-supplied stateful client is protected regardless.
func (e *Engine) Execute(ctx context.Context, q Query) ([]uint64, error) {
	if len(q.Conditions) == 0 {
		return nil, errs.ErrEmptyQuery
	}

	requestID := uuid.New()
	start := time.Now()

	logger := e.logger.With(zap.String("request_id", requestID.String()), zap.Int("conditions", len(q.Conditions)))
	logger.Debug("query execute start")

	defer func() {
		obs.ObserveQueryDuration(e.metrics, time.Since(start))
		logger.Debug("query execute done", zap.Duration("elapsed", time.Since(start)))
	}()

	var result []uint64

	for i, cond := range q.Conditions {
		offsets, err := e.executeCondition(ctx, cond)
		if err != nil {
			return nil, fmt.Errorf("condition %d (%s %s): %w", i, cond.Field, cond.Op, err)
		}

		obs.ObserveQueryCondition(e.metrics, cond.Op.String())

		if i == 0 {
			result = offsets
			continue
		}

		result = intersectSorted(result, offsets)
		if len(result) == 0 {
			// Every subsequent condition can only shrink the intersection
			// further; no point fetching the rest.
			break
		}
	}

	return result, nil
}

// ExecuteHTTP runs q like Execute, then coalesces the resulting offsets into
// the byte ranges spec.md §6.3 calls HttpResult, using recordSize to learn
// each record's length and the WithCombineThreshold gap configured on e.
func (e *Engine) ExecuteHTTP(ctx context.Context, q Query, recordSize func(uint64) uint64) ([]rangeio.ByteRange, error) {
	offsets, err := e.Execute(ctx, q)
	if err != nil {
		return nil, err
	}

	return CoalesceOffsets(offsets, recordSize, e.combineThreshold), nil
}

func (e *Engine) executeCondition(ctx context.Context, cond Condition) ([]uint64, error) {
	r, ok := e.readers[cond.Field]
	if !ok {
		return nil, fmt.Errorf("%w: %s", errs.ErrUnknownField, cond.Field)
	}

	restore := saveCursor(r)
	defer restore()

	var (
		offsets []uint64
		err     error
	)

	if cond.Op == index.Eq {
		offsets, err = r.FindExact(ctx, cond.Key)
	} else {
		offsets, err = r.FindRange(ctx, cond.Op, cond.Key)
	}

	if err != nil {
		return nil, err
	}

	return sortUnique(offsets), nil
}

// saveCursor saves r's client cursor, when it implements rangeio.CursorClient,
// and returns a func that restores it. FileClient and HTTPClient don't
// implement CursorClient (neither shares a cursor across callers), so this
// is a no-op for both; it only engages for a host-supplied stateful client.
func saveCursor(r *stream.Reader) func() {
	cc, ok := r.Client().(rangeio.CursorClient)
	if !ok {
		return func() {}
	}

	pos := cc.Cursor()

	return func() { cc.SeekCursor(pos) }
}

func sortUnique(in []uint64) []uint64 {
	if len(in) == 0 {
		return in
	}

	out := make([]uint64, len(in))
	copy(out, in)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	w := 1
	for r := 1; r < len(out); r++ {
		if out[r] != out[w-1] {
			out[w] = out[r]
			w++
		}
	}

	return out[:w]
}

// intersectSorted returns the sorted intersection of two sorted, unique
// slices in O(len(a)+len(b)).
func intersectSorted(a, b []uint64) []uint64 {
	out := make([]uint64, 0, min(len(a), len(b)))

	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			i++
		case a[i] > b[j]:
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}

	return out
}
