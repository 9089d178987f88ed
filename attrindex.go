// Package attrindex provides FlatCityBuf's attribute index: a side file
// that maps CityJSON feature attribute values (height, building class,
// construction year, ...) to the byte offsets of the matching features in
// a FlatCityBuf feature file, so a host can answer "which features have
// attribute X = value Y" without scanning the feature file itself.
//
// # Core components
//
//   - key: canonical, order-preserving byte encoding of typed attribute
//     keys (scalars, strings, temporal types), shared by every other
//     component so comparisons never disagree.
//   - index: builds (via index.Builder) and serves (via index.Index) a
//     single field's sorted key → offsets index, in memory.
//   - stream: answers the same queries as index.Index directly against a
//     rangeio.RangeClient, without materializing the index.
//   - catalog: packs several fields' indices into one container file and
//     reopens it, routing a field name to its stream.Reader.
//   - query: executes a multi-condition Query across a catalog's readers,
//     intersecting per-condition results into a sorted-unique offset
//     vector (or, for an HTTP-facing host, a coalesced byte-range list).
//   - rangeio: the buffered byte-range abstraction (local file or HTTP
//     range requests) every I/O path above is built on.
//
// # Basic usage
//
// Building a container of indices for two fields:
//
//	heightBuilder, _ := attrindex.NewBuilder(format.F64)
//	heightBuilder.Add(key.F64(12.5), 4096)
//
//	classBuilder, _ := attrindex.NewBuilder(format.String)
//	classBuilder.Add(key.String("residential"), 4096)
//
//	cb := attrindex.NewContainerBuilder()
//	cb.Add("height", heightBuilder)
//	cb.Add("class", classBuilder)
//	cb.WriteFile("attrs.fcbi")
//
// Opening it and running a query:
//
//	client, _ := attrindex.OpenFile("attrs.fcbi")
//	defer client.Close()
//
//	idx, _ := attrindex.Open(ctx, client)
//	offsets, _ := idx.Execute(ctx, query.Query{Conditions: []query.Condition{
//	    {Field: "height", Op: index.Ge, Key: mustEncode(key.F64(10.0))},
//	    {Field: "class", Op: index.Eq, Key: mustEncode(key.String("residential"))},
//	}})
package attrindex

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/cityjson/flatcitybuf/attrindex/catalog"
	"github.com/cityjson/flatcitybuf/attrindex/format"
	"github.com/cityjson/flatcitybuf/attrindex/index"
	"github.com/cityjson/flatcitybuf/attrindex/internal/obs"
	"github.com/cityjson/flatcitybuf/attrindex/query"
	"github.com/cityjson/flatcitybuf/attrindex/rangeio"
	"github.com/cityjson/flatcitybuf/attrindex/stream"
)

// NewMetrics registers and returns the prometheus collectors rangeio and
// query update (bytes fetched, cache hits/misses, retries, query
// duration/conditions). Passing nil registers against prometheus's
// default registry. internal/obs is not importable outside this module,
// so this is the only way a host can construct one to pass to
// rangeio.WithMetrics, WithMetrics, or query.WithMetrics.
func NewMetrics(reg prometheus.Registerer) *obs.Metrics {
	return obs.NewMetrics(reg)
}

// NewBuilder creates an index.Builder for one field's keys of the given
// TypeTag. It is a thin convenience wrapper; for advanced use (string
// compression, the offsets_table trailer) use the index package directly.
func NewBuilder(tag format.TypeTag, opts ...index.BuilderOption) (*index.Builder, error) {
	return index.NewBuilder(tag, opts...)
}

// NewContainerBuilder creates a catalog.ContainerBuilder for packing
// several fields' built indices into one container file.
func NewContainerBuilder() *catalog.ContainerBuilder {
	return catalog.NewContainerBuilder()
}

// OpenFile opens a local container or single-index file for reading.
func OpenFile(path string) (*rangeio.FileClient, error) {
	return rangeio.OpenFile(path)
}

// NewHTTPClient creates a buffered HTTP range-request client over url.
func NewHTTPClient(url string, opts ...rangeio.HTTPClientOption) *rangeio.HTTPClient {
	return rangeio.NewHTTPClient(url, opts...)
}

// Index is the opened, ready-to-query form of a container (or a single
// field registered by hand): catalog.Catalog's field directory, one
// stream.Reader per field, and a query.Engine wired to all of them. It is
// the facade's entry point for the common case of "open a container, run
// queries against it."
type Index struct {
	cat     *catalog.Catalog
	readers map[string]*stream.Reader
	engine  *query.Engine
}

// OpenOption configures Open.
type OpenOption func(*openConfig)

type openConfig struct {
	engineOpts []query.EngineOption
}

// WithMetrics attaches a prometheus metrics bundle to the Index's query
// engine (propagated to query.WithMetrics).
func WithMetrics(m *obs.Metrics) OpenOption {
	return func(c *openConfig) { c.engineOpts = append(c.engineOpts, query.WithMetrics(m)) }
}

// WithCombineThreshold sets the HTTP byte-range coalescing threshold the
// Index's query engine uses for ExecuteHTTP (propagated to
// query.WithCombineThreshold).
func WithCombineThreshold(n uint64) OpenOption {
	return func(c *openConfig) { c.engineOpts = append(c.engineOpts, query.WithCombineThreshold(n)) }
}

// Open reverse-bootstraps a container through client (catalog.Open),
// concurrently opens a stream.Reader for every field it describes
// (catalog.OpenReaders), and wires them into a query.Engine, returning the
// combined Index ready for Execute calls.
func Open(ctx context.Context, client rangeio.RangeClient, opts ...OpenOption) (*Index, error) {
	cat, err := catalog.Open(ctx, client)
	if err != nil {
		return nil, err
	}

	readers, err := catalog.OpenReaders(ctx, client, cat)
	if err != nil {
		return nil, err
	}

	cfg := &openConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	engine, err := query.NewEngineFromReaders(readers, cfg.engineOpts...)
	if err != nil {
		return nil, err
	}

	return &Index{cat: cat, readers: readers, engine: engine}, nil
}

// Fields returns every field name the container describes.
func (idx *Index) Fields() []string {
	return idx.cat.Fields()
}

// Reader returns the streaming reader backing field, if registered.
func (idx *Index) Reader(field string) (*stream.Reader, bool) {
	r, ok := idx.readers[field]
	return r, ok
}

// Execute runs q across the opened container's fields (query.Engine.Execute).
func (idx *Index) Execute(ctx context.Context, q query.Query) ([]uint64, error) {
	return idx.engine.Execute(ctx, q)
}

// ExecuteHTTP runs q and coalesces the resulting offsets into byte ranges
// for a ranged-fetch host (query.Engine.ExecuteHTTP).
func (idx *Index) ExecuteHTTP(ctx context.Context, q query.Query, recordSize func(uint64) uint64) ([]rangeio.ByteRange, error) {
	return idx.engine.ExecuteHTTP(ctx, q, recordSize)
}
