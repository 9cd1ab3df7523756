package victor

// This file implements the query engine: a fluent builder over an exact
// linear scan with a bounded top-k heap.

import (
	"context"
	"time"

	"github.com/victordb/victor/internal/queue"
	"github.com/victordb/victor/record"
	"github.com/victordb/victor/store"
	"github.com/victordb/victor/tagindex"
)

// SearchResult is one nearest-neighbor match.
type SearchResult struct {
	// Content is the record's content string.
	Content string
	// Tags is the record's tag set.
	Tags []string
	// Distance is the squared Euclidean distance between the query and
	// the record's reconstructed embedding.
	Distance float32
}

// Search creates a fluent search builder for the given query vector.
//
// Example:
//
//	results, err := db.Search(query).
//	    KNN(10).
//	    Tags("fruit").
//	    Execute(ctx)
func (db *DB) Search(query []float32) *SearchBuilder {
	return &SearchBuilder{
		db:    db,
		query: query,
		k:     10, // Default k
	}
}

// SearchBuilder is a fluent builder for constructing search queries.
type SearchBuilder struct {
	db    *DB
	query []float32
	k     int
	tags  []string
}

// KNN sets the number of nearest neighbors to return.
func (sb *SearchBuilder) KNN(k int) *SearchBuilder {
	sb.k = k
	return sb
}

// Tags restricts results to records whose tag set is a superset of the
// given tags. No tags admits every record.
func (sb *SearchBuilder) Tags(tags ...string) *SearchBuilder {
	sb.tags = append(sb.tags, tags...)
	return sb
}

// Execute runs the search and returns up to k results ordered by
// ascending distance, ties broken by insertion order. Fewer admissible
// records than k is not an error; an empty database yields no results.
func (sb *SearchBuilder) Execute(ctx context.Context) ([]SearchResult, error) {
	start := time.Now()

	sb.db.mu.Lock()
	results, err := sb.db.searchLocked(ctx, sb.query, sb.tags, sb.k)
	sb.db.mu.Unlock()

	sb.db.metrics.RecordSearch(sb.k, time.Since(start), err)
	sb.db.logger.LogSearch(ctx, sb.k, len(results), err)

	return results, err
}

// MustExecute runs the search, panicking on error.
// Use this only in tests or when you're certain the query is valid.
func (sb *SearchBuilder) MustExecute(ctx context.Context) []SearchResult {
	results, err := sb.Execute(ctx)
	if err != nil {
		panic(err)
	}
	return results
}

// payload carries the materialized fields of a heap candidate.
type payload struct {
	content string
	tags    []string
}

func (db *DB) searchLocked(ctx context.Context, query []float32, tags []string, k int) ([]SearchResult, error) {
	if db.closed {
		return nil, ErrClosed
	}
	if k < 1 {
		return nil, ErrInvalidK
	}
	if err := store.ValidateEmbedding(query); err != nil {
		return nil, translateError(err)
	}

	if err := db.store.Corrupt(); err != nil {
		return nil, translateError(err)
	}

	dim := db.store.Dimension()
	if dim == 0 {
		// Empty database admits no records regardless of k.
		return nil, nil
	}
	if len(query) != dim {
		return nil, &ErrDimensionMismatch{Expected: dim, Actual: len(query)}
	}

	topk := queue.NewTopK(k)
	payloads := make(map[uint32]payload, k)

	admit := func(ordinal uint32, distance float32, v *record.View) {
		evicted, evictedOK, admitted := topk.Push(queue.Item{Ref: ordinal, Distance: distance})
		if !admitted {
			return
		}
		if evictedOK {
			delete(payloads, evicted.Ref)
		}
		payloads[ordinal] = payload{content: v.Content(), tags: v.Tags}
	}

	if db.useIdx && len(tags) > 0 {
		if err := db.searchIndexed(ctx, query, tags, admit); err != nil {
			return nil, err
		}
	} else {
		if err := db.searchScan(ctx, query, tags, admit); err != nil {
			return nil, err
		}
	}

	items := topk.Sorted()
	results := make([]SearchResult, 0, len(items))
	for _, it := range items {
		p := payloads[it.Ref]
		results = append(results, SearchResult{
			Content:  p.content,
			Tags:     p.tags,
			Distance: it.Distance,
		})
	}

	return results, nil
}

// searchScan is the streaming path: one forward pass over every record.
func (db *DB) searchScan(ctx context.Context, query []float32, tags []string, admit func(uint32, float32, *record.View)) error {
	for item, err := range db.store.Records(ctx) {
		if err != nil {
			// Partial top-k gathered before the failure is discarded.
			return translateError(err)
		}
		if !item.View.HasAllTags(tags) {
			continue
		}
		admit(item.Ordinal, item.View.SquaredDistance(query), &item.View)
	}
	return nil
}

// searchIndexed consults the inverted tag index and parses only
// admissible records. Falls back to nothing: an index miss means no
// record carries the filter.
func (db *DB) searchIndexed(ctx context.Context, query []float32, tags []string, admit func(uint32, float32, *record.View)) error {
	// Records appended through Store() bypass the index; rebuild when it
	// no longer covers every record.
	if db.index == nil || db.index.Len() != db.store.Len() {
		idx, err := db.buildIndex(ctx)
		if err != nil {
			return err
		}
		db.index = idx
	}

	ordinals := db.index.Matching(tags)
	if len(ordinals) == 0 {
		return nil
	}

	data, offsets, err := db.store.Contents(ctx)
	if err != nil {
		return translateError(err)
	}

	for _, ord := range ordinals {
		v, _, perr := record.Parse(data[offsets[ord]:])
		if perr != nil {
			return &ErrCorruptDatabase{Offset: offsets[ord], cause: perr}
		}
		admit(ord, v.SquaredDistance(query), &v)
	}

	return nil
}

func (db *DB) buildIndex(ctx context.Context) (*tagindex.Index, error) {
	idx := tagindex.New()
	for item, err := range db.store.Records(ctx) {
		if err != nil {
			return nil, translateError(err)
		}
		idx.Add(item.Ordinal, item.View.Tags)
	}
	return idx, nil
}
