// Package tagindex maintains an in-memory inverted index from tag to the
// set of record ordinals carrying it, backed by Roaring bitmaps.
//
// The index is an accelerator, not a source of truth: it is rebuilt from
// a file scan and lets filtered search visit only admissible records on
// random-access backends. Correctness never depends on it - the scan
// path applies the same superset predicate per record.
package tagindex

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Index maps tags to the ordinals of records carrying them.
// Not safe for concurrent mutation; the database serializes access.
type Index struct {
	tags map[string]*roaring.Bitmap
	n    uint64 // records indexed
}

// New creates an empty index.
func New() *Index {
	return &Index{
		tags: make(map[string]*roaring.Bitmap),
	}
}

// Add indexes one record's tags under its ordinal.
// Records must be added in insertion order.
func (ix *Index) Add(ordinal uint32, tags []string) {
	for _, tag := range tags {
		bm, ok := ix.tags[tag]
		if !ok {
			bm = roaring.New()
			ix.tags[tag] = bm
		}
		bm.Add(ordinal)
	}
	ix.n++
}

// Len returns the number of records indexed.
func (ix *Index) Len() int {
	return int(ix.n) //nolint:gosec
}

// Matching returns the ordinals of records whose tag set is a superset
// of filter, in ascending order. filter must be non-empty; an unknown
// tag yields an empty result.
func (ix *Index) Matching(filter []string) []uint32 {
	var acc *roaring.Bitmap
	for _, tag := range filter {
		bm, ok := ix.tags[tag]
		if !ok {
			return nil
		}
		if acc == nil {
			acc = bm.Clone()
			continue
		}
		acc.And(bm)
		if acc.IsEmpty() {
			return nil
		}
	}
	if acc == nil {
		return nil
	}
	return acc.ToArray()
}

// Cardinality returns how many records carry the given tag.
func (ix *Index) Cardinality(tag string) uint64 {
	bm, ok := ix.tags[tag]
	if !ok {
		return 0
	}
	return bm.GetCardinality()
}
