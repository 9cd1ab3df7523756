// Package victor provides an embedded vector database.
//
// Victor persists embeddings together with a content string and a set of
// tags into a single packed append-only file, and answers exact
// k-nearest-neighbor queries filtered by tags. Vectors are stored
// quantized to 8 bits per component against their own L2 norm, and
// search streams the packed file without a full in-memory index.
//
// The database runs against any storage.Directory: a host filesystem
// directory, an in-memory map, or an S3-compatible object store.
//
// # Quick Start
//
//	ctx := context.Background()
//
//	dir, err := storage.NewLocalDirectory("./victor_data")
//	if err != nil {
//	    panic(err)
//	}
//
//	db, err := victor.Open(ctx, dir)
//	if err != nil {
//	    panic(err)
//	}
//	defer db.Close()
//
//	// Insert pre-computed embeddings with tags.
//	_ = db.Insert(ctx, "Pineapple", []float32{0.1, 0.9, 0.0}, []string{"fruit"})
//	_ = db.Insert(ctx, "Rock", []float32{0.0, 0.1, 0.9}, []string{"mineral"})
//
//	// Top-2 nearest records tagged "fruit", ascending by distance.
//	results, err := db.Search([]float32{0.2, 0.8, 0.1}).
//	    KNN(2).
//	    Tags("fruit").
//	    Execute(ctx)
//
// A database handle serves one writer and one reader at a time;
// concurrent callers must serialize externally. Two processes on the
// same directory are unsupported.
package victor

import (
	"context"
	"sync"
	"time"

	"github.com/victordb/victor/record"
	"github.com/victordb/victor/storage"
	"github.com/victordb/victor/store"
	"github.com/victordb/victor/tagindex"
)

// DB is an embedded vector database bound to one root directory.
type DB struct {
	mu      sync.Mutex
	store   *store.Store
	index   *tagindex.Index // lazily built when tag indexing is enabled
	logger  *Logger
	metrics MetricsCollector
	useIdx  bool
	closed  bool
}

// Item is one content/embedding/tags triple for batch insertion.
type Item struct {
	Content   string
	Embedding []float32
	Tags      []string
}

// Open opens or creates the database file inside dir.
//
// An existing file is validated with a single forward pass; a corrupt
// tail either blocks writes until Clear or, with
// WithRepairTruncatedTail, is truncated away.
func Open(ctx context.Context, dir storage.Directory, optFns ...Option) (*DB, error) {
	opts := applyOptions(optFns)

	st, err := store.Open(ctx, dir, func(o *store.Options) {
		o.RepairTruncatedTail = opts.repairTruncatedTail
		o.Logger = opts.logger.Logger
	})
	if err != nil {
		return nil, translateError(err)
	}

	return &DB{
		store:   st,
		logger:  opts.logger,
		metrics: opts.metricsCollector,
		useIdx:  opts.tagIndex,
	}, nil
}

// Insert appends one record. The first insert into an empty database
// fixes the vector dimension; every later insert must match it.
func (db *DB) Insert(ctx context.Context, content string, embedding []float32, tags []string) error {
	start := time.Now()

	db.mu.Lock()
	err := db.insertLocked(ctx, content, embedding, tags)
	db.mu.Unlock()

	db.metrics.RecordInsert(time.Since(start), err)
	db.logger.LogInsert(ctx, len(embedding), len(tags), err)

	return err
}

func (db *DB) insertLocked(ctx context.Context, content string, embedding []float32, tags []string) error {
	if db.closed {
		return ErrClosed
	}

	if err := db.store.Insert(ctx, content, tags, embedding); err != nil {
		return translateError(err)
	}

	if db.index != nil {
		db.index.Add(uint32(db.store.Len()-1), tags) //nolint:gosec
	}

	return nil
}

// InsertBatch appends the items in order. Every embedding is validated
// against the database dimension before the first write, so a malformed
// item fails the batch without leaving a prefix behind. Once writing
// starts, each appended record is immediately durable; an I/O failure
// mid-batch leaves the already-written prefix in place and is reported.
func (db *DB) InsertBatch(ctx context.Context, items []Item) error {
	start := time.Now()

	db.mu.Lock()
	err := db.insertBatchLocked(ctx, items)
	db.mu.Unlock()

	db.metrics.RecordBatchInsert(len(items), time.Since(start), err)
	db.logger.LogBatchInsert(ctx, len(items), err)

	return err
}

func (db *DB) insertBatchLocked(ctx context.Context, items []Item) error {
	if db.closed {
		return ErrClosed
	}

	dim := db.store.Dimension()
	for _, it := range items {
		if err := store.ValidateEmbedding(it.Embedding); err != nil {
			return translateError(err)
		}
		if dim != 0 && len(it.Embedding) != dim {
			return &ErrDimensionMismatch{Expected: dim, Actual: len(it.Embedding)}
		}
		if dim == 0 {
			dim = len(it.Embedding)
		}
		if _, err := record.Append(nil, it.Content, it.Tags, it.Embedding); err != nil {
			return translateError(err)
		}
	}

	for _, it := range items {
		if err := db.store.Insert(ctx, it.Content, it.Tags, it.Embedding); err != nil {
			return translateError(err)
		}
		if db.index != nil {
			db.index.Add(uint32(db.store.Len()-1), it.Tags) //nolint:gosec
		}
	}

	return nil
}

// Clear removes every record. The next insert re-derives the dimension.
func (db *DB) Clear(ctx context.Context) error {
	start := time.Now()

	db.mu.Lock()
	var err error
	if db.closed {
		err = ErrClosed
	} else {
		err = translateError(db.store.Clear(ctx))
		if err == nil {
			db.index = nil
		}
	}
	db.mu.Unlock()

	db.metrics.RecordClear(time.Since(start), err)
	db.logger.LogClear(ctx, err)

	return err
}

// Len returns the number of records.
func (db *DB) Len() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Len()
}

// Dimension returns the established vector dimension, 0 when the
// database is empty.
func (db *DB) Dimension() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.store.Dimension()
}

// Store exposes the underlying store for snapshot export/import.
func (db *DB) Store() *store.Store {
	return db.store
}

// Close releases the file handle. The database must not be used
// afterwards. It is idempotent.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if db.closed {
		return nil
	}
	db.closed = true

	return db.store.Close()
}
