package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/victordb/victor/record"
	"github.com/victordb/victor/storage"
)

func openMemory(t *testing.T, optFns ...func(o *Options)) (*Store, *storage.MemoryDirectory) {
	t.Helper()
	dir := storage.NewMemoryDirectory()
	s, err := Open(context.Background(), dir, optFns...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func collect(t *testing.T, s *Store) ([]record.Record, error) {
	t.Helper()
	var out []record.Record
	for item, err := range s.Records(context.Background()) {
		if err != nil {
			return out, err
		}
		out = append(out, record.Record{
			Content: item.View.Content(),
			Tags:    item.View.Tags,
			Vector:  item.View.Vector(),
		})
	}
	return out, nil
}

func TestInsertAndIterate(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	require.NoError(t, s.Insert(ctx, "Apple", []string{"fruit"}, []float32{1, 0, 0}))
	require.NoError(t, s.Insert(ctx, "Banana", []string{"fruit"}, []float32{0, 1, 0}))
	require.NoError(t, s.Insert(ctx, "Rock", []string{"mineral"}, []float32{0, 0, 1}))

	require.Equal(t, 3, s.Len())
	require.Equal(t, 3, s.Dimension())

	records, err := collect(t, s)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "Apple", records[0].Content)
	assert.Equal(t, "Banana", records[1].Content)
	assert.Equal(t, "Rock", records[2].Content)
	assert.Equal(t, []string{"mineral"}, records[2].Tags)
}

func TestInsertDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	require.NoError(t, s.Insert(ctx, "a", nil, []float32{1, 0, 0}))

	err := s.Insert(ctx, "b", nil, []float32{1, 0, 0, 0})
	var dm *record.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	assert.Equal(t, 3, dm.Expected)
	assert.Equal(t, 4, dm.Actual)

	// Database unchanged, still searchable.
	require.Equal(t, 1, s.Len())
	records, err := collect(t, s)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestInsertInvalidEmbedding(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	nan := float32(0)
	nan /= nan

	require.ErrorIs(t, s.Insert(ctx, "empty", nil, nil), ErrInvalidEmbedding)
	require.ErrorIs(t, s.Insert(ctx, "nan", nil, []float32{1, nan}), ErrInvalidEmbedding)

	require.Equal(t, 0, s.Len())
}

func TestClearAndReuse(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	require.NoError(t, s.Insert(ctx, "a", nil, []float32{1, 0, 0}))
	require.NoError(t, s.Clear(ctx))

	require.Equal(t, 0, s.Len())
	require.Equal(t, 0, s.Dimension())

	// Dimension re-derives after clear.
	require.NoError(t, s.Insert(ctx, "b", nil, []float32{1, 0, 0, 0, 0}))
	require.Equal(t, 5, s.Dimension())
}

func TestClearIdempotentOnEmpty(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))
	require.Equal(t, 0, s.Len())
}

func TestReopenRecoversState(t *testing.T) {
	ctx := context.Background()
	dir := storage.NewMemoryDirectory()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "a", []string{"t"}, []float32{1, 2}))
	require.NoError(t, s.Insert(ctx, "b", nil, []float32{3, 4}))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, dir)
	require.NoError(t, err)
	defer s2.Close()

	require.Equal(t, 2, s2.Len())
	require.Equal(t, 2, s2.Dimension())
}

func corruptTail(t *testing.T, dir *storage.MemoryDirectory, dropBytes int) int64 {
	t.Helper()
	ctx := context.Background()

	f, err := dir.OpenOrCreate(ctx, FileName)
	require.NoError(t, err)
	size, err := f.Size(ctx)
	require.NoError(t, err)
	require.Greater(t, size, int64(dropBytes))
	require.NoError(t, f.Truncate(ctx, size-int64(dropBytes)))
	return size - int64(dropBytes)
}

func TestTruncatedTailRefusesInserts(t *testing.T) {
	ctx := context.Background()
	dir := storage.NewMemoryDirectory()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "a", nil, []float32{1, 0}))
	firstEnd, err := s.file.Size(ctx)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "b", nil, []float32{0, 1}))
	require.NoError(t, s.Close())

	// Chop bytes off the second record, simulating a crashed write.
	corruptTail(t, dir, 3)

	s2, err := Open(ctx, dir)
	require.NoError(t, err)
	defer s2.Close()

	// The valid prefix is intact.
	require.Equal(t, 1, s2.Len())

	// Inserts are refused with the corruption offset.
	err = s2.Insert(ctx, "c", nil, []float32{1, 1})
	var ce *CorruptError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, firstEnd, ce.Offset)

	// Iteration surfaces the same corruption.
	_, err = collect(t, s2)
	require.ErrorAs(t, err, &ce)

	// Clear resets everything.
	require.NoError(t, s2.Clear(ctx))
	require.NoError(t, s2.Insert(ctx, "c", nil, []float32{1, 1}))
}

func TestTruncatedTailRepair(t *testing.T) {
	ctx := context.Background()
	dir := storage.NewMemoryDirectory()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "a", nil, []float32{1, 0}))
	require.NoError(t, s.Insert(ctx, "b", nil, []float32{0, 1}))
	require.NoError(t, s.Close())

	corruptTail(t, dir, 3)

	s2, err := Open(ctx, dir, func(o *Options) {
		o.RepairTruncatedTail = true
	})
	require.NoError(t, err)
	defer s2.Close()

	// Repaired: valid prefix kept, inserts work again.
	require.Equal(t, 1, s2.Len())
	require.NoError(t, s2.Insert(ctx, "c", nil, []float32{1, 1}))

	records, err := collect(t, s2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "a", records[0].Content)
	assert.Equal(t, "c", records[1].Content)
}

func TestCrashPrefixProperty(t *testing.T) {
	// Truncating the file at any byte offset yields a database whose
	// valid prefix equals the longest well-framed prefix.
	ctx := context.Background()
	dir := storage.NewMemoryDirectory()

	s, err := Open(ctx, dir)
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, "a", []string{"x"}, []float32{1, 0}))
	require.NoError(t, s.Insert(ctx, "b", nil, []float32{0, 1}))
	require.NoError(t, s.Insert(ctx, "c", []string{"y", "z"}, []float32{1, 1}))

	data, offsets, err := s.Contents(ctx)
	require.NoError(t, err)
	full := make([]byte, len(data))
	copy(full, data)
	require.NoError(t, s.Close())

	for cut := 0; cut <= len(full); cut++ {
		cdir := storage.NewMemoryDirectory()
		f, err := cdir.OpenOrCreate(ctx, FileName)
		require.NoError(t, err)
		require.NoError(t, f.Append(ctx, full[:cut]))
		require.NoError(t, f.Close())

		cs, err := Open(ctx, cdir, func(o *Options) {
			o.RepairTruncatedTail = true
		})
		require.NoError(t, err)

		// Count of records fully contained in the cut prefix.
		want := 0
		for i := range offsets {
			end := int64(len(full))
			if i+1 < len(offsets) {
				end = offsets[i+1]
			}
			if int64(cut) < end {
				break
			}
			want++
		}

		require.Equal(t, want, cs.Len(), "cut at %d", cut)
		require.NoError(t, cs.Close())
	}
}

func TestContentsOffsets(t *testing.T) {
	ctx := context.Background()
	s, _ := openMemory(t)

	require.NoError(t, s.Insert(ctx, "a", nil, []float32{1, 0}))
	require.NoError(t, s.Insert(ctx, "b", nil, []float32{0, 1}))

	data, offsets, err := s.Contents(ctx)
	require.NoError(t, err)
	require.Len(t, offsets, 2)
	require.Equal(t, int64(0), offsets[0])

	// Parsing at each offset yields the expected record.
	v, _, err := record.Parse(data[offsets[1]:])
	require.NoError(t, err)
	require.Equal(t, "b", v.Content())
}

func TestImportRaw(t *testing.T) {
	ctx := context.Background()
	src, _ := openMemory(t)

	require.NoError(t, src.Insert(ctx, "a", []string{"t"}, []float32{1, 0}))
	require.NoError(t, src.Insert(ctx, "b", nil, []float32{0, 1}))

	data, _, err := src.Contents(ctx)
	require.NoError(t, err)

	dst, _ := openMemory(t)
	require.NoError(t, dst.ImportRaw(ctx, data))
	require.Equal(t, 2, dst.Len())
	require.Equal(t, 2, dst.Dimension())

	// A second import with mismatched dimension is rejected.
	other, _ := openMemory(t)
	require.NoError(t, other.Insert(ctx, "x", nil, []float32{1, 2, 3}))
	odata, _, err := other.Contents(ctx)
	require.NoError(t, err)

	err = dst.ImportRaw(ctx, odata)
	var dm *record.DimensionMismatchError
	require.ErrorAs(t, err, &dm)
	require.Equal(t, 2, dst.Len())
}

func TestOpenLocalDirectory(t *testing.T) {
	ctx := context.Background()
	dir, err := storage.NewLocalDirectory(t.TempDir())
	require.NoError(t, err)

	s, err := Open(ctx, dir)
	require.NoError(t, err)

	require.NoError(t, s.Insert(ctx, "persisted", []string{"disk"}, []float32{0.5, 0.25}))
	require.NoError(t, s.Close())

	s2, err := Open(ctx, dir)
	require.NoError(t, err)
	defer s2.Close()

	records, err := collect(t, s2)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "persisted", records[0].Content)
	assert.Equal(t, []string{"disk"}, records[0].Tags)
}
