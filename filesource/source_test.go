package filesource_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/remotedoc"
	"github.com/meigma/remotedoc/filesource"
)

func TestNew(t *testing.T) {
	t.Parallel()

	src := filesource.New("a\nb")
	assert.Equal(t, 3, src.Size())
	assert.Equal(t, 2, src.NumLines())
	assert.Equal(t, uint64(0), src.Rev())
	assert.Equal(t, "a\nb", src.Text())
	assert.NotZero(t, src.Checksum())
}

func TestOpen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "doc.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello\nworld\n"), 0o644))

	src, err := filesource.Open(path)
	require.NoError(t, err)
	assert.Equal(t, "hello\nworld\n", src.Text())
	assert.Equal(t, 3, src.NumLines())
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := filesource.Open(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)

	path := filepath.Join(dir, "binary.txt")
	require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00}, 0o644))
	_, err = filesource.Open(path)
	assert.ErrorContains(t, err, "not valid UTF-8")
}

func TestOpenZstd(t *testing.T) {
	t.Parallel()

	doc := "compressed\ndocument\ncontent"
	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	compressed := enc.EncodeAll([]byte(doc), nil)
	require.NoError(t, enc.Close())

	path := filepath.Join(t.TempDir(), "doc.txt.zst")
	require.NoError(t, os.WriteFile(path, compressed, 0o644))

	src, err := filesource.Open(path)
	require.NoError(t, err)
	assert.Equal(t, doc, src.Text())
	assert.Equal(t, 3, src.NumLines())
}

func TestGetData(t *testing.T) {
	t.Parallel()

	src := filesource.New("héllo\nworld")

	chunk, err := src.GetData(0, remotedoc.UnitUTF8, 3, 0)
	require.NoError(t, err)
	assert.Equal(t, "hé", chunk.Text)
	assert.Equal(t, 0, chunk.Offset)
	assert.Equal(t, 0, chunk.FirstLine)
	assert.Equal(t, 0, chunk.FirstLineOffset)

	// A cut inside the two-byte é backs up to the rune boundary.
	chunk, err = src.GetData(0, remotedoc.UnitUTF8, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "h", chunk.Text)

	chunk, err = src.GetData(1, remotedoc.UnitLine, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, "world", chunk.Text)
	assert.Equal(t, 7, chunk.Offset)
	assert.Equal(t, 1, chunk.FirstLine)
	assert.Equal(t, 0, chunk.FirstLineOffset)

	// The implicit line at EOF yields an empty chunk at the document end.
	chunk, err = src.GetData(2, remotedoc.UnitLine, 100, 0)
	require.NoError(t, err)
	assert.Empty(t, chunk.Text)
	assert.Equal(t, 12, chunk.Offset)
	assert.Equal(t, 1, chunk.FirstLine)
	assert.Equal(t, 5, chunk.FirstLineOffset)

	_, err = src.GetData(3, remotedoc.UnitLine, 100, 0)
	assert.Error(t, err)
	_, err = src.GetData(100, remotedoc.UnitUTF8, 10, 0)
	assert.Error(t, err)
	_, err = src.GetData(0, remotedoc.UnitUTF8, 10, 5)
	assert.ErrorContains(t, err, "revision")
}

func TestApply(t *testing.T) {
	t.Parallel()

	src := filesource.New("hello\nworld")
	before := src.Checksum()

	d := remotedoc.SimpleEdit(remotedoc.Interval{Start: 5, End: 5}, "!", src.Size())
	src.Apply(d)

	assert.Equal(t, "hello!\nworld", src.Text())
	assert.Equal(t, 12, src.Size())
	assert.Equal(t, 2, src.NumLines())
	assert.Equal(t, uint64(1), src.Rev())
	assert.NotEqual(t, before, src.Checksum())
}

func TestCacheIntegration(t *testing.T) {
	t.Parallel()

	src := filesource.New("alpha\nbeta\ngamma")
	cache := remotedoc.New(src.Size(), src.Rev(), src.NumLines(), remotedoc.WithChunkSize(8))

	for lineNum, want := range []string{"alpha\n", "beta\n", "gamma"} {
		got, err := cache.GetLine(src, lineNum)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	d := remotedoc.SimpleEdit(remotedoc.Interval{Start: 6, End: 10}, "BETA!", src.Size())
	src.Apply(d)
	cache.Update(d, src.Size(), src.NumLines(), src.Rev())

	got, err := cache.GetLine(src, 1)
	require.NoError(t, err)
	assert.Equal(t, "BETA!\n", got)

	doc, err := cache.GetDocument(src)
	require.NoError(t, err)
	assert.Equal(t, src.Text(), doc)
}
