package httpsource_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/meigma/remotedoc"
	"github.com/meigma/remotedoc/httpsource"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newDocServer(t *testing.T, doc string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.ServeContent(w, r, "doc.txt", time.Time{}, strings.NewReader(doc))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newSource(t *testing.T, srv *httptest.Server, opts ...httpsource.Option) *httpsource.Source {
	t.Helper()
	opts = append(opts, httpsource.WithClient(srv.Client()))
	src, err := httpsource.NewSource(srv.URL, opts...)
	require.NoError(t, err)
	return src
}

func TestNewSource(t *testing.T) {
	t.Parallel()

	doc := "alpha\nbeta\ngamma"
	src := newSource(t, newDocServer(t, doc))
	assert.Equal(t, len(doc), src.Size())
	assert.Equal(t, uint64(0), src.Rev())

	numLines, err := src.NumLines()
	require.NoError(t, err)
	assert.Equal(t, 3, numLines)
}

func TestNewSourceEmptyDocument(t *testing.T) {
	t.Parallel()

	src := newSource(t, newDocServer(t, ""))
	assert.Equal(t, 0, src.Size())

	numLines, err := src.NumLines()
	require.NoError(t, err)
	assert.Equal(t, 1, numLines)
}

func TestGetData(t *testing.T) {
	t.Parallel()

	doc := "alpha\nbeta\ngamma"
	src := newSource(t, newDocServer(t, doc), httpsource.WithScanChunkSize(4))

	chunk, err := src.GetData(1, remotedoc.UnitLine, 4, 0)
	require.NoError(t, err)
	assert.Equal(t, "beta", chunk.Text)
	assert.Equal(t, 6, chunk.Offset)
	assert.Equal(t, 1, chunk.FirstLine)
	assert.Equal(t, 0, chunk.FirstLineOffset)

	chunk, err = src.GetData(8, remotedoc.UnitUTF8, 100, 0)
	require.NoError(t, err)
	assert.Equal(t, "ta\ngamma", chunk.Text)
	assert.Equal(t, 8, chunk.Offset)
	assert.Equal(t, 1, chunk.FirstLine)
	assert.Equal(t, 2, chunk.FirstLineOffset)

	// The implicit line at EOF yields an empty chunk at the document end.
	chunk, err = src.GetData(3, remotedoc.UnitLine, 4, 0)
	require.NoError(t, err)
	assert.Empty(t, chunk.Text)
	assert.Equal(t, len(doc), chunk.Offset)

	_, err = src.GetData(4, remotedoc.UnitLine, 4, 0)
	assert.Error(t, err)
	_, err = src.GetData(len(doc)+1, remotedoc.UnitUTF8, 4, 0)
	assert.Error(t, err)
}

func TestGetDataRuneBoundary(t *testing.T) {
	t.Parallel()

	src := newSource(t, newDocServer(t, "héllo\nwörld"))

	// A cut inside the two-byte é backs up to the rune boundary.
	chunk, err := src.GetData(0, remotedoc.UnitUTF8, 2, 0)
	require.NoError(t, err)
	assert.Equal(t, "h", chunk.Text)
}

func TestCacheOverHTTP(t *testing.T) {
	t.Parallel()

	doc := "alpha\nbeta\ngamma"
	src := newSource(t, newDocServer(t, doc))
	numLines, err := src.NumLines()
	require.NoError(t, err)

	cache := remotedoc.New(src.Size(), src.Rev(), numLines, remotedoc.WithChunkSize(8))

	for lineNum, want := range []string{"alpha\n", "beta\n", "gamma"} {
		got, err := cache.GetLine(src, lineNum)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	region, err := cache.GetRegion(src, remotedoc.Interval{Start: 6, End: 10})
	require.NoError(t, err)
	assert.Equal(t, "beta", region)

	whole, err := cache.GetDocument(src)
	require.NoError(t, err)
	assert.Equal(t, doc, whole)
}

func TestRangeUnsupported(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("no ranges here"))
	}))
	t.Cleanup(srv.Close)

	_, err := httpsource.NewSource(srv.URL, httpsource.WithClient(srv.Client()))
	assert.ErrorContains(t, err, "range requests not supported")
}

func TestWithHeader(t *testing.T) {
	t.Parallel()

	doc := "guarded\ncontent"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer s3cr3t" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		http.ServeContent(w, r, "doc.txt", time.Time{}, strings.NewReader(doc))
	}))
	t.Cleanup(srv.Close)

	_, err := httpsource.NewSource(srv.URL, httpsource.WithClient(srv.Client()))
	assert.Error(t, err)

	src, err := httpsource.NewSource(srv.URL,
		httpsource.WithClient(srv.Client()),
		httpsource.WithHeader("Authorization", "Bearer s3cr3t"))
	require.NoError(t, err)
	assert.Equal(t, len(doc), src.Size())
}
