// Package httpsource implements a remotedoc.DataSource over a static remote
// document fetched with HTTP range requests.
//
// The document is treated as an immutable snapshot: the revision tag in
// fetch requests is ignored, and hosts that rewrite the document should be
// fronted by a fresh Source. Line-addressed fetches are resolved against a
// newline index grown by scanning the document forward on demand.
package httpsource

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/singleflight"

	"github.com/meigma/remotedoc"
)

// DefaultScanChunkSize is the range size used when scanning for line breaks.
const DefaultScanChunkSize = 64 << 10

// Source implements remotedoc.DataSource via HTTP range requests.
//
// Unlike the caches it serves, a Source is safe for concurrent use: one
// remote document is often shared by several views, and identical in-flight
// range reads are deduplicated.
type Source struct {
	url       string
	client    *http.Client
	headers   http.Header
	size      int
	scanChunk int

	group singleflight.Group

	mu sync.Mutex
	// lineStarts holds the byte offsets of every line start discovered so
	// far; lineStarts[0] is always 0. Complete up to scanned.
	lineStarts []int
	scanned    int
}

// Interface compliance.
var _ remotedoc.DataSource = (*Source)(nil)

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *http.Client) Option {
	return func(s *Source) {
		if client != nil {
			s.client = client
		}
	}
}

// WithHeader sets a single header on each request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(http.Header)
		}
		s.headers.Set(key, value)
	}
}

// WithScanChunkSize sets the range size used when scanning for line breaks.
// Values < 1 are ignored.
func WithScanChunkSize(n int) Option {
	return func(s *Source) {
		if n > 0 {
			s.scanChunk = n
		}
	}
}

// NewSource creates a Source backed by HTTP range requests. It probes the
// remote to determine the content size and verify range support.
func NewSource(url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:       url,
		client:    http.DefaultClient,
		scanChunk: DefaultScanChunkSize,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(s)
	}

	size, err := s.rangeProbe()
	if err != nil {
		return nil, err
	}
	s.size = size
	s.lineStarts = []int{0}
	return s, nil
}

// Size returns the total size of the remote document.
func (s *Source) Size() int { return s.size }

// Rev returns the revision tag of the snapshot, which is always 0.
func (s *Source) Rev() uint64 { return 0 }

// NumLines returns the document line count, scanning any unscanned
// remainder of the document.
func (s *Source) NumLines() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.scanTo(s.size); err != nil {
		return 0, err
	}
	return len(s.lineStarts), nil
}

// GetData implements remotedoc.DataSource. The revision argument is ignored.
func (s *Source) GetData(pos int, unit remotedoc.TextUnit, maxSize int, _ uint64) (remotedoc.Chunk, error) {
	s.mu.Lock()
	var offset int
	var err error
	switch unit {
	case remotedoc.UnitLine:
		offset, err = s.lineOffsetLocked(pos)
	case remotedoc.UnitUTF8:
		if pos > s.size {
			err = fmt.Errorf("httpsource: offset %d beyond length %d", pos, s.size)
		} else {
			offset = pos
			err = s.scanTo(offset)
		}
	default:
		err = fmt.Errorf("httpsource: unknown text unit %v", unit)
	}
	if err != nil {
		s.mu.Unlock()
		return remotedoc.Chunk{}, err
	}
	line, found := slices.BinarySearch(s.lineStarts, offset)
	if !found {
		line--
	}
	lineStart := s.lineStarts[line]
	s.mu.Unlock()

	data, err := s.fetchRange(offset, maxSize)
	if err != nil {
		return remotedoc.Chunk{}, err
	}
	// Never split a rune at the chunk end.
	end := len(data)
	for offset+end < s.size && end > 0 {
		r, n := utf8.DecodeLastRune(data[:end])
		if r != utf8.RuneError || n > 1 {
			break
		}
		end--
	}
	return remotedoc.Chunk{
		Text:            string(data[:end]),
		Offset:          offset,
		FirstLine:       line,
		FirstLineOffset: offset - lineStart,
	}, nil
}

// lineOffsetLocked returns the byte offset of a line start, scanning
// forward as needed. Callers hold mu.
func (s *Source) lineOffsetLocked(lineNum int) (int, error) {
	for lineNum >= len(s.lineStarts) && s.scanned < s.size {
		if err := s.scanTo(min(s.scanned+s.scanChunk, s.size)); err != nil {
			return 0, err
		}
	}
	switch {
	case lineNum > len(s.lineStarts):
		return 0, fmt.Errorf("httpsource: line %d beyond %d lines", lineNum, len(s.lineStarts))
	case lineNum == len(s.lineStarts):
		// The implicit line at EOF starts at the document end.
		return s.size, nil
	default:
		return s.lineStarts[lineNum], nil
	}
}

// scanTo extends the newline index to cover [0, target). Callers hold mu.
func (s *Source) scanTo(target int) error {
	target = min(target, s.size)
	for s.scanned < target {
		length := min(s.scanChunk, s.size-s.scanned)
		data, err := s.fetchRange(s.scanned, length)
		if err != nil {
			return err
		}
		if len(data) == 0 {
			return fmt.Errorf("httpsource: empty range read at %d", s.scanned)
		}
		for i, b := range data {
			if b == '\n' {
				s.lineStarts = append(s.lineStarts, s.scanned+i+1)
			}
		}
		s.scanned += len(data)
	}
	return nil
}

// fetchRange reads the byte range [off, off+length), clamped to the
// document size. Identical in-flight reads are deduplicated.
func (s *Source) fetchRange(off, length int) ([]byte, error) {
	length = min(length, s.size-off)
	if length <= 0 {
		return nil, nil
	}
	key := fmt.Sprintf("%d-%d", off, length)
	data, err, _ := s.group.Do(key, func() (any, error) {
		return s.doRange(off, off+length-1)
	})
	if err != nil {
		return nil, err
	}
	return data.([]byte), nil
}

func (s *Source) doRange(off, end int) ([]byte, error) {
	req, err := s.newRequest(http.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, end))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent:
		// ok
	case http.StatusOK:
		return nil, errors.New("httpsource: range requests not supported")
	default:
		return nil, fmt.Errorf("httpsource: range request failed: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// rangeProbe verifies range support and extracts the content size from the
// Content-Range header.
func (s *Source) rangeProbe() (int, error) {
	req, err := s.newRequest(http.MethodGet)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", "bytes=0-0")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusPartialContent, http.StatusRequestedRangeNotSatisfiable:
		// 416 is the expected answer for an empty document.
	case http.StatusOK:
		return 0, errors.New("httpsource: range requests not supported")
	default:
		return 0, fmt.Errorf("httpsource: range probe failed: %s", resp.Status)
	}

	crange := resp.Header.Get("Content-Range")
	if crange == "" {
		return 0, errors.New("httpsource: range probe missing Content-Range")
	}
	return parseContentRange(crange)
}

func (s *Source) newRequest(method string) (*http.Request, error) {
	req, err := http.NewRequest(method, s.url, http.NoBody)
	if err != nil {
		return nil, err
	}
	for key, values := range s.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "identity")
	}
	return req, nil
}

// parseContentRange extracts the total size from a Content-Range header
// value of the form "bytes start-end/size" or "bytes */size".
func parseContentRange(value string) (int, error) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, fmt.Errorf("httpsource: invalid Content-Range %q", value)
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 || parts[1] == "*" {
		return 0, fmt.Errorf("httpsource: invalid Content-Range %q", value)
	}
	size, err := strconv.Atoi(parts[1])
	if err != nil || size < 0 {
		return 0, fmt.Errorf("httpsource: invalid Content-Range %q", value)
	}
	return size, nil
}
