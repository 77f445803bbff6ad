// Package scanner finds require("<path>") references in JavaScript source
// streams and rewrites their literals to registry ids.
//
// The scanner is lexical. It feeds fixed-size chunks into a sliding window,
// looks for the require( marker, waits until the next closing parenthesis
// has arrived and then matches the quoted literal between them. Every byte
// that leaves the window is copied to the output, so the rewritten file is
// produced in a single pass without holding more than the unresolved tail
// of the input in the window. Occurrences whose argument is not a plain
// double-quoted literal, or whose closing parenthesis never arrives, are
// left untouched.
package scanner

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	bundleerrors "github.com/conneroisu/cjsbundle/internal/errors"
	"github.com/conneroisu/cjsbundle/internal/logging"
	"github.com/conneroisu/cjsbundle/internal/types"
)

const (
	// Marker opens a reference expression.
	Marker = "require("

	// DefaultChunkSize is the read size used when none is configured.
	DefaultChunkSize = 32 * 1024

	// MinChunkSize is the smallest accepted chunk size.
	MinChunkSize = 16
)

var (
	markerBytes = []byte(Marker)

	// referencePattern is applied to the text between the marker and the
	// first closing parenthesis after it, closer included.
	referencePattern = regexp.MustCompile(`require\("(.*)"\)`)
)

// RewriteFunc maps a literal reference target to the registry id that
// replaces it in the output.
type RewriteFunc func(target string) string

// ScanResult holds the rewritten content of one file and the references
// found in it, in source order.
type ScanResult struct {
	Content    string
	References []types.Reference
	// Malformed counts marker occurrences that were skipped
	Malformed int
}

// BufferPool manages reusable chunk buffers for stream reading
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool handing out buffers of size bytes
func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{size: size}
	bp.pool.New = func() interface{} {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

// Get retrieves a buffer from the pool
func (bp *BufferPool) Get() *[]byte {
	return bp.pool.Get().(*[]byte)
}

// Put returns a buffer to the pool
func (bp *BufferPool) Put(buf *[]byte) {
	if buf == nil || len(*buf) != bp.size {
		return
	}
	bp.pool.Put(buf)
}

// ReferenceScanner extracts and rewrites references from source streams.
// A scanner holds no per-file state and may be reused across files and
// builds.
type ReferenceScanner struct {
	chunkSize int
	pool      *BufferPool
	cache     *Cache
	logger    logging.Logger
}

// Option configures a ReferenceScanner.
type Option func(*ReferenceScanner)

// WithChunkSize sets the number of bytes requested per read.
func WithChunkSize(size int) Option {
	return func(s *ReferenceScanner) {
		if size >= MinChunkSize {
			s.chunkSize = size
		}
	}
}

// WithCache enables result caching in ScanFile.
func WithCache(cache *Cache) Option {
	return func(s *ReferenceScanner) {
		s.cache = cache
	}
}

// WithLogger sets the logger used for diagnostics.
func WithLogger(logger logging.Logger) Option {
	return func(s *ReferenceScanner) {
		if logger != nil {
			s.logger = logger.WithComponent("scanner")
		}
	}
}

// NewReferenceScanner creates a scanner.
func NewReferenceScanner(opts ...Option) *ReferenceScanner {
	s := &ReferenceScanner{
		chunkSize: DefaultChunkSize,
		logger:    logging.NewNopLogger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.pool = NewBufferPool(s.chunkSize)

	return s
}

// ChunkSize returns the configured read size.
func (s *ReferenceScanner) ChunkSize() int {
	return s.chunkSize
}

// Cache returns the result cache, or nil when caching is disabled.
func (s *ReferenceScanner) Cache() *Cache {
	return s.cache
}

// Scan reads r to the end and returns the rewritten content together with
// the references it contained. A nil rewrite leaves every literal as is.
func (s *ReferenceScanner) Scan(ctx context.Context, r io.Reader, rewrite RewriteFunc) (*ScanResult, error) {
	if rewrite == nil {
		rewrite = func(target string) string { return target }
	}

	buf := s.pool.Get()
	defer s.pool.Put(buf)
	chunk := *buf

	st := &scanState{rewrite: rewrite}
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		n, err := r.Read(chunk)
		if n > 0 {
			st.feed(chunk[:n])
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
	}

	dropped := st.finish()
	if st.malformed > 0 || dropped {
		s.logger.Debug(ctx, "Skipped unmatched references",
			"malformed", st.malformed,
			"unterminated", dropped,
		)
	}

	return &ScanResult{
		Content:    st.out.String(),
		References: st.refs,
		Malformed:  st.malformed,
	}, nil
}

// FileRequest describes one file scan.
type FileRequest struct {
	// Path is the file to read
	Path string
	// Scope identifies everything besides the file itself that the rewrite
	// function depends on. Cached results are only reused within a scope.
	Scope string
	// Rewrite maps targets to ids
	Rewrite RewriteFunc
}

// ScanFile opens, streams and closes req.Path. Open, stat and read
// failures are reported as UnreadableSource errors.
func (s *ReferenceScanner) ScanFile(ctx context.Context, req FileRequest) (*ScanResult, error) {
	path := filepath.Clean(req.Path)

	info, err := os.Stat(path)
	if err != nil {
		return nil, bundleerrors.UnreadableSource(path, err)
	}
	if info.IsDir() {
		return nil, bundleerrors.UnreadableSource(path, errIsDirectory)
	}

	key := CacheKey{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UnixNano(),
		Scope:   req.Scope,
	}
	if s.cache != nil {
		if cached, ok := s.cache.Get(key); ok {
			s.logger.Debug(ctx, "Scan cache hit", "file", path)
			return cached, nil
		}
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, bundleerrors.UnreadableSource(path, err)
	}
	defer file.Close()

	result, err := s.Scan(ctx, file, req.Rewrite)
	if err != nil {
		if ctx.Err() != nil {
			return nil, bundleerrors.BuildCancelled(err).WithFile(path)
		}
		return nil, bundleerrors.UnreadableSource(path, err)
	}

	if s.cache != nil {
		s.cache.Add(key, result)
	}

	return result, nil
}

var errIsDirectory = &os.PathError{Op: "read", Err: os.ErrInvalid}

// scanState is the sliding window over one stream.
type scanState struct {
	window    []byte
	offset    int64 // stream offset of window[0]
	out       strings.Builder
	refs      []types.Reference
	rewrite   RewriteFunc
	malformed int
}

func (st *scanState) feed(chunk []byte) {
	st.window = append(st.window, chunk...)
	st.drain()
}

// drain consumes every complete reference currently in the window.
func (st *scanState) drain() {
	for {
		start := bytes.Index(st.window, markerBytes)
		if start < 0 {
			// Keep a possible marker prefix split across chunks.
			keep := len(markerBytes) - 1
			if keep > len(st.window) {
				keep = len(st.window)
			}
			st.flush(len(st.window) - keep)
			return
		}

		closer := bytes.IndexByte(st.window[start+len(markerBytes):], ')')
		if closer < 0 {
			st.flush(start)
			return
		}
		end := start + len(markerBytes) + closer + 1

		st.out.Write(st.window[:start])
		stmt := st.window[start:end]

		loc := referencePattern.FindSubmatchIndex(stmt)
		if loc == nil {
			st.malformed++
			st.out.Write(stmt)
		} else {
			target := string(stmt[loc[2]:loc[3]])
			id := st.rewrite(target)
			st.refs = append(st.refs, types.Reference{
				Target: target,
				ID:     id,
				Start:  st.offset + int64(start+loc[2]),
				End:    st.offset + int64(start+loc[3]),
			})
			st.out.Write(RewriteReference(stmt, loc, id))
		}

		st.advance(end)
	}
}

// flush copies the first n window bytes to the output unchanged.
func (st *scanState) flush(n int) {
	if n <= 0 {
		return
	}
	st.out.Write(st.window[:n])
	st.advance(n)
}

func (st *scanState) advance(n int) {
	remaining := copy(st.window, st.window[n:])
	st.window = st.window[:remaining]
	st.offset += int64(n)
}

// finish flushes whatever is left at end of stream. It reports whether an
// unterminated marker was dropped.
func (st *scanState) finish() bool {
	dropped := bytes.Contains(st.window, markerBytes)
	st.flush(len(st.window))
	return dropped
}
