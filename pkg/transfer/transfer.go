// Package transfer provides the bounded-memory transfer coordinator sitting
// between the HTTP layer and the storage backend. Callers get one uniform
// chunked contract regardless of whether the selected backend streams
// natively.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/yi-nology/filebridge/pkg/storage"
)

const (
	// DefaultChunkSize is the fixed read size for download sequences.
	DefaultChunkSize = 1024 * 1024

	// progressInterval spaces out transfer progress logs so small transfers
	// pay no per-chunk overhead.
	progressInterval = 10 * 1024 * 1024
)

// Coordinator orchestrates chunked uploads and downloads against one backend.
// It holds no per-transfer state and is safe for concurrent use.
type Coordinator struct {
	backend   storage.Backend
	chunkSize int
}

// New creates a coordinator. chunkSize <= 0 applies DefaultChunkSize.
func New(backend storage.Backend, chunkSize int) *Coordinator {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Coordinator{backend: backend, chunkSize: chunkSize}
}

// UploadStream transmits r to the backend, returning the byte count moved.
// Backends with a native streaming primitive get the source reader directly;
// otherwise the coordinator enters buffered fallback mode, which reads the
// whole payload into memory before one atomic upload. The fallback is an
// announced mode, not a silent behavior change: object stores only accept
// whole-object puts, so there is no incremental-write middle ground.
func (c *Coordinator) UploadStream(ctx context.Context, scope storage.Scope, fileID string, r io.Reader, contentType string) (int64, error) {
	counted := &progressReader{ctx: ctx, r: r, fileID: fileID}

	if streamer, ok := c.backend.(storage.StreamUploader); ok {
		if err := streamer.StreamUpload(ctx, scope, fileID, counted, contentType); err != nil {
			return counted.total, err
		}
		return counted.total, nil
	}

	hlog.CtxWarnf(ctx, "backend %s has no streaming upload, buffering full payload for %s", c.backend.Type(), fileID)
	data, err := io.ReadAll(counted)
	if err != nil {
		return counted.total, fmt.Errorf("read upload payload: %w", err)
	}
	if err := c.backend.Upload(ctx, scope, fileID, data, contentType); err != nil {
		return counted.total, err
	}
	return int64(len(data)), nil
}

// DownloadStream opens the object and returns its bytes as a lazy,
// forward-only chunk sequence. The caller must close the stream; closing
// releases the backend connection on both completion and early abandonment.
func (c *Coordinator) DownloadStream(ctx context.Context, scope storage.Scope, fileID string) (*Stream, error) {
	obj, err := c.backend.Download(ctx, scope, fileID)
	if err != nil {
		return nil, err
	}
	return &Stream{
		ctx:    ctx,
		body:   obj.Body,
		length: obj.ContentLength,
		buf:    make([]byte, c.chunkSize),
		fileID: fileID,
	}, nil
}

// Stream is a single-pass sequence of byte chunks backed by one open backend
// connection. It is not restartable; consuming it twice requires a fresh
// DownloadStream call.
type Stream struct {
	ctx    context.Context
	body   io.ReadCloser
	length int64
	buf    []byte
	fileID string

	rem        []byte
	total      int64
	lastLogged int64
	chunks     int64
	closed     bool
	done       bool
}

// ContentLength returns the byte length reported by the backend, or
// storage.LengthUnknown.
func (s *Stream) ContentLength() int64 {
	return s.length
}

// Next returns the next chunk. The returned slice is only valid until the
// following Next call. io.EOF signals normal completion, after which the
// backend connection is already released.
func (s *Stream) Next() ([]byte, error) {
	if len(s.rem) > 0 {
		chunk := s.rem
		s.rem = nil
		return chunk, nil
	}
	if s.done || s.closed {
		return nil, io.EOF
	}
	if err := s.ctx.Err(); err != nil {
		_ = s.Close()
		return nil, err
	}

	n, err := io.ReadFull(s.body, s.buf)
	if n > 0 {
		s.total += int64(n)
		s.chunks++
		if s.total-s.lastLogged >= progressInterval {
			hlog.CtxInfof(s.ctx, "download progress for %s: %d MB", s.fileID, s.total/(1024*1024))
			s.lastLogged = s.total
		}
	}

	switch {
	case err == nil:
		return s.buf[:n], nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Final short chunk; the next call reports EOF.
		s.done = true
		_ = s.Close()
		return s.buf[:n], nil
	case errors.Is(err, io.EOF):
		s.done = true
		_ = s.Close()
		return nil, io.EOF
	default:
		_ = s.Close()
		return nil, fmt.Errorf("read object body: %w", err)
	}
}

// Read implements io.Reader over the chunk sequence so the stream can be
// handed to the HTTP response writer directly.
func (s *Stream) Read(p []byte) (int, error) {
	if len(s.rem) == 0 {
		chunk, err := s.Next()
		if err != nil {
			return 0, err
		}
		s.rem = chunk
	}
	n := copy(p, s.rem)
	s.rem = s.rem[n:]
	return n, nil
}

// Close releases the backend connection. Safe to call more than once.
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}

// Transferred returns the byte count consumed so far.
func (s *Stream) Transferred() int64 {
	return s.total
}

// Chunks returns how many backend reads produced data. Used to verify that
// large transfers move through fixed-size chunks rather than one buffer.
func (s *Stream) Chunks() int64 {
	return s.chunks
}

// progressReader counts upload bytes and emits coarse progress logs.
type progressReader struct {
	ctx        context.Context
	r          io.Reader
	fileID     string
	total      int64
	lastLogged int64
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.total += int64(n)
		if p.total-p.lastLogged >= progressInterval {
			hlog.CtxInfof(p.ctx, "upload progress for %s: %d MB", p.fileID, p.total/(1024*1024))
			p.lastLogged = p.total
		}
	}
	return n, err
}
