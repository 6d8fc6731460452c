package httpbody

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBodyAlreadyConsumed is returned by every drain attempt after the
// first one, regardless of which accessor triggered the first drain.
var ErrBodyAlreadyConsumed = errors.New("body already consumed")

// ErrCloneAfterConsumption is returned when cloning a body whose drain
// already started.
var ErrCloneAfterConsumption = errors.New("cannot clone an already consumed body")

// ErrBodyTimeout is returned when a drain doesn't finish within the
// configured timeout. The upstream source is asked to terminate.
var ErrBodyTimeout = errors.New("body read timeout")

// ErrBodyTooLarge is returned if the body size exceeds the given limit.
var ErrBodyTooLarge = errors.New("body size exceeds the given limit")

// ErrBodySystem wraps a lower-level failure observed while reading the
// body's stream. The cause is preserved and reachable via errors.Is/As.
var ErrBodySystem = errors.New("body stream error")

// ErrBodyAllocation is returned when the accumulated body cannot fit in a
// single buffer.
var ErrBodyAllocation = errors.New("cannot allocate body buffer")

// ErrJSONParse wraps the decode error returned for a malformed JSON body.
var ErrJSONParse = errors.New("malformed json body")

const (
	contentTypePlainText      = "text/plain;charset=UTF-8"
	contentTypeFormURLEncoded = "application/x-www-form-urlencoded;charset=UTF-8"
	contentTypeMultipartForm  = "multipart/form-data;boundary="
)

// bodyKind tags the normalized internal representation of a payload. It
// is decided once at construction; consuming operations switch over the
// tag instead of re-inspecting the input's shape.
type bodyKind uint8

const (
	bodyKindEmpty bodyKind = iota
	bodyKindBytes
	bodyKindBlob
	bodyKindStream
)

// BodyConfig bounds a body's drain.
type BodyConfig struct {
	// MaxBodySize fails the drain with ErrBodyTooLarge when the body
	// exceeds it. Zero means unlimited.
	MaxBodySize int

	// Timeout fails the drain with ErrBodyTimeout when it doesn't finish
	// in time. Zero disables the timer.
	Timeout time.Duration
}

// Body holds a request or response payload and drains it at most once.
//
// It is unsafe modifying Body configuration from concurrently running
// goroutines; drain attempts themselves are serialized and every attempt
// after the first fails with ErrBodyAlreadyConsumed.
type Body struct {
	cfg BodyConfig

	kind        bodyKind
	body        []byte
	blob        Blob
	stream      io.Reader
	form        FormEncoder // set when stream is an untouched form-encoder passthrough
	size        int         // known byte length, -1 when unknown
	contentType string

	mu        sync.Mutex
	disturbed bool
	deferred  error

	termOnce sync.Once
}

// NewBody normalizes input into a body. Accepted shapes:
//
//   - nil: an empty body.
//   - string, fmt.Stringer: UTF-8 text.
//   - []byte, *bytes.Buffer: raw bytes, copied.
//   - url.Values: URL-encoded form parameters.
//   - Blob: kept as-is; it is re-readable and needs no normalization.
//   - FormEncoder: kept as-is; see FormEncoder.
//   - io.Reader: a single-pass byte stream of unknown length.
//
// Anything else is coerced to text via fmt.Sprint.
func NewBody(input any, cfg BodyConfig) *Body {
	b := &Body{
		cfg:         cfg,
		size:        -1,
		contentType: ExtractContentType(input),
	}
	switch v := input.(type) {
	case nil:
		b.kind = bodyKindEmpty
		b.size = 0
	case string:
		b.setBytes([]byte(v))
	case []byte:
		b.setBytes(append([]byte(nil), v...))
	case *bytes.Buffer:
		b.setBytes(append([]byte(nil), v.Bytes()...))
	case url.Values:
		b.setBytes([]byte(v.Encode()))
	case Blob:
		b.kind = bodyKindBlob
		b.blob = v
		b.size = v.Size()
	case FormEncoder:
		b.kind = bodyKindStream
		b.stream = v
		b.form = v
		b.size = formEncoderLen(v)
	case io.Reader:
		b.kind = bodyKindStream
		b.stream = v
	case fmt.Stringer:
		b.setBytes([]byte(v.String()))
	default:
		b.setBytes([]byte(fmt.Sprint(v)))
	}
	return b
}

// NewBodyStream returns a stream-backed body. size is the stream's known
// byte length; pass a negative size when the length is unknown. The size
// is a hint for Size and drain preallocation only; it is not enforced.
func NewBodyStream(r io.Reader, size int, cfg BodyConfig) *Body {
	b := &Body{
		cfg:    cfg,
		kind:   bodyKindStream,
		stream: r,
		size:   size,
	}
	if size < 0 {
		b.size = -1
	}
	if f, ok := r.(FormEncoder); ok {
		b.form = f
		b.contentType = contentTypeMultipartForm + f.Boundary()
	}
	return b
}

func (b *Body) setBytes(p []byte) {
	b.kind = bodyKindBytes
	b.body = p
	b.size = len(p)
}

// BodyUsed reports whether a drain was already attempted, successfully
// or not.
func (b *Body) BodyUsed() bool {
	b.mu.Lock()
	used := b.disturbed
	b.mu.Unlock()
	return used
}

// ContentType returns the media type inferred from the constructor input.
// It may be empty when the type cannot be known.
func (b *Body) ContentType() string {
	return b.contentType
}

// SetError latches a terminal fault observed on the underlying source
// before any consumer attached, e.g. a transport error reported
// asynchronously. The first drain attempt fails with err instead of
// touching the source. Only the first call has any effect.
func (b *Body) SetError(err error) {
	if err == nil {
		return
	}
	b.mu.Lock()
	if b.deferred == nil {
		b.deferred = err
	}
	b.mu.Unlock()
}

// Size returns the body's known byte length, or -1 when it cannot be
// known without draining.
func (b *Body) Size() int {
	switch b.kind {
	case bodyKindEmpty:
		return 0
	case bodyKindBytes:
		return len(b.body)
	case bodyKindBlob:
		return b.blob.Size()
	case bodyKindStream:
		return b.size
	}
	panic(fmt.Sprintf("BUG: unknown body kind %d", b.kind))
}

// Bytes drains the body and returns its raw bytes. Draining any body a
// second time fails with ErrBodyAlreadyConsumed.
//
// The returned slice must not be modified.
func (b *Body) Bytes() ([]byte, error) {
	return b.consume()
}

// Text drains the body and returns it as a UTF-8 string.
func (b *Body) Text() (string, error) {
	body, err := b.consume()
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// JSON drains the body and unmarshals it into v. A malformed body fails
// with an error wrapping both ErrJSONParse and the decode error.
func (b *Body) JSON(v any) error {
	body, err := b.consume()
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %w", ErrJSONParse, err)
	}
	return nil
}

// Blob drains the body and wraps the bytes in a blob typed with the
// inferred content type.
func (b *Body) Blob() (Blob, error) {
	body, err := b.consume()
	if err != nil {
		return nil, err
	}
	return &MemoryBlob{data: body, contentType: b.contentType}, nil
}

// consume is the single shared drain. It marks the body disturbed before
// touching the source, so concurrent attempts against the same body are
// serialized: exactly one proceeds, all others fail fast.
func (b *Body) consume() ([]byte, error) {
	b.mu.Lock()
	if b.disturbed {
		b.mu.Unlock()
		return nil, ErrBodyAlreadyConsumed
	}
	b.disturbed = true
	deferred := b.deferred
	b.mu.Unlock()

	if deferred != nil {
		return nil, deferred
	}

	switch b.kind {
	case bodyKindEmpty:
		return []byte{}, nil
	case bodyKindBytes:
		if b.cfg.MaxBodySize > 0 && len(b.body) > b.cfg.MaxBodySize {
			return nil, ErrBodyTooLarge
		}
		return b.body, nil
	case bodyKindBlob:
		r := b.blob.NewReader()
		body, err := b.accumulate(r, b.blob.Size())
		if err == nil {
			b.terminate(r)
		}
		return body, err
	case bodyKindStream:
		return b.accumulate(b.stream, b.size)
	}
	panic(fmt.Sprintf("BUG: unknown body kind %d", b.kind))
}

type accumResult struct {
	body []byte
	err  error
}

// accumulate reads r to completion, optionally racing the configured
// timeout. The result channel is buffered so the reading goroutine never
// leaks when the timer wins.
func (b *Body) accumulate(r io.Reader, sizeHint int) ([]byte, error) {
	var aborted atomic.Bool
	resultCh := make(chan accumResult, 1)

	go func() {
		resultCh <- b.readAll(r, sizeHint, &aborted)
	}()

	if b.cfg.Timeout <= 0 {
		res := <-resultCh
		return res.body, res.err
	}

	t := time.NewTimer(b.cfg.Timeout)
	defer t.Stop()

	select {
	case res := <-resultCh:
		return res.body, res.err
	case <-t.C:
		aborted.Store(true)
		b.terminate(r)
		return nil, ErrBodyTimeout
	}
}

// readAll concatenates r's chunks in arrival order. Chunks delivered
// after an abort are discarded without being appended.
func (b *Body) readAll(r io.Reader, sizeHint int, aborted *atomic.Bool) accumResult {
	var dst []byte
	if sizeHint > 0 && sizeHint <= maxBodyPrealloc {
		dst = make([]byte, 0, sizeHint)
	}

	vbuf := copyBufPool.Get()
	buf := vbuf.([]byte)
	defer copyBufPool.Put(vbuf)

	for {
		n, err := r.Read(buf)
		if aborted.Load() {
			return accumResult{}
		}
		if n > 0 {
			total := len(dst) + n
			if total < 0 {
				aborted.Store(true)
				b.terminate(r)
				return accumResult{err: ErrBodyAllocation}
			}
			if b.cfg.MaxBodySize > 0 && total > b.cfg.MaxBodySize {
				aborted.Store(true)
				b.terminate(r)
				return accumResult{err: ErrBodyTooLarge}
			}
			dst = append(dst, buf[:n]...)
		}
		if err != nil {
			if err == io.EOF {
				return accumResult{body: dst}
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				// External cancellation passes through unchanged, so the
				// caller can tell user-initiated aborts from body faults.
				return accumResult{err: err}
			}
			return accumResult{err: fmt.Errorf("%w: %w", ErrBodySystem, err)}
		}
	}
}

// terminate asks the upstream source to stop producing data. It is issued
// at most once per body.
func (b *Body) terminate(r io.Reader) {
	b.termOnce.Do(func() {
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
	})
}

// Clone returns a new unconsumed body carrying the same payload.
//
// A single-pass stream source is split into two independent branches,
// each buffering up to highWaterMark bytes; one branch replaces the
// original body's source, the other backs the returned body. Form-encoder
// streams are shared untouched since teeing their output cannot be done
// without re-encoding. Re-readable sources (empty, bytes, blob) are
// shared as-is.
func (b *Body) Clone(highWaterMark int) (*Body, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.disturbed {
		return nil, ErrCloneAfterConsumption
	}

	c := &Body{
		cfg:         b.cfg,
		kind:        b.kind,
		body:        b.body,
		blob:        b.blob,
		stream:      b.stream,
		form:        b.form,
		size:        b.size,
		contentType: b.contentType,
		deferred:    b.deferred,
	}
	if b.kind == bodyKindStream && b.form == nil {
		r1, r2 := teeStream(b.stream, highWaterMark)
		b.stream = r1
		c.stream = r2
	}
	return c, nil
}

// StreamTo forwards the body's payload into sink and ends it. An empty
// body ends the sink immediately; a bytes body writes once; a blob body
// forwards a fresh reader of its own; a stream body is piped end to end
// and counts as the body's single consumption. On error the sink is ended
// via CloseWithError when it supports it.
func (b *Body) StreamTo(sink io.WriteCloser) error {
	b.mu.Lock()
	deferred := b.deferred
	b.mu.Unlock()
	if deferred != nil {
		closeSinkWithError(sink, deferred)
		return deferred
	}

	switch b.kind {
	case bodyKindEmpty:
		return sink.Close()
	case bodyKindBytes:
		if _, err := sink.Write(b.body); err != nil {
			closeSinkWithError(sink, err)
			return err
		}
		return sink.Close()
	case bodyKindBlob:
		r := b.blob.NewReader()
		err := pipeToSink(sink, r)
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
		return err
	case bodyKindStream:
		b.mu.Lock()
		if b.disturbed {
			b.mu.Unlock()
			return ErrBodyAlreadyConsumed
		}
		b.disturbed = true
		stream := b.stream
		b.mu.Unlock()

		err := pipeToSink(sink, stream)
		b.terminate(stream)
		return err
	}
	panic(fmt.Sprintf("BUG: unknown body kind %d", b.kind))
}

func pipeToSink(sink io.WriteCloser, r io.Reader) error {
	if _, err := copyZeroAlloc(sink, r); err != nil {
		closeSinkWithError(sink, err)
		return err
	}
	return sink.Close()
}

func closeSinkWithError(sink io.WriteCloser, err error) {
	if cw, ok := sink.(interface{ CloseWithError(error) error }); ok {
		cw.CloseWithError(err) //nolint:errcheck
		return
	}
	sink.Close()
}

// ExtractContentType infers the media type of a not-yet-normalized body
// input, used to default a content-type header before constructing the
// body. It returns "" when the type cannot be known without draining.
func ExtractContentType(input any) string {
	switch v := input.(type) {
	case nil:
		return ""
	case string:
		return contentTypePlainText
	case url.Values:
		return contentTypeFormURLEncoded
	case Blob:
		return v.ContentType()
	case []byte, *bytes.Buffer:
		return ""
	case FormEncoder:
		return contentTypeMultipartForm + v.Boundary()
	case io.Reader:
		return ""
	default:
		// Mirrors the text coercion performed by NewBody.
		return contentTypePlainText
	}
}

// maxBodyPrealloc caps how much a size hint may preallocate, so a bogus
// hint cannot trigger a huge allocation before any byte arrives.
const maxBodyPrealloc = 4 * 1024 * 1024

var copyBufPool = sync.Pool{
	New: func() any {
		return make([]byte, 4096)
	},
}

func copyZeroAlloc(w io.Writer, r io.Reader) (int64, error) {
	vbuf := copyBufPool.Get()
	buf := vbuf.([]byte)
	n, err := io.CopyBuffer(w, r, buf)
	copyBufPool.Put(vbuf)
	return n, err
}
