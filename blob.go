package httpbody

import (
	"bytes"
	"io"
)

// Blob is an opaque sized payload with a declared media type. Unlike a
// plain byte stream, a blob can produce any number of independent readers
// over the same bytes, so it is shared between body clones without teeing.
type Blob interface {
	// Size returns the blob's byte length.
	Size() int

	// ContentType returns the blob's declared media type. It may be empty.
	ContentType() string

	// NewReader returns a fresh reader over the blob's bytes. If the
	// returned reader implements io.Closer it is closed after draining.
	NewReader() io.Reader
}

// MemoryBlob is an in-memory Blob.
type MemoryBlob struct {
	data        []byte
	contentType string
}

// NewMemoryBlob returns a blob holding a copy of data with the given
// declared media type.
func NewMemoryBlob(data []byte, contentType string) *MemoryBlob {
	return &MemoryBlob{
		data:        append([]byte(nil), data...),
		contentType: contentType,
	}
}

// Size returns the blob's byte length.
func (b *MemoryBlob) Size() int {
	return len(b.data)
}

// ContentType returns the blob's declared media type.
func (b *MemoryBlob) ContentType() string {
	return b.contentType
}

// NewReader returns a fresh reader over the blob's bytes.
func (b *MemoryBlob) NewReader() io.Reader {
	return bytes.NewReader(b.data)
}

// Bytes returns the blob's bytes.
//
// The returned slice must not be modified.
func (b *MemoryBlob) Bytes() []byte {
	return b.data
}

// FormEncoder marks a multipart form builder, e.g. a wrapper around
// mime/multipart.Writer. Its encoded output cannot be safely teed or
// re-encoded, so the body keeps it untouched: cloning shares the same
// encoder between both bodies and the content type is derived from
// Boundary.
//
// This interface is the explicit extension point for form detection;
// no other structural signals are consulted.
//
// An encoder that can compute its encoded length up front should also
// implement `interface{ Len() int }`, returning a negative value when the
// length is unknown.
type FormEncoder interface {
	io.Reader

	// Boundary returns the encoder's multipart boundary string.
	Boundary() string
}

// formEncoderLen returns the encoder's known encoded byte length, or -1.
func formEncoderLen(f FormEncoder) int {
	if sized, ok := f.(interface{ Len() int }); ok {
		if n := sized.Len(); n >= 0 {
			return n
		}
	}
	return -1
}
