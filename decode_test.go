package httpbody

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

const decodePayload = "expand me, expand me, expand me"

func gzipBytes(t *testing.T, s string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(s)); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return buf.Bytes()
}

func TestAppendGunzipBytes(t *testing.T) {
	// run twice so the second pass exercises the pooled reader
	for i := 0; i < 2; i++ {
		got, err := AppendGunzipBytes(nil, gzipBytes(t, decodePayload))
		if err != nil {
			t.Fatalf("Unexpected error on pass %d: %v", i, err)
		}
		if string(got) != decodePayload {
			t.Fatalf("Unexpected payload %q on pass %d", got, i)
		}
	}
}

func TestAppendInflateBytesZlib(t *testing.T) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write([]byte(decodePayload)) //nolint:errcheck
	zw.Close()

	got, err := AppendInflateBytes(nil, buf.Bytes())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got) != decodePayload {
		t.Fatalf("Unexpected payload %q", got)
	}
}

func TestAppendInflateBytesRawDeflate(t *testing.T) {
	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	fw.Write([]byte(decodePayload)) //nolint:errcheck
	fw.Close()

	got, err := AppendInflateBytes(nil, buf.Bytes())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got) != decodePayload {
		t.Fatalf("Unexpected payload %q", got)
	}
}

func TestAppendUnbrotliBytes(t *testing.T) {
	var buf bytes.Buffer
	bw := brotli.NewWriter(&buf)
	bw.Write([]byte(decodePayload)) //nolint:errcheck
	bw.Close()

	for i := 0; i < 2; i++ {
		got, err := AppendUnbrotliBytes(nil, append([]byte(nil), buf.Bytes()...))
		if err != nil {
			t.Fatalf("Unexpected error on pass %d: %v", i, err)
		}
		if string(got) != decodePayload {
			t.Fatalf("Unexpected payload %q on pass %d", got, i)
		}
	}
}

func TestAppendUnzstdBytes(t *testing.T) {
	var buf bytes.Buffer
	zw, err := zstd.NewWriter(&buf)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	zw.Write([]byte(decodePayload)) //nolint:errcheck
	zw.Close()

	for i := 0; i < 2; i++ {
		got, err := AppendUnzstdBytes(nil, buf.Bytes())
		if err != nil {
			t.Fatalf("Unexpected error on pass %d: %v", i, err)
		}
		if string(got) != decodePayload {
			t.Fatalf("Unexpected payload %q on pass %d", got, i)
		}
	}
}

func TestAppendDecodedBytesIdentity(t *testing.T) {
	for _, coding := range []string{"", "identity", "IDENTITY"} {
		got, err := AppendDecodedBytes(nil, []byte(decodePayload), coding)
		if err != nil {
			t.Fatalf("Unexpected error for %q: %v", coding, err)
		}
		if string(got) != decodePayload {
			t.Fatalf("Unexpected payload %q for %q", got, coding)
		}
	}
}

func TestAppendDecodedBytesUnsupported(t *testing.T) {
	_, err := AppendDecodedBytes(nil, []byte("x"), "snappy")
	if !errors.Is(err, ErrUnsupportedEncoding) {
		t.Fatalf("Unexpected error %v. Expected ErrUnsupportedEncoding", err)
	}
}

func TestBodyDecodedBytes(t *testing.T) {
	h := NewHeaderList()
	if err := h.Add("Content-Encoding", "GZIP"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	coding, ok := h.Get("content-encoding")
	if !ok || coding != "gzip" {
		t.Fatalf("Unexpected coding %q, ok=%v", coding, ok)
	}

	b := NewBody(gzipBytes(t, decodePayload), BodyConfig{})
	got, err := b.DecodedBytes(coding)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got) != decodePayload {
		t.Fatalf("Unexpected payload %q", got)
	}

	// DecodedBytes is a drain like any other accessor
	if _, err = b.Bytes(); !errors.Is(err, ErrBodyAlreadyConsumed) {
		t.Fatalf("Unexpected error %v. Expected ErrBodyAlreadyConsumed", err)
	}
}

func TestBodyDecodedBytesStream(t *testing.T) {
	compressed := gzipBytes(t, decodePayload)
	b := NewBody(io.Reader(bytes.NewReader(compressed)), BodyConfig{})

	got, err := b.DecodedBytes("gzip")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got) != decodePayload {
		t.Fatalf("Unexpected payload %q", got)
	}
}

func TestBodyDecodedBytesIdentityStream(t *testing.T) {
	b := NewBody(io.Reader(strings.NewReader(decodePayload)), BodyConfig{})
	got, err := b.DecodedBytes("")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(got) != decodePayload {
		t.Fatalf("Unexpected payload %q", got)
	}
}
