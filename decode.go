package httpbody

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

// ErrUnsupportedEncoding is returned when a body is decoded with an
// unknown content coding.
var ErrUnsupportedEncoding = errors.New("unsupported content encoding")

// DecodedBytes drains the body and decodes it according to the given
// Content-Encoding value, as produced by HeaderList.Get. An empty coding
// or "identity" returns the raw bytes. It counts as the body's single
// consumption.
func (b *Body) DecodedBytes(contentEncoding string) ([]byte, error) {
	body, err := b.consume()
	if err != nil {
		return nil, err
	}
	return AppendDecodedBytes(nil, body, contentEncoding)
}

// AppendDecodedBytes appends src decoded according to contentEncoding to
// dst and returns the resulting dst.
func AppendDecodedBytes(dst, src []byte, contentEncoding string) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "", "identity":
		return append(dst, src...), nil
	case "gzip", "x-gzip":
		return AppendGunzipBytes(dst, src)
	case "deflate":
		return AppendInflateBytes(dst, src)
	case "br":
		return AppendUnbrotliBytes(dst, src)
	case "zstd":
		return AppendUnzstdBytes(dst, src)
	default:
		return dst, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, contentEncoding)
	}
}

// AppendGunzipBytes appends gunzipped src to dst and returns the
// resulting dst.
func AppendGunzipBytes(dst, src []byte) ([]byte, error) {
	zr, err := acquireGzipReader(&byteSliceReader{b: src})
	if err != nil {
		return dst, err
	}
	w := &byteSliceWriter{b: dst}
	_, err = copyZeroAlloc(w, zr)
	releaseGzipReader(zr)
	return w.b, err
}

// AppendInflateBytes appends inflated src to dst and returns the
// resulting dst. The zlib wrapper is expected, but raw deflate streams
// are tolerated since some peers send them under the same coding name.
func AppendInflateBytes(dst, src []byte) ([]byte, error) {
	w := &byteSliceWriter{b: dst}
	zr, err := zlib.NewReader(&byteSliceReader{b: src})
	if err != nil {
		fr := flate.NewReader(&byteSliceReader{b: src})
		_, err = copyZeroAlloc(w, fr)
		fr.Close()
		return w.b, err
	}
	_, err = copyZeroAlloc(w, zr)
	zr.Close()
	return w.b, err
}

// AppendUnbrotliBytes appends unbrotlied src to dst and returns the
// resulting dst.
func AppendUnbrotliBytes(dst, src []byte) ([]byte, error) {
	br, err := acquireBrotliReader(&byteSliceReader{b: src})
	if err != nil {
		return dst, err
	}
	w := &byteSliceWriter{b: dst}
	_, err = copyZeroAlloc(w, br)
	releaseBrotliReader(br)
	return w.b, err
}

// AppendUnzstdBytes appends unzstd src to dst and returns the resulting
// dst.
func AppendUnzstdBytes(dst, src []byte) ([]byte, error) {
	zr, err := acquireZstdReader(&byteSliceReader{b: src})
	if err != nil {
		return dst, err
	}
	w := &byteSliceWriter{b: dst}
	_, err = copyZeroAlloc(w, zr)
	releaseZstdReader(zr)
	return w.b, err
}

var (
	gzipReaderPool   sync.Pool
	brotliReaderPool sync.Pool
	zstdDecoderPool  sync.Pool
)

func acquireGzipReader(r io.Reader) (*gzip.Reader, error) {
	v := gzipReaderPool.Get()
	if v == nil {
		return gzip.NewReader(r)
	}
	zr := v.(*gzip.Reader)
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

func releaseGzipReader(zr *gzip.Reader) {
	zr.Close()
	gzipReaderPool.Put(zr)
}

func acquireBrotliReader(r io.Reader) (*brotli.Reader, error) {
	v := brotliReaderPool.Get()
	if v == nil {
		return brotli.NewReader(r), nil
	}
	br := v.(*brotli.Reader)
	if err := br.Reset(r); err != nil {
		return nil, err
	}
	return br, nil
}

func releaseBrotliReader(br *brotli.Reader) {
	brotliReaderPool.Put(br)
}

func acquireZstdReader(r io.Reader) (*zstd.Decoder, error) {
	v := zstdDecoderPool.Get()
	if v == nil {
		return zstd.NewReader(r)
	}
	zr := v.(*zstd.Decoder)
	if err := zr.Reset(r); err != nil {
		return nil, err
	}
	return zr, nil
}

func releaseZstdReader(zr *zstd.Decoder) {
	zstdDecoderPool.Put(zr)
}

type byteSliceWriter struct {
	b []byte
}

func (w *byteSliceWriter) Write(p []byte) (int, error) {
	w.b = append(w.b, p...)
	return len(p), nil
}

type byteSliceReader struct {
	b []byte
}

func (r *byteSliceReader) Read(p []byte) (int, error) {
	if len(r.b) == 0 {
		return 0, io.EOF
	}
	n := copy(p, r.b)
	r.b = r.b[n:]
	return n, nil
}
