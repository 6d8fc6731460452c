/*
Package httpbody implements the data layer behind an HTTP request/response
abstraction: payload bodies and header lists.

Httpbody provides the following features:

    * Body normalizes arbitrary payload representations (text, raw bytes,
      URL-encoded form values, blobs, multipart form encoders, byte
      streams) into a single consumption model.
    * Bodies drain at most once, with configurable size limits and
      timeouts; every later drain attempt fails fast.
    * Unconsumed bodies may be cloned; single-pass byte streams are teed
      into two independent branches with bounded buffering.
    * Content-type and byte-length inference for not-yet-normalized
      constructor inputs.
    * Any body kind can be forwarded into a request body writer sink.
    * Content-encoding aware body decoding (gzip, deflate, brotli, zstd).
    * HeaderList is an ordered, case-insensitive, multi-valued header
      store with HTTP grammar validation, duplicate-value merging and
      sorted key iteration.

The package performs no network I/O and no HTTP wire parsing: bodies
consume already-available byte streams, and headers arrive pre-parsed as
name/value pairs. Request dispatch, connection management and URL parsing
belong to the embedding transport layer.
*/
package httpbody
