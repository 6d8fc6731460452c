package httpbody

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/valyala/bytebufferpool"
	"golang.org/x/net/http/httpguts"
)

// ErrInvalidHeaderName is returned when a header name doesn't match the
// HTTP token grammar.
var ErrInvalidHeaderName = errors.New("invalid header name")

// ErrInvalidHeaderValue is returned when a header value contains bytes
// outside the HTTP field-value grammar.
var ErrInvalidHeaderValue = errors.New("invalid header value")

const (
	headerHost            = "host"
	headerContentEncoding = "content-encoding"
)

// HeaderList is an ordered, case-insensitive, multi-valued set of HTTP
// header fields. Names are validated against the token grammar and
// lowercased before storage; values are validated against the field-value
// grammar. The original name case is discarded.
//
// It is forbidden copying HeaderList instances. Create new instances
// and use CopyTo() instead.
//
// It is unsafe modifying/reading HeaderList instance from concurrently
// running goroutines.
type HeaderList struct {
	kvs []headerKV
}

// NewHeaderList returns an empty header list.
func NewHeaderList() *HeaderList {
	return &HeaderList{}
}

// NewHeaderListFrom builds a header list from one of the supported source
// shapes:
//
//   - nil: an empty list.
//   - *HeaderList: all raw pairs are copied.
//   - map[string]string: one pair per entry, added in sorted name order.
//   - [][2]string: one pair per element, added in order.
//
// Construction fails with ErrInvalidHeaderName or ErrInvalidHeaderValue on
// the first pair violating the corresponding grammar. Use
// NewHeaderListLenient to skip such pairs instead.
func NewHeaderListFrom(src any) (*HeaderList, error) {
	h := &HeaderList{}
	switch v := src.(type) {
	case nil:
	case *HeaderList:
		if v != nil {
			v.CopyTo(h)
		}
	case map[string]string:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if err := h.Add(name, v[name]); err != nil {
				return nil, err
			}
		}
	case [][2]string:
		for i := range v {
			if err := h.Add(v[i][0], v[i][1]); err != nil {
				return nil, err
			}
		}
	default:
		return nil, fmt.Errorf("unsupported header list source %T", src)
	}
	return h, nil
}

// NewHeaderListLenient builds a header list by flattening each name's
// values into pairs, silently skipping any pair that fails grammar
// validation. Use it when ingesting headers from a source that isn't
// guaranteed to be well-formed.
func NewHeaderListLenient(src map[string][]string) *HeaderList {
	h := &HeaderList{}
	names := make([]string, 0, len(src))
	for name := range src {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if !httpguts.ValidHeaderFieldName(name) {
			continue
		}
		folded := strings.ToLower(name)
		for _, value := range src[name] {
			if !httpguts.ValidHeaderFieldValue(value) {
				continue
			}
			h.kvs = appendKV(h.kvs, folded, value)
		}
	}
	return h
}

// foldHeaderName validates name against the token grammar and returns its
// lowercased form.
func foldHeaderName(name string) (string, error) {
	if !httpguts.ValidHeaderFieldName(name) {
		return "", fmt.Errorf("%w: %q", ErrInvalidHeaderName, name)
	}
	return strings.ToLower(name), nil
}

func checkHeaderValue(value string) error {
	if !httpguts.ValidHeaderFieldValue(value) {
		return fmt.Errorf("%w: %q", ErrInvalidHeaderValue, value)
	}
	return nil
}

// Reset clears the header list.
func (h *HeaderList) Reset() {
	h.kvs = h.kvs[:0]
}

// CopyTo copies all raw pairs to dst.
func (h *HeaderList) CopyTo(dst *HeaderList) {
	dst.kvs = copyKVs(dst.kvs, h.kvs)
}

// Len returns the number of stored pairs, counting duplicates.
func (h *HeaderList) Len() int {
	return len(h.kvs)
}

// Add appends a 'name: value' pair, keeping any existing pairs with the
// same name.
func (h *HeaderList) Add(name, value string) error {
	folded, err := foldHeaderName(name)
	if err != nil {
		return err
	}
	if err := checkHeaderValue(value); err != nil {
		return err
	}
	h.kvs = appendKV(h.kvs, folded, value)
	return nil
}

// Set replaces all pairs with the given name by a single 'name: value'
// pair, at the position of the first of them.
func (h *HeaderList) Set(name, value string) error {
	folded, err := foldHeaderName(name)
	if err != nil {
		return err
	}
	if err := checkHeaderValue(value); err != nil {
		return err
	}
	h.kvs = setKV(h.kvs, folded, value)
	return nil
}

// Del removes all pairs with the given name. Removing a missing name is
// not an error.
func (h *HeaderList) Del(name string) error {
	folded, err := foldHeaderName(name)
	if err != nil {
		return err
	}
	h.kvs = delKV(h.kvs, folded)
	return nil
}

// Has reports whether at least one pair with the given name is stored.
func (h *HeaderList) Has(name string) (bool, error) {
	folded, err := foldHeaderName(name)
	if err != nil {
		return false, err
	}
	return hasKV(h.kvs, folded), nil
}

// GetAll returns every value stored under name in insertion order.
func (h *HeaderList) GetAll(name string) ([]string, error) {
	folded, err := foldHeaderName(name)
	if err != nil {
		return nil, err
	}
	return peekAllKV(h.kvs, folded), nil
}

// Get returns all values stored under name joined with ", ". The second
// return value is false when no pair with the given name is stored.
//
// As a carve-out for safe content-coding comparison, the joined result is
// lowercased when name case-insensitively equals "content-encoding".
func (h *HeaderList) Get(name string) (string, bool) {
	folded := strings.ToLower(name)
	values := peekAllKV(h.kvs, folded)
	if len(values) == 0 {
		return "", false
	}
	joined := values[0]
	if len(values) > 1 {
		bb := bytebufferpool.Get()
		for i := range values {
			if i > 0 {
				bb.WriteString(", ") //nolint:errcheck
			}
			bb.WriteString(values[i]) //nolint:errcheck
		}
		joined = bb.String()
		bytebufferpool.Put(bb)
	}
	if folded == headerContentEncoding {
		joined = strings.ToLower(joined)
	}
	return joined, true
}

// Keys returns the sorted, de-duplicated set of stored names. A fresh
// slice is returned on every call.
func (h *HeaderList) Keys() []string {
	keys := make([]string, 0, len(h.kvs))
	seen := make(map[string]struct{}, len(h.kvs))
	for i := range h.kvs {
		name := h.kvs[i].name
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		keys = append(keys, name)
	}
	sort.Strings(keys)
	return keys
}

// Values returns the joined value for each key from Keys, in key order.
func (h *HeaderList) Values() []string {
	keys := h.Keys()
	values := make([]string, len(keys))
	for i, key := range keys {
		values[i], _ = h.Get(key)
	}
	return values
}

// Entries returns (name, joined value) pairs for each key from Keys.
func (h *HeaderList) Entries() [][2]string {
	keys := h.Keys()
	entries := make([][2]string, len(keys))
	for i, key := range keys {
		value, _ := h.Get(key)
		entries[i] = [2]string{key, value}
	}
	return entries
}

// VisitAll calls f for each key from Keys with its joined value. This is
// the list's default iteration.
func (h *HeaderList) VisitAll(f func(name, value string)) {
	for _, key := range h.Keys() {
		value, _ := h.Get(key)
		f(key, value)
	}
}

// Raw returns every key's full, unmerged value list in insertion order.
// This is the only accessor exposing un-joined duplicates.
func (h *HeaderList) Raw() map[string][]string {
	m := make(map[string][]string, len(h.kvs))
	visitKVs(h.kvs, func(name, value string) {
		m[name] = append(m[name], value)
	})
	return m
}

// Inspect returns a plain mapping suitable for logging. Multi-valued
// names render as a []string; single-valued names render as a scalar.
// The "host" header always renders as its first value only, since exactly
// one Host value is meaningful downstream.
func (h *HeaderList) Inspect() map[string]any {
	view := make(map[string]any)
	for _, key := range h.Keys() {
		values := peekAllKV(h.kvs, key)
		if key == headerHost || len(values) == 1 {
			view[key] = values[0]
			continue
		}
		view[key] = values
	}
	return view
}

// String returns a generic tag for the list, not a serialization of its
// contents. Wire formatting belongs to the transport layer.
func (h *HeaderList) String() string {
	return "httpbody.HeaderList"
}
