package http1

import (
	"github.com/intuitivelabs/bytescase"
)

// Dict is a case-insensitive multimap of string keys to string values,
// used for headers, cookies and query parameters. Multiple entries may
// share a key; entries are kept in insertion order, so the values
// returned for one key always appear in the order they were added.
//
// Key comparison is ASCII case folding. Keys are stored with their
// original case, which is also the case used when serializing headers
// back onto the wire.
//
// Design:
// - Flat slice storage, linear scan lookup (messages carry tens of
//   entries, not thousands; a map would cost more than it saves)
// - No locking; a Dict belongs to one message on one goroutine
type Dict struct {
	entries []dictEntry
}

type dictEntry struct {
	key   string
	value string
}

func keyEqual(a, b string) bool {
	// bytescase compares without allocating; the conversions below do
	// not escape.
	return len(a) == len(b) && bytescase.CmpEq([]byte(a), []byte(b))
}

// Find returns the first value inserted for key, or "" if the key is
// absent. The "first inserted" guarantee is stable across any number
// of later Add calls for the same key.
func (d *Dict) Find(key string) string {
	for i := range d.entries {
		if keyEqual(d.entries[i].key, key) {
			return d.entries[i].value
		}
	}
	return ""
}

// Has reports whether at least one entry exists for key.
func (d *Dict) Has(key string) bool {
	for i := range d.entries {
		if keyEqual(d.entries[i].key, key) {
			return true
		}
	}
	return false
}

// Values returns all values for key in insertion order. Returns nil
// if the key is absent.
func (d *Dict) Values(key string) []string {
	var vals []string
	for i := range d.entries {
		if keyEqual(d.entries[i].key, key) {
			vals = append(vals, d.entries[i].value)
		}
	}
	return vals
}

// Add appends a new entry for key. Existing entries for the same key
// are preserved.
func (d *Dict) Add(key, value string) {
	d.entries = append(d.entries, dictEntry{key: key, value: value})
}

// Change replaces all entries for key with a single entry holding
// value. If the key is absent a new entry is appended.
func (d *Dict) Change(key, value string) {
	out := d.entries[:0]
	replaced := false
	for i := range d.entries {
		if keyEqual(d.entries[i].key, key) {
			if !replaced {
				out = append(out, dictEntry{key: d.entries[i].key, value: value})
				replaced = true
			}
			continue
		}
		out = append(out, d.entries[i])
	}
	d.entries = out
	if !replaced {
		d.Add(key, value)
	}
}

// Delete removes all entries for key.
func (d *Dict) Delete(key string) {
	out := d.entries[:0]
	for i := range d.entries {
		if !keyEqual(d.entries[i].key, key) {
			out = append(out, d.entries[i])
		}
	}
	d.entries = out
}

// Len returns the total number of entries.
func (d *Dict) Len() int {
	return len(d.entries)
}

// Clear removes all entries but keeps the backing storage for reuse.
func (d *Dict) Clear() {
	d.entries = d.entries[:0]
}

// VisitAll calls visitor for every entry in insertion order.
// Iteration stops if visitor returns false.
func (d *Dict) VisitAll(visitor func(key, value string) bool) {
	for i := range d.entries {
		if !visitor(d.entries[i].key, d.entries[i].value) {
			return
		}
	}
}
