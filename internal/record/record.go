// Package record defines the field-map record exchanged between source
// adapters, the correlation engine, and the output sink, together with the
// canonical normalization applied to every scraped value.
package record

import (
	"slices"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Fields is an open mapping of named scalar fields. Each record is produced
// by exactly one source and associated with exactly one entity key at a time.
// Values are always normalized strings (see Normalize); numeric fields from
// upstream JSON are stringified by the adapter before they reach here.
type Fields map[string]string

// Clone returns a shallow copy. Records crossing a component boundary are
// cloned so the engine's stored value cannot be mutated by the producer.
func (f Fields) Clone() Fields {
	if f == nil {
		return nil
	}
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// SortedKeys returns the field names in sorted order for deterministic
// iteration (logging, CSV cells, tests).
func (f Fields) SortedKeys() []string {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Merge unions the given field maps in order. Later maps override earlier
// ones on name collision; callers pass maps in source declaration order so
// the override direction is fixed and documented, not accidental.
func Merge(maps ...Fields) Fields {
	out := make(Fields)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}

// Normalize canonicalizes a scraped value: NFC normalization, surrounding
// whitespace trimmed, runs of inner whitespace collapsed to a single space.
// Registry pages are inconsistent about non-breaking spaces and composed
// accents; normalizing here keys the join on stable strings.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeFields applies Normalize to every value of f in place and
// returns f for chaining.
func NormalizeFields(f Fields) Fields {
	for k, v := range f {
		f[k] = Normalize(v)
	}
	return f
}
