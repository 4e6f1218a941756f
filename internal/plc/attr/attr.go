// Package attr parses the classic libplctag attribute string a tag is
// created from: ampersand-separated key=value pairs, e.g.
// "protocol=ab_eip&gateway=10.206.1.39&path=1,0&cpu=lgx&elem_size=4&
// elem_count=1&name=TestBigArray&read_cache_ms=100" (original_source's
// lib/libplctag.h: "the only required part of the string is the
// key-value pair protocol=XXX").
package attr

import (
	"strconv"
	"strings"

	"github.com/tturner/ab-eip-client/internal/plc/status"
)

// Attrs is a parsed attribute string: a set of key=value pairs (their
// order in the string is not kept),
// last-write-wins on a duplicate key (matching the teacher's
// buildPayloadParams flag-overlay precedent).
type Attrs struct {
	values map[string]string
}

// Parse splits raw on '&' and each segment on the first '=', trimming
// whitespace around both key and value. A segment with no '=' is
// ignored (spec.md: malformed attribute segments are skipped, not
// fatal — only a missing required key fails tag creation).
func Parse(raw string) Attrs {
	a := Attrs{values: make(map[string]string)}
	for _, segment := range strings.Split(raw, "&") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		parts := strings.SplitN(segment, "=", 2)
		if len(parts) != 2 {
			continue
		}
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		a.values[key] = strings.TrimSpace(parts[1])
	}
	return a
}

// Get returns the raw string value for key and whether it was present.
func (a Attrs) Get(key string) (string, bool) {
	v, ok := a.values[key]
	return v, ok
}

// GetString returns key's value or def if key is absent.
func (a Attrs) GetString(key, def string) string {
	if v, ok := a.values[key]; ok {
		return v
	}
	return def
}

// Require returns key's value, or a BadParam error naming the missing
// key if absent (spec.md: "protocol=... is the only required
// attribute").
func (a Attrs) Require(key string) (string, error) {
	v, ok := a.values[key]
	if !ok {
		return "", status.New(status.BadParam, "attr: missing required key %q", key)
	}
	return v, nil
}

// GetInt parses key's value as a base-10 integer, or returns def if
// absent or unparseable.
func (a Attrs) GetInt(key string, def int) int {
	v, ok := a.values[key]
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// GetBool parses key's value with strconv.ParseBool, or returns def if
// absent or unparseable.
func (a Attrs) GetBool(key string, def bool) bool {
	v, ok := a.values[key]
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// GetIntList parses a comma-separated list of integers, e.g. a
// connection path attribute like "path=1,0". Returns nil if key is
// absent.
func (a Attrs) GetIntList(key string) ([]int, error) {
	v, ok := a.values[key]
	if !ok {
		return nil, nil
	}
	var out []int
	for _, part := range strings.Split(v, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, status.New(status.BadParam, "attr: %q: not an integer list (%q)", key, v)
		}
		out = append(out, n)
	}
	return out, nil
}

// Keys returns every key present, for diagnostics (e.g. logging an
// unrecognized attribute).
func (a Attrs) Keys() []string {
	keys := make([]string, 0, len(a.values))
	for k := range a.values {
		keys = append(keys, k)
	}
	return keys
}
