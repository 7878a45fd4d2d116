package model

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// Cache maps a group key (country or state name) to its resolved places.
// Group order and record order are preserved through JSON round trips, and
// no group ever holds two records whose names normalize to the same key.
type Cache struct {
	keys   []string
	groups map[string]*group
}

type group struct {
	records []EntityRecord
	index   map[string]struct{}
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{groups: make(map[string]*group)}
}

func (c *Cache) ensure(key string) *group {
	if c.groups == nil {
		c.groups = make(map[string]*group)
	}
	g, ok := c.groups[key]
	if !ok {
		g = &group{index: make(map[string]struct{})}
		c.groups[key] = g
		c.keys = append(c.keys, key)
	}
	return g
}

// Keys returns the group keys in insertion order.
func (c *Cache) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// Has reports whether the group exists, even if it holds no records.
func (c *Cache) Has(key string) bool {
	_, ok := c.groups[key]
	return ok
}

// Records returns a copy of the group's records.
func (c *Cache) Records(key string) []EntityRecord {
	g, ok := c.groups[key]
	if !ok {
		return nil
	}
	out := make([]EntityRecord, len(g.records))
	copy(out, g.records)
	return out
}

// Count returns the number of records in a group.
func (c *Cache) Count(key string) int {
	if g, ok := c.groups[key]; ok {
		return len(g.records)
	}
	return 0
}

// Len returns the number of groups.
func (c *Cache) Len() int { return len(c.keys) }

// TotalRecords returns the number of records across all groups.
func (c *Cache) TotalRecords() int {
	n := 0
	for _, g := range c.groups {
		n += len(g.records)
	}
	return n
}

// Contains reports whether a record with the same normalized name is
// already filed under key.
func (c *Cache) Contains(key, name string) bool {
	g, ok := c.groups[key]
	if !ok {
		return false
	}
	_, ok = g.index[NormalizeName(name)]
	return ok
}

// EnsureGroup creates an empty group if key is not present yet.
func (c *Cache) EnsureGroup(key string) {
	c.ensure(key)
}

// Add appends rec to the group, creating the group if needed. It returns
// false and leaves the cache untouched if the name is already present.
func (c *Cache) Add(key string, rec EntityRecord) bool {
	g := c.ensure(key)
	k := rec.Key()
	if _, dup := g.index[k]; dup {
		return false
	}
	g.index[k] = struct{}{}
	g.records = append(g.records, rec)
	return true
}

// Find looks a name up across every group and returns the first match in
// group order.
func (c *Cache) Find(name string) (string, EntityRecord, bool) {
	k := NormalizeName(name)
	for _, key := range c.keys {
		g := c.groups[key]
		if _, ok := g.index[k]; !ok {
			continue
		}
		for _, r := range g.records {
			if r.Key() == k {
				return key, r, true
			}
		}
	}
	return "", EntityRecord{}, false
}

// Equal reports whether two caches hold the same groups and records in the
// same order.
func (c *Cache) Equal(other *Cache) bool {
	if c.Len() != other.Len() {
		return false
	}
	for i, key := range c.keys {
		if other.keys[i] != key {
			return false
		}
		a, b := c.groups[key].records, other.groups[key].records
		if len(a) != len(b) {
			return false
		}
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}

// MarshalJSON writes the groups as a JSON object in insertion order. HTML
// characters are left unescaped so place names such as "Trinidad & Tobago"
// stay readable in diffs.
func (c *Cache) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	buf.WriteByte('{')
	for i, key := range c.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := enc.Encode(key); err != nil {
			return nil, eris.Wrapf(err, "model: encode group key %q", key)
		}
		buf.WriteByte(':')
		records := c.groups[key].records
		if records == nil {
			records = []EntityRecord{}
		}
		if err := enc.Encode(records); err != nil {
			return nil, eris.Wrapf(err, "model: encode records for %q", key)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of group arrays, keeping key order. A
// repeated key merges into the first occurrence, and duplicate names inside
// a group keep only the first record.
func (c *Cache) UnmarshalJSON(data []byte) error {
	fresh := NewCache()
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "model: read opening token")
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return eris.Errorf("model: expected '{', got %v", tok)
	}

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "model: read group key")
		}
		key, ok := tok.(string)
		if !ok {
			return eris.Errorf("model: expected group key, got %v", tok)
		}

		var records []EntityRecord
		if err := dec.Decode(&records); err != nil {
			return eris.Wrapf(err, "model: decode group %q", key)
		}
		fresh.EnsureGroup(key)
		for _, r := range records {
			fresh.Add(key, r)
		}
	}

	if _, err := dec.Token(); err != nil {
		return eris.Wrap(err, "model: read closing token")
	}
	if _, err := dec.Token(); err != io.EOF {
		return eris.New("model: trailing data after cache object")
	}

	*c = *fresh
	return nil
}
