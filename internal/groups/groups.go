// Package groups loads the input table that drives a cache build: an ordered
// list of groups (countries or states), each with the place names to resolve.
package groups

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Group is one row of the input table.
type Group struct {
	// Key names the group in the cache file, e.g. "Chile" or "Texas".
	Key string `yaml:"key" json:"key"`
	// Qualifier is appended to each name in lookup queries ("Talca, Chile").
	Qualifier string `yaml:"qualifier" json:"qualifier"`
	// Country is the English country name written into records.
	Country string `yaml:"country" json:"country"`
	// CountryCode is the lower-case ISO 3166-1 alpha-2 code used to filter
	// lookups. Empty disables the filter.
	CountryCode string   `yaml:"country_code" json:"country_code"`
	Names       []string `yaml:"names" json:"names"`
}

// Table is an ordered list of groups with unique keys.
type Table []Group

// Options fills fields a table file leaves out.
type Options struct {
	// Country applies to every group without its own country, for tables
	// whose keys are states rather than countries.
	Country string
}

// Format identifies a table file encoding.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatJS   Format = "js"
)

// FormatFor picks a format from the file extension.
func FormatFor(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	case ".js":
		return FormatJS, nil
	default:
		return "", eris.Errorf("groups: unsupported table extension %q", filepath.Ext(path))
	}
}

// Load reads a table file, choosing the decoder by extension.
func Load(path string, opts Options) (Table, error) {
	format, err := FormatFor(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "groups: read %s", path)
	}
	t, err := Parse(data, format, opts)
	if err != nil {
		return nil, eris.Wrapf(err, "groups: parse %s", path)
	}
	zap.L().Debug("loaded group table",
		zap.String("path", path),
		zap.Int("groups", len(t)),
		zap.Int("names", t.NameCount()),
	)
	return t, nil
}

// Parse decodes a table and applies defaults.
func Parse(data []byte, format Format, opts Options) (Table, error) {
	var (
		raw []Group
		err error
	)
	switch format {
	case FormatYAML:
		raw, err = parseYAML(data)
	case FormatJSON:
		raw, err = parseJSON(data)
	case FormatJS:
		raw = parseJS(data)
	default:
		err = eris.Errorf("groups: unknown format %q", format)
	}
	if err != nil {
		return nil, err
	}
	return build(raw, opts)
}

func parseYAML(data []byte) ([]Group, error) {
	var doc struct {
		Groups []Group `yaml:"groups"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "groups: decode yaml")
	}
	return doc.Groups, nil
}

// parseJSON reads {"Key": ["name", ...], ...} keeping key order.
func parseJSON(data []byte) ([]Group, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, eris.Wrap(err, "groups: read json")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, eris.Errorf("groups: expected json object, got %v", tok)
	}

	var out []Group
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, eris.Wrap(err, "groups: read json key")
		}
		key, _ := tok.(string)
		var names []string
		if err := dec.Decode(&names); err != nil {
			return nil, eris.Wrapf(err, "groups: decode names for %q", key)
		}
		out = append(out, Group{Key: key, Names: names})
	}
	if _, err := dec.Token(); err != nil {
		return nil, eris.Wrap(err, "groups: read json end")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, eris.New("groups: trailing data after json object")
	}
	return out, nil
}

var (
	jsBlockRe = regexp.MustCompile(`(?s)"([^"]+)":\s*\[(.*?)\]`)
	jsNameRe  = regexp.MustCompile(`"([^"]+)"`)
)

// parseJS extracts `"Key": [ "name", ... ]` blocks from a JavaScript data
// file such as the web app's international-cities-data.js. Blocks with no
// names are ignored.
func parseJS(data []byte) []Group {
	var out []Group
	for _, m := range jsBlockRe.FindAllSubmatch(data, -1) {
		var names []string
		for _, n := range jsNameRe.FindAllSubmatch(m[2], -1) {
			names = append(names, string(n[1]))
		}
		if len(names) == 0 {
			continue
		}
		out = append(out, Group{Key: string(m[1]), Names: names})
	}
	return out
}

func build(raw []Group, opts Options) (Table, error) {
	var t Table
	index := make(map[string]int, len(raw))
	for _, g := range raw {
		g.Key = strings.TrimSpace(g.Key)
		if g.Key == "" {
			return nil, eris.New("groups: group with empty key")
		}

		names := make([]string, 0, len(g.Names))
		for _, n := range g.Names {
			if n = strings.TrimSpace(n); n != "" {
				names = append(names, n)
			}
		}
		g.Names = names

		if i, dup := index[g.Key]; dup {
			t[i].Names = append(t[i].Names, g.Names...)
			continue
		}

		if g.Qualifier == "" {
			g.Qualifier = g.Key
		}
		if g.Country == "" {
			g.Country = opts.Country
		}
		if g.Country == "" {
			g.Country = g.Key
		}
		if g.CountryCode == "" {
			g.CountryCode = CodeFor(g.Country)
		}
		g.CountryCode = strings.ToLower(g.CountryCode)

		index[g.Key] = len(t)
		t = append(t, g)
	}
	return t, nil
}

// Keys returns the group keys in table order.
func (t Table) Keys() []string {
	out := make([]string, len(t))
	for i, g := range t {
		out[i] = g.Key
	}
	return out
}

// NameCount returns the total number of names across all groups.
func (t Table) NameCount() int {
	n := 0
	for _, g := range t {
		n += len(g.Names)
	}
	return n
}

// Select returns the named groups in table order. An unknown key is an error.
func (t Table) Select(keys []string) (Table, error) {
	if len(keys) == 0 {
		return t, nil
	}
	want := make(map[string]bool, len(keys))
	for _, k := range keys {
		want[k] = true
	}
	var out Table
	for _, g := range t {
		if want[g.Key] {
			out = append(out, g)
			delete(want, g.Key)
		}
	}
	for k := range want {
		return nil, eris.Errorf("groups: unknown group %q", k)
	}
	return out, nil
}

//go:embed countries.yaml
var countriesYAML []byte

var (
	countryCodesOnce sync.Once
	countryCodes     map[string]string
)

// CodeFor returns the ISO alpha-2 code for an English country name, or ""
// when the name is not in the embedded table.
func CodeFor(country string) string {
	countryCodesOnce.Do(func() {
		countryCodes = make(map[string]string)
		if err := yaml.Unmarshal(countriesYAML, &countryCodes); err != nil {
			zap.L().Error("groups: decode embedded country codes", zap.Error(err))
		}
	})
	return countryCodes[country]
}
