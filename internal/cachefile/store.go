// Package cachefile persists the city coordinate cache as a human-diffable
// JSON file and fans finished caches out to downstream bundle paths.
package cachefile

import (
	"bytes"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/citycache/internal/model"
)

// ErrMalformed is returned by Load when the existing file cannot be decoded.
// Callers must abort rather than start from an empty cache, otherwise the
// next save would overwrite recoverable data.
var ErrMalformed = eris.New("cachefile: malformed cache file")

// Store reads and writes one cache file.
type Store struct {
	path string
}

// New returns a Store for the file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the file location.
func (s *Store) Path() string { return s.path }

// Load reads the cache. A missing file yields an empty cache.
func (s *Store) Load() (*model.Cache, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("no existing cache, starting empty", zap.String("path", s.path))
		return model.NewCache(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "cachefile: read %s", s.path)
	}

	c := model.NewCache()
	if err := c.UnmarshalJSON(data); err != nil {
		return nil, eris.Wrapf(ErrMalformed, "cachefile: decode %s: %v", s.path, err)
	}

	zap.L().Info("loaded existing cache",
		zap.String("path", s.path),
		zap.Int("groups", c.Len()),
		zap.Int("records", c.TotalRecords()),
	)
	return c, nil
}

// Save rewrites the whole file. The bytes go to a temp file in the same
// directory which is then renamed over the target, so an interrupted save
// leaves the previous version intact.
func (s *Store) Save(c *model.Cache) error {
	data, err := Encode(c)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// Encode renders the cache the way it is stored on disk: two-space indent,
// non-ASCII and HTML characters unescaped, trailing newline.
func Encode(c *model.Cache) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return nil, eris.Wrap(err, "cachefile: encode")
	}
	return buf.Bytes(), nil
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "cachefile: create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "cachefile: create temp for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "cachefile: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrapf(err, "cachefile: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "cachefile: close %s", tmpName)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return eris.Wrapf(err, "cachefile: chmod %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "cachefile: replace %s", path)
	}
	return nil
}
