package queue

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/datallboy/autodl/internal/domain"
)

// DefaultPath is where the queue lives unless configured otherwise
const DefaultPath = "links.txt"

// Store persists the queue as a newline-delimited list of URLs.
// It does no locking of its own; see Guarded.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	if path == "" {
		path = DefaultPath
	}
	return &Store{path: path}
}

func (s *Store) Path() string {
	return s.path
}

// Load returns the queued URLs in file order. A missing file is an empty queue.
func (s *Store) Load() ([]string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, ioError("read", s.path, err)
	}
	return parseLines(data), nil
}

// Save replaces the whole file with urls
func (s *Store) Save(urls []string) error {
	var buf bytes.Buffer
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		buf.WriteString(u)
		buf.WriteByte('\n')
	}
	return s.writeAtomic(buf.Bytes())
}

// Append adds urls to the end of the file, skipping blanks
func (s *Store) Append(urls ...string) error {
	current, err := s.Load()
	if err != nil {
		return err
	}
	return s.Save(append(current, urls...))
}

// RemoveValue deletes the first line equal to url. Removing a value that is
// not present succeeds without touching the file.
func (s *Store) RemoveValue(url string) error {
	url = strings.TrimSpace(url)

	current, err := s.Load()
	if err != nil {
		return err
	}

	for i, u := range current {
		if u == url {
			return s.Save(append(current[:i], current[i+1:]...))
		}
	}
	return nil
}

type SanitizeResult struct {
	Kept    []string
	Dropped []string
}

// Sanitize rewrites the file keeping only well-formed http(s) URLs
func (s *Store) Sanitize() (SanitizeResult, error) {
	current, err := s.Load()
	if err != nil {
		return SanitizeResult{}, err
	}

	res := SanitizeResult{Kept: []string{}, Dropped: []string{}}
	for _, u := range current {
		if ValidURL(u) {
			res.Kept = append(res.Kept, u)
		} else {
			res.Dropped = append(res.Dropped, u)
		}
	}

	if len(res.Dropped) == 0 {
		return res, nil
	}
	return res, s.Save(res.Kept)
}

// ValidURL accepts absolute http and https URLs with a host
func ValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// defaultMode is used when the file does not exist yet
const defaultMode fs.FileMode = 0644

// writeAtomic writes data to a temp file next to the target and renames it
// over the target, so readers see either the old or the new file. The
// target keeps its permissions.
func (s *Store) writeAtomic(data []byte) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return ioError("mkdir", dir, err)
	}

	mode := defaultMode
	if fi, err := os.Stat(s.path); err == nil {
		mode = fi.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return ioError("create temp for", s.path, err)
	}
	tmpPath := tmp.Name()

	if err := tmp.Chmod(mode); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ioError("chmod", tmpPath, err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ioError("write", tmpPath, err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return ioError("sync", tmpPath, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return ioError("close", tmpPath, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return ioError("rename", tmpPath, err)
	}
	return nil
}

// parseLines has no line length limit: a queue that loads short would be
// written back short.
func parseLines(data []byte) []string {
	out := []string{}
	for _, raw := range bytes.Split(data, []byte{'\n'}) {
		if line := strings.TrimSpace(string(raw)); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func ioError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", domain.ErrIO, op, path, err)
}
