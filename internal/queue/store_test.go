package queue

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"sync"
	"testing"

	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/state"
)

func writeFile(t *testing.T, content string) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "links.txt")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to seed file: %v", err)
	}
	return NewStore(path)
}

func readFile(t *testing.T, s *Store) string {
	t.Helper()
	data, err := os.ReadFile(s.Path())
	if err != nil {
		t.Fatalf("failed to read back: %v", err)
	}
	return string(data)
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    []string
	}{
		{name: "empty", content: "", want: []string{}},
		{name: "trims and skips blanks", content: "  https://a  \n\n\t\nhttps://b\r\n", want: []string{"https://a", "https://b"}},
		{name: "keeps duplicates", content: "https://a\nhttps://a\n", want: []string{"https://a", "https://a"}},
		{name: "no trailing newline", content: "https://a\nhttps://b", want: []string{"https://a", "https://b"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := writeFile(t, tt.content).Load()
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestLongLineKeepsQueueIntact(t *testing.T) {
	long := "https://example.com/" + strings.Repeat("x", 2<<20)
	s := writeFile(t, "https://a\n"+long+"\nhttps://b\nhttps://c\n")

	got, err := s.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(got) != 4 || got[1] != long {
		t.Fatalf("expected 4 URLs with the long one intact, got %d", len(got))
	}

	if err := s.RemoveValue("https://a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if want := long + "\nhttps://b\nhttps://c\n"; readFile(t, s) != want {
		t.Errorf("URLs after the long line were lost")
	}
}

func TestRewriteKeepsFileMode(t *testing.T) {
	tests := []struct {
		name string
		seed os.FileMode
		want os.FileMode
	}{
		{name: "existing 0644", seed: 0644, want: 0644},
		{name: "existing 0640", seed: 0640, want: 0640},
		{name: "new file", want: defaultMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "links.txt")
			if tt.seed != 0 {
				if err := os.WriteFile(path, []byte("https://a\n"), tt.seed); err != nil {
					t.Fatal(err)
				}
				// WriteFile is subject to the umask
				if err := os.Chmod(path, tt.seed); err != nil {
					t.Fatal(err)
				}
			}

			if err := NewStore(path).Append("https://b"); err != nil {
				t.Fatalf("append failed: %v", err)
			}

			fi, err := os.Stat(path)
			if err != nil {
				t.Fatal(err)
			}
			if got := fi.Mode().Perm(); got != tt.want {
				t.Errorf("mode = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "nope.txt"))

	got, err := s.Load()
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected empty queue, got %v", got)
	}
}

func TestLoadIOErrorIsWrapped(t *testing.T) {
	// A directory cannot be read as a file
	s := NewStore(t.TempDir())

	_, err := s.Load()
	if !errors.Is(err, domain.ErrIO) {
		t.Errorf("expected ErrIO, got %v", err)
	}
}

func TestAppend(t *testing.T) {
	s := writeFile(t, "https://a\n")

	if err := s.Append("https://b", "  ", "https://c"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if got := readFile(t, s); got != "https://a\nhttps://b\nhttps://c\n" {
		t.Errorf("unexpected file content %q", got)
	}
}

func TestAppendCreatesFile(t *testing.T) {
	s := NewStore(filepath.Join(t.TempDir(), "sub", "links.txt"))

	if err := s.Append("https://a"); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if got := readFile(t, s); got != "https://a\n" {
		t.Errorf("unexpected file content %q", got)
	}
}

func TestRemoveValue(t *testing.T) {
	tests := []struct {
		name    string
		content string
		remove  string
		want    string
	}{
		{name: "first occurrence only", content: "a\nb\na\n", remove: "a", want: "b\na\n"},
		{name: "middle", content: "a\nb\nc\n", remove: "b", want: "a\nc\n"},
		{name: "trimmed match", content: "  a  \nb\n", remove: "a ", want: "b\n"},
		{name: "last item empties file", content: "a\n", remove: "a", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := writeFile(t, tt.content)
			if err := s.RemoveValue(tt.remove); err != nil {
				t.Fatalf("remove failed: %v", err)
			}
			if got := readFile(t, s); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestRemoveValueIsIdempotent(t *testing.T) {
	s := writeFile(t, "https://a\nhttps://b\n")

	if err := s.RemoveValue("https://a"); err != nil {
		t.Fatalf("first remove failed: %v", err)
	}
	after := readFile(t, s)

	if err := s.RemoveValue("https://a"); err != nil {
		t.Fatalf("second remove failed: %v", err)
	}
	if got := readFile(t, s); got != after {
		t.Errorf("second remove changed the file: %q -> %q", after, got)
	}
	if after != "https://b\n" {
		t.Errorf("unexpected content %q", after)
	}
}

func TestSanitize(t *testing.T) {
	s := writeFile(t, "https://a.example/x\nnot a url\nhttp://b.example\nftp://c.example\nhttps:///nohost\n")

	res, err := s.Sanitize()
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}

	wantKept := []string{"https://a.example/x", "http://b.example"}
	wantDropped := []string{"not a url", "ftp://c.example", "https:///nohost"}
	if !reflect.DeepEqual(res.Kept, wantKept) {
		t.Errorf("expected kept %v, got %v", wantKept, res.Kept)
	}
	if !reflect.DeepEqual(res.Dropped, wantDropped) {
		t.Errorf("expected dropped %v, got %v", wantDropped, res.Dropped)
	}
	if got := readFile(t, s); got != "https://a.example/x\nhttp://b.example\n" {
		t.Errorf("file not rewritten: %q", got)
	}
}

func TestSanitizeKeepsTwoDropsOne(t *testing.T) {
	s := writeFile(t, "https://ok.example/1\ngarbage\nhttps://ok.example/2\n")

	res, err := s.Sanitize()
	if err != nil {
		t.Fatalf("sanitize failed: %v", err)
	}
	if len(res.Kept) != 2 || len(res.Dropped) != 1 {
		t.Errorf("expected 2 kept and 1 dropped, got %d/%d", len(res.Kept), len(res.Dropped))
	}
}

func TestSaveLeavesNoTempFiles(t *testing.T) {
	s := writeFile(t, "")
	if err := s.Save([]string{"https://a", "https://b"}); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Dir(s.Path()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("expected only links.txt, found %d entries", len(entries))
	}
}

func TestGuardedConcurrentRemovals(t *testing.T) {
	const n = 50

	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/%d", i)
	}

	s := NewStore(filepath.Join(t.TempDir(), "links.txt"))
	if err := s.Save(urls); err != nil {
		t.Fatal(err)
	}

	a := state.New()
	defer a.Close()
	g := NewGuarded(s, a)

	var wg sync.WaitGroup
	for _, u := range urls {
		wg.Add(1)
		go func(u string) {
			defer wg.Done()
			if err := g.RemoveValue(u); err != nil {
				t.Errorf("remove %s failed: %v", u, err)
			}
		}(u)
	}
	wg.Wait()

	left, err := g.Load()
	if err != nil {
		t.Fatal(err)
	}
	if len(left) != 0 {
		t.Errorf("expected every removal to land, %d left: %v", len(left), left)
	}
}

func TestGuardedSurfacesPoisonedLock(t *testing.T) {
	a := state.New()
	defer a.Close()

	a.WithFileLock(func() error { panic("boom") })

	g := NewGuarded(writeFile(t, "https://a\n"), a)
	if err := g.Append("https://b"); !errors.Is(err, domain.ErrLockPoisoned) {
		t.Errorf("expected ErrLockPoisoned, got %v", err)
	}
	if got := readFile(t, g.store); got != "https://a\n" {
		t.Errorf("file must not be written through a poisoned lock, got %q", got)
	}
}

func TestValidURL(t *testing.T) {
	tests := map[string]bool{
		"https://www.youtube.com/watch?v=abc": true,
		"http://example.com":                  true,
		"  https://example.com  ":             true,
		"example.com":                         false,
		"ftp://example.com/file":              false,
		"https://":                            false,
		"":                                    false,
		"://broken":                           false,
	}

	for in, want := range tests {
		if got := ValidURL(in); got != want {
			t.Errorf("ValidURL(%q) = %v, want %v", in, got, want)
		}
	}
}
