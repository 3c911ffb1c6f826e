package platform

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/datallboy/autodl/internal/domain"
)

func fakeChecker(installed map[string]string) *Checker {
	c := NewChecker("")
	c.Lookup = func(name string) (string, error) {
		if _, ok := installed[name]; ok {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
	c.Run = func(_ context.Context, path, _ string) (string, error) {
		name := path[strings.LastIndex(path, "/")+1:]
		return installed[name], nil
	}
	return c
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name      string
		installed map[string]string
		wantErr   bool
		mention   []string
	}{
		{
			name:      "all present",
			installed: map[string]string{"yt-dlp": "2025.01.01", "ffmpeg": "ffmpeg version 7.0"},
		},
		{
			name:      "missing ffmpeg",
			installed: map[string]string{"yt-dlp": "2025.01.01"},
			wantErr:   true,
			mention:   []string{"ffmpeg"},
		},
		{
			name:      "missing both",
			installed: map[string]string{},
			wantErr:   true,
			mention:   []string{"yt-dlp", "ffmpeg"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fakeChecker(tt.installed).Validate(context.Background())
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, domain.ErrProcessLaunch) {
				t.Fatalf("expected ErrProcessLaunch, got %v", err)
			}
			for _, m := range tt.mention {
				if !strings.Contains(err.Error(), m) {
					t.Errorf("expected %q in %v", m, err)
				}
			}
		})
	}
}

func TestStatusReportsVersions(t *testing.T) {
	st := fakeChecker(map[string]string{"yt-dlp": "2025.01.01", "ffmpeg": "ffmpeg version 7.0"}).Status(context.Background())
	if len(st) != 2 {
		t.Fatalf("expected two entries, got %d", len(st))
	}
	if st[0].Version != "2025.01.01" || st[0].Path != "/usr/bin/yt-dlp" {
		t.Errorf("unexpected yt-dlp status %+v", st[0])
	}
}

func TestNewCheckerCustomBinary(t *testing.T) {
	c := NewChecker("/opt/yt-dlp-nightly")
	if c.Binaries[0].Name != "/opt/yt-dlp-nightly" {
		t.Errorf("expected custom yt-dlp path, got %q", c.Binaries[0].Name)
	}
	if RequiredBinaries[0].Name != "yt-dlp" {
		t.Error("custom binary must not leak into the package default")
	}
}

func TestSuggestConcurrency(t *testing.T) {
	tests := []struct {
		cpus int
		mem  float64
		want int
	}{
		{cpus: 8, mem: 16, want: 8},
		{cpus: 8, mem: 1, want: 2},
		{cpus: 0, mem: 0, want: 1},
		{cpus: 64, mem: 0, want: 16},
		{cpus: 4, mem: 0.1, want: 1},
	}

	for _, tt := range tests {
		if got := SuggestConcurrency(tt.cpus, tt.mem); got != tt.want {
			t.Errorf("SuggestConcurrency(%d, %v) = %d, want %d", tt.cpus, tt.mem, got, tt.want)
		}
	}
}

func TestReadSystemInfo(t *testing.T) {
	info := ReadSystemInfo()
	if info.LogicalCPUs < 1 || info.SuggestedMax < 1 {
		t.Errorf("implausible system info %+v", info)
	}
}
