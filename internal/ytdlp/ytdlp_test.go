package ytdlp

import (
	"context"
	"errors"
	"io"
	"os/exec"
	"path/filepath"
	"reflect"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/infra/config"
	"github.com/datallboy/autodl/internal/progress"
)

func baseSettings() config.DownloadConfig {
	return config.DownloadConfig{
		OutDir:         "dl",
		ArchiveFile:    "archive.txt",
		OutputTemplate: "%(title)s.%(ext)s",
		FormatPreset:   "best",
		OutputFormat:   "auto",
	}
}

func TestBuildArgsMinimal(t *testing.T) {
	got := BuildArgs(baseSettings(), "https://example.com/v")

	want := []string{
		"--download-archive", "archive.txt",
		"--format", "bestvideo*+bestaudio/best",
		"--output", filepath.Join("dl", "%(title)s.%(ext)s"),
		"--newline",
		"--progress-template", progress.Template,
		"--", "https://example.com/v",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("unexpected args\n got: %q\nwant: %q", got, want)
	}
}

func TestBuildArgsOptions(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.DownloadConfig)
		want   []string
	}{
		{
			name:   "audio mp3",
			mutate: func(d *config.DownloadConfig) { d.FormatPreset = "audio"; d.OutputFormat = "mp3" },
			want:   []string{"--extract-audio", "--audio-format", "mp3"},
		},
		{
			name:   "720p mkv",
			mutate: func(d *config.DownloadConfig) { d.FormatPreset = "720p"; d.OutputFormat = "mkv" },
			want:   []string{"--merge-output-format", "mkv"},
		},
		{
			name:   "720p format",
			mutate: func(d *config.DownloadConfig) { d.FormatPreset = "720p" },
			want:   []string{"--format", "bestvideo[height<=720]+bestaudio/best[height<=720]"},
		},
		{
			name:   "subtitles",
			mutate: func(d *config.DownloadConfig) { d.WriteSubtitles = true },
			want:   []string{"--write-auto-subs", "--sub-langs", "all"},
		},
		{
			name:   "thumbnail and metadata",
			mutate: func(d *config.DownloadConfig) { d.WriteThumbnail = true; d.AddMetadata = true },
			want:   []string{"--write-thumbnail", "--add-metadata"},
		},
		{
			name:   "rate limit",
			mutate: func(d *config.DownloadConfig) { d.RateLimit = "2M" },
			want:   []string{"--limit-rate", "2M"},
		},
		{
			name:   "cookies",
			mutate: func(d *config.DownloadConfig) { d.CookiesFromBrowser = "firefox" },
			want:   []string{"--cookies-from-browser", "firefox"},
		},
		{
			name:   "custom args",
			mutate: func(d *config.DownloadConfig) { d.CustomArgs = "--no-playlist --user-agent 'My Bot'" },
			want:   []string{"--no-playlist", "--user-agent", "My Bot"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := baseSettings()
			tt.mutate(&d)

			got := BuildArgs(d, "https://example.com/v")
			if !containsRun(got, tt.want) {
				t.Errorf("expected %q in %q", tt.want, got)
			}
			if got[len(got)-1] != "https://example.com/v" || got[len(got)-2] != "--" {
				t.Errorf("url must be last after --, got %q", got)
			}
		})
	}
}

func TestBuildArgsOmitsUnsetOptions(t *testing.T) {
	got := BuildArgs(baseSettings(), "https://example.com/v")
	for _, flag := range []string{"--write-auto-subs", "--write-thumbnail", "--add-metadata", "--limit-rate", "--cookies-from-browser", "--merge-output-format"} {
		if slices.Contains(got, flag) {
			t.Errorf("did not expect %s in %q", flag, got)
		}
	}
}

func TestBuildArgsIsPure(t *testing.T) {
	d := baseSettings()
	d.CustomArgs = "--retries 5"
	a := BuildArgs(d, "https://x")
	b := BuildArgs(d, "https://x")
	if !reflect.DeepEqual(a, b) {
		t.Error("same settings must yield the same args")
	}
}

func containsRun(haystack, needle []string) bool {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if slices.Equal(haystack[i:i+len(needle)], needle) {
			return true
		}
	}
	return false
}

func requireShell(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestExecLauncherMergesOutput(t *testing.T) {
	requireShell(t)

	l := NewExecLauncher("sh")
	p, err := l.Start(context.Background(), []string{"-c", "echo out; echo err 1>&2; exit 3"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	out, err := io.ReadAll(p.Output())
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	code, err := p.Wait()
	if err != nil {
		t.Fatalf("wait failed: %v", err)
	}

	if code != 3 {
		t.Errorf("expected exit code 3, got %d", code)
	}
	if !strings.Contains(string(out), "out") || !strings.Contains(string(out), "err") {
		t.Errorf("expected both streams, got %q", out)
	}
}

func TestExecLauncherSuccess(t *testing.T) {
	requireShell(t)

	p, err := NewExecLauncher("sh").Start(context.Background(), []string{"-c", "true"})
	if err != nil {
		t.Fatal(err)
	}
	io.Copy(io.Discard, p.Output())
	if code, err := p.Wait(); code != 0 || err != nil {
		t.Errorf("expected clean exit, got %d %v", code, err)
	}
}

func TestExecLauncherCancelKillsTree(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	// The shell forks a child so the kill has to reach a grandchild
	p, err := NewExecLauncher("sh").Start(ctx, []string{"-c", "sleep 30 & echo started; wait"})
	if err != nil {
		t.Fatal(err)
	}

	buf := make([]byte, 64)
	if _, err := p.Output().Read(buf); err != nil {
		t.Fatalf("expected startup output, got %v", err)
	}

	start := time.Now()
	cancel()

	io.Copy(io.Discard, p.Output())
	_, err = p.Wait()

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > DefaultWaitDelay+2*time.Second {
		t.Errorf("kill took too long: %s", elapsed)
	}
}

func TestExecLauncherMissingBinary(t *testing.T) {
	_, err := NewExecLauncher("definitely-not-a-real-binary-autodl").Start(context.Background(), nil)
	if !errors.Is(err, domain.ErrProcessLaunch) {
		t.Errorf("expected ErrProcessLaunch, got %v", err)
	}
}

func TestKillTreeMissingProcess(t *testing.T) {
	// PIDs this large are not handed out on a default Linux config
	if err := KillTree(1 << 30); err != nil {
		t.Errorf("expected nil for a process that does not exist, got %v", err)
	}
}
