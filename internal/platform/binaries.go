package platform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/datallboy/autodl/internal/domain"
)

// Binary is an external tool the downloader shells out to
type Binary struct {
	Name        string
	VersionFlag string
	Hint        string
}

// RequiredBinaries lists external system binaries the app needs to function
var RequiredBinaries = []Binary{
	{Name: "yt-dlp", VersionFlag: "--version", Hint: "https://github.com/yt-dlp/yt-dlp#installation"},
	{Name: "ffmpeg", VersionFlag: "-version", Hint: "https://ffmpeg.org/download.html"},
}

type BinaryStatus struct {
	Name    string `json:"name"`
	Path    string `json:"path,omitempty"`
	Version string `json:"version,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Checker runs dependency probes. Lookup and Run are swappable for tests.
type Checker struct {
	Binaries []Binary
	Lookup   func(name string) (string, error)
	Run      func(ctx context.Context, path, flag string) (string, error)
	Timeout  time.Duration
}

func NewChecker(ytdlpBinary string) *Checker {
	bins := make([]Binary, len(RequiredBinaries))
	copy(bins, RequiredBinaries)
	if ytdlpBinary != "" {
		bins[0].Name = ytdlpBinary
	}

	return &Checker{
		Binaries: bins,
		Lookup:   exec.LookPath,
		Run:      runVersion,
		Timeout:  10 * time.Second,
	}
}

// Status probes every binary and reports what it found
func (c *Checker) Status(ctx context.Context) []BinaryStatus {
	out := make([]BinaryStatus, 0, len(c.Binaries))

	for _, b := range c.Binaries {
		st := BinaryStatus{Name: b.Name}

		path, err := c.Lookup(b.Name)
		if err != nil {
			st.Error = fmt.Sprintf("%s is not installed or not in PATH (see %s)", b.Name, b.Hint)
			out = append(out, st)
			continue
		}
		st.Path = path

		runCtx, cancel := context.WithTimeout(ctx, c.Timeout)
		version, err := c.Run(runCtx, path, b.VersionFlag)
		cancel()
		if err != nil {
			st.Error = fmt.Sprintf("%s is not accessible: %v", b.Name, err)
		} else {
			st.Version = version
		}

		out = append(out, st)
	}

	return out
}

// Validate fails with ErrProcessLaunch listing every missing binary
func (c *Checker) Validate(ctx context.Context) error {
	var problems []string
	for _, st := range c.Status(ctx) {
		if st.Error != "" {
			problems = append(problems, st.Error)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrProcessLaunch, strings.Join(problems, "; "))
}

func runVersion(ctx context.Context, path, flag string) (string, error) {
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, path, flag)
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("exit code %d", exitErr.ExitCode())
		}
		return "", err
	}

	// Only the first line; ffmpeg prints its whole build config
	line, _, _ := strings.Cut(strings.TrimSpace(stdout.String()), "\n")
	return strings.TrimSpace(line), nil
}
