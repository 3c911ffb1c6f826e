package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"github.com/datallboy/autodl/internal/domain"
	"github.com/shirou/gopsutil/v3/process"
)

// DefaultWaitDelay bounds how long Wait lingers after the job context is
// cancelled, even if a grandchild still holds the output pipe open.
const DefaultWaitDelay = 2 * time.Second

// Process is one running download
type Process interface {
	// Output yields stdout and stderr interleaved. It reaches EOF once the
	// process has exited and its output is flushed.
	Output() io.Reader
	// Wait returns the exit code once Output has been read to EOF. A process
	// killed by cancellation returns the context error.
	Wait() (int, error)
}

// Launcher starts download processes. Cancelling ctx kills the process tree.
type Launcher interface {
	Start(ctx context.Context, args []string) (Process, error)
}

type ExecLauncher struct {
	Binary    string
	WaitDelay time.Duration
}

func NewExecLauncher(binary string) *ExecLauncher {
	if binary == "" {
		binary = "yt-dlp"
	}
	return &ExecLauncher{Binary: binary, WaitDelay: DefaultWaitDelay}
}

func (l *ExecLauncher) Start(ctx context.Context, args []string) (Process, error) {
	cmd := exec.CommandContext(ctx, l.Binary, args...)

	pr, pw := io.Pipe()
	// Same writer for both streams so exec shares one pipe between them
	cmd.Stdout = pw
	cmd.Stderr = pw

	cmd.Cancel = func() error {
		return KillTree(cmd.Process.Pid)
	}
	cmd.WaitDelay = l.WaitDelay

	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("%w: start %s: %w", domain.ErrProcessLaunch, l.Binary, err)
	}

	p := &execProcess{
		ctx:    ctx,
		output: pr,
		done:   make(chan struct{}),
	}

	go func() {
		p.err = cmd.Wait()
		if cmd.ProcessState != nil {
			p.code = cmd.ProcessState.ExitCode()
		}
		pw.Close()
		close(p.done)
	}()

	return p, nil
}

type execProcess struct {
	ctx    context.Context
	output *io.PipeReader
	done   chan struct{}

	code int
	err  error
}

func (p *execProcess) Output() io.Reader {
	return p.output
}

func (p *execProcess) Wait() (int, error) {
	<-p.done
	p.output.Close()

	if p.ctx.Err() != nil {
		return p.code, p.ctx.Err()
	}

	var exitErr *exec.ExitError
	if p.err != nil && !errors.As(p.err, &exitErr) {
		return p.code, p.err
	}
	return p.code, nil
}

// KillTree kills pid and every descendant, children first so nothing gets
// reparented and keeps writing to our pipe.
func KillTree(pid int) error {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		// Already gone
		return nil
	}
	return killTree(p)
}

func killTree(p *process.Process) error {
	if children, err := p.Children(); err == nil {
		for _, c := range children {
			_ = killTree(c)
		}
	}

	if err := p.Kill(); err != nil {
		if running, _ := p.IsRunning(); !running {
			return nil
		}
		return err
	}
	return nil
}
