package app

import (
	"context"

	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/infra/config"
	"github.com/datallboy/autodl/internal/infra/logger"
	"github.com/datallboy/autodl/internal/platform"
	"github.com/datallboy/autodl/internal/queue"
	"github.com/datallboy/autodl/internal/state"
	"github.com/datallboy/autodl/internal/ytdlp"
)

// DependencyChecker verifies the external binaries before a batch starts
type DependencyChecker interface {
	Validate(ctx context.Context) error
	Status(ctx context.Context) []platform.BinaryStatus
}

// Controller drives batches. This allows the API and CLI to control
// processing without importing the engine package.
type Controller interface {
	StartProcessing(ctx context.Context, concurrency int) error
	RequestGracefulShutdown() error
	RequestForceQuit() error
	Pause() error
	Resume() error
	Wait(ctx context.Context) error
	Running() bool
}

// Context holds the core environment and shared resources for autodl.
// The state actor is the single source of truth for download state.
type Context struct {
	Config *config.Config
	Logger *logger.Logger

	State    *state.Actor
	Queue    *queue.Guarded
	History  domain.HistoryStore
	Launcher ytdlp.Launcher
	Checker  DependencyChecker

	Controller Controller
}

// NewContext initializes the base environment: the state actor, the
// lock-guarded links file, the yt-dlp launcher and the dependency checker.
// History and Controller are wired by the caller.
func NewContext(cfg *config.Config, log *logger.Logger) *Context {
	st := state.New()

	return &Context{
		Config:   cfg,
		Logger:   log,
		State:    st,
		Queue:    queue.NewGuarded(queue.NewStore(cfg.Download.LinksFile), st),
		Launcher: ytdlp.NewExecLauncher(cfg.Download.Binary),
		Checker:  platform.NewChecker(cfg.Download.Binary),
	}
}

// Close releases the history store and stops the state actor
func (c *Context) Close() error {
	var err error
	if c.History != nil {
		err = c.History.Close()
	}
	c.State.Close()
	return err
}
