package controllers

import (
	"net/http"

	"github.com/datallboy/autodl/internal/app"
	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/state"
	"github.com/labstack/echo/v5"
)

type BatchController struct {
	App *app.Context
}

// Snapshot returns the current immutable view of all download state
func (ctrl *BatchController) Snapshot(c *echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.App.State.Snapshot())
}

func (ctrl *BatchController) Start(c *echo.Context) error {
	var req StartRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&req); err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
		}
	}

	if err := ctrl.App.Controller.StartProcessing(c.Request().Context(), req.Concurrency); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, ctrl.App.State.Snapshot())
}

func (ctrl *BatchController) Pause(c *echo.Context) error {
	if err := ctrl.App.Controller.Pause(); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "paused"})
}

func (ctrl *BatchController) Resume(c *echo.Context) error {
	if err := ctrl.App.Controller.Resume(); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, StatusResponse{Status: "resumed"})
}

// Shutdown asks in-flight jobs to finish. It does not wait for them; poll
// the snapshot until flags.started is false.
func (ctrl *BatchController) Shutdown(c *echo.Context) error {
	if !ctrl.App.Controller.Running() {
		return httpError(domain.ErrNotRunning)
	}

	go func() {
		if err := ctrl.App.Controller.RequestGracefulShutdown(); err != nil {
			ctrl.App.Logger.Warn("Shutdown request: %v", err)
		}
	}()
	return c.JSON(http.StatusAccepted, StatusResponse{Status: "shutting down"})
}

func (ctrl *BatchController) ForceQuit(c *echo.Context) error {
	if err := ctrl.App.Controller.RequestForceQuit(); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, StatusResponse{Status: "force quitting"})
}

// RequeueFailed puts the failed URLs of the last batch back in the queue
func (ctrl *BatchController) RequeueFailed(c *echo.Context) error {
	if err := ctrl.App.State.Send(state.RequeueFailed{}); err != nil {
		return httpError(err)
	}
	ctrl.App.State.Flush()
	return c.JSON(http.StatusOK, ctrl.App.State.Snapshot())
}

// Touch refreshes active slots so stale indicators clear
func (ctrl *BatchController) Touch(c *echo.Context) error {
	if err := ctrl.App.State.Send(state.TouchSlots{}); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
