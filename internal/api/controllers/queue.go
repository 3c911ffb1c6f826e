package controllers

import (
	"net/http"
	"strings"

	"github.com/datallboy/autodl/internal/app"
	"github.com/datallboy/autodl/internal/queue"
	"github.com/datallboy/autodl/internal/state"
	"github.com/labstack/echo/v5"
)

type QueueController struct {
	App *app.Context
}

func (ctrl *QueueController) List(c *echo.Context) error {
	urls, err := ctrl.App.Queue.Load()
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, QueueResponse{
		File:    urls,
		Pending: ctrl.App.State.Queue(),
	})
}

// Add appends valid URLs to the links file and, while a batch runs, to
// the pending queue so idle workers pick them up.
func (ctrl *QueueController) Add(c *echo.Context) error {
	var req QueueAddRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	resp := QueueAddResponse{Added: make([]string, 0, len(req.URLs))}
	for _, u := range req.URLs {
		u = strings.TrimSpace(u)
		if queue.ValidURL(u) {
			resp.Added = append(resp.Added, u)
		} else if u != "" {
			resp.Rejected = append(resp.Rejected, u)
		}
	}

	if len(resp.Added) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "no valid http(s) URLs given")
	}

	if err := ctrl.App.Queue.Append(resp.Added...); err != nil {
		return httpError(err)
	}

	if ctrl.App.Controller.Running() {
		ctrl.App.State.Send(state.AddToQueue{URLs: resp.Added})
		ctrl.App.State.Flush()
	}

	return c.JSON(http.StatusCreated, resp)
}

// Remove drops the first occurrence of a URL from the file and the pending queue
func (ctrl *QueueController) Remove(c *echo.Context) error {
	url := c.QueryParam("url")
	if url == "" {
		var req QueueRemoveRequest
		if err := c.Bind(&req); err == nil {
			url = req.URL
		}
	}
	if url == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "url is required")
	}

	if err := ctrl.App.Queue.RemoveValue(url); err != nil {
		return httpError(err)
	}
	ctrl.App.State.Send(state.RemoveQueueItem{URL: url})
	ctrl.App.State.Flush()

	return c.NoContent(http.StatusNoContent)
}

// Reorder moves a pending item within the running batch
func (ctrl *QueueController) Reorder(c *echo.Context) error {
	var req QueueReorderRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	// Earlier edits may still be in the mailbox
	ctrl.App.State.Flush()
	n := len(ctrl.App.State.Queue())
	if req.From < 0 || req.From >= n || req.To < 0 || req.To >= n {
		return echo.NewHTTPError(http.StatusBadRequest, "index out of range")
	}

	ctrl.App.State.Send(state.ReorderQueueItem{From: req.From, To: req.To})
	ctrl.App.State.Flush()

	return c.JSON(http.StatusOK, QueueResponse{Pending: ctrl.App.State.Queue()})
}

// Sanitize drops every line of the links file that is not an http(s) URL
func (ctrl *QueueController) Sanitize(c *echo.Context) error {
	res, err := ctrl.App.Queue.Sanitize()
	if err != nil {
		return httpError(err)
	}

	ctrl.App.Logger.Info("Sanitized %s: kept %d, dropped %d", ctrl.App.Queue.Path(), len(res.Kept), len(res.Dropped))

	return c.JSON(http.StatusOK, SanitizeResponse{Kept: len(res.Kept), Dropped: res.Dropped})
}
