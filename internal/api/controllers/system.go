package controllers

import (
	"net/http"
	"strconv"

	"github.com/datallboy/autodl/internal/app"
	"github.com/datallboy/autodl/internal/domain"
	"github.com/datallboy/autodl/internal/platform"
	"github.com/labstack/echo/v5"
)

type SystemController struct {
	App *app.Context
}

func (ctrl *SystemController) History(c *echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	if ctrl.App.History == nil {
		return c.JSON(http.StatusOK, HistoryResponse{Records: []*domain.HistoryRecord{}})
	}

	records, err := ctrl.App.History.ListRecords(c.Request().Context(), limit)
	if err != nil {
		ctrl.App.Logger.Error("Failed to list history: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to read history")
	}
	return c.JSON(http.StatusOK, HistoryResponse{Records: records})
}

// Logs returns the newest log lines, oldest first
func (ctrl *SystemController) Logs(c *echo.Context) error {
	n, _ := strconv.Atoi(c.QueryParam("n"))
	return c.JSON(http.StatusOK, LogsResponse{Lines: ctrl.App.Logger.Recent(n)})
}

// System reports host resources and the external binaries
func (ctrl *SystemController) System(c *echo.Context) error {
	return c.JSON(http.StatusOK, SystemResponse{
		System:   platform.ReadSystemInfo(),
		Binaries: ctrl.App.Checker.Status(c.Request().Context()),
	})
}
