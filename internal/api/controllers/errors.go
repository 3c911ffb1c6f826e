package controllers

import (
	"errors"
	"net/http"

	"github.com/datallboy/autodl/internal/domain"
	"github.com/labstack/echo/v5"
)

// httpError maps domain errors onto status codes
func httpError(err error) error {
	switch {
	case errors.Is(err, domain.ErrAlreadyRunning), errors.Is(err, domain.ErrNotRunning):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrProcessLaunch):
		return echo.NewHTTPError(http.StatusFailedDependency, err.Error())
	case errors.Is(err, domain.ErrActorUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}
