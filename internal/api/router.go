package api

import (
	"github.com/datallboy/autodl/internal/api/controllers"
	"github.com/datallboy/autodl/internal/app"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
)

func RegisterRoutes(e *echo.Echo, app *app.Context) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			// Snapshot polling would drown everything else
			if v.URI == "/api/snapshot" {
				app.Logger.Debug("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
				return nil
			}
			app.Logger.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	batchCtrl := &controllers.BatchController{App: app}
	queueCtrl := &controllers.QueueController{App: app}
	sysCtrl := &controllers.SystemController{App: app}

	// Batch lifecycle
	e.GET("/api/snapshot", batchCtrl.Snapshot)
	e.POST("/api/start", batchCtrl.Start)
	e.POST("/api/pause", batchCtrl.Pause)
	e.POST("/api/resume", batchCtrl.Resume)
	e.POST("/api/shutdown", batchCtrl.Shutdown)
	e.POST("/api/forcequit", batchCtrl.ForceQuit)
	e.POST("/api/requeue-failed", batchCtrl.RequeueFailed)
	e.POST("/api/touch", batchCtrl.Touch)

	// Links file
	e.GET("/api/queue", queueCtrl.List)
	e.POST("/api/queue", queueCtrl.Add)
	e.DELETE("/api/queue", queueCtrl.Remove)
	e.POST("/api/queue/reorder", queueCtrl.Reorder)
	e.POST("/api/queue/sanitize", queueCtrl.Sanitize)

	e.GET("/api/history", sysCtrl.History)
	e.GET("/api/logs", sysCtrl.Logs)
	e.GET("/api/system", sysCtrl.System)
}
