package httpserver

import (
	"context"
	"errors"
	"net/http"

	"nexcart/internal/offline"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// EdgeWorker is the offline cache worker served by the edge router.
type EdgeWorker interface {
	http.Handler
	HandleMessage(ctx context.Context, msg offline.Message) error
	Status(ctx context.Context) (offline.Status, error)
	Refresh(ctx context.Context) offline.RefreshReport
}

// buildEdgeRouter serves the worker control routes and hands every other
// request to the worker. metrics may be nil.
func buildEdgeRouter(logger *logrus.Entry, worker EdgeWorker, metrics http.Handler) *gin.Engine {
	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.LoggerWithWriter(logger.Writer()), gin.Recovery())

	control := router.Group("/__offline")
	control.GET("/status", func(c *gin.Context) {
		st, err := worker.Status(c.Request.Context())
		if err != nil {
			logger.WithError(err).Warn("edge: status failed")
			abortError(c, http.StatusInternalServerError, "status unavailable")
			return
		}
		c.JSON(http.StatusOK, st)
	})
	control.POST("/message", func(c *gin.Context) {
		var msg offline.Message
		if err := c.ShouldBindJSON(&msg); err != nil || msg.Type == "" {
			abortError(c, http.StatusBadRequest, "message type is required")
			return
		}
		err := worker.HandleMessage(c.Request.Context(), msg)
		switch {
		case err == nil:
			c.Status(http.StatusNoContent)
		case errors.Is(err, offline.ErrUnknownMessage):
			abortError(c, http.StatusBadRequest, err.Error())
		case errors.Is(err, offline.ErrWrongState), errors.Is(err, offline.ErrClosed):
			abortError(c, http.StatusConflict, err.Error())
		default:
			logger.WithError(err).Warn("edge: message failed")
			abortError(c, http.StatusInternalServerError, "message failed")
		}
	})
	control.POST("/refresh", func(c *gin.Context) {
		c.JSON(http.StatusOK, worker.Refresh(c.Request.Context()))
	})
	control.GET("/healthz", healthHandler)
	if metrics != nil {
		control.GET("/metrics", gin.WrapH(metrics))
	}

	router.NoRoute(gin.WrapH(worker))
	router.NoMethod(gin.WrapH(worker))
	return router
}
