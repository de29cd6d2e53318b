package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"wayback-news/internal/app"
	"wayback-news/internal/keyword"
	"wayback-news/internal/normalize"
	"wayback-news/internal/observability"
	"wayback-news/internal/sources"
)

// Pipeline runs a search; *app.Orchestrator satisfies it.
type Pipeline interface {
	Run(ctx context.Context, req app.Request) (*app.Result, error)
}

type Handler struct {
	pipeline       Pipeline
	registry       *sources.Registry
	requestTimeout time.Duration
	logger         *observability.Logger
}

func NewHandler(pipeline Pipeline, registry *sources.Registry, requestTimeout time.Duration, logger *observability.Logger) *Handler {
	return &Handler{
		pipeline:       pipeline,
		registry:       registry,
		requestTimeout: requestTimeout,
		logger:         logger,
	}
}

// SourceArticles serves GET /:source/:timestamp/?keywords=a,b&include=all|one.
func (h *Handler) SourceArticles(c *gin.Context) {
	h.run(c, app.Request{
		Timestamp: c.Param("timestamp"),
		Keywords:  normalize.Keywords(c.Query("keywords")),
		Include:   c.DefaultQuery("include", string(keyword.ModeAll)),
		Sources:   []string{c.Param("source")},
	})
}

// Articles serves GET /articles?timestamp=&keywords=&include=&sources=a,b.
func (h *Handler) Articles(c *gin.Context) {
	timestamp := c.Query("timestamp")
	if strings.TrimSpace(timestamp) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "timestamp is required"})
		return
	}

	h.run(c, app.Request{
		Timestamp: timestamp,
		Keywords:  normalize.Keywords(c.Query("keywords")),
		Include:   c.DefaultQuery("include", string(keyword.ModeAll)),
		Sources:   splitList(c.Query("sources")),
	})
}

// Sources lists the registry.
func (h *Handler) Sources(c *gin.Context) {
	c.JSON(http.StatusOK, h.registry.Definitions())
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) run(c *gin.Context, req app.Request) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.requestTimeout)
	defer cancel()

	res, err := h.pipeline.Run(ctx, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, res)
}

func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, keyword.ErrInvalidConfiguration):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sources.ErrUnknownSource):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "request timed out"})
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		c.Abort()
	default:
		h.logger.Error("Pipeline failed", "error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
