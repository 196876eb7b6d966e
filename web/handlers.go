package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gocrud/injectgen/database"
	"github.com/gocrud/injectgen/manifest"
	"github.com/gocrud/injectgen/planning"
	"github.com/gocrud/injectgen/render"
)

func (h *Host) routes(r gin.IRouter) {
	r.GET("/healthz", h.health)
	v1 := r.Group("/v1/plans")
	v1.POST("", h.plan)
	v1.GET("/:container/latest", h.latest)
	v1.GET("/:container/history", h.history)
}

func (h *Host) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// plan plans the YAML manifest in the request body. Identical concurrent
// requests share one planning run.
func (h *Host) plan(c *gin.Context) {
	raw, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, h.opts.MaxManifestBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	container := c.Query("container")
	name := c.DefaultQuery("name", "request.yaml")

	key := planning.CacheKey(manifest.Digest(raw), container)
	// Other requests may wait on this run, so it must outlive this caller.
	ctx := context.WithoutCancel(c.Request.Context())
	v, err, shared := h.flight.Do(key, func() (any, error) {
		return h.planner.Plan(ctx, raw, name, container)
	})
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	if shared {
		c.Header("X-Shared-Plan", "true")
	}
	c.JSON(http.StatusOK, v.(*planning.Result))
}

type recordView struct {
	Container string         `json:"container"`
	Manifest  string         `json:"manifest"`
	Digest    string         `json:"digest"`
	CreatedAt string         `json:"createdAt"`
	Summary   render.Summary `json:"summary"`
}

func view(r *database.Record) (recordView, error) {
	s, err := r.Decode()
	return recordView{
		Container: r.Container,
		Manifest:  r.Manifest,
		Digest:    r.Digest,
		CreatedAt: r.CreatedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Summary:   s,
	}, err
}

func (h *Host) latest(c *gin.Context) {
	r, err := h.planner.Latest(c.Request.Context(), c.Param("container"))
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	v, err := view(r)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h *Host) history(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	rs, err := h.planner.History(c.Request.Context(), c.Param("container"), limit)
	if err != nil {
		c.JSON(statusOf(err), gin.H{"error": err.Error()})
		return
	}
	out := make([]recordView, 0, len(rs))
	for _, r := range rs {
		v, err := view(r)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		out = append(out, v)
	}
	c.JSON(http.StatusOK, out)
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, manifest.ErrInvalidManifest), errors.Is(err, manifest.ErrUnsupportedVersion):
		return http.StatusBadRequest
	case errors.Is(err, planning.ErrUnknownContainer), errors.Is(err, database.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, planning.ErrNoStore):
		return http.StatusNotImplemented
	}
	return http.StatusInternalServerError
}
