package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse reports liveness plus the state of the knowledge base and
// the database.
type HealthResponse struct {
	Status            string     `json:"status" example:"ok"`
	Database          string     `json:"database,omitempty" example:"ok"`
	KnowledgeEntries  int        `json:"knowledge_entries"`
	KnowledgeLoadedAt *time.Time `json:"knowledge_loaded_at,omitempty"`
}

// Health godoc
// @ID          health
// @Summary     Liveness and dependency status
// @Description Always 200 while the process serves traffic; status is "degraded" when the database ping fails.
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	resp := HealthResponse{Status: "ok"}
	if h.kb != nil {
		resp.KnowledgeEntries = h.kb.Count()
		if at := h.kb.Stats().LoadedAt; !at.IsZero() {
			resp.KnowledgeLoadedAt = &at
		}
	}
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		resp.Database = "ok"
		if err := h.ping(ctx); err != nil {
			resp.Database = "unavailable"
			resp.Status = "degraded"
		}
	}
	ok(c, http.StatusOK, resp)
}
