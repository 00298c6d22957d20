package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bizbot-backend/internal/services"
)

// GetMemory godoc
// @ID          getMemory
// @Summary     Read a user's conversation memory
// @Tags        Memory
// @Produce     json
//
// @Param       X-Tenant-ID  header  string  false  "Tenant id (omit for unscoped state)"
// @Param       user_id      path    string  true   "Channel user id"
//
// @Success     200  {object}  services.MemorySnapshot
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/v1/memory/{user_id} [get]
func (h *Handlers) GetMemory(c *gin.Context) {
	snap, err := h.mem.Get(c.Request.Context(), tenantID(c), c.Param("user_id"))
	if err != nil {
		memoryFail(c, err)
		return
	}
	ok(c, http.StatusOK, snap)
}

// ClearMemory godoc
// @ID          clearMemory
// @Summary     Forget a user's conversation memory
// @Description Clears memory, spam history and the unknown-intent streak.
// @Tags        Memory
//
// @Param       X-Tenant-ID  header  string  false  "Tenant id (omit for unscoped state)"
// @Param       user_id      path    string  true   "Channel user id"
//
// @Success     204  {string}  string  "No Content"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/v1/memory/{user_id} [delete]
func (h *Handlers) ClearMemory(c *gin.Context) {
	if err := h.mem.Clear(c.Request.Context(), tenantID(c), c.Param("user_id")); err != nil {
		memoryFail(c, err)
		return
	}
	noContent(c)
}

func memoryFail(c *gin.Context, err error) {
	if errors.Is(err, services.ErrUserIDRequired) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		return
	}
	fail(c, http.StatusInternalServerError, ErrCodeMemoryFailed, "memory store unavailable")
}
