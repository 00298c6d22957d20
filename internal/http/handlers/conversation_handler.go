package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
	"github.com/tbourn/go-bizbot-backend/internal/services"
	"github.com/tbourn/go-bizbot-backend/internal/utils"
)

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConversationsResponse wraps a page of conversation records.
type ListConversationsResponse struct {
	Conversations []domain.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

// clampPagination parses page and page_size, bounding them to 1.. and 1..100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	return utils.ClampPage(
		utils.AtoiDefault(c.Query("page"), defaultPage),
		utils.AtoiDefault(c.Query("page_size"), defaultPageSize),
		defaultPageSize, maxPageSize,
	)
}

// ListConversations godoc
// @ID          listConversations
// @Summary     List conversation history (paginated)
// @Description Returns the tenant's persisted exchanges, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Conversations
// @Produce     json
//
// @Param       X-Tenant-ID    header  string  true   "Tenant id"
// @Param       If-None-Match  header  string  false  "Return 304 if ETag matches"
// @Param       user_id        query   string  false  "Restrict to one user"
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       page_size      query   int     false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListConversationsResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     400  {object} handlers.ErrorResponse "Tenant missing"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/conversations [get]
func (h *Handlers) ListConversations(c *gin.Context) {
	ctx := c.Request.Context()
	tenant := tenantID(c)
	if tenant == "" {
		fail(c, http.StatusBadRequest, ErrCodeTenantRequired, "X-Tenant-ID header is required")
		return
	}
	userID := strings.TrimSpace(c.Query("user_id"))
	page, pageSize := clampPagination(c)

	// ETag pre-check is best effort; a stats failure just skips it.
	if count, maxTS, err := h.conv.Stats(ctx, tenant, userID); err == nil {
		var ts int64
		if maxTS != nil {
			ts = maxTS.UnixNano()
		}
		etag := fmt.Sprintf(`W/"conv:%s:%s:%d:%d:%d:%d"`, tenant, userID, count, ts, page, pageSize)
		c.Header("ETag", etag)
		if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.conv.ListPage(ctx, tenant, userID, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrTenantRequired) {
			fail(c, http.StatusBadRequest, ErrCodeTenantRequired, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, "could not list conversations")
		return
	}

	totalPages := utils.TotalPages(total, pageSize)
	ok(c, http.StatusOK, ListConversationsResponse{
		Conversations: items,
		Pagination: Pagination{
			Page:       page,
			PageSize:   pageSize,
			Total:      total,
			TotalPages: totalPages,
			HasNext:    page < totalPages,
		},
	})
}
