package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-bizbot-backend/internal/services"
)

// RegisterTelegram godoc
// @ID          registerTelegram
// @Summary     Register a Telegram bot for a tenant
// @Description Stores (or rotates) the tenant's bot credential and, when a public base URL is configured, registers the tenant-scoped webhook with Telegram.
// @Tags        Integrations
// @Accept      json
// @Produce     json
//
// @Param       body  body  services.RegisterCredentialInput  true  "Credential"
//
// @Success     201  {object}  services.Registration
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid credential"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/v1/integrations/telegram [post]
func (h *Handlers) RegisterTelegram(c *gin.Context) {
	var in services.RegisterCredentialInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	reg, err := h.creds.Register(c.Request.Context(), in)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredential) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidCredential, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeRegisterFailed, "could not store credential")
		return
	}
	ok(c, http.StatusCreated, reg)
}

// TelegramStatus godoc
// @ID          telegramStatus
// @Summary     Report a tenant's Telegram credentials
// @Tags        Integrations
// @Produce     json
//
// @Param       tenant  path  string  true  "Tenant id"
//
// @Success     200  {object}  services.CredentialStatus
// @Failure     404  {object}  handlers.ErrorResponse  "Tenant not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/v1/integrations/telegram/{tenant}/status [get]
func (h *Handlers) TelegramStatus(c *gin.Context) {
	st, err := h.creds.Status(c.Request.Context(), c.Param("tenant"))
	switch {
	case errors.Is(err, services.ErrTenantRequired):
		fail(c, http.StatusBadRequest, ErrCodeTenantRequired, err.Error())
	case errors.Is(err, services.ErrTenantNotFound):
		fail(c, http.StatusNotFound, ErrCodeTenantNotFound, err.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeStatusFailed, "could not read credentials")
	default:
		ok(c, http.StatusOK, st)
	}
}

// DeactivateTelegram godoc
// @ID          deactivateTelegram
// @Summary     Deactivate a tenant's Telegram credential
// @Description The credential stops receiving replies and no longer resolves webhooks. Registering it again reactivates it.
// @Tags        Integrations
//
// @Param       tenant  path  string  true  "Tenant id"
// @Param       name    path  string  true  "Credential name"
//
// @Success     204
// @Failure     404  {object}  handlers.ErrorResponse  "Credential not found"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/v1/integrations/telegram/{tenant}/{name} [delete]
func (h *Handlers) DeactivateTelegram(c *gin.Context) {
	err := h.creds.Deactivate(c.Request.Context(), c.Param("tenant"), c.Param("name"))
	switch {
	case errors.Is(err, services.ErrTenantRequired):
		fail(c, http.StatusBadRequest, ErrCodeTenantRequired, err.Error())
	case errors.Is(err, services.ErrCredentialNotFound):
		fail(c, http.StatusNotFound, ErrCodeCredentialNotFound, err.Error())
	case err != nil:
		fail(c, http.StatusInternalServerError, ErrCodeDeactivateFailed, "could not deactivate credential")
	default:
		noContent(c)
	}
}
