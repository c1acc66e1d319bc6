package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/mapper"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	storefrontSvc storefront.Service
	mapperSvc     mapper.Service
	logger        *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(storefrontSvc storefront.Service, mapperSvc mapper.Service, logger *slog.Logger) *Handler {
	return &Handler{
		storefrontSvc: storefrontSvc,
		mapperSvc:     mapperSvc,
		logger:        logger.With("component", "http.handler"),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListSections returns every section of the FAQ template.
func (h *Handler) ListSections(c *gin.Context) {
	sections, err := h.storefrontSvc.ListSections(c.Request.Context())
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sections": sections})
}

// ListQuestions returns the questions of one section, or the configured one.
func (h *Handler) ListQuestions(c *gin.Context) {
	entries, err := h.storefrontSvc.ListQuestions(c.Request.Context(), c.Query("section"))
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"questions": entries})
}

// AddQuestion appends a question block.
func (h *Handler) AddQuestion(c *gin.Context) {
	var req storefront.QuestionInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
		return
	}

	entry, err := h.storefrontSvc.AddQuestion(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	h.logger.Info("question added", "handle", entry.Handle, "section", entry.SectionID, "subject", getSubject(c))
	c.JSON(http.StatusCreated, entry)
}

// RemoveQuestion deletes the block carrying the handle.
func (h *Handler) RemoveQuestion(c *gin.Context) {
	handle := c.Param("handle")
	if err := h.storefrontSvc.RemoveQuestion(c.Request.Context(), handle, c.Query("section")); err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	h.logger.Info("question removed", "handle", handle, "subject", getSubject(c))
	c.Status(http.StatusNoContent)
}

// Sync runs a live knowledge base to storefront sync.
func (h *Handler) Sync(c *gin.Context) {
	var req mapper.SyncRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", errMessage(err), err))
			return
		}
	}

	report, err := h.mapperSvc.Sync(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, fromAppError(err))
		return
	}
	c.JSON(http.StatusOK, report)
}
