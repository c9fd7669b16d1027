package httpserver

import (
	"net/http"

	"nexcart/internal/domain"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Messages []domain.AIMessage `json:"messages" binding:"required"`
	Context  string             `json:"context"`
}

type recommendRequest struct {
	Query string `json:"query" binding:"required"`
}

type negotiateRequest struct {
	ProductID  int64 `json:"productId" binding:"required"`
	OfferCents int64 `json:"offerCents" binding:"required"`
}

type decisionRequest struct {
	Action string `json:"action" binding:"required"`
}

var decisionActions = map[string]domain.NegotiationStatus{
	"accept":   domain.NegotiationAccepted,
	"reject":   domain.NegotiationRejected,
	"complete": domain.NegotiationCompleted,
}

// Model failures come back as 200 with an apology and an error field.
func (h *handlers) chat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "messages are required")
		return
	}
	c.JSON(http.StatusOK, h.deps.Assistant.Chat(c.Request.Context(), currentUserID(c), req.Messages, req.Context))
}

func (h *handlers) recommend(c *gin.Context) {
	var req recommendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "query is required")
		return
	}
	c.JSON(http.StatusOK, h.deps.Assistant.Recommend(c.Request.Context(), currentUserID(c), req.Query))
}

func (h *handlers) negotiate(c *gin.Context) {
	var req negotiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "productId and offerCents are required")
		return
	}
	c.JSON(http.StatusOK, h.deps.Assistant.Negotiate(c.Request.Context(), currentUserID(c), req.ProductID, req.OfferCents))
}

func (h *handlers) decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "action is required")
		return
	}
	next, ok := decisionActions[req.Action]
	if !ok {
		abortError(c, http.StatusBadRequest, "action must be accept, reject or complete")
		return
	}
	n, err := h.deps.Assistant.Decide(c.Request.Context(), currentUserID(c), c.Param("id"), next)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, n)
}

func (h *handlers) aiHistory(c *gin.Context) {
	hist, err := h.deps.Assistant.History(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, hist)
}
