package httpserver

import (
	"net/http"

	"nexcart/internal/domain"
	"nexcart/internal/service/checkout"

	"github.com/gin-gonic/gin"
)

type checkoutRequest struct {
	SessionID string `json:"sessionId"`
	checkout.Form
}

// checkout places an order from the caller's cart context and clears it.
func (h *handlers) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	sc, err := h.deps.Sessions.Get(req.SessionID)
	if err != nil || sc.Origin != c.GetString(originCtxKey) {
		abortError(c, http.StatusNotFound, "session not found")
		return
	}

	order, err := h.deps.CheckoutSvc.PlaceOrder(c.Request.Context(), currentUserID(c), sc, req.Form)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *handlers) listOrders(c *gin.Context) {
	orders, err := h.deps.CheckoutSvc.ListOrders(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	c.JSON(http.StatusOK, gin.H{"results": orders})
}

func (h *handlers) getOrder(c *gin.Context) {
	order, err := h.deps.CheckoutSvc.GetOrder(c.Request.Context(), currentUserID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
