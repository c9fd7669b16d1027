package httpserver

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"nexcart/internal/domain"
	"nexcart/internal/session"

	"github.com/gin-gonic/gin"
)

const keepAliveInterval = 15 * time.Second

type cartResponse struct {
	ContextID     string             `json:"contextId"`
	Items         []domain.CartEntry `json:"items"`
	ItemCount     int                `json:"itemCount"`
	SubtotalCents int64              `json:"subtotalCents"`
}

type openSessionResponse struct {
	ID         string       `json:"id"`
	Origin     string       `json:"origin"`
	GuestToken string       `json:"guestToken,omitempty"`
	Cart       cartResponse `json:"cart"`
}

type addItemRequest struct {
	ProductID int64 `json:"productId" binding:"required"`
	Quantity  *int  `json:"quantity"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

func toCartResponse(sc *session.Context) cartResponse {
	snap := sc.Snapshot()
	items := snap.Items
	if items == nil {
		items = []domain.CartEntry{}
	}
	return cartResponse{
		ContextID:     sc.ID,
		Items:         items,
		ItemCount:     snap.ItemCount(),
		SubtotalCents: snap.SubtotalCents(),
	}
}

func sessionFrom(c *gin.Context) *session.Context {
	return c.MustGet(sessionCtxKey).(*session.Context)
}

// openSession opens a cart context for the caller. Anonymous callers get a
// fresh guest identity.
func (h *handlers) openSession(c *gin.Context) {
	ctx := c.Request.Context()
	origin := c.GetString(originCtxKey)
	resp := openSessionResponse{}
	if origin == "" {
		visitor, err := h.deps.GuestSvc.Issue(ctx)
		if err != nil {
			h.writeError(c, err)
			return
		}
		origin = visitor.Origin
		resp.GuestToken = visitor.Token
		c.Header(guestTokenHeader, visitor.Token)
	}

	sc, err := h.deps.Sessions.Open(ctx, origin)
	if err != nil {
		h.writeError(c, err)
		return
	}

	timer := time.NewTimer(h.deps.LoadWait)
	defer timer.Stop()
	select {
	case <-sc.Loaded():
	case <-timer.C:
	case <-ctx.Done():
	}

	resp.ID = sc.ID
	resp.Origin = origin
	resp.Cart = toCartResponse(sc)
	c.JSON(http.StatusCreated, resp)
}

func (h *handlers) closeSession(c *gin.Context) {
	if err := h.deps.Sessions.Close(c.Request.Context(), sessionFrom(c).ID); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handlers) getCart(c *gin.Context) {
	c.JSON(http.StatusOK, toCartResponse(sessionFrom(c)))
}

func (h *handlers) clearCart(c *gin.Context) {
	sc := sessionFrom(c)
	sc.Clear()
	c.JSON(http.StatusOK, toCartResponse(sc))
}

func (h *handlers) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "productId is required")
		return
	}
	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}
	if quantity < 1 {
		abortError(c, http.StatusBadRequest, "quantity must be at least 1")
		return
	}

	product, err := h.deps.ProductSvc.Get(c.Request.Context(), req.ProductID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	sc := sessionFrom(c)
	if product.Stock <= 0 {
		abortError(c, http.StatusConflict, "product is out of stock")
		return
	}
	if sc.AtStockLimit(product.ID) {
		abortError(c, http.StatusConflict, "stock limit reached")
		return
	}

	sc.AddItem(product.Snapshot(), quantity)
	c.JSON(http.StatusOK, toCartResponse(sc))
}

func (h *handlers) updateItem(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}
	var req updateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "quantity is required")
		return
	}
	sc := sessionFrom(c)
	sc.UpdateQuantity(productID, *req.Quantity)
	c.JSON(http.StatusOK, toCartResponse(sc))
}

func (h *handlers) removeItem(c *gin.Context) {
	productID, ok := productIDParam(c)
	if !ok {
		return
	}
	sc := sessionFrom(c)
	sc.RemoveItem(productID)
	c.JSON(http.StatusOK, toCartResponse(sc))
}

// streamEvents relays the context's events as server-sent events, starting
// with the current cart.
func (h *handlers) streamEvents(c *gin.Context) {
	sc := sessionFrom(c)
	events, cancel := sc.Subscribe(32)
	defer cancel()

	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")
	c.SSEvent("cart", toCartResponse(sc))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent(ev.Type, ev)
			return true
		case <-ticker.C:
			c.SSEvent("ping", gin.H{"at": time.Now().UTC()})
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func productIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || id <= 0 {
		abortError(c, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}
