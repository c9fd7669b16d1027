package httpserver

import (
	"net/http"
	"strconv"

	"nexcart/internal/domain"
	productrepo "nexcart/internal/repository/product"

	"github.com/gin-gonic/gin"
)

type productListResponse struct {
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	Count   int              `json:"count"`
	Results []domain.Product `json:"results"`
}

type categoryProductsResponse struct {
	Category *domain.Category `json:"category"`
	Products []domain.Product `json:"products"`
}

func (h *handlers) listProducts(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 50)
	if !ok {
		return
	}
	offset, ok := intQuery(c, "offset", 0)
	if !ok {
		return
	}
	products, err := h.deps.ProductSvc.List(c.Request.Context(), productrepo.ListFilter{
		Category: c.Query("category"),
		Search:   c.Query("q"),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, productListResponse{Limit: limit, Offset: offset, Count: len(products), Results: products})
}

func (h *handlers) getProduct(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		abortError(c, http.StatusBadRequest, "invalid product id")
		return
	}
	p, err := h.deps.ProductSvc.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *handlers) listCategories(c *gin.Context) {
	cats, err := h.deps.CategorySvc.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	if cats == nil {
		cats = []domain.Category{}
	}
	c.JSON(http.StatusOK, gin.H{"results": cats})
}

func (h *handlers) listCategoryProducts(c *gin.Context) {
	limit, ok := intQuery(c, "limit", 50)
	if !ok {
		return
	}
	cat, products, err := h.deps.ProductSvc.ListByCategory(c.Request.Context(), c.Param("slug"), limit)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.Product{}
	}
	c.JSON(http.StatusOK, categoryProductsResponse{Category: cat, Products: products})
}

func intQuery(c *gin.Context, name string, def int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		abortError(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return v, true
}
