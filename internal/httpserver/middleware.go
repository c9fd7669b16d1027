package httpserver

import (
	"errors"
	"net/http"
	"strings"

	"nexcart/internal/domain"
	"nexcart/internal/service/account"
	"nexcart/internal/service/checkout"
	"nexcart/internal/service/guest"

	"github.com/gin-gonic/gin"
)

const guestTokenHeader = "X-Guest-Token"

const (
	userCtxKey    = "nexcart.user"
	originCtxKey  = "nexcart.origin"
	sessionCtxKey = "nexcart.session"
)

// identify resolves the caller from a bearer access token or a guest token.
// Requests carrying neither stay anonymous; invalid tokens are rejected.
func identify(accounts AccountService, guests GuestService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := bearerToken(c.GetHeader("Authorization")); token != "" {
			u, err := accounts.LookupByToken(c.Request.Context(), token)
			if err != nil {
				if errors.Is(err, account.ErrInvalidToken) {
					abortError(c, http.StatusUnauthorized, "invalid token")
					return
				}
				abortError(c, http.StatusInternalServerError, "token lookup failed")
				return
			}
			c.Set(userCtxKey, u)
			c.Set(originCtxKey, userOrigin(u.ID))
			c.Next()
			return
		}

		if token := strings.TrimSpace(c.GetHeader(guestTokenHeader)); token != "" {
			origin, err := guests.Resolve(c.Request.Context(), token)
			if err != nil {
				if errors.Is(err, guest.ErrInvalidToken) {
					abortError(c, http.StatusUnauthorized, "invalid guest token")
					return
				}
				abortError(c, http.StatusInternalServerError, "guest lookup failed")
				return
			}
			c.Set(originCtxKey, origin)
		}
		c.Next()
	}
}

func requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == nil {
			abortError(c, http.StatusUnauthorized, "authentication required")
			return
		}
		c.Next()
	}
}

// sessionAccess loads the cart context named by :id. Contexts of another
// origin are reported as missing.
func (h *handlers) sessionAccess(c *gin.Context) {
	sc, err := h.deps.Sessions.Get(c.Param("id"))
	if err != nil || sc.Origin != c.GetString(originCtxKey) {
		abortError(c, http.StatusNotFound, "session not found")
		return
	}
	c.Set(sessionCtxKey, sc)
	c.Next()
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func userOrigin(userID string) string {
	return "user-" + userID
}

func currentUser(c *gin.Context) *domain.User {
	v, ok := c.Get(userCtxKey)
	if !ok {
		return nil
	}
	u, _ := v.(*domain.User)
	return u
}

func currentUserID(c *gin.Context) string {
	if u := currentUser(c); u != nil {
		return u.ID
	}
	return ""
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"error": msg})
}

// writeError maps service errors onto HTTP statuses.
func (h *handlers) writeError(c *gin.Context, err error) {
	var formErr *checkout.FormError
	switch {
	case errors.As(err, &formErr):
		c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{"error": formErr.Error(), "fields": formErr.Fields})
	case errors.Is(err, domain.ErrNotFound):
		abortError(c, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrAlreadyExists):
		abortError(c, http.StatusConflict, "already exists")
	case errors.Is(err, domain.ErrInvalidTransition):
		abortError(c, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrEmptyCart):
		abortError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, checkout.ErrLoginRequired),
		errors.Is(err, account.ErrInvalidCredentials),
		errors.Is(err, account.ErrInvalidToken):
		abortError(c, http.StatusUnauthorized, err.Error())
	default:
		h.logger.WithError(err).WithField("path", c.FullPath()).Error("http: request failed")
		abortError(c, http.StatusInternalServerError, "internal error")
	}
}
