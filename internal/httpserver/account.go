package httpserver

import (
	"errors"
	"net/http"

	"nexcart/internal/domain"
	"nexcart/internal/service/account"

	"github.com/gin-gonic/gin"
)

const (
	grantPassword     = "password"
	grantRefreshToken = "refresh_token"
)

type tokenRequest struct {
	GrantType    string `form:"grant_type" json:"grant_type" binding:"required"`
	Username     string `form:"username" json:"username"`
	Password     string `form:"password" json:"password"`
	RefreshToken string `form:"refresh_token" json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int          `json:"expires_in"`
	RefreshToken string       `json:"refresh_token"`
	User         *domain.User `json:"user"`
}

func (h *handlers) signup(c *gin.Context) {
	var req account.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.deps.AccountSvc.Signup(c.Request.Context(), req)
	if err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			abortError(c, http.StatusConflict, "an account with this email already exists")
			return
		}
		abortError(c, http.StatusBadRequest, err.Error())
		return
	}
	c.JSON(http.StatusCreated, gin.H{"user": u})
}

// token implements the password and refresh_token grants.
func (h *handlers) token(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBind(&req); err != nil {
		abortError(c, http.StatusBadRequest, "grant_type is required")
		return
	}

	var (
		sess *account.Session
		err  error
	)
	switch req.GrantType {
	case grantPassword:
		if req.Username == "" || req.Password == "" {
			abortError(c, http.StatusBadRequest, "username and password are required")
			return
		}
		sess, err = h.deps.AccountSvc.Login(c.Request.Context(), req.Username, req.Password)
	case grantRefreshToken:
		if req.RefreshToken == "" {
			abortError(c, http.StatusBadRequest, "refresh_token is required")
			return
		}
		sess, err = h.deps.AccountSvc.Refresh(c.Request.Context(), req.RefreshToken)
	default:
		abortError(c, http.StatusBadRequest, "unsupported grant_type")
		return
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:  sess.AccessToken,
		TokenType:    "Bearer",
		ExpiresIn:    sess.ExpiresIn,
		RefreshToken: sess.RefreshToken,
		User:         sess.User,
	})
}

func (h *handlers) me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

func (h *handlers) updateMe(c *gin.Context) {
	var req account.ProfileInput
	if err := c.ShouldBindJSON(&req); err != nil {
		abortError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	u, err := h.deps.AccountSvc.UpdateProfile(c.Request.Context(), currentUserID(c), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}
