package handler

import (
	"net/http"

	"Niche_Community/internal/auth"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	provider *auth.Provider
}

type SignInReq struct {
	Assertion string `json:"assertion" binding:"required"`
}

type RefreshReq struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func NewAuthHandler(p *auth.Provider) *AuthHandler {
	return &AuthHandler{provider: p}
}

// SignIn 用上游身份断言换会话令牌
func (h *AuthHandler) SignIn(c *gin.Context) {
	var req SignInReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	sess, err := h.provider.SignIn(c.Request.Context(), req.Assertion)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *AuthHandler) SignOut(c *gin.Context) {
	if err := h.provider.SignOut(c.Request.Context(), currentUser(c).UID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "signed out"})
}

// Refresh 刷新 token
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	pair, err := h.provider.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *AuthHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}
