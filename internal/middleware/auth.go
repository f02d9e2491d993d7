package middleware

import (
	"errors"
	"net/http"
	"strings"

	"Niche_Community/internal/auth"
	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"

	"github.com/gin-gonic/gin"
)

const ContextIdentityKey = "identity"

// bearer 取出 Authorization 里的 token，没有头时 ok=false
func bearer(c *gin.Context) (token string, present bool, ok bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false, false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", true, false
	}
	return parts[1], true, true
}

func AuthMiddleware(p *auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenStr, present, ok := bearer(c)
		if !present {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "missing authorization header"})
			return
		}
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": "invalid authorization format"})
			return
		}

		id, err := p.Authenticate(c.Request.Context(), tokenStr)
		if err != nil {
			abortAuth(c, err)
			return
		}

		// 注入当前用户
		c.Set(ContextIdentityKey, id)
		c.Next()
	}
}

// OptionalAuth 读接口使用：带了合法 token 就注入用户，否则按匿名处理
func OptionalAuth(p *auth.Provider) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenStr, _, ok := bearer(c); ok {
			id, err := p.Authenticate(c.Request.Context(), tokenStr)
			switch {
			case err == nil:
				c.Set(ContextIdentityKey, id)
			case !isCredentialError(err):
				abortAuth(c, err)
				return
			}
		}
		c.Next()
	}
}

// Identity 未登录时返回 nil
func Identity(c *gin.Context) *model.Identity {
	v, ok := c.Get(ContextIdentityKey)
	if !ok {
		return nil
	}
	id, _ := v.(*model.Identity)
	return id
}

// isCredentialError token 本身或会话无效；其余视为会话存储故障
func isCredentialError(err error) bool {
	return errors.Is(err, auth.ErrSessionReplaced) ||
		errors.Is(err, pkg.ErrTokenExpired) ||
		errors.Is(err, pkg.ErrTokenInvalid) ||
		errors.Is(err, pkg.ErrTokenParseFailure)
}

func abortAuth(c *gin.Context, err error) {
	if !isCredentialError(err) {
		_ = c.Error(err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"msg": authMessage(err)})
}

func authMessage(err error) string {
	switch {
	case errors.Is(err, pkg.ErrTokenExpired):
		return "token expired"
	case errors.Is(err, auth.ErrSessionReplaced):
		return "Account has been logging elsewhere"
	default:
		return "invalid or expired token"
	}
}
