package handler

import (
	"errors"
	"net/http"

	"Niche_Community/internal/auth"
	"Niche_Community/internal/middleware"
	"Niche_Community/internal/model"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/remote"
	"Niche_Community/internal/service"
	"Niche_Community/internal/state"

	"github.com/gin-gonic/gin"
)

// statusOf 业务错误到 HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument),
		errors.Is(err, state.ErrEmptyReply),
		errors.Is(err, state.ErrInvalidVoteType),
		errors.Is(err, state.ErrInvalidReactionType):
		return http.StatusBadRequest
	case errors.Is(err, auth.ErrUnauthenticated),
		errors.Is(err, auth.ErrSessionReplaced),
		errors.Is(err, pkg.ErrTokenExpired),
		errors.Is(err, pkg.ErrTokenInvalid),
		errors.Is(err, pkg.ErrRefreshExpired),
		errors.Is(err, pkg.ErrRefreshInvalid),
		errors.Is(err, pkg.ErrTokenParseFailure),
		errors.Is(err, pkg.ErrAssertionInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, remote.ErrNotFound),
		errors.Is(err, state.ErrReplyNotFound):
		return http.StatusNotFound
	case errors.Is(err, state.ErrStaleReference),
		errors.Is(err, state.ErrInvalidTransition),
		errors.Is(err, service.ErrAlreadyVoted),
		errors.Is(err, remote.ErrAlreadyExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail 5xx 不把内部错误透给客户端
func fail(c *gin.Context, err error) {
	code := statusOf(err)
	_ = c.Error(err)
	if code == http.StatusInternalServerError {
		c.JSON(code, gin.H{"msg": "internal error"})
		return
	}
	c.JSON(code, gin.H{"msg": err.Error()})
}

func currentUser(c *gin.Context) *model.Identity {
	return middleware.Identity(c)
}
