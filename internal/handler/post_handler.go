package handler

import (
	"net/http"

	"Niche_Community/internal/service"

	"github.com/gin-gonic/gin"
)

type PostHandler struct {
	svc  *service.PostService
	feed *service.FeedService
}

func NewPostHandler(svc *service.PostService, feed *service.FeedService) *PostHandler {
	return &PostHandler{svc: svc, feed: feed}
}

// CreatePost 创建帖子接口
func (h *PostHandler) CreatePost(c *gin.Context) {
	var req service.CreatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}

	post, err := h.svc.CreatePost(c.Request.Context(), currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, post)
}

// ListPosts ?communityId= 可选
func (h *PostHandler) ListPosts(c *gin.Context) {
	list, err := h.svc.ListPosts(c.Request.Context(), c.Query("communityId"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *PostHandler) UpdatePost(c *gin.Context) {
	var req service.UpdatePostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	post, err := h.svc.UpdatePost(c.Request.Context(), currentUser(c), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, post)
}

// DeletePost 删除帖子接口
func (h *PostHandler) DeletePost(c *gin.Context) {
	if err := h.svc.DeletePost(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *PostHandler) Feed(c *gin.Context) {
	list, err := h.feed.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}
