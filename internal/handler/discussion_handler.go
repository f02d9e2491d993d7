package handler

import (
	"net/http"

	"Niche_Community/internal/service"

	"github.com/gin-gonic/gin"
)

type DiscussionHandler struct {
	svc *service.DiscussionService
}

type AddDiscussionReq struct {
	Content string `json:"content"`
}

type VoteReq struct {
	Type string `json:"type" binding:"required"`
}

type ReplyReq struct {
	Text string `json:"text"`
}

func NewDiscussionHandler(svc *service.DiscussionService) *DiscussionHandler {
	return &DiscussionHandler{svc: svc}
}

// List 重新加载社区下的讨论帖，同时返回加载状态
func (h *DiscussionHandler) List(c *gin.Context) {
	communityID := c.Param("id")
	list, err := h.svc.Load(c.Request.Context(), communityID)
	status, msg := h.svc.Status(communityID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list, "status": status, "error": msg})
}

func (h *DiscussionHandler) Add(c *gin.Context) {
	var req AddDiscussionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	d, err := h.svc.Add(c.Request.Context(), currentUser(c), c.Param("id"), req.Content)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

func (h *DiscussionHandler) Vote(c *gin.Context) {
	var req VoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	res, err := h.svc.Vote(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("did"), req.Type)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *DiscussionHandler) React(c *gin.Context) {
	var req VoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	res, err := h.svc.React(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("did"), req.Type)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Tally 本地计数，读的是选择器的缓存结果
func (h *DiscussionHandler) Tally(c *gin.Context) {
	did := c.Param("did")
	c.JSON(http.StatusOK, gin.H{
		"votes":     h.svc.Votes(did),
		"reactions": h.svc.Reactions(did),
	})
}

func (h *DiscussionHandler) Reply(c *gin.Context) {
	var req ReplyReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	r, err := h.svc.Reply(c.Request.Context(), currentUser(c), c.Param("id"), c.Param("did"), req.Text)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *DiscussionHandler) Replies(c *gin.Context) {
	list, err := h.svc.Replies(c.Request.Context(), c.Param("id"), c.Param("did"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}
