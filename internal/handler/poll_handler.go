package handler

import (
	"net/http"

	"Niche_Community/internal/service"

	"github.com/gin-gonic/gin"
)

type PollHandler struct {
	svc *service.PollService
}

type PollVoteReq struct {
	Options []int `json:"options"`
}

func NewPollHandler(svc *service.PollService) *PollHandler {
	return &PollHandler{svc: svc}
}

func (h *PollHandler) Create(c *gin.Context) {
	var req service.CreatePollReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	p, err := h.svc.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *PollHandler) List(c *gin.Context) {
	list, err := h.svc.List(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}

func (h *PollHandler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *PollHandler) Vote(c *gin.Context) {
	var req PollVoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	p, err := h.svc.Vote(c.Request.Context(), currentUser(c), c.Param("id"), req.Options)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
