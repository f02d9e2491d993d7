package handler

import (
	"net/http"
	"strconv"

	"Niche_Community/internal/service"

	"github.com/gin-gonic/gin"
)

type ProfileHandler struct {
	svc   *service.ProfileService
	board *service.LeaderboardService
}

type BioReq struct {
	Bio string `json:"bio"`
}

func NewProfileHandler(svc *service.ProfileService, board *service.LeaderboardService) *ProfileHandler {
	return &ProfileHandler{svc: svc, board: board}
}

func (h *ProfileHandler) Get(c *gin.Context) {
	p, err := h.svc.Get(c.Request.Context(), currentUser(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) Update(c *gin.Context) {
	var req service.UpdateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	p, err := h.svc.Update(c.Request.Context(), currentUser(c), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) UpdateBio(c *gin.Context) {
	var req BioReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
		return
	}
	p, err := h.svc.UpdateBio(c.Request.Context(), currentUser(c), req.Bio)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *ProfileHandler) Achievements(c *gin.Context) {
	a, err := h.svc.Achievements(c.Request.Context(), c.Param("uid"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// Leaderboard ?limit= 默认 10
func (h *ProfileHandler) Leaderboard(c *gin.Context) {
	n, _ := strconv.Atoi(c.Query("limit"))
	list, err := h.board.Top(c.Request.Context(), n)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"list": list})
}
