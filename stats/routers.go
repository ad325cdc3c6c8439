package stats

import (
	"net/http"

	"mobility-challenge/common"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	agg *Aggregator
}

func NewHandler(agg *Aggregator) *Handler {
	return &Handler{agg: agg}
}

// RegisterPublic mounts the challenge-wide statistics.
func (h *Handler) RegisterPublic(r *gin.RouterGroup) {
	r.GET("/general", h.General)
	r.GET("/teams/rankings", h.TeamRankings)
	r.GET("/users/rankings", h.IndividualRankings)
}

// RegisterPersonal mounts per-user statistics. r must already require auth.
func (h *Handler) RegisterPersonal(r *gin.RouterGroup) {
	r.GET("/users/:id", h.UserStats)
	r.GET("/users/:id/progress", h.UserProgress)
}

func (h *Handler) General(c *gin.Context) {
	out, err := h.agg.General(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, out, nil)
}

// TeamRankings godoc
// @Summary Team leaderboard
// @Tags stats
// @Produce json
// @Param top query bool false "Keep the first 10 only"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} common.Envelope
// @Router /stats/teams/rankings [get]
func (h *Handler) TeamRankings(c *gin.Context) {
	page, err := h.agg.TeamRankings(c.Request.Context(), common.PaginationFromQuery(c, common.DefaultPerPage), topOnly(c))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, page.Items, page.Meta)
}

func (h *Handler) IndividualRankings(c *gin.Context) {
	page, err := h.agg.IndividualRankings(c.Request.Context(), common.PaginationFromQuery(c, common.DefaultPerPage), topOnly(c))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, page.Items, page.Meta)
}

func (h *Handler) UserStats(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	out, err := h.agg.UserStats(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, out, nil)
}

// UserProgress godoc
// @Summary Daily distance over the last 30 days
// @Tags stats
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} common.Envelope
// @Failure 404 {object} common.ErrorBody "User not found"
// @Router /stats/users/{id}/progress [get]
func (h *Handler) UserProgress(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	page, err := h.agg.UserProgress(c.Request.Context(), id, common.PaginationFromQuery(c, WindowDays))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, page.Items, page.Meta)
}

func topOnly(c *gin.Context) bool {
	return common.QueryFlag(c, "top", "topOnly")
}
