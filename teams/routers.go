package teams

import (
	"net/http"

	"mobility-challenge/common"

	"github.com/gin-gonic/gin"
)

// TeamRequest is the body of team create and update calls.
type TeamRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description *string `json:"description"`
}

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterPublic mounts the read-only team routes.
func (h *Handler) RegisterPublic(r *gin.RouterGroup) {
	r.GET("", h.ListAll)
	r.GET("/:id", h.Get)
}

// RegisterAdmin mounts the management routes. r must already require admin.
func (h *Handler) RegisterAdmin(r *gin.RouterGroup) {
	r.GET("", h.ListPage)
	r.POST("", h.Create)
	r.PUT("/:id", h.Update)
	r.DELETE("/:id", h.Delete)
}

// ListAll godoc
// @Summary List teams
// @Tags teams
// @Produce json
// @Success 200 {object} common.Envelope
// @Router /teams [get]
func (h *Handler) ListAll(c *gin.Context) {
	out, err := h.svc.All(c.Request.Context())
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, out, nil)
}

func (h *Handler) ListPage(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), common.PaginationFromQuery(c, common.AdminPerPage))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, page.Items, page.Meta)
}

func (h *Handler) Get(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	team, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, team, nil)
}

// Create godoc
// @Summary Create a team
// @Tags teams
// @Accept json
// @Produce json
// @Param team body TeamRequest true "Team"
// @Success 201 {object} common.Envelope
// @Failure 409 {object} common.ErrorBody "Name already taken"
// @Router /admin/teams [post]
func (h *Handler) Create(c *gin.Context) {
	var req TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, common.BindingError(err))
		return
	}
	team, err := h.svc.Create(c.Request.Context(), TeamInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusCreated, team, nil)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req TeamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, common.BindingError(err))
		return
	}
	team, err := h.svc.Update(c.Request.Context(), id, TeamInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, team, nil)
}

// Delete godoc
// @Summary Delete a team
// @Description Members of the deleted team are moved to the Unassigned team
// @Tags teams
// @Produce json
// @Param id path int true "Team ID"
// @Success 200 {object} common.Envelope
// @Failure 400 {object} common.ErrorBody "Unassigned team is protected"
// @Failure 404 {object} common.ErrorBody "Team not found"
// @Router /admin/teams/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	moved, err := h.svc.Delete(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"id": id, "reassignedMembers": moved}, nil)
}
