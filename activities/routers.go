package activities

import (
	"math"
	"net/http"

	"mobility-challenge/auth"
	"mobility-challenge/common"

	"github.com/gin-gonic/gin"
)

// CreateActivityRequest is the body of an activity declaration. distanceKm
// is ignored for walks and required for rides.
type CreateActivityRequest struct {
	UserID     uint     `json:"userId" binding:"required"`
	Date       string   `json:"date" binding:"required"`
	Type       Type     `json:"type" binding:"required"`
	DistanceKm *float64 `json:"distanceKm"`
	Steps      *int     `json:"steps"`
}

// Input converts the request into a ledger input. A missing distance is
// passed on as NaN so the ledger reports it in its usual order.
func (r CreateActivityRequest) Input() RecordInput {
	in := RecordInput{UserID: r.UserID, Date: r.Date, Type: r.Type, Steps: r.Steps, DistanceKm: math.NaN()}
	if r.DistanceKm != nil {
		in.DistanceKm = *r.DistanceKm
	}
	return in
}

type UpdateActivityRequest struct {
	UserID     *uint    `json:"userId"`
	Date       *string  `json:"date"`
	Type       *Type    `json:"type"`
	DistanceKm *float64 `json:"distanceKm"`
	Steps      *int     `json:"steps"`
}

type Handler struct {
	ledger *Ledger
}

func NewHandler(ledger *Ledger) *Handler {
	return &Handler{ledger: ledger}
}

// RegisterRoutes mounts participant routes. r must already require auth.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("", h.List(common.DefaultPerPage))
	r.POST("", h.Create)
	r.GET("/user/:userId", h.ListForUser)
	r.GET("/:id", h.Get)
	r.DELETE("/:id", h.Delete)
}

// RegisterAdmin mounts activity management. r must already require admin.
func (h *Handler) RegisterAdmin(r *gin.RouterGroup) {
	r.GET("", h.List(common.AdminPerPage))
	r.POST("", h.Create)
	r.PUT("/:id", h.Update)
	r.DELETE("/:id", h.Delete)
}

func (h *Handler) List(defaultPerPage int) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, err := h.ledger.List(c.Request.Context(), common.PaginationFromQuery(c, defaultPerPage))
		if err != nil {
			common.Fail(c, err)
			return
		}
		common.Success(c, http.StatusOK, page.Items, page.Meta)
	}
}

// ListForUser godoc
// @Summary List a user's activities
// @Tags activities
// @Produce json
// @Param userId path int true "User ID"
// @Param page query int false "Page"
// @Param per_page query int false "Page size"
// @Success 200 {object} common.Envelope
// @Failure 403 {object} common.ErrorBody "Not the owner"
// @Failure 404 {object} common.ErrorBody "User not found"
// @Router /activities/user/{userId} [get]
func (h *Handler) ListForUser(c *gin.Context) {
	userID, err := common.ParseID(c, "userId")
	if err != nil {
		common.Fail(c, err)
		return
	}
	if err := auth.OwnerOrAdmin(auth.CurrentUser(c), userID); err != nil {
		common.Fail(c, err)
		return
	}
	page, err := h.ledger.ListForUser(c.Request.Context(), userID, common.PaginationFromQuery(c, common.DefaultPerPage))
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
	a, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	if err := auth.OwnerOrAdmin(auth.CurrentUser(c), a.UserID); err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, a, nil)
}

// Create godoc
// @Summary Declare today's activity
// @Description Walks (MARCHE) take their distance from steps at 1500 steps per km
// @Tags activities
// @Accept json
// @Produce json
// @Param activity body CreateActivityRequest true "Declaration"
// @Success 201 {object} common.Envelope
// @Failure 400 {object} common.ErrorBody "Invalid date, steps or distance"
// @Failure 409 {object} common.ErrorBody "Already declared today"
// @Router /activities [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, common.BindingError(err))
		return
	}
	if err := auth.OwnerOrAdmin(auth.CurrentUser(c), req.UserID); err != nil {
		common.Fail(c, err)
		return
	}
	a, err := h.ledger.Record(c.Request.Context(), req.Input())
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusCreated, a, nil)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req UpdateActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, common.BindingError(err))
		return
	}
	a, err := h.ledger.Update(c.Request.Context(), id, Patch(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, a, nil)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	a, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		common.Fail(c, err)
		return
	}
	if err := auth.OwnerOrAdmin(auth.CurrentUser(c), a.UserID); err != nil {
		common.Fail(c, err)
		return
	}
	if err := h.ledger.Delete(c.Request.Context(), id); err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"id": id}, gin.H{"message": "Activity deleted"})
}
