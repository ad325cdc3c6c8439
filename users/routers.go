package users

import (
	"net/http"

	"mobility-challenge/auth"
	"mobility-challenge/common"

	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
	TeamID   uint   `json:"teamId" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type CreateUserRequest struct {
	RegisterRequest
	Role auth.Role `json:"role"`
}

type UpdateUserRequest struct {
	Name   *string    `json:"name"`
	Email  *string    `json:"email"`
	TeamID *uint      `json:"teamId"`
	Role   *auth.Role `json:"role"`
}

type Handler struct {
	svc          *Service
	issuer       *auth.Issuer
	secureCookie bool
}

// NewHandler builds the user handlers. secureCookie marks the session cookie
// Secure and should be set in production.
func NewHandler(svc *Service, issuer *auth.Issuer, secureCookie bool) *Handler {
	return &Handler{svc: svc, issuer: issuer, secureCookie: secureCookie}
}

// RegisterAuth mounts /register, /login, /logout and /profile.
func (h *Handler) RegisterAuth(r *gin.RouterGroup) {
	r.POST("/register", h.Register)
	r.POST("/login", h.Login)

	authed := r.Group("", auth.RequireAuth(h.issuer))
	authed.POST("/logout", h.Logout)
	authed.GET("/profile", h.Profile)
}

// RegisterAdmin mounts user management. r must already require admin.
func (h *Handler) RegisterAdmin(r *gin.RouterGroup) {
	r.GET("", h.List)
	r.POST("", h.Create)
	r.PUT("/:id", h.Update)
	r.DELETE("/:id", h.Delete)
}

// Register godoc
// @Summary Register a participant
// @Tags auth
// @Accept json
// @Produce json
// @Param user body RegisterRequest true "New participant"
// @Success 201 {object} common.Envelope
// @Failure 409 {object} common.ErrorBody "Email already registered"
// @Router /auth/register [post]
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, common.BindingError(err))
		return
	}
	user, err := h.svc.Register(c.Request.Context(), RegisterInput(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusCreated, user, nil)
}

// Login godoc
// @Summary Log in
// @Description Returns the session token and sets it as an httpOnly cookie
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} common.Envelope
// @Failure 401 {object} common.ErrorBody "Invalid credentials"
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, common.BindingError(err))
		return
	}
	session, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		common.Fail(c, err)
		return
	}
	h.setSessionCookie(c, session.Token, int(h.issuer.TTL().Seconds()))
	common.Success(c, http.StatusOK, session, nil)
}

func (h *Handler) Logout(c *gin.Context) {
	h.setSessionCookie(c, "", -1)
	common.Success(c, http.StatusOK, nil, gin.H{"message": "Logged out"})
}

func (h *Handler) Profile(c *gin.Context) {
	user, err := h.svc.Get(c.Request.Context(), auth.CurrentUser(c).UserID)
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, user, nil)
}

func (h *Handler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(auth.CookieName, value, maxAge, "/", "", h.secureCookie, true)
}

func (h *Handler) List(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), common.PaginationFromQuery(c, common.AdminPerPage))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, page.Items, page.Meta)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, common.BindingError(err))
		return
	}
	user, err := h.svc.Create(c.Request.Context(), CreateInput{
		RegisterInput: RegisterInput(req.RegisterRequest),
		Role:          req.Role,
	})
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusCreated, user, nil)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		common.Fail(c, common.BindingError(err))
		return
	}
	user, err := h.svc.Update(c.Request.Context(), id, Patch(req))
	if err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, user, nil)
}

func (h *Handler) Delete(c *gin.Context) {
	id, err := common.ParseID(c, "id")
	if err != nil {
		common.Fail(c, err)
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		common.Fail(c, err)
		return
	}
	common.Success(c, http.StatusOK, gin.H{"id": id}, nil)
}
