package users

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mobility-challenge/auth"
	"mobility-challenge/common"
	"mobility-challenge/dbtest"
	"mobility-challenge/teams"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// activityRow stands in for the activities table owned by another package.
type activityRow struct {
	ID     uint `gorm:"primaryKey"`
	UserID uint
	Date   string
}

func (activityRow) TableName() string { return "activities" }

type fixture struct {
	db     *gorm.DB
	svc    *Service
	teams  *teams.Service
	issuer *auth.Issuer
	team   *teams.TeamModel
}

func setup(t *testing.T) *fixture {
	db := dbtest.Open(t, &teams.TeamModel{}, &UserModel{}, &activityRow{})
	teamSvc := teams.NewService(db)
	issuer := auth.NewIssuer("test-secret", time.Hour, nil)
	team, err := teamSvc.Create(context.Background(), teams.TeamInput{Name: "Alpha"})
	require.NoError(t, err)
	return &fixture{
		db:     db,
		svc:    NewService(db, teamSvc, issuer),
		teams:  teamSvc,
		issuer: issuer,
		team:   team,
	}
}

func TestRegister(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	user, err := f.svc.Register(ctx, RegisterInput{Name: "Ana", Email: " Ana@Example.com", Password: "longenough", TeamID: f.team.ID})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", user.Email)
	assert.Equal(t, auth.RoleUser, user.Role)
	assert.NotEqual(t, "longenough", user.PasswordHash)

	tests := []struct {
		name string
		in   RegisterInput
		code string
	}{
		{"duplicate email", RegisterInput{Name: "Bo", Email: "ana@example.com", Password: "longenough", TeamID: f.team.ID}, "EMAIL_EXISTS"},
		{"short password", RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "short", TeamID: f.team.ID}, "VALIDATION_ERROR"},
		{"bad email", RegisterInput{Name: "Bo", Email: "bo", Password: "longenough", TeamID: f.team.ID}, "VALIDATION_ERROR"},
		{"no name", RegisterInput{Name: " ", Email: "bo@example.com", Password: "longenough", TeamID: f.team.ID}, "VALIDATION_ERROR"},
		{"unknown team", RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "longenough", TeamID: 99}, "TEAM_NOT_FOUND"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.in)
			assert.Equal(t, tt.code, common.CodeOf(err))
		})
	}
}

func TestAdminCreateAllowsShorterPasswordAndRole(t *testing.T) {
	f := setup(t)
	user, err := f.svc.Create(context.Background(), CreateInput{
		RegisterInput: RegisterInput{Name: "Root", Email: "root@example.com", Password: "sixsix", TeamID: f.team.ID},
		Role:          auth.RoleAdmin,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, user.Role)

	_, err = f.svc.Create(context.Background(), CreateInput{
		RegisterInput: RegisterInput{Name: "X", Email: "x@example.com", Password: "sixsix", TeamID: f.team.ID},
		Role:          "OWNER",
	})
	assert.Equal(t, "VALIDATION_ERROR", common.CodeOf(err))
}

func TestLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "longenough", TeamID: f.team.ID})
	require.NoError(t, err)

	session, err := f.svc.Login(ctx, "ANA@example.com", "longenough")
	require.NoError(t, err)
	claims, err := f.issuer.Parse(session.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, claims.UserID)

	_, err = f.svc.Login(ctx, "ana@example.com", "wrong-password")
	assert.Equal(t, "INVALID_CREDENTIALS", common.CodeOf(err))
	_, err = f.svc.Login(ctx, "nobody@example.com", "longenough")
	assert.Equal(t, "INVALID_CREDENTIALS", common.CodeOf(err))
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	beta, _ := f.teams.Create(ctx, teams.TeamInput{Name: "Beta"})
	ana, _ := f.svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "longenough", TeamID: f.team.ID})
	_, _ = f.svc.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "longenough", TeamID: f.team.ID})

	name := "Ana Maria"
	admin := auth.RoleAdmin
	updated, err := f.svc.Update(ctx, ana.ID, Patch{Name: &name, TeamID: &beta.ID, Role: &admin})
	require.NoError(t, err)
	assert.Equal(t, "Ana Maria", updated.Name)
	assert.Equal(t, beta.ID, *updated.TeamID)
	require.NotNil(t, updated.Team)
	assert.Equal(t, "Beta", updated.Team.Name)
	assert.Equal(t, auth.RoleAdmin, updated.Role)
	assert.Equal(t, "ana@example.com", updated.Email)

	taken := "bo@example.com"
	_, err = f.svc.Update(ctx, ana.ID, Patch{Email: &taken})
	assert.Equal(t, "EMAIL_EXISTS", common.CodeOf(err))

	own := "ANA@example.com"
	_, err = f.svc.Update(ctx, ana.ID, Patch{Email: &own})
	assert.NoError(t, err)

	missing := uint(99)
	_, err = f.svc.Update(ctx, ana.ID, Patch{TeamID: &missing})
	assert.Equal(t, "TEAM_NOT_FOUND", common.CodeOf(err))

	_, err = f.svc.Update(ctx, 999, Patch{Name: &name})
	assert.Equal(t, "USER_NOT_FOUND", common.CodeOf(err))
}

func TestDeleteRemovesActivities(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ana, _ := f.svc.Register(ctx, RegisterInput{Name: "Ana", Email: "ana@example.com", Password: "longenough", TeamID: f.team.ID})
	bo, _ := f.svc.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@example.com", Password: "longenough", TeamID: f.team.ID})
	require.NoError(t, f.db.Create(&[]activityRow{
		{UserID: ana.ID, Date: "2026-10-14"},
		{UserID: ana.ID, Date: "2026-10-15"},
		{UserID: bo.ID, Date: "2026-10-15"},
	}).Error)

	require.NoError(t, f.svc.Delete(ctx, ana.ID))

	var remaining int64
	f.db.Model(&activityRow{}).Count(&remaining)
	assert.Equal(t, int64(1), remaining)
	_, err := f.svc.Get(ctx, ana.ID)
	assert.Equal(t, "USER_NOT_FOUND", common.CodeOf(err))

	assert.Equal(t, "USER_NOT_FOUND", common.CodeOf(f.svc.Delete(ctx, ana.ID)))
}

func TestList(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		_, err := f.svc.Register(ctx, RegisterInput{Name: email, Email: email, Password: "longenough", TeamID: f.team.ID})
		require.NoError(t, err)
	}

	page, err := f.svc.List(ctx, common.NewPagination(2, 2))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "c@example.com", page.Items[0].Email)
	assert.Equal(t, int64(3), page.Meta.Total)
}

func TestValidateUserRecord(t *testing.T) {
	f := setup(t)
	v, err := NewUserValidator(context.Background(), f.db)
	require.NoError(t, err)

	ok := v.ValidateUserRecord(map[string]string{"name": "Ana", "email": "ana@example.com", "password": "secret1", "team": "Alpha"}, 1)
	assert.True(t, ok.Valid, ok.ToJSON())

	dup := v.ValidateUserRecord(map[string]string{"name": "Ana", "email": "ANA@example.com", "password": "secret1"}, 2)
	assert.False(t, dup.Valid)

	bad := v.ValidateUserRecord(map[string]string{"name": "", "email": "nope", "password": "123", "role": "root", "team": "Omega"}, 3)
	assert.False(t, bad.Valid)
	assert.Len(t, bad.Errors, 5)

	rec := NormalizeUserRecord(map[string]string{"name": " Ana ", "email": "ANA@example.com", "role": "admin"})
	assert.Equal(t, SeedRecord{Name: "Ana", Email: "ana@example.com", Role: auth.RoleAdmin}, rec)
}

func newRouter(f *fixture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(common.ErrorResponder(common.NewLogger(io.Discard, "error", "text"), true))
	h := NewHandler(f.svc, f.issuer, false)
	h.RegisterAuth(r.Group("/auth"))
	admin := r.Group("/admin/users", auth.RequireAuth(f.issuer), auth.RequireAdmin())
	h.RegisterAdmin(admin)
	return r
}

func TestAuthFlow(t *testing.T) {
	f := setup(t)
	r := newRouter(f)

	post := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := post("/auth/register", `{"name":"Ana","email":"ana@example.com","password":"longenough","teamId":1}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.NotContains(t, w.Body.String(), "password")

	w = post("/auth/register", `{"name":"Ana","email":"ana@example.com","password":"longenough"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = post("/auth/login", `{"email":"ana@example.com","password":"nope-nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = post("/auth/login", `{"email":"ana@example.com","password":"longenough"}`)
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, auth.CookieName, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)

	var body struct {
		Data Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Data.Token)

	// profile through the cookie
	w = httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/auth/profile", nil)
	req.AddCookie(cookies[0])
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"email":"ana@example.com"`)
	assert.Contains(t, w.Body.String(), `"name":"Alpha"`)

	// a regular user cannot reach admin routes
	w = httptest.NewRecorder()
	req = httptest.NewRequest("GET", "/admin/users", nil)
	req.Header.Set("Authorization", "Bearer "+body.Data.Token)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/auth/logout", nil)
	req.AddCookie(cookies[0])
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	cleared := w.Result().Cookies()
	require.Len(t, cleared, 1)
	assert.Equal(t, "", cleared[0].Value)
}

func TestAdminRoutes(t *testing.T) {
	f := setup(t)
	r := newRouter(f)
	ctx := context.Background()
	root, err := f.svc.Create(ctx, CreateInput{
		RegisterInput: RegisterInput{Name: "Root", Email: "root@example.com", Password: "sixsix", TeamID: f.team.ID},
		Role:          auth.RoleAdmin,
	})
	require.NoError(t, err)
	token, _ := f.issuer.Sign(root.ID, auth.RoleAdmin)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		return w
	}

	w := do("POST", "/admin/users", `{"name":"Bo","email":"bo@example.com","password":"sixsix","teamId":1}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = do("GET", "/admin/users", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":2`)
	assert.Contains(t, w.Body.String(), `"per_page":10`)

	w = do("PUT", "/admin/users/2", `{"role":"ADMIN"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"ADMIN"`)

	w = do("DELETE", "/admin/users/2", "")
	assert.Equal(t, http.StatusOK, w.Code)
	w = do("DELETE", "/admin/users/2", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
