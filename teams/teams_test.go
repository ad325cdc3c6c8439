package teams

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"mobility-challenge/common"
	"mobility-challenge/dbtest"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// member is the slice of the users table team management touches.
type member struct {
	ID     uint `gorm:"primaryKey"`
	Name   string
	TeamID *uint
}

func (member) TableName() string { return "users" }

func setup(t *testing.T) (*gorm.DB, *Service) {
	db := dbtest.Open(t, &TeamModel{}, &member{})
	return db, NewService(db)
}

func TestCreateDerivesSlug(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	desc := "  Riders from the north office "
	team, err := svc.Create(ctx, TeamInput{Name: "  Les Écureuils Rapides ", Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, "Les Écureuils Rapides", team.Name)
	assert.Equal(t, "les-ecureuils-rapides", team.Slug)
	require.NotNil(t, team.Description)
	assert.Equal(t, "Riders from the north office", *team.Description)

	found, err := svc.BySlug(ctx, "les-ecureuils-rapides")
	require.NoError(t, err)
	assert.Equal(t, team.ID, found.ID)
}

func TestCreateRejectsDuplicatesAndBlankNames(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, TeamInput{Name: "Alpha"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, TeamInput{Name: "Alpha"})
	assert.Equal(t, "TEAM_NAME_EXISTS", common.CodeOf(err))

	// same slug, different spelling
	_, err = svc.Create(ctx, TeamInput{Name: "ALPHA!"})
	assert.Equal(t, "TEAM_NAME_EXISTS", common.CodeOf(err))

	_, err = svc.Create(ctx, TeamInput{Name: "   "})
	assert.Equal(t, "INVALID_NAME", common.CodeOf(err))

	_, err = svc.Create(ctx, TeamInput{Name: "!!!"})
	assert.Equal(t, "INVALID_NAME", common.CodeOf(err))
}

func TestUpdate(t *testing.T) {
	_, svc := setup(t)
	ctx := context.Background()

	a, _ := svc.Create(ctx, TeamInput{Name: "Alpha"})
	_, _ = svc.Create(ctx, TeamInput{Name: "Beta"})

	updated, err := svc.Update(ctx, a.ID, TeamInput{Name: "Gamma"})
	require.NoError(t, err)
	assert.Equal(t, "gamma", updated.Slug)

	_, err = svc.Update(ctx, a.ID, TeamInput{Name: "Beta"})
	assert.Equal(t, "TEAM_NAME_EXISTS", common.CodeOf(err))

	_, err = svc.Update(ctx, 999, TeamInput{Name: "Delta"})
	assert.Equal(t, "TEAM_NOT_FOUND", common.CodeOf(err))
}

func TestDeleteMovesMembersToUnassigned(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	alpha, _ := svc.Create(ctx, TeamInput{Name: "Alpha"})
	beta, _ := svc.Create(ctx, TeamInput{Name: "Beta"})
	require.NoError(t, db.Create(&[]member{
		{Name: "Ana", TeamID: &alpha.ID},
		{Name: "Bo", TeamID: &alpha.ID},
		{Name: "Cy", TeamID: &beta.ID},
	}).Error)

	moved, err := svc.Delete(ctx, alpha.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), moved)

	_, err = svc.Get(ctx, alpha.ID)
	assert.Equal(t, "TEAM_NOT_FOUND", common.CodeOf(err))

	unassigned, err := svc.BySlug(ctx, "unassigned")
	require.NoError(t, err)
	var count int64
	db.Model(&member{}).Where("team_id = ?", unassigned.ID).Count(&count)
	assert.Equal(t, int64(2), count)
	db.Model(&member{}).Where("team_id = ?", beta.ID).Count(&count)
	assert.Equal(t, int64(1), count)

	// a second deletion reuses the existing Unassigned team
	_, err = svc.Delete(ctx, beta.ID)
	require.NoError(t, err)
	var unassignedTeams int64
	db.Model(&TeamModel{}).Where("name = ?", UnassignedName).Count(&unassignedTeams)
	assert.Equal(t, int64(1), unassignedTeams)
	db.Model(&member{}).Where("team_id = ?", unassigned.ID).Count(&count)
	assert.Equal(t, int64(3), count)

	_, err = svc.Delete(ctx, unassigned.ID)
	assert.Equal(t, "TEAM_PROTECTED", common.CodeOf(err))

	_, err = svc.Delete(ctx, 999)
	assert.Equal(t, "TEAM_NOT_FOUND", common.CodeOf(err))
}

func TestListCountsMembers(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()

	zeta, _ := svc.Create(ctx, TeamInput{Name: "Zeta"})
	_, _ = svc.Create(ctx, TeamInput{Name: "Alpha"})
	_, _ = svc.Create(ctx, TeamInput{Name: "Mu"})
	require.NoError(t, db.Create(&member{Name: "Ana", TeamID: &zeta.ID}).Error)

	all, err := svc.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Alpha", all[0].Name)
	assert.Equal(t, int64(0), all[0].MemberCount)
	assert.Equal(t, "Zeta", all[2].Name)
	assert.Equal(t, int64(1), all[2].MemberCount)

	page, err := svc.List(ctx, common.NewPagination(2, 2))
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Zeta", page.Items[0].Name)
	assert.Equal(t, int64(3), page.Meta.Total)
}

func TestValidateTeamRecord(t *testing.T) {
	db, svc := setup(t)
	ctx := context.Background()
	_, _ = svc.Create(ctx, TeamInput{Name: "Alpha"})

	v, err := NewTeamValidator(ctx, db)
	require.NoError(t, err)

	assert.True(t, v.ValidateTeamRecord(map[string]string{"name": "Alpha"}, 1).Valid, "existing name is an upsert")
	assert.True(t, v.ValidateTeamRecord(map[string]string{"name": "Beta"}, 2).Valid)
	assert.False(t, v.ValidateTeamRecord(map[string]string{"name": "alpha"}, 3).Valid, "slug collision")
	assert.False(t, v.ValidateTeamRecord(map[string]string{"name": ""}, 4).Valid)

	team := NormalizeTeamRecord(map[string]string{"name": " Beta ", "description": "b"})
	assert.Equal(t, "beta", team.Slug)
	require.NotNil(t, team.Description)
	assert.Equal(t, "b", *team.Description)
}

func TestHandlers(t *testing.T) {
	_, svc := setup(t)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(common.ErrorResponder(common.NewLogger(io.Discard, "error", "text"), true))
	h := NewHandler(svc)
	h.RegisterPublic(r.Group("/teams"))
	h.RegisterAdmin(r.Group("/admin/teams"))

	do := func(method, path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := do("POST", "/admin/teams", `{"name":"Alpha","description":"first"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Status string    `json:"status"`
		Data   TeamModel `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "success", created.Status)
	assert.Equal(t, "alpha", created.Data.Slug)

	w = do("POST", "/admin/teams", `{"description":"no name"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")

	w = do("POST", "/admin/teams", `{"name":"alpha"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do("GET", "/teams", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"memberCount":0`)

	w = do("GET", "/teams/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_ID")

	w = do("GET", "/admin/teams?per_page=1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = do("DELETE", "/admin/teams/1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reassignedMembers":0`)

	w = do("GET", "/teams/1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
