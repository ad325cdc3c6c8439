package exports

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"mobility-challenge/activities"
	"mobility-challenge/auth"
	"mobility-challenge/common"
	"mobility-challenge/dbtest"
	"mobility-challenge/parsers"
	"mobility-challenge/teams"
	"mobility-challenge/users"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db       *gorm.DB
	exporter *Exporter
	alpha    teams.TeamModel
}

func setup(t *testing.T) *fixture {
	db := dbtest.Open(t, &teams.TeamModel{}, &users.UserModel{}, &activities.ActivityModel{})
	f := &fixture{db: db, exporter: NewExporter(db, teams.NewService(db))}

	f.alpha = teams.TeamModel{Name: "Les Rapides", Slug: "les-rapides"}
	require.NoError(t, db.Create(&f.alpha).Error)
	ana := users.UserModel{Name: "Ana", Email: "ana@example.com", PasswordHash: "x", Role: auth.RoleUser, TeamID: &f.alpha.ID}
	bo := users.UserModel{Name: "Bo, Jr.", Email: "bo@example.com", PasswordHash: "x", Role: auth.RoleUser}
	require.NoError(t, db.Create(&ana).Error)
	require.NoError(t, db.Create(&bo).Error)

	steps := 4500
	rows := []activities.ActivityModel{
		{UserID: ana.ID, Date: "2026-10-14", Type: activities.Velo, DistanceKm: 12.5},
		{UserID: bo.ID, Date: "2026-10-14", Type: activities.Marche, DistanceKm: 3, Steps: &steps},
		{UserID: ana.ID, Date: "2026-10-15", Type: activities.Marche, DistanceKm: 3, Steps: &steps},
	}
	require.NoError(t, db.Omit("User").Create(&rows).Error)
	return f
}

func TestWriteActivitiesCSV(t *testing.T) {
	f := setup(t)
	var buf bytes.Buffer

	n, err := f.exporter.WriteActivities(context.Background(), &buf, parsers.FormatCSV, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	lines, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, lines, 4)
	assert.Equal(t, Columns, lines[0])
	assert.Equal(t, []string{"1", "1", "Ana", "Les Rapides", "2026-10-14", "VELO", "12.5", ""}, lines[1])
	assert.Equal(t, []string{"2", "2", "Bo, Jr.", "", "2026-10-14", "MARCHE", "3", "4500"}, lines[2])
}

func TestWriteActivitiesNDJSON(t *testing.T) {
	f := setup(t)
	var buf bytes.Buffer

	n, err := f.exporter.WriteActivities(context.Background(), &buf, parsers.FormatNDJSON, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	var rows []map[string]interface{}
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var row map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &row))
		rows = append(rows, row)
	}
	require.Len(t, rows, 3)
	for _, row := range rows {
		assert.Len(t, row, len(Columns))
	}
	assert.Nil(t, rows[0]["steps"])
	assert.Nil(t, rows[1]["team"])
	assert.Equal(t, 4500.0, rows[2]["steps"])
}

func TestWriteActivitiesTeamFilter(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	filter, team, err := f.exporter.FilterForTeam(ctx, "les-rapides")
	require.NoError(t, err)
	assert.Equal(t, f.alpha.ID, team.ID)

	var buf bytes.Buffer
	n, err := f.exporter.WriteActivities(ctx, &buf, parsers.FormatCSV, filter)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.NotContains(t, buf.String(), "Bo, Jr.")

	_, _, err = f.exporter.FilterForTeam(ctx, "nobody")
	assert.Equal(t, "TEAM_NOT_FOUND", common.CodeOf(err))
}

func TestWriteActivitiesAcrossBatches(t *testing.T) {
	f := setup(t)
	require.NoError(t, f.db.Exec("DELETE FROM activities").Error)

	total := BatchSize + 7
	rows := make([]activities.ActivityModel, 0, total)
	start := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < total; i++ {
		rows = append(rows, activities.ActivityModel{
			UserID: 1, Date: common.DayOf(start.AddDate(0, 0, i)), Type: activities.Velo, DistanceKm: 1,
		})
	}
	require.NoError(t, f.db.Omit("User").CreateInBatches(&rows, 500).Error)

	n, err := f.exporter.WriteActivities(context.Background(), io.Discard, parsers.FormatNDJSON, Filter{})
	require.NoError(t, err)
	assert.Equal(t, total, n)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, parsers.FormatCSV, f)

	f, err = ParseFormat("ndjson")
	require.NoError(t, err)
	assert.Equal(t, parsers.FormatNDJSON, f)

	_, err = ParseFormat("xlsx")
	assert.Equal(t, "INVALID_FORMAT", common.CodeOf(err))
}

// streamRecorder adds the CloseNotifier that gin's Stream needs.
type streamRecorder struct {
	*httptest.ResponseRecorder
	closed chan bool
}

func (r *streamRecorder) CloseNotify() <-chan bool { return r.closed }

func TestStreamActivitiesEndpoint(t *testing.T) {
	f := setup(t)
	gin.SetMode(gin.TestMode)
	logger := common.NewLogger(io.Discard, "error", "text")
	now := func() time.Time { return time.Date(2026, 10, 15, 18, 4, 5, 0, time.UTC) }

	r := gin.New()
	r.Use(common.ErrorResponder(logger, true))
	NewHandler(f.exporter, logger, now).RegisterAdmin(r.Group("/admin/activities"))

	get := func(path string) *streamRecorder {
		w := &streamRecorder{ResponseRecorder: httptest.NewRecorder(), closed: make(chan bool, 1)}
		r.ServeHTTP(w, httptest.NewRequest("GET", path, nil))
		return w
	}

	w := get("/admin/activities/export?team=les-rapides")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename=activities_les-rapides_20261015_180405.csv", w.Header().Get("Content-Disposition"))
	assert.Equal(t, 3, strings.Count(w.Body.String(), "\n"))

	w = get("/admin/activities/export?format=ndjson")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/x-ndjson", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "activities_all_")
	assert.Equal(t, 3, strings.Count(w.Body.String(), "\n"))

	w = get("/admin/activities/export?format=xml")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = get("/admin/activities/export?team=ghost")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
