package exports

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"mobility-challenge/common"
	"mobility-challenge/parsers"
	"mobility-challenge/teams"

	"gorm.io/gorm"
)

// BatchSize is the number of activities fetched in a single query
const BatchSize = 2000

// Columns is the header of a CSV export and the key set of an NDJSON one.
var Columns = []string{"id", "user_id", "user_name", "team", "date", "type", "distance_km", "steps"}

// Row is one exported activity.
type Row struct {
	ID         uint    `json:"id"`
	UserID     uint    `json:"user_id"`
	UserName   string  `json:"user_name"`
	Team       *string `json:"team"`
	Date       string  `json:"date"`
	Type       string  `json:"type"`
	DistanceKm float64 `json:"distance_km"`
	Steps      *int    `json:"steps"`
}

func (r Row) strings() []string {
	team, steps := "", ""
	if r.Team != nil {
		team = *r.Team
	}
	if r.Steps != nil {
		steps = strconv.Itoa(*r.Steps)
	}
	return []string{
		strconv.FormatUint(uint64(r.ID), 10),
		strconv.FormatUint(uint64(r.UserID), 10),
		r.UserName,
		team,
		r.Date,
		r.Type,
		strconv.FormatFloat(r.DistanceKm, 'f', -1, 64),
		steps,
	}
}

// Filter narrows an export. A nil TeamID exports every activity.
type Filter struct {
	TeamID *uint
}

type Exporter struct {
	db    *gorm.DB
	teams *teams.Service
}

func NewExporter(db *gorm.DB, teamSvc *teams.Service) *Exporter {
	return &Exporter{db: db, teams: teamSvc}
}

// ParseFormat accepts csv or ndjson; empty means csv.
func ParseFormat(raw string) (parsers.Format, error) {
	switch parsers.Format(raw) {
	case "", parsers.FormatCSV:
		return parsers.FormatCSV, nil
	case parsers.FormatNDJSON:
		return parsers.FormatNDJSON, nil
	}
	return "", common.InvalidInput("INVALID_FORMAT", "format must be csv or ndjson")
}

// FilterForTeam resolves a team slug. An empty slug selects everything.
func (e *Exporter) FilterForTeam(ctx context.Context, teamSlug string) (Filter, *teams.TeamModel, error) {
	if teamSlug == "" {
		return Filter{}, nil, nil
	}
	team, err := e.teams.BySlug(ctx, teamSlug)
	if err != nil {
		return Filter{}, nil, err
	}
	return Filter{TeamID: &team.ID}, team, nil
}

// WriteActivities streams activities ordered by id to w and returns how many
// rows were written.
func (e *Exporter) WriteActivities(ctx context.Context, w io.Writer, format parsers.Format, f Filter) (int, error) {
	var (
		csvWriter *csv.Writer
		encoder   *json.Encoder
	)
	if format == parsers.FormatCSV {
		csvWriter = csv.NewWriter(w)
		if err := csvWriter.Write(Columns); err != nil {
			return 0, err
		}
		csvWriter.Flush()
	} else {
		encoder = json.NewEncoder(w)
	}

	var lastID uint
	total := 0
	for {
		rows, err := e.batch(ctx, f, lastID)
		if err != nil {
			return total, common.AsDatabase(err, "Failed to read activities")
		}
		if len(rows) == 0 {
			return total, nil
		}

		for _, row := range rows {
			if csvWriter != nil {
				err = csvWriter.Write(row.strings())
			} else {
				err = encoder.Encode(row)
			}
			if err != nil {
				return total, err
			}
			total++
		}
		if csvWriter != nil {
			csvWriter.Flush()
			if err := csvWriter.Error(); err != nil {
				return total, err
			}
		}

		if len(rows) < BatchSize {
			return total, nil
		}
		lastID = rows[len(rows)-1].ID
	}
}

// batch reads the next page after lastID. Paging on the key keeps each query
// cheap however deep the export goes.
func (e *Exporter) batch(ctx context.Context, f Filter, lastID uint) ([]Row, error) {
	query := e.db.WithContext(ctx).Table("activities").
		Select("activities.id, activities.user_id, users.name AS user_name, teams.name AS team, " +
			"activities.date, activities.type, activities.distance_km, activities.steps").
		Joins("JOIN users ON users.id = activities.user_id").
		Joins("LEFT JOIN teams ON teams.id = users.team_id").
		Where("activities.id > ?", lastID)
	if f.TeamID != nil {
		query = query.Where("users.team_id = ?", *f.TeamID)
	}

	var rows []Row
	err := query.Order("activities.id").Limit(BatchSize).Scan(&rows).Error
	return rows, err
}
