// Package seed bulk-loads teams, users and historical activities from CSV or
// NDJSON files.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"mobility-challenge/activities"
	"mobility-challenge/auth"
	"mobility-challenge/common"
	"mobility-challenge/parsers"
	"mobility-challenge/teams"
	"mobility-challenge/users"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BatchSize is the number of records written in a single upsert
const BatchSize = 2000

type Kind string

const (
	KindTeams      Kind = "teams"
	KindUsers      Kind = "users"
	KindActivities Kind = "activities"
)

// Report summarises one loaded file. Errors holds every rejected row with
// its source line in RowNumber; parse failures carry a "line" field error.
type Report struct {
	Kind    Kind                            `json:"kind"`
	File    string                          `json:"file"`
	Total   int                             `json:"total"`
	Success int                             `json:"success"`
	Failed  int                             `json:"failed"`
	Errors  []common.RecordValidationResult `json:"errors,omitempty"`
}

// Files names the inputs of a full seed run. Empty paths are skipped.
type Files struct {
	Teams      string
	Users      string
	Activities string
}

type Loader struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewLoader(db *gorm.DB, logger *slog.Logger) *Loader {
	return &Loader{db: db, logger: logger}
}

// Run loads teams, then users, then activities, so later files can refer to
// rows created by earlier ones.
func (l *Loader) Run(ctx context.Context, files Files) ([]*Report, error) {
	steps := []struct {
		kind Kind
		path string
	}{
		{KindTeams, files.Teams},
		{KindUsers, files.Users},
		{KindActivities, files.Activities},
	}

	var reports []*Report
	for _, step := range steps {
		if step.path == "" {
			continue
		}
		report, err := l.LoadFile(ctx, step.kind, step.path)
		if err != nil {
			return reports, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// LoadFile picks the parser from the file extension.
func (l *Loader) LoadFile(ctx context.Context, kind Kind, path string) (*Report, error) {
	format, err := parsers.FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	report, err := l.Load(ctx, kind, format, file)
	if report != nil {
		report.File = path
	}
	return report, err
}

// batchFunc validates and writes one batch, returning the rejected rows.
// Results are numbered by source line, like parse errors.
type batchFunc func(ctx context.Context, batch []parsers.Row) ([]common.RecordValidationResult, error)

// Load streams records from r and upserts the valid ones in batches.
func (l *Loader) Load(ctx context.Context, kind Kind, format parsers.Format, r io.Reader) (*Report, error) {
	process, err := l.processor(ctx, kind)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var rows <-chan parsers.Row
	var errs <-chan *parsers.ParseError
	if format == parsers.FormatCSV {
		rows, errs = parsers.ParseCSV(ctx, r)
	} else {
		rows, errs = parsers.ParseNDJSON(ctx, r)
	}

	var (
		mu          sync.Mutex
		parseErrors []common.RecordValidationResult
		drained     = make(chan struct{})
	)
	go func() {
		defer close(drained)
		for perr := range errs {
			result := common.NewRecordResult(perr.Line, "")
			result.AddError("line", perr.Err.Error())
			mu.Lock()
			parseErrors = append(parseErrors, *result)
			mu.Unlock()
		}
	}()

	report := &Report{Kind: kind}
	var batch []parsers.Row
	flush := func() error {
		failed, err := process(ctx, batch)
		if err != nil {
			return err
		}
		report.Success += len(batch) - len(failed)
		report.Failed += len(failed)
		report.Errors = append(report.Errors, failed...)
		batch = batch[:0]
		return nil
	}

	for row := range rows {
		batch = append(batch, row)
		report.Total++
		if len(batch) >= BatchSize {
			if err := flush(); err != nil {
				return report, err
			}
			l.logger.Debug("seed batch written", "kind", kind, "rows", report.Total)
		}
	}
	if len(batch) > 0 {
		if err := flush(); err != nil {
			return report, err
		}
	}
	<-drained

	report.Total += len(parseErrors)
	report.Failed += len(parseErrors)
	report.Errors = append(report.Errors, parseErrors...)
	if err := ctx.Err(); err != nil {
		return report, err
	}

	for _, rejected := range report.Errors {
		l.logger.Warn("seed row rejected", "kind", kind, "row", rejected.RowNumber, "record", rejected.RecordID, "errors", rejected.ToJSON())
	}
	l.logger.Info("seed file loaded", "kind", kind, "total", report.Total, "success", report.Success, "failed", report.Failed)
	return report, nil
}

func (l *Loader) processor(ctx context.Context, kind Kind) (batchFunc, error) {
	switch kind {
	case KindTeams:
		return l.teamsBatch(ctx)
	case KindUsers:
		return l.usersBatch(ctx)
	case KindActivities:
		return l.activitiesBatch(ctx)
	}
	return nil, fmt.Errorf("unknown seed kind %q", kind)
}

func (l *Loader) teamsBatch(ctx context.Context) (batchFunc, error) {
	validator, err := teams.NewTeamValidator(ctx, l.db)
	if err != nil {
		return nil, common.AsDatabase(err, "Failed to load teams")
	}
	return func(ctx context.Context, batch []parsers.Row) ([]common.RecordValidationResult, error) {
		var valid []teams.TeamModel
		var failed []common.RecordValidationResult
		for _, row := range batch {
			if result := validator.ValidateTeamRecord(row.Fields, row.Line); !result.Valid {
				failed = append(failed, *result)
				continue
			}
			valid = append(valid, teams.NormalizeTeamRecord(row.Fields))
		}

		// Upsert by name (natural key)
		if len(valid) > 0 {
			err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "name"}},
				DoUpdates: clause.AssignmentColumns([]string{"slug", "description", "updated_at"}),
			}).Create(&valid).Error
			if err != nil {
				return nil, common.AsDatabase(err, "Failed to upsert teams")
			}
		}
		return failed, nil
	}, nil
}

func (l *Loader) usersBatch(ctx context.Context) (batchFunc, error) {
	validator, err := users.NewUserValidator(ctx, l.db)
	if err != nil {
		return nil, common.AsDatabase(err, "Failed to load teams")
	}
	type teamRow struct {
		ID   uint
		Name string
	}
	var rows []teamRow
	if err := l.db.WithContext(ctx).Table("teams").Select("id", "name").Scan(&rows).Error; err != nil {
		return nil, common.AsDatabase(err, "Failed to load teams")
	}
	teamIDs := make(map[string]uint, len(rows))
	for _, t := range rows {
		teamIDs[t.Name] = t.ID
	}

	return func(ctx context.Context, batch []parsers.Row) ([]common.RecordValidationResult, error) {
		var valid []users.UserModel
		var failed []common.RecordValidationResult
		for _, row := range batch {
			result := validator.ValidateUserRecord(row.Fields, row.Line)
			if !result.Valid {
				failed = append(failed, *result)
				continue
			}

			rec := users.NormalizeUserRecord(row.Fields)
			hash, err := auth.HashPassword(rec.Password)
			if err != nil {
				result.AddError("password", err.Error())
				failed = append(failed, *result)
				continue
			}
			user := users.UserModel{Name: rec.Name, Email: rec.Email, PasswordHash: hash, Role: rec.Role}
			if id, ok := teamIDs[rec.TeamName]; ok {
				user.TeamID = &id
			}
			valid = append(valid, user)
		}

		// Upsert by email (natural key)
		if len(valid) > 0 {
			err := l.db.WithContext(ctx).Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "email"}},
				DoUpdates: clause.AssignmentColumns([]string{"name", "password_hash", "role", "team_id", "updated_at"}),
			}).Create(&valid).Error
			if err != nil {
				return nil, common.AsDatabase(err, "Failed to upsert users")
			}
		}
		return failed, nil
	}, nil
}

func (l *Loader) activitiesBatch(ctx context.Context) (batchFunc, error) {
	validator, err := activities.NewActivityValidator(ctx, l.db)
	if err != nil {
		return nil, common.AsDatabase(err, "Failed to load users")
	}
	return func(ctx context.Context, batch []parsers.Row) ([]common.RecordValidationResult, error) {
		var valid []activities.ActivityModel
		var failed []common.RecordValidationResult
		for _, row := range batch {
			if result := validator.ValidateActivityRecord(row.Fields, row.Line); !result.Valid {
				failed = append(failed, *result)
				continue
			}
			valid = append(valid, validator.NormalizeActivityRecord(row.Fields))
		}

		// Upsert by (user_id, date): one declaration per user per day
		if len(valid) > 0 {
			err := l.db.WithContext(ctx).Omit("User").Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "user_id"}, {Name: "date"}},
				DoUpdates: clause.AssignmentColumns([]string{"type", "distance_km", "steps", "updated_at"}),
			}).Create(&valid).Error
			if err != nil {
				return nil, common.AsDatabase(err, "Failed to upsert activities")
			}
		}
		return failed, nil
	}, nil
}

// Summary renders reports as one line each.
func Summary(reports []*Report) string {
	var sb strings.Builder
	for _, r := range reports {
		fmt.Fprintf(&sb, "%s (%s): %d rows, %d loaded, %d rejected\n", r.Kind, r.File, r.Total, r.Success, r.Failed)
	}
	return sb.String()
}
