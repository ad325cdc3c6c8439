package activities

import (
	"context"
	"strconv"
	"strings"

	"mobility-challenge/common"

	"gorm.io/gorm"
)

// ActivityValidator validates historical activity records for the seed
// loader. Records reference their owner by email. The today rule does not
// apply to history.
type ActivityValidator struct {
	userIDs map[string]uint
	seen    map[string]bool
}

// NewActivityValidator creates a validator with pre-loaded existing data
func NewActivityValidator(ctx context.Context, db *gorm.DB) (*ActivityValidator, error) {
	validator := &ActivityValidator{
		userIDs: make(map[string]uint),
		seen:    make(map[string]bool),
	}

	type row struct {
		ID    uint
		Email string
	}
	var rows []row
	if err := db.WithContext(ctx).Table("users").Select("id", "email").Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, r := range rows {
		validator.userIDs[r.Email] = r.ID
	}
	return validator, nil
}

// ValidateActivityRecord validates a single activity record from a seed file
func (v *ActivityValidator) ValidateActivityRecord(record map[string]string, rowNum int) *common.RecordValidationResult {
	email := common.NormalizeEmail(record["email"])
	date := strings.TrimSpace(record["date"])
	result := common.NewRecordResult(rowNum, email+"@"+date)

	userID, known := v.userIDs[email]
	if !known {
		result.AddError("email", "Unknown user "+email)
	}

	day, ok := common.ParseInputDate(date)
	if !ok {
		result.AddError("date", "date must be a valid DD/MM/YYYY date")
	}

	t := Type(strings.ToUpper(strings.TrimSpace(record["type"])))
	if err := common.ValidateEnum("type", string(t), Types); err != nil {
		result.AddError(err.Field, err.Message)
	} else {
		distance, steps, err := parseAmounts(record)
		if err != nil {
			result.AddError("distance_km", err.Error())
		} else if verr := Validate(t, distance, steps); verr != nil {
			field := "distance_km"
			if common.CodeOf(verr) == "INVALID_STEPS" {
				field = "steps"
			}
			result.AddError(field, verr.(*common.Error).Message)
		}
	}

	if known && ok {
		key := strconv.FormatUint(uint64(userID), 10) + "/" + day
		if v.seen[key] {
			result.AddError("date", "Duplicate activity for this user and day")
		} else if result.Valid {
			v.seen[key] = true
		}
	}
	return result
}

// NormalizeActivityRecord builds the model for a validated record.
func (v *ActivityValidator) NormalizeActivityRecord(record map[string]string) ActivityModel {
	day, _ := common.ParseInputDate(strings.TrimSpace(record["date"]))
	t := Type(strings.ToUpper(strings.TrimSpace(record["type"])))
	distance, steps, _ := parseAmounts(record)
	distance, steps = Derive(t, distance, steps)
	return ActivityModel{
		UserID:     v.userIDs[common.NormalizeEmail(record["email"])],
		Date:       day,
		Type:       t,
		DistanceKm: distance,
		Steps:      steps,
	}
}

func parseAmounts(record map[string]string) (float64, *int, error) {
	var distance float64
	if raw := strings.TrimSpace(record["distance_km"]); raw != "" {
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, nil, err
		}
		distance = d
	}
	var steps *int
	if raw := strings.TrimSpace(record["steps"]); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, nil, err
		}
		steps = &n
	}
	return distance, steps, nil
}
