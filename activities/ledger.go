package activities

import (
	"context"
	"math"
	"time"

	"mobility-challenge/common"
)

// RecordInput is a typed activity declaration.
type RecordInput struct {
	UserID     uint
	Date       string // DD/MM/YYYY
	Type       Type
	DistanceKm float64 // NaN when not given
	Steps      *int
}

// Patch changes an existing activity. Nil fields are left unchanged.
type Patch struct {
	UserID     *uint
	Date       *string // DD/MM/YYYY
	Type       *Type
	DistanceKm *float64
	Steps      *int
}

// Ledger enforces the activity invariants on top of a Store: one activity per
// user and day, declared on the current day, with walking distance derived
// from steps.
type Ledger struct {
	store Store
	now   func() time.Time
}

func NewLedger(store Store, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{store: store, now: now}
}

func (l *Ledger) today() string {
	return common.DayOf(l.now())
}

func (l *Ledger) Record(ctx context.Context, in RecordInput) (*ActivityModel, error) {
	owner, err := l.owner(ctx, in.UserID)
	if err != nil {
		return nil, err
	}
	day, err := l.declaredDay(in.Date)
	if err != nil {
		return nil, err
	}
	if err := l.checkFree(ctx, in.UserID, day, 0); err != nil {
		return nil, err
	}
	if err := Validate(in.Type, in.DistanceKm, in.Steps); err != nil {
		return nil, reject(err)
	}

	distance, steps := Derive(in.Type, in.DistanceKm, in.Steps)
	a := &ActivityModel{
		UserID:     in.UserID,
		Date:       day,
		Type:       in.Type,
		DistanceKm: distance,
		Steps:      steps,
	}
	if err := l.store.Create(ctx, a); err != nil {
		return nil, translateWrite(err, "Failed to record activity")
	}
	a.Owner = owner
	recorded.WithLabelValues(string(a.Type)).Inc()
	return a, nil
}

func (l *Ledger) Get(ctx context.Context, id uint) (*ActivityModel, error) {
	a, err := l.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := l.attachOwners(ctx, []*ActivityModel{a}); err != nil {
		return nil, err
	}
	return a, nil
}

func (l *Ledger) List(ctx context.Context, p common.Pagination) (common.Page[ActivityModel], error) {
	return l.list(ctx, ListFilter{}, p)
}

func (l *Ledger) ListForUser(ctx context.Context, userID uint, p common.Pagination) (common.Page[ActivityModel], error) {
	if _, err := l.owner(ctx, userID); err != nil {
		return common.Page[ActivityModel]{}, err
	}
	return l.list(ctx, ListFilter{UserID: &userID}, p)
}

func (l *Ledger) list(ctx context.Context, f ListFilter, p common.Pagination) (common.Page[ActivityModel], error) {
	items, total, err := l.store.List(ctx, f, p.Skip, p.Take)
	if err != nil {
		return common.Page[ActivityModel]{}, common.AsDatabase(err, "Failed to list activities")
	}
	ptrs := make([]*ActivityModel, len(items))
	for i := range items {
		ptrs[i] = &items[i]
	}
	if err := l.attachOwners(ctx, ptrs); err != nil {
		return common.Page[ActivityModel]{}, err
	}
	if items == nil {
		items = []ActivityModel{}
	}
	return common.Page[ActivityModel]{Items: items, Meta: p.Meta(total)}, nil
}

// Update applies patch and re-checks every invariant the changed fields take
// part in. Unchanged user and date are not re-validated, so activities from
// past days stay editable.
func (l *Ledger) Update(ctx context.Context, id uint, patch Patch) (*ActivityModel, error) {
	current, err := l.find(ctx, id)
	if err != nil {
		return nil, err
	}
	next := *current

	userChanged := patch.UserID != nil && *patch.UserID != current.UserID
	if userChanged {
		if _, err := l.owner(ctx, *patch.UserID); err != nil {
			return nil, err
		}
		next.UserID = *patch.UserID
	}

	dateChanged := false
	if patch.Date != nil {
		day, ok := common.ParseInputDate(*patch.Date)
		if !ok {
			return nil, reject(invalidDateFormat())
		}
		if day != current.Date {
			if day != l.today() {
				return nil, reject(notToday())
			}
			dateChanged = true
			next.Date = day
		}
	}

	if userChanged || dateChanged {
		if err := l.checkFree(ctx, next.UserID, next.Date, current.ID); err != nil {
			return nil, err
		}
	}

	if patch.Type != nil {
		next.Type = *patch.Type
	}
	if patch.DistanceKm != nil {
		next.DistanceKm = *patch.DistanceKm
	}
	if patch.Steps != nil {
		steps := *patch.Steps
		next.Steps = &steps
	}
	if err := Validate(next.Type, next.DistanceKm, next.Steps); err != nil {
		return nil, reject(err)
	}
	next.DistanceKm, next.Steps = Derive(next.Type, next.DistanceKm, next.Steps)

	if err := l.store.Save(ctx, &next); err != nil {
		return nil, translateWrite(err, "Failed to update activity")
	}
	if err := l.attachOwners(ctx, []*ActivityModel{&next}); err != nil {
		return nil, err
	}
	return &next, nil
}

// Delete removes an activity. Callers check ownership.
func (l *Ledger) Delete(ctx context.Context, id uint) error {
	found, err := l.store.Delete(ctx, id)
	if err != nil {
		return common.AsDatabase(err, "Failed to delete activity")
	}
	if !found {
		return activityNotFound()
	}
	return nil
}

// Validate checks the type-dependent fields of an activity.
func Validate(t Type, distanceKm float64, steps *int) error {
	switch t {
	case Marche:
		if steps == nil || *steps <= 0 {
			return common.InvalidInput("INVALID_STEPS", "Steps must be a positive integer for a walk")
		}
	case Velo:
		if math.IsNaN(distanceKm) || math.IsInf(distanceKm, 0) || distanceKm < 0 {
			return common.InvalidInput("INVALID_DISTANCE", "Distance must be a positive number")
		}
	default:
		return common.InvalidInput("INVALID_TYPE", "Type must be VELO or MARCHE")
	}
	return nil
}

// Derive returns the stored distance and steps for a validated activity.
// Walks take their distance from steps; rides never carry steps.
func Derive(t Type, distanceKm float64, steps *int) (float64, *int) {
	if t == Marche {
		s := *steps
		return common.Round1(float64(s) / StepsPerKm), &s
	}
	return distanceKm, nil
}

func (l *Ledger) owner(ctx context.Context, userID uint) (*Owner, error) {
	owner, err := l.store.Owner(ctx, userID)
	if err != nil {
		return nil, common.AsDatabase(err, "Failed to load user")
	}
	if owner == nil {
		return nil, common.NotFound("USER_NOT_FOUND", "User not found")
	}
	return owner, nil
}

func (l *Ledger) declaredDay(date string) (string, error) {
	day, ok := common.ParseInputDate(date)
	if !ok {
		return "", reject(invalidDateFormat())
	}
	if day != l.today() {
		return "", reject(notToday())
	}
	return day, nil
}

func (l *Ledger) checkFree(ctx context.Context, userID uint, day string, excludeID uint) error {
	exists, err := l.store.ExistsOnDay(ctx, userID, day, excludeID)
	if err != nil {
		return common.AsDatabase(err, "Failed to check existing activity")
	}
	if exists {
		return reject(alreadyExists())
	}
	return nil
}

func (l *Ledger) find(ctx context.Context, id uint) (*ActivityModel, error) {
	a, err := l.store.Find(ctx, id)
	if err != nil {
		return nil, common.AsDatabase(err, "Failed to load activity")
	}
	if a == nil {
		return nil, activityNotFound()
	}
	return a, nil
}

func (l *Ledger) attachOwners(ctx context.Context, items []*ActivityModel) error {
	if len(items) == 0 {
		return nil
	}
	ids := make([]uint, 0, len(items))
	seen := make(map[uint]bool, len(items))
	for _, a := range items {
		if !seen[a.UserID] {
			seen[a.UserID] = true
			ids = append(ids, a.UserID)
		}
	}
	owners, err := l.store.Owners(ctx, ids)
	if err != nil {
		return common.AsDatabase(err, "Failed to load activity owners")
	}
	for _, a := range items {
		if o, ok := owners[a.UserID]; ok {
			owner := o
			a.Owner = &owner
		}
	}
	return nil
}

// translateWrite maps a unique-index violation lost to a concurrent writer
// onto the same conflict the explicit check reports.
func translateWrite(err error, message string) error {
	if common.IsDuplicateKey(err) {
		return reject(alreadyExists())
	}
	return common.AsDatabase(err, message)
}

// reject counts a refused declaration or update under its error code.
func reject(err error) error {
	rejected.WithLabelValues(common.CodeOf(err)).Inc()
	return err
}

func invalidDateFormat() error {
	return common.InvalidInput("INVALID_DATE", "Date must be a valid DD/MM/YYYY date")
}

func notToday() error {
	return common.InvalidInput("INVALID_DATE", "Activities can only be declared for today")
}

func alreadyExists() error {
	return common.Conflict("ACTIVITY_ALREADY_EXISTS", "An activity is already declared for this day")
}

func activityNotFound() error {
	return common.NotFound("ACTIVITY_NOT_FOUND", "Activity not found")
}
