package stats

import (
	"context"
	"sort"
	"time"

	"mobility-challenge/activities"
	"mobility-challenge/common"
)

const (
	// WindowDays is the span of the per-user statistics and progress series.
	WindowDays = 30
	// TopLimit is how many entries a top-only ranking keeps.
	TopLimit = 10
	// NoTeam labels users without a team in individual rankings.
	NoTeam = "Sans équipe"

	co2PerKmVelo   = 0.21
	co2PerKmMarche = 0.19
)

type GeneralStats struct {
	TotalParticipants int              `json:"totalParticipants"`
	TotalDistance     float64          `json:"totalDistance"`
	TotalTeams        int              `json:"totalTeams"`
	AvgDailyDistance  float64          `json:"avgDailyDistance"`
	TopActivityType   *activities.Type `json:"topActivityType"`
	ChallengeDuration int              `json:"challengeDuration"`
	ActiveDays        int              `json:"activeDays"`
	CO2Saved          float64          `json:"co2Saved"`
}

type TeamRanking struct {
	Rank       int     `json:"rank"`
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	TotalKm    float64 `json:"totalKm"`
	Members    int     `json:"members"`
	AvgPerUser float64 `json:"avgPerUser"`
	Badge      *string `json:"badge"`
}

type UserRanking struct {
	Rank     int     `json:"rank"`
	ID       uint    `json:"id"`
	Name     string  `json:"name"`
	Team     string  `json:"team"`
	TotalKm  float64 `json:"totalKm"`
	AvgDaily float64 `json:"avgDaily"`
	Badge    *string `json:"badge"`
}

type UserStats struct {
	TotalKm        float64 `json:"totalKm"`
	BikeKm         float64 `json:"bikeKm"`
	WalkKm         float64 `json:"walkKm"`
	DailyAverage   float64 `json:"dailyAverage"`
	IndividualRank int     `json:"individualRank"`
	TeamRank       int     `json:"teamRank"`
	TotalUsers     int     `json:"totalUsers"`
	TotalTeams     int     `json:"totalTeams"`
	DaysActive     int     `json:"daysActive"`
	Streak         int     `json:"streak"`
}

type ProgressPoint struct {
	Date string  `json:"date"`
	Bike float64 `json:"bike"`
	Walk float64 `json:"walk"`
}

// Aggregator computes challenge statistics from a Source.
type Aggregator struct {
	source Source
	now    func() time.Time
}

func NewAggregator(source Source, now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{source: source, now: now}
}

func (a *Aggregator) today() string {
	return common.DayOf(a.now())
}

func (a *Aggregator) General(ctx context.Context) (GeneralStats, error) {
	s, err := a.load(ctx)
	if err != nil {
		return GeneralStats{}, err
	}
	entries := s.entries

	out := GeneralStats{TotalParticipants: len(s.members), TotalTeams: len(s.teams)}
	if len(entries) == 0 {
		return out, nil
	}

	var total, co2 float64
	counts := map[activities.Type]int{}
	days := map[string]bool{}
	first, last := entries[0].Date, entries[0].Date
	for _, e := range entries {
		total += e.DistanceKm
		co2 += e.DistanceKm * co2Factor(e.Type)
		counts[e.Type]++
		days[e.Date] = true
		if e.Date < first {
			first = e.Date
		}
		if e.Date > last {
			last = e.Date
		}
	}

	// ties go to the first type listed
	top := activities.Velo
	for _, t := range []activities.Type{activities.Velo, activities.Marche} {
		if counts[t] > counts[top] {
			top = t
		}
	}

	out.TotalDistance = common.Round1(total)
	out.ActiveDays = len(days)
	out.AvgDailyDistance = common.Round1(total / float64(len(days)))
	out.TopActivityType = &top
	out.ChallengeDuration = common.DaysBetween(first, last) + 1
	out.CO2Saved = common.Round1(co2)
	return out, nil
}

func co2Factor(t activities.Type) float64 {
	if t == activities.Velo {
		return co2PerKmVelo
	}
	return co2PerKmMarche
}

// TeamRankings ranks every team by all-time distance.
func (a *Aggregator) TeamRankings(ctx context.Context, p common.Pagination, topOnly bool) (common.Page[TeamRanking], error) {
	s, err := a.load(ctx)
	if err != nil {
		return common.Page[TeamRanking]{}, err
	}
	ranked := rankTeams(s)
	if topOnly && len(ranked) > TopLimit {
		ranked = ranked[:TopLimit]
	}
	return common.Paginate(ranked, p), nil
}

// IndividualRankings ranks every user by all-time distance.
func (a *Aggregator) IndividualRankings(ctx context.Context, p common.Pagination, topOnly bool) (common.Page[UserRanking], error) {
	s, err := a.load(ctx)
	if err != nil {
		return common.Page[UserRanking]{}, err
	}
	ranked := rankUsers(s)
	if topOnly && len(ranked) > TopLimit {
		ranked = ranked[:TopLimit]
	}
	return common.Paginate(ranked, p), nil
}

type snapshot struct {
	members []Member
	teams   []Team
	entries []Entry
}

func (a *Aggregator) load(ctx context.Context) (snapshot, error) {
	var s snapshot
	var err error
	if s.members, err = a.source.Users(ctx); err != nil {
		return s, common.AsDatabase(err, "Failed to load users")
	}
	if s.teams, err = a.source.Teams(ctx); err != nil {
		return s, common.AsDatabase(err, "Failed to load teams")
	}
	if s.entries, err = a.source.Activities(ctx); err != nil {
		return s, common.AsDatabase(err, "Failed to load activities")
	}
	return s, nil
}

type scored struct {
	id    uint
	total float64
}

// sortScored orders by total descending, then id ascending.
func sortScored(items []scored) {
	sort.Slice(items, func(i, j int) bool {
		if items[i].total != items[j].total {
			return items[i].total > items[j].total
		}
		return items[i].id < items[j].id
	})
}

func rankTeams(s snapshot) []TeamRanking {
	userTotals := totalsByUser(s.entries)
	teamTotals := map[uint]float64{}
	members := map[uint]int{}
	for _, m := range s.members {
		if m.TeamID == nil {
			continue
		}
		members[*m.TeamID]++
		teamTotals[*m.TeamID] += userTotals[m.ID]
	}

	byID := make(map[uint]Team, len(s.teams))
	ranked := make([]scored, 0, len(s.teams))
	for _, t := range s.teams {
		byID[t.ID] = t
		ranked = append(ranked, scored{id: t.ID, total: teamTotals[t.ID]})
	}
	sortScored(ranked)

	out := make([]TeamRanking, len(ranked))
	for i, o := range ranked {
		n := members[o.id]
		avg := 0.0
		if n > 0 {
			avg = o.total / float64(n)
		}
		out[i] = TeamRanking{
			Rank:       i + 1,
			ID:         o.id,
			Name:       byID[o.id].Name,
			TotalKm:    common.Round1(o.total),
			Members:    n,
			AvgPerUser: common.Round1(avg),
			Badge:      badge(i + 1),
		}
	}
	return out
}

func rankUsers(s snapshot) []UserRanking {
	totals := totalsByUser(s.entries)
	days := map[uint]map[string]bool{}
	for _, e := range s.entries {
		if days[e.UserID] == nil {
			days[e.UserID] = map[string]bool{}
		}
		days[e.UserID][e.Date] = true
	}
	teamNames := make(map[uint]string, len(s.teams))
	for _, t := range s.teams {
		teamNames[t.ID] = t.Name
	}

	byID := make(map[uint]Member, len(s.members))
	ranked := make([]scored, 0, len(s.members))
	for _, m := range s.members {
		byID[m.ID] = m
		ranked = append(ranked, scored{id: m.ID, total: totals[m.ID]})
	}
	sortScored(ranked)

	out := make([]UserRanking, len(ranked))
	for i, o := range ranked {
		m := byID[o.id]
		team := NoTeam
		if m.TeamID != nil {
			if name, ok := teamNames[*m.TeamID]; ok {
				team = name
			}
		}
		avg := 0.0
		if n := len(days[o.id]); n > 0 {
			avg = o.total / float64(n)
		}
		out[i] = UserRanking{
			Rank:     i + 1,
			ID:       o.id,
			Name:     m.Name,
			Team:     team,
			TotalKm:  common.Round1(o.total),
			AvgDaily: common.Round1(avg),
			Badge:    badge(i + 1),
		}
	}
	return out
}

func totalsByUser(entries []Entry) map[uint]float64 {
	out := map[uint]float64{}
	for _, e := range entries {
		out[e.UserID] += e.DistanceKm
	}
	return out
}

func badge(rank int) *string {
	var b string
	switch rank {
	case 1:
		b = "gold"
	case 2:
		b = "silver"
	case 3:
		b = "bronze"
	default:
		return nil
	}
	return &b
}

// UserStats summarises one user's last WindowDays days. Ranks are all-time.
func (a *Aggregator) UserStats(ctx context.Context, userID uint) (UserStats, error) {
	member, err := a.member(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	s, err := a.load(ctx)
	if err != nil {
		return UserStats{}, err
	}

	today := a.today()
	from := common.AddDays(today, -(WindowDays - 1))

	var total, bike float64
	active := map[string]bool{}
	all := map[string]bool{}
	for _, e := range s.entries {
		if e.UserID != userID {
			continue
		}
		all[e.Date] = true
		if e.Date < from || e.Date > today {
			continue
		}
		total += e.DistanceKm
		if e.Type == activities.Velo {
			bike += e.DistanceKm
		}
		active[e.Date] = true
	}

	out := UserStats{
		TotalKm:    common.Round1(total),
		BikeKm:     common.Round1(bike),
		WalkKm:     common.Round1(total - bike),
		TotalUsers: len(s.members),
		TotalTeams: len(s.teams),
		DaysActive: len(active),
		Streak:     streak(all, today),
	}
	if len(active) > 0 {
		out.DailyAverage = common.Round1(total / float64(len(active)))
	}

	for _, r := range rankUsers(s) {
		if r.ID == userID {
			out.IndividualRank = r.Rank
			break
		}
	}
	if member.TeamID != nil {
		for _, r := range rankTeams(s) {
			if r.ID == *member.TeamID {
				out.TeamRank = r.Rank
				break
			}
		}
	}
	return out, nil
}

// streak counts consecutive active days ending today.
func streak(days map[string]bool, today string) int {
	n := 0
	for day := today; days[day]; day = common.AddDays(day, -1) {
		n++
	}
	return n
}

// UserProgress returns one point per day from today-29 to today, ascending.
func (a *Aggregator) UserProgress(ctx context.Context, userID uint, p common.Pagination) (common.Page[ProgressPoint], error) {
	if _, err := a.member(ctx, userID); err != nil {
		return common.Page[ProgressPoint]{}, err
	}
	entries, err := a.source.UserActivities(ctx, userID)
	if err != nil {
		return common.Page[ProgressPoint]{}, common.AsDatabase(err, "Failed to load activities")
	}

	today := a.today()
	from := common.AddDays(today, -(WindowDays - 1))
	index := make(map[string]int, WindowDays)
	bike := make([]float64, WindowDays)
	walk := make([]float64, WindowDays)
	days := make([]string, WindowDays)
	for i := 0; i < WindowDays; i++ {
		days[i] = common.AddDays(from, i)
		index[days[i]] = i
	}
	for _, e := range entries {
		i, ok := index[e.Date]
		if !ok {
			continue
		}
		if e.Type == activities.Velo {
			bike[i] += e.DistanceKm
		} else {
			walk[i] += e.DistanceKm
		}
	}

	points := make([]ProgressPoint, WindowDays)
	for i, day := range days {
		points[i] = ProgressPoint{Date: day, Bike: common.Round1(bike[i]), Walk: common.Round1(walk[i])}
	}
	return common.Paginate(points, p), nil
}

func (a *Aggregator) member(ctx context.Context, userID uint) (*Member, error) {
	if userID == 0 {
		return nil, common.InvalidInput("INVALID_ID", "User id must be a positive integer")
	}
	m, err := a.source.User(ctx, userID)
	if err != nil {
		return nil, common.AsDatabase(err, "Failed to load user")
	}
	if m == nil {
		return nil, common.NotFound("USER_NOT_FOUND", "User not found")
	}
	return m, nil
}
