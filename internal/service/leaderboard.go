package service

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"teamboard/internal/model"
)

type Range string

const (
	RangeAll   Range = "all"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
)

const (
	pointsPerLevel  = 100
	teamLeadBonus   = 2
	recentActivityN = 20
)

// ParseRange accepts all, week and month; empty means all.
func ParseRange(raw string) (Range, error) {
	switch r := Range(strings.ToLower(strings.TrimSpace(raw))); r {
	case "":
		return RangeAll, nil
	case RangeAll, RangeWeek, RangeMonth:
		return r, nil
	default:
		return "", BadRequest("Invalid range")
	}
}

// since returns the lower bound of updatedAt for done tasks in r.
func (r Range) since(now time.Time) time.Time {
	switch r {
	case RangeWeek:
		return now.Add(-7 * 24 * time.Hour)
	case RangeMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return time.Time{}
	}
}

type LeaderboardEntry struct {
	Rank           int               `json:"rank"`
	Member         model.UserSummary `json:"member"`
	Points         float64           `json:"points"`
	TasksCompleted int               `json:"tasksCompleted"`
	HighPriority   int               `json:"highPriority"`
	ProjectsCount  int               `json:"projectsCount"`
	Level          int               `json:"level"`
	LevelProgress  float64           `json:"progress"`
	Badges         []string          `json:"badges"`
}

type Activity struct {
	User      model.UserSummary `json:"user"`
	TaskTitle string            `json:"taskTitle"`
	Points    float64           `json:"points"`
	Priority  model.Priority    `json:"priority"`
	IsBonus   bool              `json:"isBonus"`
	Date      time.Time         `json:"date"`
}

type Leaderboard struct {
	Range          Range              `json:"range"`
	Entries        []LeaderboardEntry `json:"leaderboard"`
	RecentActivity []Activity         `json:"recentActivity"`
}

type LeaderboardService struct {
	tasks    TaskStore
	projects ProjectStore
	users    UserStore
}

func NewLeaderboardService(tasks TaskStore, projects ProjectStore, users UserStore) *LeaderboardService {
	return &LeaderboardService{tasks: tasks, projects: projects, users: users}
}

func taskPoints(p model.Priority) float64 {
	switch p {
	case model.PriorityHigh, model.PriorityUrgent:
		return 20
	case model.PriorityMedium:
		return 10
	default:
		return 5
	}
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

type score struct {
	member    model.UserSummary
	points    float64
	completed int
	high      int
	projects  map[string]struct{}
}

// Get scores done tasks in r. Every user appears, with zero points when they
// completed nothing.
func (s *LeaderboardService) Get(ctx context.Context, r Range) (*Leaderboard, error) {
	var (
		done     []model.Task
		projects []model.Project
		users    []model.User
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		done, err = s.tasks.ListDone(gctx, r.since(now()))
		return err
	})
	g.Go(func() (err error) {
		projects, err = s.projects.List(gctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.users.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Internal("Server Error", err)
	}

	owners := make(map[string]string, len(projects))
	for i := range projects {
		owners[projects[i].ID] = projects[i].OwnerID
	}

	scores := make(map[string]*score, len(users))
	order := make([]string, 0, len(users))
	for i := range users {
		scores[users[i].ID] = &score{member: users[i].Summary(), projects: map[string]struct{}{}}
		order = append(order, users[i].ID)
	}

	var log []Activity
	for i := range done {
		t := &done[i]
		if len(t.AssigneeIDs) == 0 {
			continue
		}
		share := taskPoints(t.Priority) / float64(len(t.AssigneeIDs))
		for _, uid := range t.AssigneeIDs {
			sc, ok := scores[uid]
			if !ok {
				// dangling assignee
				continue
			}
			pts := share
			bonus := owners[t.ProjectID] == uid
			if bonus {
				pts += teamLeadBonus
			}
			sc.points += pts
			sc.completed++
			if t.Priority == model.PriorityHigh || t.Priority == model.PriorityUrgent {
				sc.high++
			}
			sc.projects[t.ProjectID] = struct{}{}

			log = append(log, Activity{
				User:      sc.member,
				TaskTitle: t.Title,
				Points:    round1(pts),
				Priority:  t.Priority,
				IsBonus:   bonus,
				Date:      t.UpdatedAt,
			})
		}
	}

	entries := make([]LeaderboardEntry, 0, len(order))
	for _, uid := range order {
		entries = append(entries, scores[uid].entry())
	}
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Points > entries[b].Points })
	rankBadges := []string{"Champion", "Runner Up", "Third"}
	for i := range entries {
		entries[i].Rank = i + 1
		if i < len(rankBadges) {
			entries[i].Badges = append([]string{rankBadges[i]}, entries[i].Badges...)
		}
	}

	sort.SliceStable(log, func(a, b int) bool { return log[a].Date.After(log[b].Date) })
	if len(log) > recentActivityN {
		log = log[:recentActivityN]
	}
	if log == nil {
		log = []Activity{}
	}

	return &Leaderboard{Range: r, Entries: entries, RecentActivity: log}, nil
}

func (sc *score) entry() LeaderboardEntry {
	points := round1(sc.points)
	level := int(math.Floor(points/pointsPerLevel)) + 1
	e := LeaderboardEntry{
		Member:         sc.member,
		Points:         points,
		TasksCompleted: sc.completed,
		HighPriority:   sc.high,
		ProjectsCount:  len(sc.projects),
		Level:          level,
		LevelProgress:  round1(points - float64((level-1)*pointsPerLevel)),
		Badges:         []string{},
	}
	if sc.high >= 5 {
		e.Badges = append(e.Badges, "Blitz")
	}
	if sc.completed >= 20 {
		e.Badges = append(e.Badges, "Veteran")
	}
	if points >= 200 {
		e.Badges = append(e.Badges, "Legend")
	}
	if len(sc.projects) >= 3 {
		e.Badges = append(e.Badges, "General")
	}
	return e
}
