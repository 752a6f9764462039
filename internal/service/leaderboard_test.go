package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"teamboard/internal/model"
)

func doneTask(id, project string, prio model.Priority, updated time.Time, assignees ...string) model.Task {
	return model.Task{
		ID:          id,
		Title:       "task " + id,
		Status:      model.TaskDone,
		Priority:    prio,
		ProjectID:   project,
		AssigneeIDs: assignees,
		UpdatedAt:   updated,
	}
}

func withClock(t *testing.T, at time.Time) {
	t.Helper()
	prev := now
	now = func() time.Time { return at }
	t.Cleanup(func() { now = prev })
}

func TestParseRange(t *testing.T) {
	for raw, want := range map[string]Range{"": RangeAll, "ALL": RangeAll, "week": RangeWeek, " month ": RangeMonth} {
		got, err := ParseRange(raw)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseRange("year")
	assert.Equal(t, KindBadRequest, KindOf(err))
}

func TestLeaderboardScoring(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	withClock(t, at)

	users := newMemUsers(alice, bob, carol)
	projects := newMemProjects(model.Project{ID: "p1", OwnerID: alice.ID})
	tasks := newMemTasks(
		// high split between alice (owner) and bob: 10+2 and 10
		doneTask("t1", "p1", model.PriorityHigh, at.Add(-time.Hour), alice.ID, bob.ID),
		// medium for bob
		doneTask("t2", "p1", model.PriorityMedium, at.Add(-2*time.Hour), bob.ID),
		// low split three ways: 5/3 each
		doneTask("t3", "p1", model.PriorityLow, at.Add(-3*time.Hour), bob.ID, carol.ID, "u-ghost"),
		// unassigned tasks score nothing
		doneTask("t4", "p1", model.PriorityUrgent, at.Add(-4*time.Hour)),
		model.Task{ID: "t5", Status: model.TaskTodo, Priority: model.PriorityHigh, ProjectID: "p1", AssigneeIDs: []string{carol.ID}},
	)
	svc := NewLeaderboardService(tasks, projects, users)

	board, err := svc.Get(context.Background(), RangeAll)
	require.NoError(t, err)
	require.Len(t, board.Entries, 3)

	first, second, third := board.Entries[0], board.Entries[1], board.Entries[2]
	assert.Equal(t, bob.ID, first.Member.ID)
	assert.Equal(t, 21.7, first.Points)
	assert.Equal(t, 3, first.TasksCompleted)
	assert.Equal(t, 1, first.HighPriority)
	assert.Equal(t, []string{"Champion"}, first.Badges)
	assert.Equal(t, 1, first.Rank)

	assert.Equal(t, alice.ID, second.Member.ID)
	assert.Equal(t, 12.0, second.Points)
	assert.Equal(t, []string{"Runner Up"}, second.Badges)

	assert.Equal(t, carol.ID, third.Member.ID)
	assert.Equal(t, 1.7, third.Points)
	assert.Equal(t, 1, third.Level)
	assert.Equal(t, []string{"Third"}, third.Badges)

	require.Len(t, board.RecentActivity, 5)
	assert.Equal(t, "task t1", board.RecentActivity[0].TaskTitle)
	var bonus int
	for _, a := range board.RecentActivity {
		if a.IsBonus {
			bonus++
			assert.Equal(t, alice.ID, a.User.ID)
			assert.Equal(t, 12.0, a.Points)
		}
	}
	assert.Equal(t, 1, bonus)
}

func TestLeaderboardRanges(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	withClock(t, at)

	users := newMemUsers(alice)
	projects := newMemProjects(model.Project{ID: "p1", OwnerID: bob.ID})
	tasks := newMemTasks(
		doneTask("recent", "p1", model.PriorityLow, at.Add(-24*time.Hour), alice.ID),
		doneTask("early-month", "p1", model.PriorityMedium, time.Date(2026, 10, 2, 0, 0, 0, 0, time.UTC), alice.ID),
		doneTask("last-month", "p1", model.PriorityHigh, time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC), alice.ID),
	)
	svc := NewLeaderboardService(tasks, projects, users)

	for r, want := range map[Range]float64{RangeWeek: 5, RangeMonth: 15, RangeAll: 35} {
		board, err := svc.Get(context.Background(), r)
		require.NoError(t, err)
		require.Len(t, board.Entries, 1)
		assert.Equal(t, want, board.Entries[0].Points, string(r))
	}
}

func TestLeaderboardLevelsAndBadges(t *testing.T) {
	at := time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC)
	withClock(t, at)

	var tasks []model.Task
	for i := 0; i < 11; i++ {
		project := []string{"p1", "p2", "p3"}[i%3]
		tasks = append(tasks, doneTask(string(rune('a'+i)), project, model.PriorityUrgent, at.Add(-time.Duration(i)*time.Minute), alice.ID))
	}
	svc := NewLeaderboardService(newMemTasks(tasks...), newMemProjects(), newMemUsers(alice, bob))

	board, err := svc.Get(context.Background(), RangeAll)
	require.NoError(t, err)
	top := board.Entries[0]
	assert.Equal(t, 220.0, top.Points)
	assert.Equal(t, 3, top.Level)
	assert.Equal(t, 20.0, top.LevelProgress)
	assert.Equal(t, []string{"Champion", "Blitz", "Legend", "General"}, top.Badges)
	assert.Equal(t, 3, top.ProjectsCount)

	assert.Equal(t, bob.ID, board.Entries[1].Member.ID)
	assert.Equal(t, 0.0, board.Entries[1].Points)
	assert.Len(t, board.RecentActivity, 11)
}
