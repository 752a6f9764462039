package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"teamboard/internal/model"
	"teamboard/internal/realtime"
)

var (
	alice = model.User{ID: "u-alice", Name: "Alice", Email: "alice@example.com"}
	bob   = model.User{ID: "u-bob", Name: "Bob", Email: "bob@example.com"}
	carol = model.User{ID: "u-carol", Name: "Carol", Email: "carol@example.com"}
)

type projectFixture struct {
	users    *memUsers
	projects *memProjects
	tasks    *memTasks
	bc       *recorder
	svc      *ProjectService
}

func newProjectFixture(projects []model.Project, tasks []model.Task) *projectFixture {
	f := &projectFixture{
		users:    newMemUsers(alice, bob, carol),
		projects: newMemProjects(projects...),
		tasks:    newMemTasks(tasks...),
		bc:       &recorder{},
	}
	f.svc = NewProjectService(f.projects, f.tasks, f.users, f.bc, nil, zap.NewNop())
	return f
}

func tasksWith(projectID string, statuses ...model.TaskStatus) []model.Task {
	out := make([]model.Task, len(statuses))
	for i, st := range statuses {
		out[i] = model.Task{
			ID:        projectID + "-t" + string(rune('a'+i)),
			Title:     "task",
			Status:    st,
			Priority:  model.PriorityLow,
			ProjectID: projectID,
			Order:     i,
		}
	}
	return out
}

func TestProjectCreate(t *testing.T) {
	f := newProjectFixture(nil, nil)

	view, err := f.svc.Create(context.Background(), alice.ID, CreateProjectInput{
		Name:      "  Launch  ",
		MemberIDs: []string{bob.ID, alice.ID, bob.ID, ""},
	})
	require.NoError(t, err)

	assert.Equal(t, "Launch", view.Name)
	assert.Equal(t, model.ProjectActive, view.Status)
	require.NotNil(t, view.Owner)
	assert.Equal(t, alice.ID, view.Owner.ID)
	require.Len(t, view.Members, 1)
	assert.Equal(t, bob.ID, view.Members[0].ID)

	stored := f.projects.get(view.ID)
	assert.Equal(t, []string{bob.ID}, stored.MemberIDs)

	created := f.bc.named(realtime.EventProjectCreated)
	require.Len(t, created, 1)
	assert.Empty(t, created[0].Room)
	payload := wire(created[0].Data)
	assert.EqualValues(t, 0, payload["progress"])
	assert.EqualValues(t, 0, payload["totalTasks"])
	assert.EqualValues(t, 0, payload["completedTasks"])
}

func TestProjectCreateValidation(t *testing.T) {
	f := newProjectFixture(nil, nil)

	_, err := f.svc.Create(context.Background(), alice.ID, CreateProjectInput{Name: "  "})
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = f.svc.Create(context.Background(), alice.ID, CreateProjectInput{Name: "x", Status: "archived"})
	assert.Equal(t, KindBadRequest, KindOf(err))

	view, err := f.svc.Create(context.Background(), alice.ID, CreateProjectInput{Name: "x", Status: "Upcoming"})
	require.NoError(t, err)
	assert.Equal(t, model.ProjectUpcoming, view.Status)
}

func TestProjectProgressScenarioA(t *testing.T) {
	p := model.Project{ID: "p1", Name: "A", Status: model.ProjectActive, OwnerID: alice.ID}
	f := newProjectFixture(
		[]model.Project{p},
		tasksWith("p1", model.TaskDone, model.TaskDone, model.TaskInProgress, model.TaskTodo),
	)

	view, err := f.svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 4, view.TotalTasks)
	assert.Equal(t, 2, view.CompletedTasks)
	assert.Equal(t, 1, view.InProgressTasks)
	assert.Equal(t, 63, view.Progress)
}

func TestProjectSelfHealScenarioB(t *testing.T) {
	p := model.Project{ID: "p1", Name: "B", Status: model.ProjectCompleted, OwnerID: alice.ID}
	f := newProjectFixture(
		[]model.Project{p},
		tasksWith("p1", model.TaskDone, model.TaskInProgress, model.TaskTodo),
	)

	view, err := f.svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 50, view.Progress)
	assert.Equal(t, model.ProjectActive, view.Status)

	f.svc.WaitHeals()
	assert.Equal(t, model.ProjectActive, f.projects.get("p1").Status)

	list, err := f.svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, model.ProjectActive, list[0].Status)
}

func TestProjectSelfHealOnUpdateBroadcast(t *testing.T) {
	p := model.Project{ID: "p1", Name: "B", Status: model.ProjectActive, OwnerID: alice.ID}
	f := newProjectFixture([]model.Project{p}, tasksWith("p1", model.TaskDone, model.TaskTodo))

	completed := "completed"
	view, err := f.svc.Update(context.Background(), alice.ID, "p1", UpdateProjectInput{Status: &completed})
	require.NoError(t, err)
	assert.Equal(t, model.ProjectActive, view.Status)

	updated := f.bc.named(realtime.EventProjectUpdated)
	require.Len(t, updated, 1)
	assert.Equal(t, "active", wire(updated[0].Data)["status"])

	f.svc.WaitHeals()
	assert.Equal(t, model.ProjectActive, f.projects.get("p1").Status)
}

func TestProjectNeverAutoPromotes(t *testing.T) {
	p := model.Project{ID: "p1", Name: "C", Status: model.ProjectActive, OwnerID: alice.ID}
	f := newProjectFixture([]model.Project{p}, tasksWith("p1", model.TaskDone, model.TaskDone))

	view, err := f.svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 100, view.Progress)
	assert.Equal(t, model.ProjectActive, view.Status)

	f.svc.WaitHeals()
	assert.Empty(t, f.projects.statusWrites)
}

func TestProjectSelfHealFailureIsNotSurfaced(t *testing.T) {
	p := model.Project{ID: "p1", Name: "D", Status: model.ProjectCompleted, OwnerID: alice.ID}
	f := newProjectFixture([]model.Project{p}, tasksWith("p1", model.TaskTodo))
	f.projects.failStatus = errors.New("write failed")

	view, err := f.svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectActive, view.Status)

	select {
	case <-f.projects.statusWritten:
	case <-time.After(time.Second):
		t.Fatal("self-heal write was not attempted")
	}
	f.svc.WaitHeals()
	assert.Equal(t, model.ProjectCompleted, f.projects.get("p1").Status)
}

func TestProjectSelfHealYieldsToConcurrentStatusChange(t *testing.T) {
	p := model.Project{ID: "p1", Name: "D", Status: model.ProjectCompleted, OwnerID: alice.ID}
	f := newProjectFixture([]model.Project{p}, tasksWith("p1", model.TaskTodo))
	// an actor sets upcoming between the read and the background write
	f.projects.beforeStatus = func(p *model.Project) { p.Status = model.ProjectUpcoming }

	view, err := f.svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, model.ProjectActive, view.Status)

	f.svc.WaitHeals()
	assert.Equal(t, model.ProjectUpcoming, f.projects.get("p1").Status)
	assert.Empty(t, f.projects.statusWrites)
}

func TestProjectEmptyKeepsStoredStatus(t *testing.T) {
	p := model.Project{ID: "p1", Name: "E", Status: model.ProjectCompleted, OwnerID: alice.ID}
	f := newProjectFixture([]model.Project{p}, nil)

	view, err := f.svc.Get(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.Progress)
	assert.Equal(t, model.ProjectCompleted, view.Status)
}

func TestProjectUpdateIsIdempotentForObservers(t *testing.T) {
	p := model.Project{ID: "p1", Name: "Old", Status: model.ProjectActive, OwnerID: alice.ID}
	f := newProjectFixture([]model.Project{p}, tasksWith("p1", model.TaskDone))

	name := "New"
	_, err := f.svc.Update(context.Background(), alice.ID, "p1", UpdateProjectInput{Name: &name})
	require.NoError(t, err)
	_, err = f.svc.Update(context.Background(), alice.ID, "p1", UpdateProjectInput{Name: &name})
	require.NoError(t, err)

	updated := f.bc.named(realtime.EventProjectUpdated)
	require.Len(t, updated, 2)
	first, second := wire(updated[0].Data), wire(updated[1].Data)
	delete(first, "updatedAt")
	delete(second, "updatedAt")
	assert.Equal(t, first, second)
	assert.Equal(t, "New", first["name"])
	assert.EqualValues(t, 100, first["progress"])
}

func TestProjectUpdateNotFound(t *testing.T) {
	f := newProjectFixture(nil, nil)
	name := "x"
	_, err := f.svc.Update(context.Background(), alice.ID, "missing", UpdateProjectInput{Name: &name})
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Empty(t, f.bc.named(realtime.EventProjectUpdated))
}

func TestProjectDeleteCascades(t *testing.T) {
	projects := []model.Project{
		{ID: "p1", Name: "One", OwnerID: alice.ID, Status: model.ProjectActive},
		{ID: "p2", Name: "Two", OwnerID: alice.ID, Status: model.ProjectActive},
	}
	tasks := append(tasksWith("p1", model.TaskTodo, model.TaskDone), tasksWith("p2", model.TaskTodo)...)
	f := newProjectFixture(projects, tasks)

	require.NoError(t, f.svc.Delete(context.Background(), alice.ID, "p1"))

	remaining := f.tasks.all()
	require.Len(t, remaining, 1)
	assert.Equal(t, "p2", remaining[0].ProjectID)

	deleted := f.bc.named(realtime.EventProjectDeleted)
	require.Len(t, deleted, 1)
	assert.Equal(t, "p1", deleted[0].Data)

	err := f.svc.Delete(context.Background(), alice.ID, "p1")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestAddMembersScenarioC(t *testing.T) {
	p := model.Project{ID: "p1", Name: "C", OwnerID: alice.ID, MemberIDs: []string{bob.ID}, Status: model.ProjectActive}
	f := newProjectFixture([]model.Project{p}, nil)

	view, err := f.svc.AddMembers(context.Background(), alice.ID, "p1", AddMembersInput{
		MemberIDs: []string{alice.ID, bob.ID, carol.ID, "u-ghost"},
	})
	require.NoError(t, err)
	require.Len(t, view.Members, 2)
	assert.Equal(t, carol.ID, view.Members[1].ID)
	assert.Equal(t, 1, f.projects.memberWrites)

	// second identical call: nothing new, no second write, same broadcast
	view, err = f.svc.AddMembers(context.Background(), alice.ID, "p1", AddMembersInput{
		MemberIDs: []string{carol.ID},
	})
	require.NoError(t, err)
	assert.Len(t, view.Members, 2)
	assert.Equal(t, 1, f.projects.memberWrites)
	assert.Len(t, f.bc.named(realtime.EventProjectUpdated), 2)
}

func TestAddMembersByEmail(t *testing.T) {
	p := model.Project{ID: "p1", Name: "C", OwnerID: alice.ID, Status: model.ProjectActive}
	f := newProjectFixture([]model.Project{p}, nil)

	view, err := f.svc.AddMembers(context.Background(), alice.ID, "p1", AddMembersInput{Email: "BOB@example.com"})
	require.NoError(t, err)
	require.Len(t, view.Members, 1)
	assert.Equal(t, bob.ID, view.Members[0].ID)

	_, err = f.svc.AddMembers(context.Background(), alice.ID, "p1", AddMembersInput{Email: "nobody@example.com"})
	assert.Equal(t, KindNotFound, KindOf(err))

	_, err = f.svc.AddMembers(context.Background(), alice.ID, "p1", AddMembersInput{})
	assert.Equal(t, KindBadRequest, KindOf(err))

	_, err = f.svc.AddMembers(context.Background(), alice.ID, "missing", AddMembersInput{Email: bob.Email})
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestAddMembersEmptyListTakesPrecedence(t *testing.T) {
	p := model.Project{ID: "p1", Name: "C", OwnerID: alice.ID, Status: model.ProjectActive}
	f := newProjectFixture([]model.Project{p}, nil)

	view, err := f.svc.AddMembers(context.Background(), alice.ID, "p1", AddMembersInput{
		MemberIDs: []string{},
		Email:     bob.Email,
	})
	require.NoError(t, err)
	assert.Empty(t, view.Members)
	assert.Equal(t, 0, f.projects.memberWrites)
}

func TestProjectStats(t *testing.T) {
	projects := []model.Project{
		{ID: "p1", OwnerID: alice.ID, MemberIDs: []string{bob.ID}},
		{ID: "p2", OwnerID: bob.ID, MemberIDs: []string{carol.ID}},
	}
	tasks := append(
		tasksWith("p1", model.TaskDone, model.TaskTodo, model.TaskInProgress),
		tasksWith("p2", model.TaskDone)...,
	)
	f := newProjectFixture(projects, tasks)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DashboardStats{
		TotalProjects:  2,
		ActiveTasks:    2,
		CompletedTasks: 2,
		TeamMembers:    3,
	}, *stats)
}

type denyAll struct{}

func (denyAll) Authorize(context.Context, string, string, string) error {
	return errors.New("denied")
}

func TestProjectAuthorizationSeam(t *testing.T) {
	f := newProjectFixture(nil, nil)
	svc := NewProjectService(f.projects, f.tasks, f.users, f.bc, denyAll{}, zap.NewNop())

	_, err := svc.Create(context.Background(), alice.ID, CreateProjectInput{Name: "x"})
	assert.Equal(t, KindForbidden, KindOf(err))
	assert.Empty(t, f.bc.events)
}
