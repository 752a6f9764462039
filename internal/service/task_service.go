package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	mqcontracts "teamboard/contracts/mq"
	"teamboard/internal/model"
	"teamboard/internal/realtime"
	"teamboard/pkg/logger"
	"teamboard/pkg/metrics"
	"teamboard/pkg/rbac"
	"teamboard/pkg/trace"
)

const (
	SourceManual    = "manual"
	SourceAssistant = "assistant"
)

type CreateTaskInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	ProjectID   string
	AssigneeIDs []string
	DueDate     *time.Time
}

// UpdateTaskInput holds the provided fields; nil means leave as is.
type UpdateTaskInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	AssigneeIDs []string
	DueDate     *time.Time
}

type ReorderEntry struct {
	ID     string
	Order  int
	Status string
}

type ReorderInput struct {
	Tasks     []ReorderEntry
	ProjectID string
}

type TaskService struct {
	tasks    TaskStore
	projects ProjectStore
	users    UserStore
	bc       Broadcaster
	events   EventPublisher
	ai       Classifier
	authz    Authorizer
	logger   *zap.Logger
}

func NewTaskService(tasks TaskStore, projects ProjectStore, users UserStore, bc Broadcaster, events EventPublisher, ai Classifier, authz Authorizer, logger *zap.Logger) *TaskService {
	if bc == nil {
		bc = NopBroadcaster{}
	}
	return &TaskService{
		tasks:    tasks,
		projects: projects,
		users:    users,
		bc:       bc,
		events:   events,
		ai:       ai,
		authz:    authz,
		logger:   logger,
	}
}

// Create persists a task from the manual path. Priority defaults to low.
func (s *TaskService) Create(ctx context.Context, actor string, in CreateTaskInput) (*model.TaskView, error) {
	if err := authorize(ctx, s.authz, actor, rbac.ActionCreate, rbac.EntityTask); err != nil {
		return nil, err
	}
	return s.createTask(ctx, actor, in, model.PriorityLow, SourceManual)
}

func (s *TaskService) createTask(ctx context.Context, actor string, in CreateTaskInput, defPriority model.Priority, source string) (*model.TaskView, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, BadRequest("Task title is required")
	}
	if in.ProjectID == "" {
		return nil, BadRequest("Project is required")
	}
	if _, err := s.projects.FindByID(ctx, in.ProjectID); err != nil {
		return nil, storeErr(err, "Project not found")
	}

	status := model.ParseTaskStatusOr(in.Status, model.TaskTodo)
	order, err := s.tasks.NextOrder(ctx, in.ProjectID, status)
	if err != nil {
		return nil, Internal("Server Error", err)
	}

	ts := now()
	t := &model.Task{
		ID:          newID(),
		Title:       title,
		Description: in.Description,
		Status:      status,
		Priority:    model.ParsePriority(in.Priority, defPriority),
		ProjectID:   in.ProjectID,
		AssigneeIDs: model.NormalizeMembers("", in.AssigneeIDs),
		DueDate:     in.DueDate,
		Order:       order,
		CreatedBy:   actor,
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := s.tasks.Insert(ctx, t); err != nil {
		return nil, Internal("Failed to create task", err)
	}
	metrics.IncrementTaskCreated(source)

	dir, err := userDirectory(ctx, s.users, t.AssigneeIDs)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	view := taskView(t, dir)
	s.bc.ToRoom(ctx, realtime.RoomForProject(t.ProjectID), realtime.EventTaskCreated, view)
	s.publishCreated(ctx, t, source)

	logger.WithTrace(ctx, s.logger).Info("Task created",
		zap.String("task_id", t.ID),
		zap.String("project_id", t.ProjectID),
		zap.String("source", source),
	)
	return &view, nil
}

// publishCreated emits task.created on the bus. A failed publish does not
// fail the request.
func (s *TaskService) publishCreated(ctx context.Context, t *model.Task, source string) {
	if s.events == nil {
		return
	}
	payload := mqcontracts.TaskCreatedPayload{
		TaskID:    t.ID,
		ProjectID: t.ProjectID,
		Title:     t.Title,
		Priority:  string(t.Priority),
		DueDate:   t.DueDate,
		Assignees: t.AssigneeIDs,
		CreatedBy: t.CreatedBy,
		Source:    source,
		TraceID:   trace.FromContext(ctx),
	}
	if err := s.events.Publish(ctx, mqcontracts.RoutingKeyTaskCreated, payload); err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Failed to publish task.created",
			zap.String("task_id", t.ID),
			zap.Error(err),
		)
	}
}

// ListByProject returns the project's tasks in board order.
func (s *TaskService) ListByProject(ctx context.Context, projectID string) ([]model.TaskView, error) {
	tasks, err := s.tasks.ListByProject(ctx, projectID)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	views, err := taskViews(ctx, s.users, tasks)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	return views, nil
}

// Update applies the provided fields and publishes the expanded task to its
// project room.
func (s *TaskService) Update(ctx context.Context, actor, id string, in UpdateTaskInput) (*model.TaskView, error) {
	if err := authorize(ctx, s.authz, actor, rbac.ActionUpdate, rbac.EntityTask); err != nil {
		return nil, err
	}
	t, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Task not found")
	}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			return nil, BadRequest("Task title cannot be empty")
		}
		t.Title = title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		st, err := model.ParseTaskStatus(*in.Status)
		if err != nil {
			return nil, BadRequest("Invalid task status")
		}
		t.Status = st
	}
	if in.Priority != nil {
		t.Priority = model.ParsePriority(*in.Priority, t.Priority)
	}
	if in.AssigneeIDs != nil {
		t.AssigneeIDs = model.NormalizeMembers("", in.AssigneeIDs)
	}
	if in.DueDate != nil {
		t.DueDate = in.DueDate
	}
	t.UpdatedAt = now()

	if err := s.tasks.Update(ctx, t); err != nil {
		return nil, storeErr(err, "Task not found")
	}

	dir, err := userDirectory(ctx, s.users, t.AssigneeIDs)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	view := taskView(t, dir)
	s.bc.ToRoom(ctx, realtime.RoomForProject(t.ProjectID), realtime.EventTaskUpdated, view)
	return &view, nil
}

// Delete removes a task and tells its former project room.
func (s *TaskService) Delete(ctx context.Context, actor, id string) error {
	if err := authorize(ctx, s.authz, actor, rbac.ActionDelete, rbac.EntityTask); err != nil {
		return err
	}
	t, err := s.tasks.FindByID(ctx, id)
	if err != nil {
		return storeErr(err, "Task not found")
	}
	if err := s.tasks.Delete(ctx, id); err != nil {
		return storeErr(err, "Task not found")
	}
	s.bc.ToRoom(ctx, realtime.RoomForProject(t.ProjectID), realtime.EventTaskDeleted, id)
	logger.WithTrace(ctx, s.logger).Info("Task deleted",
		zap.String("task_id", id),
		zap.String("project_id", t.ProjectID),
	)
	return nil
}

// Reorder persists a full board arrangement in one batch. Each lane is
// renumbered densely by submitted order before writing, so the returned list
// and the tasks_reordered event carry the persisted orders, which may differ
// from the submitted ones.
func (s *TaskService) Reorder(ctx context.Context, actor string, in ReorderInput) ([]model.ReorderItem, error) {
	if err := authorize(ctx, s.authz, actor, rbac.ActionUpdate, rbac.EntityTask); err != nil {
		return nil, err
	}
	if in.Tasks == nil {
		return nil, BadRequest("Invalid tasks data")
	}

	items := make([]model.ReorderItem, 0, len(in.Tasks))
	for _, e := range in.Tasks {
		if e.ID == "" {
			return nil, BadRequest("Task id is required")
		}
		st, err := model.ParseTaskStatus(e.Status)
		if err != nil {
			return nil, BadRequest("Invalid task status")
		}
		items = append(items, model.ReorderItem{ID: e.ID, Order: e.Order, Status: st})
	}
	items = model.NormalizeLaneOrder(items)

	if err := s.tasks.Reorder(ctx, items); err != nil {
		return nil, Internal("Failed to reorder tasks", err)
	}
	if in.ProjectID != "" {
		s.bc.ToRoom(ctx, realtime.RoomForProject(in.ProjectID), realtime.EventTasksReordered, items)
	}
	return items, nil
}

// MyTasks returns the tasks assigned to userID, earliest due date first, each
// carrying its project name.
func (s *TaskService) MyTasks(ctx context.Context, userID string) ([]model.TaskView, error) {
	tasks, err := s.tasks.ListByAssignee(ctx, userID)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	views, err := taskViews(ctx, s.users, tasks)
	if err != nil {
		return nil, Internal("Server Error", err)
	}

	ids := make([]string, 0, len(tasks))
	for i := range tasks {
		ids = append(ids, tasks[i].ProjectID)
	}
	projects, err := s.projects.FindByIDs(ctx, model.NormalizeMembers("", ids))
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	names := make(map[string]string, len(projects))
	for i := range projects {
		names[projects[i].ID] = projects[i].Name
	}
	for i := range views {
		views[i].ProjectName = names[views[i].Project]
	}
	return views, nil
}

// Analyze asks the classifier for an insight about a task description.
func (s *TaskService) Analyze(ctx context.Context, description string) (string, error) {
	if strings.TrimSpace(description) == "" {
		return "", BadRequest("Description is required")
	}
	if s.ai == nil {
		return "", Unavailable("AI Service unavailable", nil)
	}
	res, err := s.ai.Analyze(ctx, description)
	if err != nil {
		logger.WithTrace(ctx, s.logger).Warn("Task analysis failed", zap.Error(err))
		return "", Unavailable("AI Service unavailable", err)
	}
	return res.Insight, nil
}
