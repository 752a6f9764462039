package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"teamboard/internal/model"
	"teamboard/internal/progress"
	"teamboard/internal/realtime"
	"teamboard/pkg/logger"
	"teamboard/pkg/metrics"
	"teamboard/pkg/rbac"
)

const (
	healTimeout     = 5 * time.Second
	progressWorkers = 8
)

type CreateProjectInput struct {
	Name        string
	Description string
	Deadline    *time.Time
	Status      string
	OwnerID     string
	MemberIDs   []string
}

// UpdateProjectInput holds the provided fields; nil means leave as is.
type UpdateProjectInput struct {
	Name        *string
	Description *string
	Deadline    *time.Time
	Status      *string
}

// AddMembersInput: MemberIDs non-nil takes precedence over Email.
type AddMembersInput struct {
	Email     string
	MemberIDs []string
}

type ProjectService struct {
	projects ProjectStore
	tasks    TaskStore
	users    UserStore
	bc       Broadcaster
	authz    Authorizer
	logger   *zap.Logger

	heals sync.WaitGroup
}

func NewProjectService(projects ProjectStore, tasks TaskStore, users UserStore, bc Broadcaster, authz Authorizer, logger *zap.Logger) *ProjectService {
	if bc == nil {
		bc = NopBroadcaster{}
	}
	return &ProjectService{
		projects: projects,
		tasks:    tasks,
		users:    users,
		bc:       bc,
		authz:    authz,
		logger:   logger,
	}
}

// Create persists a project and announces it on the global channel with
// zeroed progress.
func (s *ProjectService) Create(ctx context.Context, actor string, in CreateProjectInput) (*model.ProjectView, error) {
	if err := authorize(ctx, s.authz, actor, rbac.ActionCreate, rbac.EntityProject); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, BadRequest("Project name is required")
	}
	status := model.ProjectActive
	if strings.TrimSpace(in.Status) != "" {
		st, err := model.ParseProjectStatus(in.Status)
		if err != nil {
			return nil, BadRequest("Invalid project status")
		}
		status = st
	}
	owner := in.OwnerID
	if owner == "" {
		owner = actor
	}

	ts := now()
	p := &model.Project{
		ID:          newID(),
		Name:        name,
		Description: in.Description,
		Deadline:    in.Deadline,
		Status:      status,
		OwnerID:     owner,
		MemberIDs:   model.NormalizeMembers(owner, in.MemberIDs),
		CreatedAt:   ts,
		UpdatedAt:   ts,
	}
	if err := s.projects.Insert(ctx, p); err != nil {
		return nil, Internal("Failed to create project", err)
	}

	dir, err := userDirectory(ctx, s.users, []string{p.OwnerID}, p.MemberIDs)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	view, _ := projectView(p, dir, progress.Summary{})
	s.bc.Global(ctx, realtime.EventProjectCreated, view)

	logger.WithTrace(ctx, s.logger).Info("Project created",
		zap.String("project_id", p.ID),
		zap.String("owner_id", p.OwnerID),
	)
	return &view, nil
}

// List returns every project with derived progress. Progress is loaded
// concurrently per project.
func (s *ProjectService) List(ctx context.Context) ([]model.ProjectView, error) {
	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	return s.views(ctx, projects)
}

func (s *ProjectService) views(ctx context.Context, projects []model.Project) ([]model.ProjectView, error) {
	sums := make([]progress.Summary, len(projects))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(progressWorkers)
	for i := range projects {
		g.Go(func() error {
			sum, err := s.summarize(gctx, projects[i].ID)
			if err != nil {
				return err
			}
			sums[i] = sum
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Internal("Server Error", err)
	}

	groups := make([][]string, 0, 2*len(projects))
	for i := range projects {
		groups = append(groups, []string{projects[i].OwnerID}, projects[i].MemberIDs)
	}
	dir, err := userDirectory(ctx, s.users, groups...)
	if err != nil {
		return nil, Internal("Server Error", err)
	}

	out := make([]model.ProjectView, len(projects))
	for i := range projects {
		v, healed := projectView(&projects[i], dir, sums[i])
		if healed {
			s.heal(ctx, projects[i].ID)
		}
		out[i] = v
	}
	return out, nil
}

// Get returns one project with derived progress.
func (s *ProjectService) Get(ctx context.Context, id string) (*model.ProjectView, error) {
	p, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Project not found")
	}
	return s.view(ctx, p)
}

func (s *ProjectService) view(ctx context.Context, p *model.Project) (*model.ProjectView, error) {
	sum, err := s.summarize(ctx, p.ID)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	dir, err := userDirectory(ctx, s.users, []string{p.OwnerID}, p.MemberIDs)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	v, healed := projectView(p, dir, sum)
	if healed {
		s.heal(ctx, p.ID)
	}
	return &v, nil
}

// Update applies the provided fields, recomputes progress and announces the
// full view globally.
func (s *ProjectService) Update(ctx context.Context, actor, id string, in UpdateProjectInput) (*model.ProjectView, error) {
	if err := authorize(ctx, s.authz, actor, rbac.ActionUpdate, rbac.EntityProject); err != nil {
		return nil, err
	}
	p, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Project not found")
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, BadRequest("Project name cannot be empty")
		}
		p.Name = name
	}
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.Deadline != nil {
		p.Deadline = in.Deadline
	}
	if in.Status != nil && strings.TrimSpace(*in.Status) != "" {
		st, err := model.ParseProjectStatus(*in.Status)
		if err != nil {
			return nil, BadRequest("Invalid project status")
		}
		p.Status = st
	}
	p.UpdatedAt = now()

	if err := s.projects.Update(ctx, p); err != nil {
		return nil, storeErr(err, "Project not found")
	}

	view, err := s.view(ctx, p)
	if err != nil {
		return nil, err
	}
	s.bc.Global(ctx, realtime.EventProjectUpdated, view)
	return view, nil
}

// Delete removes the project's tasks, then the project.
func (s *ProjectService) Delete(ctx context.Context, actor, id string) error {
	if err := authorize(ctx, s.authz, actor, rbac.ActionDelete, rbac.EntityProject); err != nil {
		return err
	}
	if _, err := s.projects.FindByID(ctx, id); err != nil {
		return storeErr(err, "Project not found")
	}

	removed, err := s.tasks.DeleteByProject(ctx, id)
	if err != nil {
		return Internal("Server Error", err)
	}
	if err := s.projects.Delete(ctx, id); err != nil {
		return storeErr(err, "Project not found")
	}

	s.bc.Global(ctx, realtime.EventProjectDeleted, id)
	logger.WithTrace(ctx, s.logger).Info("Project deleted",
		zap.String("project_id", id),
		zap.Int64("tasks_removed", removed),
	)
	return nil
}

// AddMembers adds users by id list or by a single email. Ids that are
// unknown, already members or the owner are skipped; nothing is written
// unless at least one member is new.
func (s *ProjectService) AddMembers(ctx context.Context, actor, id string, in AddMembersInput) (*model.ProjectView, error) {
	if err := authorize(ctx, s.authz, actor, rbac.ActionManage, rbac.EntityProject); err != nil {
		return nil, err
	}
	p, err := s.projects.FindByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Project not found")
	}

	var candidates []string
	switch {
	case in.MemberIDs != nil:
		found, err := s.users.FindByIDs(ctx, in.MemberIDs)
		if err != nil {
			return nil, Internal("Server Error", err)
		}
		known := make(map[string]struct{}, len(found))
		for i := range found {
			known[found[i].ID] = struct{}{}
		}
		// keep request order
		for _, mid := range in.MemberIDs {
			if _, ok := known[mid]; ok {
				candidates = append(candidates, mid)
			}
		}
	case strings.TrimSpace(in.Email) != "":
		u, err := s.users.FindByEmail(ctx, strings.TrimSpace(in.Email))
		if err != nil {
			return nil, storeErr(err, "User not found")
		}
		candidates = []string{u.ID}
	default:
		return nil, BadRequest("Please provide memberIds array or email")
	}

	added := 0
	for _, uid := range candidates {
		if p.HasMember(uid) {
			continue
		}
		p.MemberIDs = append(p.MemberIDs, uid)
		added++
	}
	if added > 0 {
		if err := s.projects.UpdateMembers(ctx, p.ID, p.MemberIDs); err != nil {
			return nil, storeErr(err, "Project not found")
		}
	}

	view, err := s.view(ctx, p)
	if err != nil {
		return nil, err
	}
	s.bc.Global(ctx, realtime.EventProjectUpdated, view)
	logger.WithTrace(ctx, s.logger).Info("Project members added",
		zap.String("project_id", p.ID),
		zap.Int("added", added),
	)
	return view, nil
}

// Stats returns the global dashboard counters.
func (s *ProjectService) Stats(ctx context.Context) (*model.DashboardStats, error) {
	var (
		stats  model.DashboardStats
		counts map[model.TaskStatus]int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalProjects, err = s.projects.Count(gctx)
		return err
	})
	g.Go(func() (err error) {
		stats.TeamMembers, err = s.projects.CountPeople(gctx)
		return err
	})
	g.Go(func() (err error) {
		counts, err = s.tasks.CountByStatus(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, Internal("Server Error", err)
	}

	for status, n := range counts {
		if status == model.TaskDone {
			stats.CompletedTasks += n
		} else {
			stats.ActiveTasks += n
		}
	}
	return &stats, nil
}

func (s *ProjectService) summarize(ctx context.Context, projectID string) (progress.Summary, error) {
	statuses, err := s.tasks.StatusesByProject(ctx, projectID)
	if err != nil {
		return progress.Summary{}, err
	}
	return progress.FromStatuses(statuses), nil
}

// heal persists the completed→active correction in the background. The
// caller already returned the corrected status; failure is only logged.
func (s *ProjectService) heal(ctx context.Context, projectID string) {
	log := logger.WithTrace(ctx, s.logger)
	bg := context.WithoutCancel(ctx)

	s.heals.Add(1)
	go func() {
		defer s.heals.Done()
		ctx, cancel := context.WithTimeout(bg, healTimeout)
		defer cancel()

		applied, err := s.projects.UpdateStatusFrom(ctx, projectID, model.ProjectCompleted, model.ProjectActive)
		if err != nil {
			metrics.IncrementSelfHeal("failed")
			log.Warn("Self-healing status update failed", zap.String("project_id", projectID), zap.Error(err))
			return
		}
		if !applied {
			// 状态已被他人修改
			metrics.IncrementSelfHeal("skipped")
			log.Info("Project status changed meanwhile, correction skipped", zap.String("project_id", projectID))
			return
		}
		metrics.IncrementSelfHeal("persisted")
		log.Info("Project status corrected to active", zap.String("project_id", projectID))
	}()
}

// WaitHeals blocks until pending background corrections finish.
func (s *ProjectService) WaitHeals() {
	s.heals.Wait()
}
