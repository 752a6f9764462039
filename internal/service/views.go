package service

import (
	"context"

	"teamboard/internal/model"
	"teamboard/internal/progress"
)

// userDirectory resolves user ids to summaries in one lookup.
func userDirectory(ctx context.Context, users UserStore, groups ...[]string) (map[string]model.UserSummary, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, g := range groups {
		for _, id := range g {
			if _, ok := seen[id]; ok || id == "" {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}

	dir := make(map[string]model.UserSummary, len(ids))
	if len(ids) == 0 {
		return dir, nil
	}
	found, err := users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range found {
		dir[found[i].ID] = found[i].Summary()
	}
	return dir, nil
}

// expand returns the summaries of ids that resolve; dangling ids are dropped.
func expand(dir map[string]model.UserSummary, ids []string) []model.UserSummary {
	out := make([]model.UserSummary, 0, len(ids))
	for _, id := range ids {
		if u, ok := dir[id]; ok {
			out = append(out, u)
		}
	}
	return out
}

func projectView(p *model.Project, dir map[string]model.UserSummary, sum progress.Summary) (model.ProjectView, bool) {
	v := model.ProjectView{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Deadline:    p.Deadline,
		Status:      p.Status,
		Members:     expand(dir, p.MemberIDs),
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if owner, ok := dir[p.OwnerID]; ok {
		v.Owner = &owner
	}
	healed := sum.Apply(&v)
	return v, healed
}

func taskView(t *model.Task, dir map[string]model.UserSummary) model.TaskView {
	return model.TaskView{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      t.Status,
		Priority:    t.Priority,
		Project:     t.ProjectID,
		Assignees:   expand(dir, t.AssigneeIDs),
		DueDate:     t.DueDate,
		Order:       t.Order,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func taskViews(ctx context.Context, users UserStore, tasks []model.Task) ([]model.TaskView, error) {
	groups := make([][]string, len(tasks))
	for i := range tasks {
		groups[i] = tasks[i].AssigneeIDs
	}
	dir, err := userDirectory(ctx, users, groups...)
	if err != nil {
		return nil, err
	}
	out := make([]model.TaskView, len(tasks))
	for i := range tasks {
		out[i] = taskView(&tasks[i], dir)
	}
	return out, nil
}
