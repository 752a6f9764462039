// Package board is the client side of the board protocol: a local mirror of
// server entities that merges REST responses and broadcast events, plus the
// drag reorder algorithm.
package board

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"teamboard/internal/model"
	"teamboard/internal/realtime"
)

// Store mirrors the projects list and the tasks of one project board.
// Entities are replaced wholesale by id; there is no field-level merge.
type Store struct {
	mu        sync.Mutex
	projectID string
	projects  []model.ProjectView
	tasks     []model.TaskView
	drag      *dragState
}

func NewStore(projectID string) *Store {
	return &Store{projectID: projectID}
}

func (s *Store) ProjectID() string { return s.projectID }

// LoadProjects replaces the projects list (full re-fetch).
func (s *Store) LoadProjects(projects []model.ProjectView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = append([]model.ProjectView(nil), projects...)
}

// LoadTasks replaces the board (full re-fetch), sorted by order. Ties keep
// the given sequence.
func (s *Store) LoadTasks(tasks []model.TaskView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append([]model.TaskView(nil), tasks...)
	sortByOrder(s.tasks)
	s.drag = nil
}

func sortByOrder(tasks []model.TaskView) {
	sort.SliceStable(tasks, func(a, b int) bool { return tasks[a].Order < tasks[b].Order })
}

func (s *Store) Projects() []model.ProjectView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProjectView(nil), s.projects...)
}

func (s *Store) Project(id string) (model.ProjectView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.projects {
		if p.ID == id {
			return p, true
		}
	}
	return model.ProjectView{}, false
}

// Tasks returns the board in local array order.
func (s *Store) Tasks() []model.TaskView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.TaskView(nil), s.tasks...)
}

// Lanes groups the board by status, each lane in local array order.
func (s *Store) Lanes() map[model.TaskStatus][]model.TaskView {
	s.mu.Lock()
	defer s.mu.Unlock()
	lanes := make(map[model.TaskStatus][]model.TaskView, len(model.TaskStatuses))
	for _, st := range model.TaskStatuses {
		lanes[st] = []model.TaskView{}
	}
	for _, t := range s.tasks {
		lanes[t.Status] = append(lanes[t.Status], t)
	}
	return lanes
}

// PutProject merges a project from a direct response or event. created
// allows appending when the id is unknown.
func (s *Store) PutProject(p model.ProjectView, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.projects {
		if s.projects[i].ID == p.ID {
			s.projects[i] = p
			return
		}
	}
	if created {
		s.projects = append(s.projects, p)
	}
}

func (s *Store) RemoveProject(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects = removeByID(s.projects, id, func(p model.ProjectView) string { return p.ID })
	if id == s.projectID {
		s.tasks = nil
		s.drag = nil
	}
}

// PutTask merges a task. Tasks of other projects are ignored.
func (s *Store) PutTask(t model.TaskView, created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.projectID != "" && t.Project != s.projectID {
		return
	}
	for i := range s.tasks {
		if s.tasks[i].ID == t.ID {
			s.tasks[i] = t
			s.noteMergedLocked(t)
			return
		}
	}
	if created {
		s.tasks = append(s.tasks, t)
		s.noteMergedLocked(t)
	}
}

func (s *Store) RemoveTask(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = removeByID(s.tasks, id, func(t model.TaskView) string { return t.ID })
}

// PatchOrder applies a tasks_reordered list: order and status of known ids
// are patched, then the board is re-sorted.
func (s *Store) PatchOrder(items []model.ReorderItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := make(map[string]model.ReorderItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}
	for i := range s.tasks {
		if it, ok := byID[s.tasks[i].ID]; ok {
			s.tasks[i].Order = it.Order
			s.tasks[i].Status = it.Status
			s.noteMergedLocked(s.tasks[i])
		}
	}
	sortByOrder(s.tasks)
}

func removeByID[T any](items []T, id string, key func(T) string) []T {
	out := items[:0]
	for _, it := range items {
		if key(it) != id {
			out = append(out, it)
		}
	}
	return out
}

// Apply merges one broadcast frame. Unknown events are ignored.
func (s *Store) Apply(f realtime.Frame) error {
	switch f.Event {
	case realtime.EventProjectCreated, realtime.EventProjectUpdated:
		var p model.ProjectView
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		s.PutProject(p, f.Event == realtime.EventProjectCreated)
	case realtime.EventProjectDeleted:
		var id string
		if err := json.Unmarshal(f.Data, &id); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		s.RemoveProject(id)
	case realtime.EventTaskCreated, realtime.EventTaskUpdated:
		var t model.TaskView
		if err := json.Unmarshal(f.Data, &t); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		s.PutTask(t, f.Event == realtime.EventTaskCreated)
	case realtime.EventTaskDeleted:
		var id string
		if err := json.Unmarshal(f.Data, &id); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		s.RemoveTask(id)
	case realtime.EventTasksReordered:
		var items []model.ReorderItem
		if err := json.Unmarshal(f.Data, &items); err != nil {
			return fmt.Errorf("decode %s: %w", f.Event, err)
		}
		s.PatchOrder(items)
	}
	return nil
}
