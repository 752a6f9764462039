package board

import (
	"context"
	"fmt"

	"teamboard/internal/model"
)

// Target is what a dragged task is over: a column (lane) or another task.
type Target struct {
	Column model.TaskStatus
	TaskID string
}

func Column(status model.TaskStatus) Target { return Target{Column: status} }
func OnTask(id string) Target               { return Target{TaskID: id} }

// Persister writes a full board arrangement.
type Persister interface {
	Reorder(ctx context.Context, projectID string, items []model.ReorderItem) error
}

// dragState remembers the pre-drag board and the canonical versions of tasks
// merged while the drag was open. Only status and order are ever changed
// locally, so a revert only has to put those back.
type dragState struct {
	id       string
	snapshot []model.TaskView
	merged   map[string]model.TaskView
}

// noteMergedLocked records a canonical task merged during a drag.
func (s *Store) noteMergedLocked(t model.TaskView) {
	if s.drag != nil {
		s.drag.merged[t.ID] = t
	}
}

func (s *Store) indexOf(id string) int {
	for i := range s.tasks {
		if s.tasks[i].ID == id {
			return i
		}
	}
	return -1
}

// moveTo removes the element at from and inserts it at to.
func moveTo(tasks []model.TaskView, from, to int) []model.TaskView {
	if from == to {
		return tasks
	}
	t := tasks[from]
	out := append(tasks[:from:from], tasks[from+1:]...)
	out = append(out[:to], append([]model.TaskView{t}, out[to:]...)...)
	return out
}

// BeginDrag snapshots the board so the drag can be reverted.
func (s *Store) BeginDrag(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indexOf(id) < 0 {
		return false
	}
	s.drag = &dragState{
		id:       id,
		snapshot: append([]model.TaskView(nil), s.tasks...),
		merged:   map[string]model.TaskView{},
	}
	return true
}

// DragOver applies tentative feedback. Over a column only the status changes.
// Over a task of another lane the dragged task takes that status and moves
// right before the target.
func (s *Store) DragOver(t Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil || t.TaskID == s.drag.id {
		return
	}
	from := s.indexOf(s.drag.id)
	if from < 0 {
		return
	}

	if t.TaskID == "" {
		if t.Column != "" {
			s.tasks[from].Status = t.Column
		}
		return
	}

	over := s.indexOf(t.TaskID)
	if over < 0 || s.tasks[from].Status == s.tasks[over].Status {
		return
	}
	s.tasks[from].Status = s.tasks[over].Status
	if from < over {
		over--
	}
	s.tasks = moveTo(s.tasks, from, over)
}

// Drop resolves the final status from the target, moves the dragged task to
// the target's position and renumbers every lane densely by array position.
// The returned list covers the whole board. ok is false when there was no
// drag or no valid target; the board is then restored.
func (s *Store) Drop(t Target) (items []model.ReorderItem, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drag == nil {
		return nil, false
	}
	from := s.indexOf(s.drag.id)

	switch {
	case from < 0:
		s.revertLocked()
		return nil, false
	case t.TaskID != "":
		over := s.indexOf(t.TaskID)
		if over < 0 {
			s.revertLocked()
			return nil, false
		}
		status := s.tasks[over].Status
		s.tasks = moveTo(s.tasks, from, over)
		s.tasks[over].Status = status
	case t.Column != "":
		s.tasks[from].Status = t.Column
	default:
		s.revertLocked()
		return nil, false
	}

	items = make([]model.ReorderItem, len(s.tasks))
	for i := range s.tasks {
		items[i] = model.ReorderItem{ID: s.tasks[i].ID, Order: i, Status: s.tasks[i].Status}
	}
	items = model.NormalizeLaneOrder(items)
	for i := range s.tasks {
		s.tasks[i].Order = items[i].Order
	}
	return items, true
}

// Settle ends a dropped drag. A failed persist undoes the local move; events
// merged meanwhile are kept.
func (s *Store) Settle(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.revertLocked()
		return
	}
	s.drag = nil
}

// CancelDrag abandons the drag and undoes tentative changes.
func (s *Store) CancelDrag() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revertLocked()
}

// revertLocked rebuilds the board from the pre-drag snapshot. Tasks removed
// during the drag stay removed, tasks merged during the drag keep their
// canonical version and tasks created during the drag are kept.
func (s *Store) revertLocked() {
	if s.drag == nil {
		return
	}
	present := make(map[string]bool, len(s.tasks))
	for _, t := range s.tasks {
		present[t.ID] = true
	}

	out := make([]model.TaskView, 0, len(s.tasks))
	for _, t := range s.drag.snapshot {
		if !present[t.ID] {
			continue
		}
		if m, ok := s.drag.merged[t.ID]; ok {
			t = m
		}
		out = append(out, t)
		delete(present, t.ID)
	}
	for _, t := range s.tasks {
		if !present[t.ID] {
			continue
		}
		if m, ok := s.drag.merged[t.ID]; ok {
			t = m
		}
		out = append(out, t)
	}
	sortByOrder(out)
	s.tasks = out
	s.drag = nil
}

// Move drops id straight onto t (no hover feedback) and persists the result
// with one reorder call, reverting locally when the call fails.
func (s *Store) Move(ctx context.Context, p Persister, id string, t Target) ([]model.ReorderItem, error) {
	if !s.BeginDrag(id) {
		return nil, fmt.Errorf("task %s is not on the board", id)
	}
	items, ok := s.Drop(t)
	if !ok {
		return nil, fmt.Errorf("invalid drop target %+v", t)
	}
	err := p.Reorder(ctx, s.projectID, items)
	s.Settle(err)
	if err != nil {
		return nil, fmt.Errorf("persist reorder: %w", err)
	}
	return items, nil
}
