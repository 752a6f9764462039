// Package progress derives project completion from its tasks.
package progress

import (
	"math"

	"teamboard/internal/model"
)

// Summary is the derived completion state of a project.
type Summary struct {
	Total      int
	Completed  int
	InProgress int
	Progress   int
}

// Compute weighs done tasks as 1 and in-progress tasks as 0.5, rounded half
// up to a whole percentage. No tasks means 0.
func Compute(tasks []model.Task) Summary {
	statuses := make([]model.TaskStatus, len(tasks))
	for i := range tasks {
		statuses[i] = tasks[i].Status
	}
	return FromStatuses(statuses)
}

// FromStatuses is Compute over bare statuses, used when only the status
// column was loaded.
func FromStatuses(statuses []model.TaskStatus) Summary {
	s := Summary{Total: len(statuses)}
	for _, st := range statuses {
		switch st {
		case model.TaskDone:
			s.Completed++
		case model.TaskInProgress:
			s.InProgress++
		}
	}
	if s.Total == 0 {
		return s
	}
	weighted := float64(s.Completed) + 0.5*float64(s.InProgress)
	s.Progress = int(math.Floor(100*weighted/float64(s.Total) + 0.5))
	return s
}

// CorrectedStatus downgrades a completed project with unfinished work to
// active. It never promotes to completed.
func (s Summary) CorrectedStatus(stored model.ProjectStatus) model.ProjectStatus {
	if stored == model.ProjectCompleted && s.Total > 0 && s.Progress < 100 {
		return model.ProjectActive
	}
	return stored
}

// Apply copies the derived fields onto a project view and corrects its
// status. It reports whether the status changed.
func (s Summary) Apply(v *model.ProjectView) bool {
	v.TotalTasks = s.Total
	v.CompletedTasks = s.Completed
	v.InProgressTasks = s.InProgress
	v.Progress = s.Progress

	corrected := s.CorrectedStatus(v.Status)
	healed := corrected != v.Status
	v.Status = corrected
	return healed
}
