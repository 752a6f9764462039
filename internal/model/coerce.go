package model

import (
	"fmt"
	"strings"
)

func normalizeEnum(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "-", "_")
	return strings.ReplaceAll(s, " ", "_")
}

// ParsePriority coerces raw into a known priority, falling back to def for
// empty or unknown input. Priorities are never rejected.
func ParsePriority(raw string, def Priority) Priority {
	switch p := Priority(normalizeEnum(raw)); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p
	default:
		return def
	}
}

// ParseTaskStatus accepts todo, in_progress (also "in-progress", "in progress")
// and done.
func ParseTaskStatus(raw string) (TaskStatus, error) {
	switch s := TaskStatus(normalizeEnum(raw)); s {
	case TaskTodo, TaskInProgress, TaskDone:
		return s, nil
	default:
		return "", fmt.Errorf("invalid task status %q", raw)
	}
}

// ParseTaskStatusOr returns def for empty input and for unknown values.
func ParseTaskStatusOr(raw string, def TaskStatus) TaskStatus {
	s, err := ParseTaskStatus(raw)
	if err != nil {
		return def
	}
	return s
}

func ParseProjectStatus(raw string) (ProjectStatus, error) {
	switch s := ProjectStatus(normalizeEnum(raw)); s {
	case ProjectUpcoming, ProjectActive, ProjectCompleted:
		return s, nil
	default:
		return "", fmt.Errorf("invalid project status %q", raw)
	}
}

// ParseProjectStatusOr returns def for empty input and for unknown values.
func ParseProjectStatusOr(raw string, def ProjectStatus) ProjectStatus {
	s, err := ParseProjectStatus(raw)
	if err != nil {
		return def
	}
	return s
}
