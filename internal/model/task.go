package model

import (
	"sort"
	"time"
)

type TaskStatus string

const (
	TaskTodo       TaskStatus = "todo"
	TaskInProgress TaskStatus = "in_progress"
	TaskDone       TaskStatus = "done"
)

// TaskStatuses lists the lanes in board order.
var TaskStatuses = []TaskStatus{TaskTodo, TaskInProgress, TaskDone}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Task struct {
	ID          string
	Title       string
	Description string
	Status      TaskStatus
	Priority    Priority
	ProjectID   string
	AssigneeIDs []string
	DueDate     *time.Time
	Order       int
	CreatedBy   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TaskView is a task with assignees expanded to user summaries.
type TaskView struct {
	ID          string        `json:"_id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      TaskStatus    `json:"status"`
	Priority    Priority      `json:"priority"`
	Project     string        `json:"project"`
	ProjectName string        `json:"projectName,omitempty"`
	Assignees   []UserSummary `json:"assignees"`
	DueDate     *time.Time    `json:"dueDate"`
	Order       int           `json:"order"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// ReorderItem is one (id, order, status) triple of a reorder request. It is
// also the payload element of tasks_reordered.
type ReorderItem struct {
	ID     string     `json:"_id"`
	Order  int        `json:"order"`
	Status TaskStatus `json:"status"`
}

// NormalizeLaneOrder renumbers items so that each status lane holds dense
// orders 0..k-1, keeping the submitted relative order within the lane.
// Ties on order keep the submitted sequence.
func NormalizeLaneOrder(items []ReorderItem) []ReorderItem {
	out := make([]ReorderItem, len(items))
	copy(out, items)

	idx := make([]int, len(out))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return out[idx[a]].Order < out[idx[b]].Order })

	next := make(map[TaskStatus]int, len(TaskStatuses))
	for _, i := range idx {
		out[i].Order = next[out[i].Status]
		next[out[i].Status]++
	}
	return out
}
