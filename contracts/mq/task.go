package mq

import "time"

const (
	RoutingKeyTaskCreated = "task.created"
)

// TaskCreatedPayload is published once a task is persisted, from either the
// manual path or the assistant.
type TaskCreatedPayload struct {
	TaskID    string     `json:"task_id"`
	ProjectID string     `json:"project_id"`
	Title     string     `json:"title"`
	Priority  string     `json:"priority"`
	DueDate   *time.Time `json:"due_date,omitempty"`
	Assignees []string   `json:"assignees"`
	CreatedBy string     `json:"created_by"`
	Source    string     `json:"source"` // manual / assistant
	TraceID   string     `json:"trace_id,omitempty"`
}
