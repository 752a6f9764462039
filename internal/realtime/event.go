package realtime

import "encoding/json"

// Server → client events.
const (
	EventProjectCreated = "project_created"
	EventProjectUpdated = "project_updated"
	EventProjectDeleted = "project_deleted"
	EventTaskCreated    = "task_created"
	EventTaskUpdated    = "task_updated"
	EventTaskDeleted    = "task_deleted"
	EventTasksReordered = "tasks_reordered"
)

// Client → server signals.
const (
	SignalJoinProject  = "join_project"
	SignalLeaveProject = "leave_project"
)

// Frame is the wire format of every websocket message in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// RoomForProject names the room that receives a project's task events.
func RoomForProject(projectID string) string {
	return "project:" + projectID
}

func encodeFrame(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Frame{Event: event, Data: raw})
}

// joinTarget accepts either a bare project id string or {"projectId": "..."}.
func joinTarget(data json.RawMessage) string {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return id
	}
	var obj struct {
		ProjectID string `json:"projectId"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		return obj.ProjectID
	}
	return ""
}
