package model

import "time"

type ProjectStatus string

const (
	ProjectUpcoming  ProjectStatus = "upcoming"
	ProjectActive    ProjectStatus = "active"
	ProjectCompleted ProjectStatus = "completed"
)

// Project is the stored document. Progress fields are derived on read.
type Project struct {
	ID          string
	Name        string
	Description string
	Deadline    *time.Time
	Status      ProjectStatus
	OwnerID     string
	MemberIDs   []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ProjectView is the denormalized project returned to callers and broadcast
// to observers.
type ProjectView struct {
	ID              string        `json:"_id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Deadline        *time.Time    `json:"deadline"`
	Status          ProjectStatus `json:"status"`
	Owner           *UserSummary  `json:"owner"`
	Members         []UserSummary `json:"members"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
	TotalTasks      int           `json:"totalTasks"`
	CompletedTasks  int           `json:"completedTasks"`
	InProgressTasks int           `json:"inProgressTasks"`
	Progress        int           `json:"progress"`
}

// HasMember reports whether id is the owner or a member.
func (p *Project) HasMember(id string) bool {
	if p.OwnerID == id {
		return true
	}
	for _, m := range p.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// NormalizeMembers dedupes ids, drops empties and strips the owner.
func NormalizeMembers(owner string, ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == owner {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// DashboardStats aggregates the dashboard counters.
type DashboardStats struct {
	TotalProjects  int `json:"totalProjects"`
	ActiveTasks    int `json:"activeTasks"`
	CompletedTasks int `json:"completedTasks"`
	TeamMembers    int `json:"teamMembers"`
}
