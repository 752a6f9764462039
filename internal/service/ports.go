package service

import (
	"context"
	"time"

	"teamboard/internal/agent"
	"teamboard/internal/calendar"
	"teamboard/internal/extract"
	"teamboard/internal/model"

	"golang.org/x/oauth2"
)

type UserStore interface {
	Create(ctx context.Context, u *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.User, error)
	List(ctx context.Context) ([]model.User, error)
	UpdateProfile(ctx context.Context, u *model.User) error
	SaveCalendarToken(ctx context.Context, userID string, tok model.OAuthToken) error
}

type ProjectStore interface {
	Insert(ctx context.Context, p *model.Project) error
	FindByID(ctx context.Context, id string) (*model.Project, error)
	FindByIDs(ctx context.Context, ids []string) ([]model.Project, error)
	List(ctx context.Context) ([]model.Project, error)
	ListForUser(ctx context.Context, userID string) ([]model.Project, error)
	Update(ctx context.Context, p *model.Project) error
	UpdateMembers(ctx context.Context, id string, memberIDs []string) error
	UpdateStatusFrom(ctx context.Context, id string, from, to model.ProjectStatus) (bool, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountPeople(ctx context.Context) (int, error)
}

type TaskStore interface {
	Insert(ctx context.Context, t *model.Task) error
	FindByID(ctx context.Context, id string) (*model.Task, error)
	ListByProject(ctx context.Context, projectID string) ([]model.Task, error)
	ListByAssignee(ctx context.Context, userID string) ([]model.Task, error)
	ListDone(ctx context.Context, since time.Time) ([]model.Task, error)
	StatusesByProject(ctx context.Context, projectID string) ([]model.TaskStatus, error)
	CountByStatus(ctx context.Context) (map[model.TaskStatus]int, error)
	NextOrder(ctx context.Context, projectID string, status model.TaskStatus) (int, error)
	Update(ctx context.Context, t *model.Task) error
	Delete(ctx context.Context, id string) error
	DeleteByProject(ctx context.Context, projectID string) (int64, error)
	Reorder(ctx context.Context, items []model.ReorderItem) error
}

// Broadcaster fans change notifications out to connected observers.
// Delivery is best-effort; it never fails the mutation.
type Broadcaster interface {
	Global(ctx context.Context, event string, data any)
	ToRoom(ctx context.Context, room, event string, data any)
}

// EventPublisher emits integration events on the message bus.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

type Classifier interface {
	Chat(ctx context.Context, req agent.ChatRequest) (*agent.ChatResponse, error)
	Analyze(ctx context.Context, description string) (*agent.AnalyzeResponse, error)
}

type TextExtractor interface {
	Text(ctx context.Context, f extract.File) (string, error)
}

type CalendarProvider interface {
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	ListUpcoming(ctx context.Context, tok *oauth2.Token, now time.Time) ([]calendar.Event, *oauth2.Token, error)
	Insert(ctx context.Context, tok *oauth2.Token, ev calendar.Event) (*calendar.Event, *oauth2.Token, error)
}

// Authorizer is the policy seam consulted before every mutation.
type Authorizer interface {
	Authorize(ctx context.Context, actor, action, entity string) error
}

// NopBroadcaster drops every event.
type NopBroadcaster struct{}

func (NopBroadcaster) Global(context.Context, string, any)         {}
func (NopBroadcaster) ToRoom(context.Context, string, string, any) {}
