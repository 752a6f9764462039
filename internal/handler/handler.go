// Package handler holds the gin handlers of the /api surface. Handlers bind
// the request, call one service operation and map its error kind onto the
// response status with a {"message": ...} body.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/calendar"
	"teamboard/internal/model"
	"teamboard/internal/service"
	"teamboard/pkg/logger"
)

// UserIDKey is where the auth middleware stores the caller's id.
const UserIDKey = "user_id"

type Projects interface {
	Create(ctx context.Context, actor string, in service.CreateProjectInput) (*model.ProjectView, error)
	List(ctx context.Context) ([]model.ProjectView, error)
	Get(ctx context.Context, id string) (*model.ProjectView, error)
	Update(ctx context.Context, actor, id string, in service.UpdateProjectInput) (*model.ProjectView, error)
	Delete(ctx context.Context, actor, id string) error
	AddMembers(ctx context.Context, actor, id string, in service.AddMembersInput) (*model.ProjectView, error)
	Stats(ctx context.Context) (*model.DashboardStats, error)
}

type Tasks interface {
	Create(ctx context.Context, actor string, in service.CreateTaskInput) (*model.TaskView, error)
	ListByProject(ctx context.Context, projectID string) ([]model.TaskView, error)
	Update(ctx context.Context, actor, id string, in service.UpdateTaskInput) (*model.TaskView, error)
	Delete(ctx context.Context, actor, id string) error
	Reorder(ctx context.Context, actor string, in service.ReorderInput) ([]model.ReorderItem, error)
	MyTasks(ctx context.Context, userID string) ([]model.TaskView, error)
	Analyze(ctx context.Context, description string) (string, error)
}

type Auth interface {
	Signup(ctx context.Context, in service.SignupInput) (*service.AuthResult, error)
	Login(ctx context.Context, email, password string) (*service.AuthResult, error)
	Profile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, in service.UpdateProfileInput) (*service.AuthResult, error)
	ListUsers(ctx context.Context) ([]model.UserSummary, error)
}

type Calendar interface {
	Connect(ctx context.Context, userID, code string) error
	Events(ctx context.Context, userID string) ([]calendar.Event, error)
}

type Leaderboard interface {
	Get(ctx context.Context, r service.Range) (*service.Leaderboard, error)
}

type Assistant interface {
	Handle(ctx context.Context, actor string, in service.CommandInput) (*service.CommandResult, error)
}

var (
	_ Projects    = (*service.ProjectService)(nil)
	_ Tasks       = (*service.TaskService)(nil)
	_ Auth        = (*service.AuthService)(nil)
	_ Calendar    = (*service.CalendarService)(nil)
	_ Leaderboard = (*service.LeaderboardService)(nil)
	_ Assistant   = (*service.Assistant)(nil)
)

func currentUser(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// errorMessage returns the caller-safe message of err.
func errorMessage(err error) string {
	var se *service.Error
	if errors.As(err, &se) {
		return se.Message
	}
	return "Server Error"
}

// respondError writes {"message": ...} with the status of the error kind.
// Internal failures are logged with their cause.
func respondError(c *gin.Context, l *zap.Logger, op string, err error) {
	kind := service.KindOf(err)
	status := kind.HTTPStatus()
	log := logger.WithTrace(c.Request.Context(), l)
	if status >= http.StatusInternalServerError {
		log.Error(op+" failed", zap.Error(err))
	} else {
		log.Warn(op+" rejected", zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, gin.H{"message": errorMessage(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"message": msg})
}

// optionalDate parses a date field that may be absent. ok is false when the
// value is present but malformed.
func optionalDate(raw *string) (t *time.Time, ok bool) {
	if raw == nil || *raw == "" {
		return nil, true
	}
	return service.ParseDate(*raw)
}
