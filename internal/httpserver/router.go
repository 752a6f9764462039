package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"teamboard/internal/handler"
	"teamboard/internal/realtime"
	"teamboard/pkg/trace"
)

// Handlers groups everything the router mounts.
type Handlers struct {
	Auth        *handler.AuthHandler
	Projects    *handler.ProjectHandler
	Tasks       *handler.TaskHandler
	Assistant   *handler.AssistantHandler
	Leaderboard *handler.LeaderboardHandler
	Calendar    *handler.CalendarHandler
	WS          *realtime.WSHandler
}

// ReadinessCheck is one dependency probed by /readyz. Check returns nil
// when the dependency is usable.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func NewRouter(h Handlers, jwtSecret string, checks []ReadinessCheck, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), trace.Middleware(), RequestLogger(logger), Metrics())

	// Health endpoints (放在最前面)
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
		defer cancel()

		for _, chk := range checks {
			if err := chk.Check(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": chk.Name + "_not_ready", "error": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if h.WS != nil {
		r.GET("/ws", h.WS.Serve)
	}

	api := r.Group("/api")

	// Public
	api.POST("/auth/signup", h.Auth.Signup)
	api.POST("/auth/login", h.Auth.Login)

	// Protected
	auth := api.Group("/")
	auth.Use(AuthMiddleware(jwtSecret))
	{
		auth.GET("/auth/profile", h.Auth.Profile)
		auth.PUT("/auth/profile", h.Auth.UpdateProfile)
		auth.GET("/auth/users", h.Auth.Users)

		auth.POST("/projects", h.Projects.Create)
		auth.GET("/projects", h.Projects.List)
		auth.GET("/projects/stats", h.Projects.Stats)
		auth.POST("/projects/ai/command", h.Assistant.Command)
		auth.GET("/projects/:id", h.Projects.Get)
		auth.PUT("/projects/:id", h.Projects.Update)
		auth.DELETE("/projects/:id", h.Projects.Delete)
		auth.POST("/projects/:id/members", h.Projects.AddMembers)

		auth.POST("/tasks", h.Tasks.Create)
		auth.GET("/tasks/my-tasks", h.Tasks.MyTasks)
		auth.POST("/tasks/analyze", h.Tasks.Analyze)
		auth.PUT("/tasks/reorder", h.Tasks.Reorder)
		auth.GET("/tasks/project/:projectId", h.Tasks.ListByProject)
		auth.PUT("/tasks/:id", h.Tasks.Update)
		auth.DELETE("/tasks/:id", h.Tasks.Delete)

		auth.GET("/leaderboard", h.Leaderboard.Get)

		auth.POST("/integrations/calendar/connect", h.Calendar.Connect)
		auth.GET("/integrations/calendar/events", h.Calendar.Events)
	}

	return r
}
