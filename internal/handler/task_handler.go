package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/service"
	"teamboard/pkg/logger"
)

type TaskHandler struct {
	tasks  Tasks
	logger *zap.Logger
}

func NewTaskHandler(tasks Tasks, logger *zap.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

type createTaskRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	Project     string   `json:"project"`
	Assignees   []string `json:"assignees"`
	DueDate     *string  `json:"dueDate"`
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	due, ok := optionalDate(req.DueDate)
	if !ok {
		badRequest(c, "Invalid due date")
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("CreateTask request received",
		zap.String("user_id", currentUser(c)),
		zap.String("project_id", req.Project),
	)

	view, err := h.tasks.Create(c.Request.Context(), currentUser(c), service.CreateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		ProjectID:   req.Project,
		AssigneeIDs: req.Assignees,
		DueDate:     due,
	})
	if err != nil {
		respondError(c, h.logger, "CreateTask", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// ListByProject handles GET /api/tasks/project/:projectId
func (h *TaskHandler) ListByProject(c *gin.Context) {
	views, err := h.tasks.ListByProject(c.Request.Context(), c.Param("projectId"))
	if err != nil {
		respondError(c, h.logger, "ListTasks", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

type updateTaskRequest struct {
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Status      *string  `json:"status"`
	Priority    *string  `json:"priority"`
	Assignees   []string `json:"assignees"`
	DueDate     *string  `json:"dueDate"`
}

// Update handles PUT /api/tasks/:id
func (h *TaskHandler) Update(c *gin.Context) {
	var req updateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	due, ok := optionalDate(req.DueDate)
	if !ok {
		badRequest(c, "Invalid due date")
		return
	}

	view, err := h.tasks.Update(c.Request.Context(), currentUser(c), c.Param("id"), service.UpdateTaskInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Priority:    req.Priority,
		AssigneeIDs: req.Assignees,
		DueDate:     due,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateTask", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete handles DELETE /api/tasks/:id
func (h *TaskHandler) Delete(c *gin.Context) {
	if err := h.tasks.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		respondError(c, h.logger, "DeleteTask", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Task removed"})
}

type reorderRequest struct {
	Tasks []struct {
		ID     string `json:"_id"`
		Order  int    `json:"order"`
		Status string `json:"status"`
	} `json:"tasks"`
	ProjectID string `json:"projectId"`
}

// Reorder handles PUT /api/tasks/reorder
func (h *TaskHandler) Reorder(c *gin.Context) {
	var req reorderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid tasks data")
		return
	}

	in := service.ReorderInput{ProjectID: req.ProjectID}
	if req.Tasks != nil {
		in.Tasks = make([]service.ReorderEntry, 0, len(req.Tasks))
		for _, t := range req.Tasks {
			in.Tasks = append(in.Tasks, service.ReorderEntry{ID: t.ID, Order: t.Order, Status: t.Status})
		}
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("ReorderTasks request received",
		zap.String("project_id", req.ProjectID),
		zap.Int("count", len(req.Tasks)),
	)

	if _, err := h.tasks.Reorder(c.Request.Context(), currentUser(c), in); err != nil {
		respondError(c, h.logger, "ReorderTasks", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Tasks reordered"})
}

// MyTasks handles GET /api/tasks/my-tasks
func (h *TaskHandler) MyTasks(c *gin.Context) {
	views, err := h.tasks.MyTasks(c.Request.Context(), currentUser(c))
	if err != nil {
		respondError(c, h.logger, "MyTasks", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Analyze handles POST /api/tasks/analyze
func (h *TaskHandler) Analyze(c *gin.Context) {
	var req struct {
		Description string `json:"description"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	insight, err := h.tasks.Analyze(c.Request.Context(), req.Description)
	if err != nil {
		respondError(c, h.logger, "AnalyzeTask", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insight": insight})
}
