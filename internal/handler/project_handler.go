package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"teamboard/internal/service"
	"teamboard/pkg/logger"
)

type ProjectHandler struct {
	projects Projects
	logger   *zap.Logger
}

func NewProjectHandler(projects Projects, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projects: projects, logger: logger}
}

type createProjectRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Deadline    *string  `json:"deadline"`
	Status      string   `json:"status"`
	Owner       string   `json:"owner"`
	Members     []string `json:"members"`
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req createProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	deadline, ok := optionalDate(req.Deadline)
	if !ok {
		badRequest(c, "Invalid deadline")
		return
	}

	logger.WithTrace(c.Request.Context(), h.logger).Info("CreateProject request received",
		zap.String("user_id", currentUser(c)),
		zap.String("name", req.Name),
	)

	view, err := h.projects.Create(c.Request.Context(), currentUser(c), service.CreateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Deadline:    deadline,
		Status:      req.Status,
		OwnerID:     req.Owner,
		MemberIDs:   req.Members,
	})
	if err != nil {
		respondError(c, h.logger, "CreateProject", err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// List handles GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	views, err := h.projects.List(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "ListProjects", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// Get handles GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	view, err := h.projects.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, "GetProject", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

type updateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Deadline    *string `json:"deadline"`
	Status      *string `json:"status"`
}

// Update handles PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req updateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request body")
		return
	}
	deadline, ok := optionalDate(req.Deadline)
	if !ok {
		badRequest(c, "Invalid deadline")
		return
	}

	id := c.Param("id")
	log := logger.WithTrace(c.Request.Context(), h.logger)
	log.Info("UpdateProject request received", zap.String("project_id", id), zap.Any("status", req.Status))

	view, err := h.projects.Update(c.Request.Context(), currentUser(c), id, service.UpdateProjectInput{
		Name:        req.Name,
		Description: req.Description,
		Deadline:    deadline,
		Status:      req.Status,
	})
	if err != nil {
		respondError(c, h.logger, "UpdateProject", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Delete handles DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.projects.Delete(c.Request.Context(), currentUser(c), id); err != nil {
		respondError(c, h.logger, "DeleteProject", err)
		return
	}
	logger.WithTrace(c.Request.Context(), h.logger).Info("Project removed", zap.String("project_id", id))
	c.JSON(http.StatusOK, gin.H{"message": "Project removed"})
}

type addMembersRequest struct {
	Email     string   `json:"email"`
	MemberIDs []string `json:"memberIds"`
}

// AddMembers handles POST /api/projects/:id/members
func (h *ProjectHandler) AddMembers(c *gin.Context) {
	var req addMembersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Please provide memberIds array or email")
		return
	}
	view, err := h.projects.AddMembers(c.Request.Context(), currentUser(c), c.Param("id"), service.AddMembersInput{
		Email:     req.Email,
		MemberIDs: req.MemberIDs,
	})
	if err != nil {
		respondError(c, h.logger, "AddProjectMembers", err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Stats handles GET /api/projects/stats
func (h *ProjectHandler) Stats(c *gin.Context) {
	stats, err := h.projects.Stats(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, "DashboardStats", err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
