package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"teamboard/internal/agent"
	"teamboard/internal/extract"
	"teamboard/internal/model"
	"teamboard/pkg/logger"
	"teamboard/pkg/rbac"
)

const (
	defaultFilePrompt     = "Analyze the attached file."
	defaultProjectName    = "AI Created Project"
	defaultProjectDesc    = "Created by AI Assistant"
	replyNoTaskDetails    = "I understood the task intent, but couldn't verify the details. Please try again with more specifics."
	replyNeedProject      = "I can create the tasks, but I need to know which project to add them to. Please mention the project name or navigate to a project board."
	replyClassifierClosed = "The AI assistant is temporarily unavailable. Please try again in a moment."
)

type CommandInput struct {
	Message   string
	File      *extract.File
	ProjectID string
	History   []map[string]any
}

// CommandResult is what the assistant endpoint answers with on HTTP 200.
type CommandResult struct {
	Reply     string             `json:"reply"`
	Intent    string             `json:"intent"`
	Project   *model.ProjectView `json:"project,omitempty"`
	Task      *model.TaskView    `json:"task,omitempty"`
	ProjectID string             `json:"projectId,omitempty"`
}

func chatReply(reply string) *CommandResult {
	return &CommandResult{Reply: reply, Intent: agent.IntentChat}
}

// Assistant routes a free-text command through the classifier and turns its
// decision into project or task creation.
type Assistant struct {
	ai       Classifier
	text     TextExtractor
	projects *ProjectService
	tasks    *TaskService
	store    ProjectStore
	authz    Authorizer
	logger   *zap.Logger
}

func NewAssistant(ai Classifier, text TextExtractor, projects *ProjectService, tasks *TaskService, store ProjectStore, authz Authorizer, logger *zap.Logger) *Assistant {
	return &Assistant{
		ai:       ai,
		text:     text,
		projects: projects,
		tasks:    tasks,
		store:    store,
		authz:    authz,
		logger:   logger,
	}
}

// normalizeProjectRef treats the placeholder strings some clients send for a
// missing id as absent.
func normalizeProjectRef(raw string) string {
	switch s := strings.TrimSpace(raw); s {
	case "", "null", "undefined":
		return ""
	default:
		return s
	}
}

// Handle runs one command. Errors returned are request errors (bad input,
// unsupported or unreadable file, persistence failure); classifier problems
// come back as a chat reply.
func (a *Assistant) Handle(ctx context.Context, actor string, in CommandInput) (*CommandResult, error) {
	log := logger.WithTrace(ctx, a.logger)

	message := strings.TrimSpace(in.Message)
	if message == "" && in.File == nil {
		return nil, BadRequest("Message or file is required")
	}

	var fileText string
	if in.File != nil {
		log.Info("Extracting assistant attachment",
			zap.String("file", in.File.Name),
			zap.String("content_type", in.File.ContentType),
			zap.Int("size", len(in.File.Data)),
		)
		text, err := a.text.Text(ctx, *in.File)
		switch {
		case errors.Is(err, extract.ErrUnsupported):
			return nil, Unsupported(extract.ErrUnsupported.Error(), err)
		case errors.Is(err, extract.ErrUnreadable):
			return nil, Unprocessable(extract.ErrUnreadable.Error(), err)
		case err != nil:
			return nil, Internal("I encountered an error: "+err.Error(), err)
		}
		fileText = text
	}
	if message == "" {
		message = defaultFilePrompt
	}

	resp, err := a.ai.Chat(ctx, agent.ChatRequest{
		Message:     message,
		FileContent: fileText,
		History:     in.History,
	})
	if err != nil {
		log.Warn("Classifier call failed", zap.Error(err))
		return chatReply(classifierFailureReply(err)), nil
	}
	if resp.Status == "error" {
		return chatReply("AI Error: " + resp.Message), nil
	}

	switch {
	case resp.Intent == agent.IntentChat:
		return chatReply(resp.Reply), nil
	case resp.Intent == agent.IntentProject && resp.ProjectData != nil:
		return a.createProject(ctx, actor, resp.ProjectData)
	default:
		return a.createTasks(ctx, actor, normalizeProjectRef(in.ProjectID), resp.TaskData.Specs())
	}
}

func classifierFailureReply(err error) string {
	var se *agent.StatusError
	switch {
	case errors.Is(err, agent.ErrUnavailable):
		return replyClassifierClosed
	case errors.As(err, &se):
		return "AI Service Error: " + se.Body
	case errors.Is(err, context.DeadlineExceeded):
		return "The AI service took too long to respond. Please try again."
	default:
		return "I encountered an error: " + err.Error()
	}
}

func (a *Assistant) createProject(ctx context.Context, actor string, d *agent.ProjectData) (*CommandResult, error) {
	in := CreateProjectInput{
		Name:        d.Name,
		Description: d.Description,
		Status:      string(model.ProjectActive),
		OwnerID:     actor,
	}
	if strings.TrimSpace(in.Name) == "" {
		in.Name = defaultProjectName
	}
	if strings.TrimSpace(in.Description) == "" {
		in.Description = defaultProjectDesc
	}
	if due, ok := ParseDate(d.Deadline); ok {
		in.Deadline = due
	}

	view, err := a.projects.Create(ctx, actor, in)
	if err != nil {
		return nil, err
	}
	return &CommandResult{
		Reply:   fmt.Sprintf("I've created the project %q for you!", view.Name),
		Intent:  agent.IntentProject,
		Project: view,
	}, nil
}

func (a *Assistant) createTasks(ctx context.Context, actor, projectID string, specs []agent.TaskSpec) (*CommandResult, error) {
	if len(specs) == 0 {
		return chatReply(replyNoTaskDetails), nil
	}
	if err := authorize(ctx, a.authz, actor, rbac.ActionCreate, rbac.EntityTask); err != nil {
		return nil, err
	}

	project, err := a.resolveProject(ctx, actor, projectID, specs[0].ProjectName)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return chatReply(replyNeedProject), nil
	}

	var first *model.TaskView
	for i, spec := range specs {
		in := CreateTaskInput{
			Title:       spec.Title(),
			Description: spec.Description,
			Status:      string(model.TaskTodo),
			Priority:    spec.Priority,
			ProjectID:   project.ID,
		}
		if due, ok := ParseDate(spec.Deadline); ok {
			in.DueDate = due
		}
		view, err := a.tasks.createTask(ctx, actor, in, model.PriorityMedium, SourceAssistant)
		if err != nil {
			logger.WithTrace(ctx, a.logger).Error("Assistant batch stopped",
				zap.String("project_id", project.ID),
				zap.Int("created", i),
				zap.Int("requested", len(specs)),
				zap.Error(err),
			)
			return nil, err
		}
		if first == nil {
			first = view
		}
	}

	return &CommandResult{
		Reply:     fmt.Sprintf("Successfully created %d task(s) in %s.", len(specs), project.Name),
		Intent:    agent.IntentTask,
		Task:      first,
		ProjectID: project.ID,
	}, nil
}

// resolveProject picks the batch target: an explicit id must exist; otherwise
// the first project of the requester whose name contains hint
// (case-insensitive). A nil project with nil error means ask the user.
func (a *Assistant) resolveProject(ctx context.Context, actor, projectID, hint string) (*model.Project, error) {
	if projectID != "" {
		p, err := a.store.FindByID(ctx, projectID)
		if err != nil {
			return nil, storeErr(err, "Project not found")
		}
		return p, nil
	}

	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return nil, nil
	}
	mine, err := a.store.ListForUser(ctx, actor)
	if err != nil {
		return nil, Internal("Server Error", err)
	}
	for i := range mine {
		if strings.Contains(strings.ToLower(mine[i].Name), hint) {
			return &mine[i], nil
		}
	}
	return nil, nil
}
