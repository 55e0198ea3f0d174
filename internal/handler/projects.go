package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/security/middleware"
	"github.com/aryan0dhankhar/projecthub/internal/service"
)

// ProjectService is the project lifecycle the handler drives
type ProjectService interface {
	Create(ctx context.Context, actor *domain.Member, in service.CreateProjectInput) (*service.ProjectView, error)
	Get(ctx context.Context, id string) (*service.ProjectView, error)
	List(ctx context.Context) ([]*service.ProjectView, error)
	Update(ctx context.Context, actor *domain.Member, id string, in service.UpdateProjectInput) (*service.ProjectView, error)
	Delete(ctx context.Context, actor *domain.Member, id string) error
}

// ProjectHandler handles /api/projects
type ProjectHandler struct {
	projects ProjectService
	logger   *slog.Logger
}

// NewProjectHandler creates a new project handler
func NewProjectHandler(projects ProjectService, logger *slog.Logger) *ProjectHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectHandler{projects: projects, logger: logger}
}

// CreateProjectRequest represents the body of POST /api/projects
type CreateProjectRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Status      domain.Status `json:"status"`
	StartDate   *Date         `json:"startDate"`
	EndDate     *Date         `json:"endDate"`
	Members     []string      `json:"members"`
}

// UpdateProjectRequest represents the body of PUT /api/projects/{id}.
// Unknown keys such as projectId or createdBy are ignored.
type UpdateProjectRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	Status      *domain.Status `json:"status"`
	StartDate   *Date          `json:"startDate"`
	EndDate     *Date          `json:"endDate"`
	Members     *[]string      `json:"members"`
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	view, err := h.projects.Create(r.Context(), middleware.MemberFromContext(r.Context()), service.CreateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		StartDate:   req.StartDate.value(),
		EndDate:     req.EndDate.value(),
		Members:     req.Members,
	})
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeData(w, http.StatusCreated, view)
}

// List handles GET /api/projects
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := h.projects.List(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeList(w, views)
}

// Get handles GET /api/projects/{id}
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.projects.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

// Update handles PUT /api/projects/{id}
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req UpdateProjectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, r, err)
		return
	}

	in := service.UpdateProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Status:      req.Status,
		Members:     req.Members,
	}
	if req.StartDate != nil {
		in.StartDate = timePtr(req.StartDate.Time)
	}
	if req.EndDate != nil {
		in.EndDate = timePtr(req.EndDate.Time)
	}

	view, err := h.projects.Update(r.Context(), middleware.MemberFromContext(r.Context()), r.PathValue("id"), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeData(w, http.StatusOK, view)
}

// Delete handles DELETE /api/projects/{id}
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.projects.Delete(r.Context(), middleware.MemberFromContext(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Project deleted")
}

func timePtr(t time.Time) *time.Time {
	return &t
}
