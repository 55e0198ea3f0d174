package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/observability/metrics"
	"github.com/aryan0dhankhar/projecthub/internal/observability/tracing"
)

// ProjectAuthorizer decides whether a member may change a project
type ProjectAuthorizer interface {
	AuthorizeProjectChange(actor *domain.Member, project *domain.Project, action string) error
}

// ProjectService handles the project lifecycle
type ProjectService struct {
	projects   domain.ProjectRepository
	members    domain.MemberRepository
	sequences  domain.SequenceAllocator
	authorizer ProjectAuthorizer
	logger     *slog.Logger
}

// CreateProjectInput captures a new project request
type CreateProjectInput struct {
	Title       string
	Description string
	Status      domain.Status
	StartDate   time.Time
	EndDate     time.Time
	Members     []string
}

// UpdateProjectInput carries the patchable fields; nil fields are left alone.
// Identity fields (id, projectId, createdBy) cannot be patched.
type UpdateProjectInput struct {
	Title       *string
	Description *string
	Status      *domain.Status
	StartDate   *time.Time
	EndDate     *time.Time
	Members     *[]string
}

// CreatorSummary is the expanded creator of a project
type CreatorSummary struct {
	ID   string      `json:"id"`
	Name string      `json:"name"`
	Role domain.Role `json:"role"`
}

// MemberSummary is an expanded project member
type MemberSummary struct {
	Name string `json:"name"`
}

// ProjectView is a project with its member references expanded
type ProjectView struct {
	ID          string          `json:"id"`
	ProjectID   string          `json:"projectId"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Status      domain.Status   `json:"status"`
	StartDate   time.Time       `json:"startDate"`
	EndDate     time.Time       `json:"endDate"`
	CreatedBy   *CreatorSummary `json:"createdBy"`
	Members     []MemberSummary `json:"members"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// NewProjectService creates a new project service
func NewProjectService(
	projects domain.ProjectRepository,
	members domain.MemberRepository,
	sequences domain.SequenceAllocator,
	authorizer ProjectAuthorizer,
	logger *slog.Logger,
) *ProjectService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProjectService{
		projects:   projects,
		members:    members,
		sequences:  sequences,
		authorizer: authorizer,
		logger:     logger,
	}
}

// Create validates the input, mints a PRJ id and stores the project with actor as creator
func (s *ProjectService) Create(ctx context.Context, actor *domain.Member, in CreateProjectInput) (view *ProjectView, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "ProjectService.Create")
	defer func() { s.finish(span, "create", err) }()

	if actor == nil {
		return nil, domain.NewError(domain.ErrUnauthenticated, "Not authenticated")
	}

	project := &domain.Project{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		Status:      in.Status,
		StartDate:   in.StartDate,
		EndDate:     in.EndDate,
		CreatedBy:   actor.ID,
	}
	if project.Status == "" {
		project.Status = domain.DefaultStatus
	}
	if err := validateProject(project); err != nil {
		return nil, err
	}

	project.MemberIDs, err = s.checkMemberRefs(ctx, in.Members)
	if err != nil {
		return nil, err
	}

	if err := s.ensureTitleFree(ctx, project.Title); err != nil {
		return nil, err
	}

	seq, err := s.sequences.Allocate(ctx, domain.ProjectCounter)
	if err != nil {
		return nil, err
	}
	metrics.ObserveProjectIDAllocated()
	project.Seq = seq
	project.ProjectID = domain.FormatProjectID(seq)
	span.SetAttributes(attribute.String("project.id", project.ProjectID))

	if err := s.projects.Create(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project created",
		slog.String("project_id", project.ProjectID),
		slog.String("created_by", actor.ID),
	)
	return s.expandOne(ctx, project)
}

// Get returns a project by its PRJ id or internal id
func (s *ProjectService) Get(ctx context.Context, id string) (view *ProjectView, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "ProjectService.Get")
	defer func() { s.finish(span, "get", err) }()

	project, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.expandOne(ctx, project)
}

// List returns every project, newest first
func (s *ProjectService) List(ctx context.Context) (views []*ProjectView, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "ProjectService.List")
	defer func() { s.finish(span, "list", err) }()

	projects, err := s.projects.List(ctx)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("project.count", len(projects)))
	return s.expand(ctx, projects)
}

// Update patches a project. The project must exist before ownership is checked.
func (s *ProjectService) Update(ctx context.Context, actor *domain.Member, id string, in UpdateProjectInput) (view *ProjectView, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "ProjectService.Update")
	defer func() { s.finish(span, "update", err) }()

	project, err := s.resolve(ctx, id)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("project.id", project.ProjectID))
	if err := s.authorizer.AuthorizeProjectChange(actor, project, "edit"); err != nil {
		return nil, err
	}

	previousTitle := project.Title
	if in.Title != nil {
		project.Title = strings.TrimSpace(*in.Title)
	}
	if in.Description != nil {
		project.Description = strings.TrimSpace(*in.Description)
	}
	if in.Status != nil {
		project.Status = *in.Status
	}
	if in.StartDate != nil {
		project.StartDate = *in.StartDate
	}
	if in.EndDate != nil {
		project.EndDate = *in.EndDate
	}
	if err := validateProject(project); err != nil {
		return nil, err
	}
	if in.Members != nil {
		project.MemberIDs, err = s.checkMemberRefs(ctx, *in.Members)
		if err != nil {
			return nil, err
		}
	}
	if project.Title != previousTitle {
		if err := s.ensureTitleFree(ctx, project.Title); err != nil {
			return nil, err
		}
	}

	if err := s.projects.Update(ctx, project); err != nil {
		return nil, err
	}

	s.logger.Info("project updated",
		slog.String("project_id", project.ProjectID),
		slog.String("member_id", actor.ID),
	)
	return s.expandOne(ctx, project)
}

// Delete removes a project. The project must exist before ownership is checked.
func (s *ProjectService) Delete(ctx context.Context, actor *domain.Member, id string) (err error) {
	ctx, span := tracing.Tracer().Start(ctx, "ProjectService.Delete")
	defer func() { s.finish(span, "delete", err) }()

	project, err := s.resolve(ctx, id)
	if err != nil {
		return err
	}
	span.SetAttributes(attribute.String("project.id", project.ProjectID))
	if err := s.authorizer.AuthorizeProjectChange(actor, project, "delete"); err != nil {
		return err
	}
	if err := s.projects.Delete(ctx, project.ID); err != nil {
		return err
	}

	s.logger.Info("project deleted",
		slog.String("project_id", project.ProjectID),
		slog.String("member_id", actor.ID),
	)
	return nil
}

// resolve looks a project up by PRJ id or by internal uuid.
func (s *ProjectService) resolve(ctx context.Context, id string) (*domain.Project, error) {
	id = strings.TrimSpace(id)
	if domain.IsProjectID(id) {
		return s.projects.GetByProjectID(ctx, id)
	}
	internalID, err := canonicalID(id, "Invalid project id")
	if err != nil {
		return nil, err
	}
	return s.projects.GetByID(ctx, internalID)
}

func (s *ProjectService) ensureTitleFree(ctx context.Context, title string) error {
	exists, err := s.projects.ExistsByTitle(ctx, title)
	if err != nil {
		return err
	}
	if exists {
		return domain.NewError(domain.ErrDuplicateTitle, "Project with this title already exists")
	}
	return nil
}

// checkMemberRefs deduplicates ids and verifies that every one names an existing member.
func (s *ProjectService) checkMemberRefs(ctx context.Context, ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, raw := range ids {
		parsed, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, domain.NewError(domain.ErrValidation, "Invalid member id: %s", raw)
		}
		id := parsed.String()
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	if len(out) == 0 {
		return out, nil
	}

	found, err := s.members.GetByIDs(ctx, out)
	if err != nil {
		return nil, err
	}
	if len(found) == len(out) {
		return out, nil
	}
	existing := make(map[string]bool, len(found))
	for _, m := range found {
		existing[m.ID] = true
	}
	for _, id := range out {
		if !existing[id] {
			return nil, domain.NewError(domain.ErrReferenceNotFound, "Member not found: %s", id)
		}
	}
	return out, nil
}

func (s *ProjectService) expandOne(ctx context.Context, project *domain.Project) (*ProjectView, error) {
	views, err := s.expand(ctx, []*domain.Project{project})
	if err != nil {
		return nil, err
	}
	return views[0], nil
}

// expand joins creators and members in one lookup. Deleted members are skipped.
func (s *ProjectService) expand(ctx context.Context, projects []*domain.Project) ([]*ProjectView, error) {
	var ids []string
	seen := make(map[string]bool)
	add := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	for _, p := range projects {
		add(p.CreatedBy)
		for _, id := range p.MemberIDs {
			add(id)
		}
	}

	byID := make(map[string]*domain.Member, len(ids))
	if len(ids) > 0 {
		found, err := s.members.GetByIDs(ctx, ids)
		if err != nil {
			return nil, err
		}
		for _, m := range found {
			byID[m.ID] = m
		}
	}

	views := make([]*ProjectView, 0, len(projects))
	for _, p := range projects {
		view := &ProjectView{
			ID:          p.ID,
			ProjectID:   p.ProjectID,
			Title:       p.Title,
			Description: p.Description,
			Status:      p.Status,
			StartDate:   p.StartDate,
			EndDate:     p.EndDate,
			Members:     make([]MemberSummary, 0, len(p.MemberIDs)),
			CreatedAt:   p.CreatedAt,
			UpdatedAt:   p.UpdatedAt,
		}
		if creator, ok := byID[p.CreatedBy]; ok {
			view.CreatedBy = &CreatorSummary{ID: creator.ID, Name: creator.Name, Role: creator.Role}
		}
		for _, id := range p.MemberIDs {
			if m, ok := byID[id]; ok {
				view.Members = append(view.Members, MemberSummary{Name: m.Name})
			}
		}
		views = append(views, view)
	}
	return views, nil
}

// finish ends a span and records failures in logs and metrics.
func (s *ProjectService) finish(span trace.Span, op string, err error) {
	defer span.End()
	if err == nil {
		if op != "get" && op != "list" {
			metrics.ObserveProjectOperation(op, "success")
		}
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if op != "get" && op != "list" {
		metrics.ObserveProjectOperation(op, "error")
	}
	if errors.Is(err, domain.ErrStoreUnavailable) {
		metrics.ObserveStoreError("project_" + op)
		s.logger.Error("project store failure",
			slog.String("operation", op),
			slog.String("error", err.Error()),
		)
	}
}

func validateProject(p *domain.Project) error {
	if p.Title == "" {
		return domain.NewError(domain.ErrValidation, "Title is required")
	}
	if !p.Status.Valid() {
		return domain.NewError(domain.ErrValidation, "Invalid status: %s", p.Status)
	}
	return p.ValidateDates()
}
