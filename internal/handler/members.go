package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/service"
)

// MemberService is the member account surface the handler drives
type MemberService interface {
	Create(ctx context.Context, in service.CreateMemberInput) (*domain.Member, error)
	List(ctx context.Context) ([]*domain.Member, error)
	Get(ctx context.Context, id string) (*domain.Member, error)
	Update(ctx context.Context, id string, in service.UpdateMemberInput) (*domain.Member, error)
	Delete(ctx context.Context, id string) error
}

// MemberHandler handles /api/members
type MemberHandler struct {
	members MemberService
	logger  *slog.Logger
}

// NewMemberHandler creates a new member handler
func NewMemberHandler(members MemberService, logger *slog.Logger) *MemberHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MemberHandler{members: members, logger: logger}
}

// Create handles POST /api/members
func (h *MemberHandler) Create(w http.ResponseWriter, r *http.Request) {
	var in service.CreateMemberInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	member, err := h.members.Create(r.Context(), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeData(w, http.StatusCreated, member)
}

// List handles GET /api/members
func (h *MemberHandler) List(w http.ResponseWriter, r *http.Request) {
	members, err := h.members.List(r.Context())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeList(w, members)
}

// Get handles GET /api/members/{id}
func (h *MemberHandler) Get(w http.ResponseWriter, r *http.Request) {
	member, err := h.members.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeData(w, http.StatusOK, member)
}

// Update handles PUT /api/members/{id}
func (h *MemberHandler) Update(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateMemberInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	member, err := h.members.Update(r.Context(), r.PathValue("id"), in)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeData(w, http.StatusOK, member)
}

// Delete handles DELETE /api/members/{id}
func (h *MemberHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.members.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Member deleted")
}
