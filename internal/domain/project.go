package domain

import (
	"context"
	"fmt"
	"regexp"
	"time"
)

// Status is a project's progress label. Any status may replace any other.
type Status string

const (
	StatusPlanned    Status = "planned"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusOnHold     Status = "on-hold"
	StatusCancelled  Status = "cancelled"
)

// DefaultStatus is assigned when a project is created without a status.
const DefaultStatus = StatusPlanned

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPlanned, StatusInProgress, StatusCompleted, StatusOnHold, StatusCancelled:
		return true
	}
	return false
}

const (
	// ProjectCounter is the sequence name used to mint project ids.
	ProjectCounter = "projectId"

	projectIDPrefix = "PRJ-"
)

var projectIDPattern = regexp.MustCompile(`^PRJ-[0-9]{3,}$`)

// FormatProjectID renders a sequence value as a human-readable project id.
// The number is zero-padded to at least three digits and never truncated.
func FormatProjectID(seq int64) string {
	return fmt.Sprintf("%s%03d", projectIDPrefix, seq)
}

// IsProjectID reports whether id looks like a human-readable project id.
func IsProjectID(id string) bool {
	return projectIDPattern.MatchString(id)
}

// Project is a unit of work owned by its creator
type Project struct {
	ID          string // UUID assigned by the store
	ProjectID   string // PRJ-NNN, minted once at creation
	Seq         int64  // Sequence value behind ProjectID
	Title       string
	Description string
	Status      Status
	StartDate   time.Time
	EndDate     time.Time
	CreatedBy   string   // Member ID of the creator, immutable
	MemberIDs   []string // Weak references to members
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ValidateDates checks that both dates are set and the end does not precede the start.
func (p *Project) ValidateDates() error {
	if p.StartDate.IsZero() || p.EndDate.IsZero() {
		return NewError(ErrValidation, "Start date and end date are required")
	}
	if p.EndDate.Before(p.StartDate) {
		return NewError(ErrValidation, "End date must be greater than or equal to start date")
	}
	return nil
}

// ProjectRepository defines data access for projects
type ProjectRepository interface {
	Create(ctx context.Context, project *Project) error
	GetByID(ctx context.Context, id string) (*Project, error)
	GetByProjectID(ctx context.Context, projectID string) (*Project, error)
	ExistsByTitle(ctx context.Context, title string) (bool, error)
	// List returns every project, most recently created first.
	List(ctx context.Context) ([]*Project, error)
	Update(ctx context.Context, project *Project) error
	Delete(ctx context.Context, id string) error
}

// SequenceAllocator hands out strictly increasing values per counter name.
// Allocate must be a single atomic find-or-create-and-increment on the backing store.
type SequenceAllocator interface {
	Allocate(ctx context.Context, name string) (int64, error)
}
