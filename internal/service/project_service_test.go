package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
	"github.com/aryan0dhankhar/projecthub/internal/security"
)

var (
	jan1  = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jan31 = time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
)

type projectFixture struct {
	svc      *ProjectService
	projects *memProjectRepo
	members  *memMemberRepo
	seq      *memSequence
	admin    *domain.Member
	admin2   *domain.Member
	dev      *domain.Member
}

func newProjectFixture(t *testing.T, policy security.OwnershipPolicy) *projectFixture {
	t.Helper()
	f := &projectFixture{
		projects: newMemProjectRepo(),
		members:  newMemMemberRepo(),
		seq:      newMemSequence(),
	}
	f.admin = f.addMember(t, "Ada", "ada@example.com", domain.RoleAdmin)
	f.admin2 = f.addMember(t, "Grace", "grace@example.com", domain.RoleAdmin)
	f.dev = f.addMember(t, "Linus", "linus@example.com", domain.RoleDeveloper)
	f.svc = NewProjectService(f.projects, f.members, f.seq, security.NewAuthorizer(policy, nil), nil)
	return f
}

func (f *projectFixture) addMember(t *testing.T, name, email string, role domain.Role) *domain.Member {
	t.Helper()
	m := &domain.Member{Name: name, Email: email, Role: role, PasswordHash: "x"}
	require.NoError(t, f.members.Create(context.Background(), m))
	return m
}

func validInput(title string, members ...string) CreateProjectInput {
	return CreateProjectInput{Title: title, StartDate: jan1, EndDate: jan31, Members: members}
}

func TestCreateProject(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	view, err := f.svc.Create(ctx, f.admin, CreateProjectInput{
		Title:       "  Apollo  ",
		Description: " moon ",
		StartDate:   jan1,
		EndDate:     jan31,
		Members:     []string{f.dev.ID, f.admin2.ID, f.dev.ID},
	})
	require.NoError(t, err)

	assert.Equal(t, "PRJ-001", view.ProjectID)
	assert.Equal(t, "Apollo", view.Title)
	assert.Equal(t, "moon", view.Description)
	assert.Equal(t, domain.StatusPlanned, view.Status)
	require.NotNil(t, view.CreatedBy)
	assert.Equal(t, CreatorSummary{ID: f.admin.ID, Name: "Ada", Role: domain.RoleAdmin}, *view.CreatedBy)
	assert.Equal(t, []MemberSummary{{Name: "Linus"}, {Name: "Grace"}}, view.Members)
	assert.NotEmpty(t, view.ID)
}

func TestCreateProjectAssignsConsecutiveIDs(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	for i, want := range []string{"PRJ-001", "PRJ-002", "PRJ-003"} {
		view, err := f.svc.Create(ctx, f.admin, validInput(fmt.Sprintf("P%d", i)))
		require.NoError(t, err)
		assert.Equal(t, want, view.ProjectID)
	}
}

func TestCreateProjectValidation(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	cases := map[string]CreateProjectInput{
		"end before start": {Title: "X", StartDate: jan31, EndDate: jan1},
		"missing dates":    {Title: "X"},
		"blank title":      {Title: "   ", StartDate: jan1, EndDate: jan31},
		"bad status":       {Title: "X", Status: "done", StartDate: jan1, EndDate: jan31},
		"malformed member": validInput("X", "not-a-uuid"),
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, f.admin, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	_, err := f.svc.Create(ctx, f.admin, CreateProjectInput{Title: "X", StartDate: jan31, EndDate: jan1})
	assert.Equal(t, "End date must be greater than or equal to start date", err.Error())

	assert.Equal(t, 0, f.projects.count())
	assert.Zero(t, f.seq.values[domain.ProjectCounter], "no id is consumed by rejected input")
}

func TestCreateProjectSameDayIsValid(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	_, err := f.svc.Create(context.Background(), f.admin, CreateProjectInput{Title: "One day", StartDate: jan1, EndDate: jan1})
	assert.NoError(t, err)
}

func TestCreateProjectUnknownMember(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)

	_, err := f.svc.Create(context.Background(), f.admin, validInput("X", f.dev.ID, uuid.NewString()))
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)
	assert.Equal(t, 0, f.projects.count())
}

func TestCreateProjectDuplicateTitle(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, f.admin, validInput("Apollo"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, f.admin2, validInput(" Apollo "))
	assert.ErrorIs(t, err, domain.ErrDuplicateTitle)
	assert.Equal(t, 1, f.projects.count())
}

func TestCreateProjectConcurrentSameTitle(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(ctx, f.admin, validInput("Race"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	successes := 0
	for err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrDuplicateTitle)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, f.projects.count())
}

func TestCreateProjectConcurrentDistinctIDs(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	const n = 50
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			view, err := f.svc.Create(ctx, f.admin, validInput(fmt.Sprintf("Project %d", i)))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids[view.ProjectID] = true
			mu.Unlock()
		}(i)
	}
	wg.Wait()

	assert.Len(t, ids, n)
	assert.True(t, ids["PRJ-001"])
	assert.True(t, ids[fmt.Sprintf("PRJ-%03d", n)])
}

func TestCreateProjectSequenceFailure(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	f.seq.err = domain.StoreFailure("allocate sequence", errors.New("connection refused"))

	view, err := f.svc.Create(context.Background(), f.admin, validInput("Apollo"))
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	assert.Nil(t, view)
	assert.Equal(t, 0, f.projects.count())
}

func TestCreateProjectRequiresActor(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	_, err := f.svc.Create(context.Background(), nil, validInput("Apollo"))
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}

func TestGetProject(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, validInput("Apollo", f.dev.ID))
	require.NoError(t, err)

	byPRJ, err := f.svc.Get(ctx, created.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, byPRJ.Title)
	assert.Equal(t, created.Members, byPRJ.Members)

	byID, err := f.svc.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ProjectID, byID.ProjectID)

	_, err = f.svc.Get(ctx, "PRJ-999")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = f.svc.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrNotFound)

	for _, bad := range []string{"abc", "PRJ-1", "prj-001", ""} {
		_, err = f.svc.Get(ctx, bad)
		assert.ErrorIs(t, err, domain.ErrInvalidIdentifier, bad)
	}
}

func TestListProjectsNewestFirst(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	now := jan1
	f.projects.clock = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	for _, title := range []string{"A", "B", "C"} {
		_, err := f.svc.Create(ctx, f.admin, validInput(title))
		require.NoError(t, err)
	}

	views, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "C", views[0].Title)
	assert.Equal(t, "B", views[1].Title)
	assert.Equal(t, "A", views[2].Title)
}

func TestListProjectsSameInstantFallsBackToSequence(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()
	f.projects.clock = func() time.Time { return jan1 }

	for _, title := range []string{"A", "B"} {
		_, err := f.svc.Create(ctx, f.admin, validInput(title))
		require.NoError(t, err)
	}

	views, err := f.svc.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, "PRJ-002", views[0].ProjectID)
	assert.Equal(t, "PRJ-001", views[1].ProjectID)
}

func TestListProjectsEmpty(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	views, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestUpdateProjectByNonCreatorIsForbidden(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, validInput("Apollo"))
	require.NoError(t, err)

	title := "Hijacked"
	_, err = f.svc.Update(ctx, f.dev, created.ProjectID, UpdateProjectInput{Title: &title})
	assert.ErrorIs(t, err, domain.ErrForbidden)

	after, err := f.svc.Get(ctx, created.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", after.Title)
}

func TestUpdateProjectPolicies(t *testing.T) {
	title := "Renamed"

	lenient := newProjectFixture(t, security.CreatorOrAdmin)
	created, err := lenient.svc.Create(context.Background(), lenient.admin, validInput("Apollo"))
	require.NoError(t, err)
	view, err := lenient.svc.Update(context.Background(), lenient.admin2, created.ProjectID, UpdateProjectInput{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", view.Title)

	strict := newProjectFixture(t, security.CreatorOnly)
	created, err = strict.svc.Create(context.Background(), strict.admin, validInput("Apollo"))
	require.NoError(t, err)
	_, err = strict.svc.Update(context.Background(), strict.admin2, created.ProjectID, UpdateProjectInput{Title: &title})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateProjectNotFoundBeforeForbidden(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOnly)
	title := "x"

	_, err := f.svc.Update(context.Background(), f.dev, "PRJ-404", UpdateProjectInput{Title: &title})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.svc.Delete(context.Background(), f.dev, "PRJ-404")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpdateProjectPatch(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, validInput("Apollo", f.dev.ID))
	require.NoError(t, err)

	status := domain.StatusCompleted
	members := []string{}
	view, err := f.svc.Update(ctx, f.admin, created.ProjectID, UpdateProjectInput{Status: &status, Members: &members})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, view.Status)
	assert.Equal(t, "Apollo", view.Title)
	assert.Equal(t, created.ProjectID, view.ProjectID)
	assert.Equal(t, created.CreatedBy, view.CreatedBy)
	assert.Empty(t, view.Members)

	back := domain.StatusPlanned
	view, err = f.svc.Update(ctx, f.admin, created.ID, UpdateProjectInput{Status: &back})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPlanned, view.Status)
}

func TestUpdateProjectRevalidates(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, validInput("Apollo"))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.admin, validInput("Gemini"))
	require.NoError(t, err)

	early := jan1.AddDate(0, 0, -1)
	_, err = f.svc.Update(ctx, f.admin, created.ProjectID, UpdateProjectInput{EndDate: &early})
	assert.ErrorIs(t, err, domain.ErrValidation)

	taken := "Gemini"
	_, err = f.svc.Update(ctx, f.admin, created.ProjectID, UpdateProjectInput{Title: &taken})
	assert.ErrorIs(t, err, domain.ErrDuplicateTitle)

	ghost := []string{uuid.NewString()}
	_, err = f.svc.Update(ctx, f.admin, created.ProjectID, UpdateProjectInput{Members: &ghost})
	assert.ErrorIs(t, err, domain.ErrReferenceNotFound)

	after, err := f.svc.Get(ctx, created.ProjectID)
	require.NoError(t, err)
	assert.Equal(t, "Apollo", after.Title)
	assert.Equal(t, jan31, after.EndDate)
}

func TestDeleteProject(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, f.admin, validInput("Apollo"))
	require.NoError(t, err)

	assert.ErrorIs(t, f.svc.Delete(ctx, f.dev, created.ProjectID), domain.ErrForbidden)
	assert.Equal(t, 1, f.projects.count())

	require.NoError(t, f.svc.Delete(ctx, f.admin, created.ProjectID))
	_, err = f.svc.Get(ctx, created.ProjectID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExpansionSkipsDeletedMembers(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	ctx := context.Background()

	creator := f.addMember(t, "Temp", "temp@example.com", domain.RoleAdmin)
	created, err := f.svc.Create(ctx, creator, validInput("Apollo", f.dev.ID, f.admin2.ID))
	require.NoError(t, err)

	require.NoError(t, f.members.Delete(ctx, creator.ID))
	require.NoError(t, f.members.Delete(ctx, f.dev.ID))

	view, err := f.svc.Get(ctx, created.ProjectID)
	require.NoError(t, err)
	assert.Nil(t, view.CreatedBy)
	assert.Equal(t, []MemberSummary{{Name: "Grace"}}, view.Members)
}

func TestProjectStoreFailureSurfaces(t *testing.T) {
	f := newProjectFixture(t, security.CreatorOrAdmin)
	f.projects.err = domain.StoreFailure("list projects", errors.New("timeout"))

	_, err := f.svc.List(context.Background())
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
	_, err = f.svc.Get(context.Background(), "PRJ-001")
	assert.ErrorIs(t, err, domain.ErrStoreUnavailable)
}
