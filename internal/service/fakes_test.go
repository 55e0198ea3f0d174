package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
)

type memMemberRepo struct {
	mu   sync.Mutex
	byID map[string]*domain.Member
}

func newMemMemberRepo() *memMemberRepo {
	return &memMemberRepo{byID: map[string]*domain.Member{}}
}

func (m *memMemberRepo) Create(_ context.Context, member *domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if existing.Email == member.Email {
			return domain.NewError(domain.ErrDuplicateEmail, "Member with this email already exists")
		}
	}
	member.ID = uuid.NewString()
	member.CreatedAt = time.Now()
	member.UpdatedAt = member.CreatedAt
	cp := *member
	m.byID[member.ID] = &cp
	return nil
}

func (m *memMemberRepo) GetByID(_ context.Context, id string) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.byID[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, domain.NewError(domain.ErrNotFound, "Member not found")
}

func (m *memMemberRepo) GetByEmail(_ context.Context, email string) (*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, "Member not found")
}

func (m *memMemberRepo) GetByIDs(_ context.Context, ids []string) ([]*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Member
	for _, id := range ids {
		if u, ok := m.byID[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memMemberRepo) List(_ context.Context) ([]*domain.Member, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Member, 0, len(m.byID))
	for _, u := range m.byID {
		cp := *u
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memMemberRepo) Update(_ context.Context, member *domain.Member) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[member.ID]; !ok {
		return domain.NewError(domain.ErrNotFound, "Member not found")
	}
	member.UpdatedAt = time.Now()
	cp := *member
	m.byID[member.ID] = &cp
	return nil
}

func (m *memMemberRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.NewError(domain.ErrNotFound, "Member not found")
	}
	delete(m.byID, id)
	return nil
}

// memProjectRepo mimics the unique title index and the list ordering of the Postgres store.
type memProjectRepo struct {
	mu    sync.Mutex
	byID  map[string]*domain.Project
	clock func() time.Time
	err   error
}

func newMemProjectRepo() *memProjectRepo {
	return &memProjectRepo{byID: map[string]*domain.Project{}, clock: time.Now}
}

func (m *memProjectRepo) Create(_ context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	for _, existing := range m.byID {
		if existing.Title == p.Title {
			return domain.NewError(domain.ErrDuplicateTitle, "Project with this title already exists")
		}
	}
	p.ID = uuid.NewString()
	p.CreatedAt = m.clock()
	p.UpdatedAt = p.CreatedAt
	m.byID[p.ID] = cloneProject(p)
	return nil
}

func (m *memProjectRepo) GetByID(_ context.Context, id string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	if p, ok := m.byID[id]; ok {
		return cloneProject(p), nil
	}
	return nil, domain.NewError(domain.ErrNotFound, "Project not found")
}

func (m *memProjectRepo) GetByProjectID(_ context.Context, projectID string) (*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, p := range m.byID {
		if p.ProjectID == projectID {
			return cloneProject(p), nil
		}
	}
	return nil, domain.NewError(domain.ErrNotFound, "Project not found")
}

func (m *memProjectRepo) ExistsByTitle(_ context.Context, title string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	for _, p := range m.byID {
		if p.Title == title {
			return true, nil
		}
	}
	return false, nil
}

func (m *memProjectRepo) List(_ context.Context) ([]*domain.Project, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := make([]*domain.Project, 0, len(m.byID))
	for _, p := range m.byID {
		out = append(out, cloneProject(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].Seq > out[j].Seq
	})
	return out, nil
}

func (m *memProjectRepo) Update(_ context.Context, p *domain.Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	stored, ok := m.byID[p.ID]
	if !ok {
		return domain.NewError(domain.ErrNotFound, "Project not found")
	}
	for id, existing := range m.byID {
		if id != p.ID && existing.Title == p.Title {
			return domain.NewError(domain.ErrDuplicateTitle, "Project with this title already exists")
		}
	}
	next := cloneProject(p)
	next.ProjectID = stored.ProjectID
	next.Seq = stored.Seq
	next.CreatedBy = stored.CreatedBy
	next.CreatedAt = stored.CreatedAt
	next.UpdatedAt = m.clock()
	m.byID[p.ID] = next
	p.UpdatedAt = next.UpdatedAt
	return nil
}

func (m *memProjectRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.byID[id]; !ok {
		return domain.NewError(domain.ErrNotFound, "Project not found")
	}
	delete(m.byID, id)
	return nil
}

func (m *memProjectRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

func cloneProject(p *domain.Project) *domain.Project {
	cp := *p
	cp.MemberIDs = append([]string(nil), p.MemberIDs...)
	return &cp
}

type memSequence struct {
	mu     sync.Mutex
	values map[string]int64
	err    error
}

func newMemSequence() *memSequence {
	return &memSequence{values: map[string]int64{}}
}

func (s *memSequence) Allocate(_ context.Context, name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.values[name]++
	return s.values[name], nil
}

// plainHasher stands in for bcrypt so tests stay fast.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (plainHasher) Verify(hash, password string) bool   { return hash == "hashed:"+password }
