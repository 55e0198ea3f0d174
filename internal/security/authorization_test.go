package security

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aryan0dhankhar/projecthub/internal/domain"
)

func TestHasRole(t *testing.T) {
	assert.True(t, HasRole(&domain.Member{Role: domain.RoleAdmin}, domain.RoleAdmin))
	assert.False(t, HasRole(&domain.Member{Role: domain.RoleManager}, domain.RoleAdmin))
	assert.False(t, HasRole(nil, domain.RoleAdmin))
}

func TestIsOwner(t *testing.T) {
	p := &domain.Project{CreatedBy: "m-1"}
	assert.True(t, IsOwner(&domain.Member{ID: "m-1"}, p))
	assert.False(t, IsOwner(&domain.Member{ID: "m-2"}, p))
	assert.False(t, IsOwner(&domain.Member{}, &domain.Project{}))
	assert.False(t, IsOwner(nil, p))
}

func TestAuthorizeProjectChange(t *testing.T) {
	project := &domain.Project{ProjectID: "PRJ-001", CreatedBy: "creator"}
	creator := &domain.Member{ID: "creator", Role: domain.RoleAdmin}
	otherAdmin := &domain.Member{ID: "admin-2", Role: domain.RoleAdmin}
	stranger := &domain.Member{ID: "dev", Role: domain.RoleDeveloper}

	lenient := NewAuthorizer(CreatorOrAdmin, nil)
	assert.NoError(t, lenient.AuthorizeProjectChange(creator, project, "edit"))
	assert.NoError(t, lenient.AuthorizeProjectChange(otherAdmin, project, "edit"))
	err := lenient.AuthorizeProjectChange(stranger, project, "delete")
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, "Not authorized to delete this project", err.Error())

	strict := NewAuthorizer(CreatorOnly, nil)
	assert.NoError(t, strict.AuthorizeProjectChange(creator, project, "edit"))
	assert.ErrorIs(t, strict.AuthorizeProjectChange(otherAdmin, project, "edit"), domain.ErrForbidden)
	assert.ErrorIs(t, strict.AuthorizeProjectChange(stranger, project, "edit"), domain.ErrForbidden)
}
