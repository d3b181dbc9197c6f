package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gatehouse-app/gatehouse/internal/pages"
)

func pagePaths(ps []pages.Page) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.Path
	}
	return out
}

func TestVisiblePagesByRole(t *testing.T) {
	doc := DefaultDocument()
	all := pages.All()

	assert.Equal(t, []string{pages.HomePath},
		pagePaths(VisiblePages(all, nil, doc)), "anonymous")

	assert.Equal(t, []string{pages.HomePath, pages.StateScenariosPath},
		pagePaths(VisiblePages(all, withRoles("users"), doc)), "users role")

	assert.Equal(t, []string{pages.HomePath, pages.StateScenariosPath, pages.UserAdminPath},
		pagePaths(VisiblePages(all, withRoles("admin"), doc)), "admin role")
}

func TestVisiblePagesPreservesOrderAndDefaultFlag(t *testing.T) {
	doc := DefaultDocument()
	visible := VisiblePages(pages.All(), withRoles("admin"), doc)

	assert.Equal(t, pagePaths(pages.All()), pagePaths(visible))
	assert.True(t, visible[0].Default, "landing flag survives filtering")
}

func TestVisiblePagesCanBeEmpty(t *testing.T) {
	doc := Document{
		Version:       "1.0",
		DefaultAccess: DefaultDeny,
		Pages:         map[string]Rule{},
	}
	assert.Empty(t, VisiblePages(pages.All(), nil, doc))
}
