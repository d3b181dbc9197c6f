package access

import (
	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/pages"
)

// VisiblePages filters the registry down to the pages id may open,
// preserving registry order and the default-landing flag. Callers load
// the document once and reuse it for the whole sequence. An empty
// result means the layout should render an explicit "no accessible
// pages" state, not an empty navigation.
func VisiblePages(all []pages.Page, id *identity.Identity, doc Document) []pages.Page {
	visible := make([]pages.Page, 0, len(all))
	for _, p := range all {
		if CanAccess(p.Path, id, doc) {
			visible = append(visible, p)
		}
	}
	return visible
}
