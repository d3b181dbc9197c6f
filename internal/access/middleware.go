package access

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/observability"
	"github.com/gatehouse-app/gatehouse/internal/pages"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
)

// Guard protects page routes: it resolves the current identity, loads
// the document once, and either passes the request through with the
// identity and document in context, or renders the denial /
// verification-required state and stops the chain.
type Guard struct {
	Store     *Store
	Resolver  *identity.Resolver
	Templates *view.Engine
	CSRF      *shared.CSRFManager
	Logger    *slog.Logger
	Metrics   *observability.Metrics
}

type requestState struct {
	doc           Document
	usingDefaults bool
}

type stateContextKey struct{}

// DocumentFromContext returns the document loaded by the guard for this
// request, falling back to a fresh load when the route is unguarded.
func (g Guard) DocumentFromContext(ctx context.Context) (Document, bool) {
	if state, ok := ctx.Value(stateContextKey{}).(requestState); ok {
		return state.doc, state.usingDefaults
	}
	return g.Store.Load(ctx)
}

// DeniedData feeds the denied template.
type DeniedData struct {
	Reason string
}

// VerifyData feeds the verification-required template.
type VerifyData struct {
	Email string
}

// Require guards the route serving the page registered at path.
func (g Guard) Require(path string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sess := shared.SessionFromContext(ctx)
			id := g.Resolver.Resolve(sess)
			doc, usingDefaults := g.Store.Load(ctx)

			decision := Check(path, id, doc)
			if !decision.Granted {
				g.Metrics.RecordAccessDecision(path, "deny")
				g.renderBlocked(w, r, id, doc, usingDefaults, "pages/denied.html", "Access Denied", DeniedData{Reason: decision.Reason})
				return
			}
			if decision.NeedsVerification {
				g.Metrics.RecordAccessDecision(path, "verify")
				g.renderBlocked(w, r, id, doc, usingDefaults, "pages/verify_email.html", "Verify Your Email", VerifyData{Email: id.Email})
				return
			}

			g.Metrics.RecordAccessDecision(path, "allow")
			ctx = identity.ContextWith(ctx, id)
			ctx = context.WithValue(ctx, stateContextKey{}, requestState{doc: doc, usingDefaults: usingDefaults})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (g Guard) renderBlocked(w http.ResponseWriter, r *http.Request, id *identity.Identity, doc Document, usingDefaults bool, template, title string, data any) {
	var csrfToken string
	if g.CSRF != nil {
		csrfToken, _ = g.CSRF.EnsureToken(r.Context(), shared.SessionFromContext(r.Context()))
	}
	viewData := view.TemplateData{
		Title:         title,
		CSRFToken:     csrfToken,
		CurrentPath:   r.URL.Path,
		Identity:      id,
		Nav:           VisiblePages(pages.All(), id, doc),
		UsingDefaults: usingDefaults,
		Data:          data,
	}
	if err := g.Templates.RenderStatus(w, http.StatusForbidden, template, viewData); err != nil {
		if g.Logger != nil {
			g.Logger.Error("render access block", slog.Any("error", err))
		}
		http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
	}
}
