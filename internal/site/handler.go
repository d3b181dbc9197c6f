// Package site serves the application's own pages: the public landing
// page and the session-backed state scenarios demo.
package site

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gatehouse-app/gatehouse/internal/access"
	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/pages"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
)

const counterSessionKey = "scenario_counter"

// Handler renders the site pages.
type Handler struct {
	logger    *slog.Logger
	guard     access.Guard
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, guard access.Guard, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, guard: guard, templates: templates, csrf: csrf}
}

// Home renders the landing page.
func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/home.html", "Home", nil)
}

type stateData struct {
	Counter int
}

// StateScenarios renders the session counter page.
func (h *Handler) StateScenarios(w http.ResponseWriter, r *http.Request) {
	counter := 0
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		counter, _ = strconv.Atoi(sess.Get(counterSessionKey))
	}
	h.render(w, r, "pages/state_scenarios.html", "State Scenarios", stateData{Counter: counter})
}

// StateScenariosSubmit handles the increment and reset buttons.
func (h *Handler) StateScenariosSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		switch r.PostForm.Get("action") {
		case "reset":
			sess.Delete(counterSessionKey)
		default:
			counter, _ := strconv.Atoi(sess.Get(counterSessionKey))
			sess.Set(counterSessionKey, strconv.Itoa(counter+1))
		}
	}
	http.Redirect(w, r, pages.StateScenariosPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any) {
	ctx := r.Context()
	sess := shared.SessionFromContext(ctx)
	id := identity.FromContext(ctx)
	doc, usingDefaults := h.guard.DocumentFromContext(ctx)
	csrfToken, _ := h.csrf.EnsureToken(ctx, sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:         title,
		CSRFToken:     csrfToken,
		Flash:         flash,
		CurrentPath:   r.URL.Path,
		Identity:      id,
		Nav:           access.VisiblePages(pages.All(), id, doc),
		UsingDefaults: usingDefaults,
		Data:          data,
	}
	if err := h.templates.Render(w, template, viewData); err != nil {
		h.logger.Error("render page", slog.String("template", template), slog.Any("error", err))
	}
}
