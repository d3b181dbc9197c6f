// Package admin serves the user administration screen: the directory
// of identity provider accounts, role editing, invitations and the
// page access configuration editor.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gatehouse-app/gatehouse/internal/access"
	"github.com/gatehouse-app/gatehouse/internal/idp"
	"github.com/gatehouse-app/gatehouse/internal/identity"
	"github.com/gatehouse-app/gatehouse/internal/pages"
	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
	"github.com/gatehouse-app/gatehouse/jobs"
)

// Directory is the slice of the management API the admin screen uses.
type Directory interface {
	ListUsers(ctx context.Context) ([]idp.User, error)
	UpdateUserRoles(ctx context.Context, userID string, roles []string) error
	InviteUser(ctx context.Context, email string, roles []string) error
}

// Handler manages the /user-admin endpoints.
type Handler struct {
	logger    *slog.Logger
	store     *access.Store
	directory Directory
	guard     access.Guard
	queue     *jobs.Client
	audit     *shared.AuditLogger
	templates *view.Engine
	csrf      *shared.CSRFManager
	validator *validator.Validate
}

// NewHandler builds a Handler. directory and queue may be nil when the
// management API or the job queue are not configured.
func NewHandler(logger *slog.Logger, store *access.Store, directory Directory, guard access.Guard, queue *jobs.Client, audit *shared.AuditLogger, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:    logger,
		store:     store,
		directory: directory,
		guard:     guard,
		queue:     queue,
		audit:     audit,
		templates: templates,
		csrf:      csrf,
		validator: validator.New(),
	}
}

// MountRoutes registers admin routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.showAdmin)
	r.Post("/access", h.saveAccess)
	r.Post("/users/roles", h.updateUserRoles)
	r.Post("/users/invite", h.inviteUser)
}

type roleCheck struct {
	Name    string
	Checked bool
}

type accessRow struct {
	Title  string
	Path   string
	Public bool
	Roles  []roleCheck
}

type summaryRow struct {
	Title  string
	Path   string
	Access string
}

type adminPageData struct {
	IdPError       string
	Users          []idp.User
	Roles          []string
	AccessRows     []accessRow
	DefaultAccess  string
	DefaultOptions []string
	ConfigJSON     string
	Summary        []summaryRow
}

func (h *Handler) showAdmin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	doc, _ := h.guard.DocumentFromContext(ctx)
	h.render(w, r, h.buildPageData(ctx, doc), http.StatusOK)
}

func (h *Handler) buildPageData(ctx context.Context, doc access.Document) adminPageData {
	roles := identity.AvailableRoles()
	data := adminPageData{
		Roles:          roles,
		DefaultAccess:  string(doc.DefaultAccess),
		DefaultOptions: []string{string(access.DefaultAuthenticated), string(access.DefaultPublic), string(access.DefaultDeny)},
	}

	switch {
	case h.directory == nil:
		data.IdPError = "management API credentials are not configured"
	default:
		listing, err := h.directory.ListUsers(ctx)
		if err != nil {
			h.logger.Error("list directory users", slog.Any("error", err))
			data.IdPError = "the user directory could not be reached"
		} else {
			data.Users = listing
		}
	}

	for _, p := range pages.All() {
		rule := doc.Rule(p.Path)
		row := accessRow{Title: p.Title, Path: p.Path, Public: rule.Kind == access.RulePublic}
		for _, role := range roles {
			checked := rule.Kind == access.RuleRoleRestricted && containsRole(rule.Roles, role)
			row.Roles = append(row.Roles, roleCheck{Name: role, Checked: checked})
		}
		data.AccessRows = append(data.AccessRows, row)
		data.Summary = append(data.Summary, summaryRow{
			Title:  p.Title,
			Path:   p.Path,
			Access: describeRule(rule, doc.DefaultAccess),
		})
	}

	if raw, err := json.MarshalIndent(doc, "", "  "); err == nil {
		data.ConfigJSON = string(raw)
	}
	return data
}

func describeRule(rule access.Rule, fallback access.DefaultAccess) string {
	switch rule.Kind {
	case access.RulePublic:
		return "Public"
	case access.RuleAuthenticated:
		return "Authenticated"
	case access.RuleRoleRestricted:
		if len(rule.Roles) == 0 {
			return "Authenticated"
		}
		return "Roles: " + strings.Join(rule.Roles, ", ")
	default:
		return fmt.Sprintf("Default (%s)", fallback)
	}
}

func (h *Handler) saveAccess(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	current, _ := h.store.Load(ctx)
	updated := access.Document{
		Version:       current.Version,
		DefaultAccess: access.DefaultAccess(r.PostForm.Get("default_access")),
		Pages:         make(map[string]access.Rule),
	}
	if !updated.DefaultAccess.Valid() {
		h.redirectWithFlash(w, r, "error", "Unknown default access level.")
		return
	}

	submitted := r.PostForm["paths"]
	for _, path := range submitted {
		switch {
		case r.PostForm.Has("public:" + path):
			updated.Pages[path] = access.Public()
		default:
			var selected []string
			for _, role := range identity.AvailableRoles() {
				if r.PostForm.Has("role:" + role + ":" + path) {
					selected = append(selected, role)
				}
			}
			if len(selected) > 0 {
				updated.Pages[path] = access.RoleRestricted(selected...)
			} else {
				updated.Pages[path] = access.Unspecified()
			}
		}
	}

	// Entries for pages the editor does not show survive the save.
	for path, rule := range current.Pages {
		if _, ok := updated.Pages[path]; !ok {
			updated.Pages[path] = rule
		}
	}

	if violations := access.ValidateDocument(updated); len(violations) > 0 {
		msgs := make([]string, len(violations))
		for i, v := range violations {
			msgs[i] = v.Error()
		}
		h.redirectWithFlash(w, r, "error", strings.Join(msgs, " "))
		return
	}

	if err := h.store.Save(ctx, updated); err != nil {
		h.logger.Error("save access configuration", slog.Any("error", err))
		if errors.Is(err, shared.ErrPersistenceUnavailable) {
			h.redirectWithFlash(w, r, "error", "No database is configured; changes cannot be saved.")
		} else {
			h.redirectWithFlash(w, r, "error", "Failed to save configuration.")
		}
		return
	}

	h.recordAudit(ctx, r, "access.update", "app_settings", access.SettingKey, map[string]any{
		"default_access": string(updated.DefaultAccess),
		"pages":          len(updated.Pages),
	})
	h.redirectWithFlash(w, r, "success", "Page access configuration updated successfully.")
}

func (h *Handler) updateUserRoles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if h.directory == nil {
		h.redirectWithFlash(w, r, "error", "User management is unavailable without management API credentials.")
		return
	}

	userID := r.PostForm.Get("user_id")
	if userID == "" {
		h.redirectWithFlash(w, r, "error", "No user selected.")
		return
	}
	selected := filterRoles(r.PostForm["roles"])

	if err := h.directory.UpdateUserRoles(ctx, userID, selected); err != nil {
		h.logger.Error("update user roles", slog.String("user_id", userID), slog.Any("error", err))
		h.redirectWithFlash(w, r, "error", "Failed to update roles.")
		return
	}

	h.recordAudit(ctx, r, "user.roles_update", "idp_user", userID, map[string]any{"roles": selected})
	h.enqueueSync(ctx, "roles_updated")
	h.redirectWithFlash(w, r, "success", "Roles updated successfully.")
}

type inviteForm struct {
	Email string `validate:"required,email"`
}

func (h *Handler) inviteUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if h.directory == nil {
		h.redirectWithFlash(w, r, "error", "User management is unavailable without management API credentials.")
		return
	}

	form := inviteForm{Email: r.PostForm.Get("email")}
	if err := h.validator.Struct(form); err != nil {
		h.redirectWithFlash(w, r, "error", "Please enter a valid email address.")
		return
	}
	selected := filterRoles(r.PostForm["roles"])

	if err := h.directory.InviteUser(ctx, form.Email, selected); err != nil {
		h.logger.Error("invite user", slog.String("email", form.Email), slog.Any("error", err))
		if strings.Contains(err.Error(), "already exists") {
			h.redirectWithFlash(w, r, "error", fmt.Sprintf("User %s already exists.", form.Email))
		} else {
			h.redirectWithFlash(w, r, "error", "Failed to create the user.")
		}
		return
	}

	h.recordAudit(ctx, r, "user.invite", "idp_user", form.Email, map[string]any{"roles": selected})
	h.enqueueSync(ctx, "user_invited")
	h.redirectWithFlash(w, r, "success", fmt.Sprintf("Invitation sent to %s.", form.Email))
}

func (h *Handler) recordAudit(ctx context.Context, r *http.Request, action, entity, entityID string, meta map[string]any) {
	if h.audit == nil {
		return
	}
	actor := ""
	if id := identity.FromContext(r.Context()); id != nil {
		actor = id.Email
	}
	entry := shared.AuditLog{ActorEmail: actor, Action: action, Entity: entity, EntityID: entityID, Meta: meta}
	if err := h.audit.Record(ctx, entry); err != nil && !errors.Is(err, shared.ErrPersistenceUnavailable) {
		h.logger.Warn("record audit log", slog.Any("error", err))
	}
}

func (h *Handler) enqueueSync(ctx context.Context, trigger string) {
	if h.queue == nil {
		return
	}
	if _, err := h.queue.EnqueueUserSync(ctx, jobs.UserSyncPayload{Trigger: trigger}); err != nil {
		h.logger.Warn("enqueue directory sync", slog.Any("error", err))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, data adminPageData, status int) {
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
		Title:         "User Admin",
		CSRFToken:     csrfToken,
		Flash:         flash,
		CurrentPath:   r.URL.Path,
		Identity:      id,
		Nav:           access.VisiblePages(pages.All(), id, doc),
		UsingDefaults: usingDefaults,
		Data:          data,
	}
	if err := h.templates.RenderStatus(w, status, "pages/user_admin.html", viewData); err != nil {
		h.logger.Error("render user admin", slog.Any("error", err))
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, pages.UserAdminPath, http.StatusSeeOther)
}

// ShowForTest exposes the admin page handler for tests.
func (h *Handler) ShowForTest(w http.ResponseWriter, r *http.Request) {
	h.showAdmin(w, r)
}

// SaveAccessForTest exposes the configuration save handler for tests.
func (h *Handler) SaveAccessForTest(w http.ResponseWriter, r *http.Request) {
	h.saveAccess(w, r)
}

// UpdateUserRolesForTest exposes the role edit handler for tests.
func (h *Handler) UpdateUserRolesForTest(w http.ResponseWriter, r *http.Request) {
	h.updateUserRoles(w, r)
}

// InviteUserForTest exposes the invitation handler for tests.
func (h *Handler) InviteUserForTest(w http.ResponseWriter, r *http.Request) {
	h.inviteUser(w, r)
}

func containsRole(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func filterRoles(submitted []string) []string {
	var out []string
	for _, role := range identity.AvailableRoles() {
		if containsRole(submitted, role) {
			out = append(out, role)
		}
	}
	return out
}
