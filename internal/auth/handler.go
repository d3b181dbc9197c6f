package auth

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/gatehouse-app/gatehouse/internal/shared"
	"github.com/gatehouse-app/gatehouse/internal/view"
)

const stateSessionKey = "oauth_state"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	authenticator  *Authenticator
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	validator      *validator.Validate
}

// NewHandler constructs a Handler. authenticator may be nil when no
// identity provider is configured; the login page then offers the
// development fallback instead.
func NewHandler(logger *slog.Logger, authenticator *Authenticator, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		authenticator:  authenticator,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.startLogin)
	r.Get("/callback", h.handleCallback)
	r.Post("/dev-login", h.handleDevLogin)
	r.Post("/logout", h.handleLogout)
}

type devLoginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8"`
}

type loginPageData struct {
	OIDCEnabled  bool
	ProviderName string
	Form         devLoginForm
	Errors       map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderLogin(w, r, http.StatusOK, loginPageData{
		OIDCEnabled:  h.authenticator != nil,
		ProviderName: h.authenticator.ProviderName(),
	})
}

// startLogin begins the OIDC authorization code flow.
func (h *Handler) startLogin(w http.ResponseWriter, r *http.Request) {
	if h.authenticator == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	state := uuid.NewString()
	sess.Set(stateSessionKey, state)
	http.Redirect(w, r, h.authenticator.AuthCodeURL(state), http.StatusSeeOther)
}

func (h *Handler) handleCallback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if h.authenticator == nil || sess == nil {
		http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
		return
	}

	expected := sess.Get(stateSessionKey)
	sess.Delete(stateSessionKey)
	if expected == "" || r.URL.Query().Get("state") != expected {
		h.logger.Warn("oidc state mismatch")
		h.flashAndRedirect(w, r, sess, "error", "Login failed, please try again.", "/auth/login")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.flashAndRedirect(w, r, sess, "error", "Login was cancelled.", "/auth/login")
		return
	}

	stored, err := h.authenticator.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("oidc exchange", slog.Any("error", err))
		h.flashAndRedirect(w, r, sess, "error", "Login failed, please try again.", "/auth/login")
		return
	}

	h.completeLogin(w, r, sess, *stored)
}

func (h *Handler) handleDevLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := devLoginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	errors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		for _, fieldErr := range err.(validator.ValidationErrors) {
			errors[fieldErr.Field()] = fieldErr.Error()
		}
	}

	if len(errors) == 0 {
		stored, err := h.service.AuthenticateDev(r.Context(), form.Email, form.Password)
		if err != nil {
			errors["general"] = "Invalid email or password"
		} else {
			h.completeLogin(w, r, sess, *stored)
			return
		}
	}

	h.renderLogin(w, r, http.StatusBadRequest, loginPageData{
		OIDCEnabled:  h.authenticator != nil,
		ProviderName: h.authenticator.ProviderName(),
		Form:         form,
		Errors:       errors,
	})
}

func (h *Handler) completeLogin(w http.ResponseWriter, r *http.Request, sess *shared.Session, stored shared.StoredIdentity) {
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	sess.SetIdentity(stored)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Welcome back"})

	expiresAt := time.Now().Add(h.sessionManager.TTL())
	if err := h.service.RecordLogin(r.Context(), sess.ID, stored.Email, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
		h.logger.Warn("record login", slog.Any("error", err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if err := h.service.RemoveLogin(r.Context(), sess.ID); err != nil {
			h.logger.Warn("remove login", slog.Any("error", err))
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) renderLogin(w http.ResponseWriter, r *http.Request, status int, data loginPageData) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       "Log in",
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, "pages/login.html", viewData); err != nil {
		h.logger.Error("render login", slog.Any("error", err))
	}
}

func (h *Handler) flashAndRedirect(w http.ResponseWriter, r *http.Request, sess *shared.Session, kind, msg, target string) {
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: msg})
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// ShowLoginForTest exposes the login page handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleDevLoginForTest exposes the dev login handler for tests.
func (h *Handler) HandleDevLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleDevLogin(w, r)
}

// HandleLogoutForTest exposes the logout handler for tests.
func (h *Handler) HandleLogoutForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogout(w, r)
}
