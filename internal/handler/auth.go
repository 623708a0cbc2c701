package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/nabil/devstash/internal/auth"
	"github.com/nabil/devstash/internal/service"
)

const stateCookie = "oauth_state"

// AuthHandler serves sign-up, sign-in, password reset, and the GitHub
// OAuth flow. github is nil when no OAuth app is configured.
type AuthHandler struct {
	svc    *service.AuthService
	github *auth.GitHubProvider
	logger *slog.Logger
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(svc *service.AuthService, github *auth.GitHubProvider, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, github: github, logger: logger}
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(auth.AccessTokenTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeAuthError(w http.ResponseWriter, err error) {
	if errors.Is(err, service.ErrInvalidCredentials) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_credentials",
			Message: service.ErrInvalidCredentials.Error(),
		})
		return
	}
	writeError(w, err)
}

type signUpPayload struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

// HandleSignUp serves POST /api/auth/signup.
func (h *AuthHandler) HandleSignUp(w http.ResponseWriter, r *http.Request) {
	var payload signUpPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, token, err := h.svc.SignUp(r.Context(), payload.Email, payload.Password, payload.DisplayName)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, user)
}

type signInPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleSignIn serves POST /api/auth/signin.
func (h *AuthHandler) HandleSignIn(w http.ResponseWriter, r *http.Request) {
	var payload signInPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	user, token, err := h.svc.SignIn(r.Context(), payload.Email, payload.Password)
	if err != nil {
		writeAuthError(w, err)
		return
	}

	setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, user)
}

// HandleSignOut serves POST /api/auth/signout.
func (h *AuthHandler) HandleSignOut(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

type resetRequestPayload struct {
	Email string `json:"email"`
}

// HandleResetRequest serves POST /api/auth/reset-request. It always
// answers 202; whether the email exists is never revealed.
func (h *AuthHandler) HandleResetRequest(w http.ResponseWriter, r *http.Request) {
	var payload resetRequestPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.RequestPasswordReset(r.Context(), payload.Email); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

type resetPayload struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// HandleReset serves POST /api/auth/reset.
func (h *AuthHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	var payload resetPayload
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, err)
		return
	}

	if err := h.svc.ResetPassword(r.Context(), payload.Token, payload.Password); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleGitHubLogin serves GET /auth/github/login: sets the CSRF state
// cookie and redirects to GitHub.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   300,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback serves GET /auth/github/callback.
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_state",
			Message: "OAuth state mismatch",
		})
		return
	}

	ghUser, err := h.github.Exchange(r.Context(), r.URL.Query().Get("code"))
	if err != nil {
		h.logger.Error("github exchange failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusBadGateway, ErrorResponse{
			Error:   "oauth_failed",
			Message: "GitHub login failed",
		})
		return
	}

	_, token, err := h.svc.LoginWithGitHub(r.Context(), ghUser)
	if err != nil {
		writeError(w, err)
		return
	}

	setSessionCookie(w, token)
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}
