package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/services"
	"github.com/esp-pix/authserver/types"
)

// SessionCookieName carries the opaque session token.
const SessionCookieName = "esp_pix_session"

const defaultCallbackURL = "/dashboard"

// AuthHandler serves login, logout and the current session.
type AuthHandler struct {
	sessions     *services.SessionManager
	secureCookie bool
}

func NewAuthHandler(sessions *services.SessionManager, secureCookie bool) *AuthHandler {
	return &AuthHandler{sessions: sessions, secureCookie: secureCookie}
}

// RequireSession resolves the session cookie and injects the user into context.
func (h *AuthHandler) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok, err := h.sessions.ResolveSession(r.Context(), sessionToken(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !ok {
			writeServiceError(w, r, services.ErrUnauthenticated)
			return
		}

		ctx := withUser(r.Context(), user)
		ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("user_id", user.ID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoginPage echoes the callback target so the UI can post it back.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, LoginPageResponse{CallbackURL: safeCallback(r.URL.Query().Get("callbackUrl"))})
}

// Login accepts JSON or form credentials and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if isJSON(r) {
		if !decodeJSON(w, r, &req) {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request")
			return
		}
		req.Email = r.PostForm.Get("email")
		req.Password = r.PostForm.Get("password")
		req.CallbackURL = r.PostForm.Get("callbackUrl")
	}

	res, err := h.sessions.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	http.SetCookie(w, h.sessionCookie(res.Token, res.ExpiresAt))
	writeOK(w, http.StatusOK, LoginResponse{User: res.User, CallbackURL: safeCallback(req.CallbackURL)})
}

// Logout revokes the session named by the cookie and clears it.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Logout(r.Context(), sessionToken(r)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	cookie := h.sessionCookie("", time.Unix(0, 0))
	cookie.MaxAge = -1
	http.SetCookie(w, cookie)
	writeOK(w, http.StatusOK, nil)
}

// Session returns the identity behind the current cookie.
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeServiceError(w, r, services.ErrUnauthenticated)
		return
	}
	writeOK(w, http.StatusOK, user)
}

func (h *AuthHandler) sessionCookie(value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    value,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.secureCookie,
		SameSite: http.SameSiteLaxMode,
	}
}

func sessionToken(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}

// safeCallback keeps redirects on this site.
func safeCallback(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
		return defaultCallbackURL
	}
	return target
}

type LoginRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	CallbackURL string `json:"callbackUrl"`
}

type LoginResponse struct {
	User        types.AuthUser `json:"user"`
	CallbackURL string         `json:"callbackUrl"`
}

type LoginPageResponse struct {
	CallbackURL string `json:"callbackUrl"`
}
