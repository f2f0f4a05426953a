package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/services"
	"github.com/esp-pix/authserver/types"
)

type contextKey string

const (
	contextUserKey      contextKey = "user"
	contextPrincipalKey contextKey = "principal"
)

const maxBodyBytes = 1 << 20

func withUser(ctx context.Context, user types.AuthUser) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// UserFromContext returns the identity resolved by RequireSession.
func UserFromContext(ctx context.Context) (types.AuthUser, bool) {
	user, ok := ctx.Value(contextUserKey).(types.AuthUser)
	return user, ok
}

// PrincipalFromContext returns the key principal resolved by RequireAPIKey.
func PrincipalFromContext(ctx context.Context) (types.KeyPrincipal, bool) {
	p, ok := ctx.Value(contextPrincipalKey).(types.KeyPrincipal)
	return p, ok
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeOK(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.OK(data))
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, types.Fail(message))
}

// writeServiceError converts err into a failed Result with a matching status.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request failed", "error", err)
	}
	writeError(w, status, services.PublicMessage(err))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, services.ErrInvalidCredentials), errors.Is(err, services.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, services.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return false
	}
	return true
}

func isJSON(r *http.Request) bool {
	return strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "application/json")
}

// flexString accepts a JSON string or number, e.g. expiresIn: 30 or "30".
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}
