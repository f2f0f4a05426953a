package handlers

import (
	"context"
	"net/http"

	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/services"
)

// APIKeyHeader carries the raw device key.
const APIKeyHeader = "x-api-key"

const (
	msgKeyMissing = "api key missing"
	msgKeyInvalid = "api key invalid or expired"
)

// DeviceHandler serves endpoints consumed by terminal firmware.
type DeviceHandler struct {
	keys *services.APIKeyManager
}

func NewDeviceHandler(keys *services.APIKeyManager) *DeviceHandler {
	return &DeviceHandler{keys: keys}
}

// ValidateKey reports whether the x-api-key header carries a usable key.
func (h *DeviceHandler) ValidateKey(w http.ResponseWriter, r *http.Request) {
	raw := r.Header.Get(APIKeyHeader)
	if raw == "" {
		writeJSON(w, http.StatusUnauthorized, ValidateKeyResponse{Error: msgKeyMissing})
		return
	}
	principal, ok, err := h.keys.ValidateKey(r.Context(), raw)
	if err != nil {
		logging.FromContext(r.Context()).Error("validate api key", "error", err)
		writeJSON(w, http.StatusInternalServerError, ValidateKeyResponse{Error: "internal error"})
		return
	}
	if !ok {
		writeJSON(w, http.StatusUnauthorized, ValidateKeyResponse{Error: msgKeyInvalid})
		return
	}
	writeJSON(w, http.StatusOK, ValidateKeyResponse{Valid: true, Name: principal.Name, UserID: principal.UserID})
}

// RequireAPIKey rejects requests without a valid key and injects the principal.
func (h *DeviceHandler) RequireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(APIKeyHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, msgKeyMissing)
			return
		}
		principal, ok, err := h.keys.ValidateKey(r.Context(), raw)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if !ok {
			writeError(w, http.StatusUnauthorized, msgKeyInvalid)
			return
		}
		ctx := context.WithValue(r.Context(), contextPrincipalKey, principal)
		ctx = logging.IntoContext(ctx, logging.FromContext(ctx).With("key_id", principal.KeyID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// NotImplemented answers device endpoints whose payment backend lives elsewhere.
func (h *DeviceHandler) NotImplemented(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	logging.FromContext(r.Context()).Info("device call without payment backend", "device", principal.Name)
	writeError(w, http.StatusNotImplemented, "payment integration is not configured")
}

// Webhook acknowledges payment notifications.
func (h *DeviceHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusAccepted, nil)
}

type ValidateKeyResponse struct {
	Valid  bool   `json:"valid"`
	Error  string `json:"error,omitempty"`
	Name   string `json:"name,omitempty"`
	UserID string `json:"userId,omitempty"`
}
