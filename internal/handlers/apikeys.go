package handlers

import (
	"net/http"

	"github.com/esp-pix/authserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// KeyHandler exposes API key management to logged-in users.
type KeyHandler struct {
	keys *services.APIKeyManager
}

func NewKeyHandler(keys *services.APIKeyManager) *KeyHandler {
	return &KeyHandler{keys: keys}
}

// KeyRouter registers API key routes behind requireSession.
func KeyRouter(r chi.Router, keys *services.APIKeyManager, requireSession func(http.Handler) http.Handler) {
	handler := NewKeyHandler(keys)

	r.Use(requireSession)
	r.Get("/", handler.ListKeys)
	r.Post("/", handler.CreateKey)
	r.Route("/{keyID}", func(r chi.Router) {
		r.Post("/toggle", handler.ToggleKey)
		r.Delete("/", handler.DeleteKey)
	})
}

func (h *KeyHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	requester, _ := UserFromContext(r.Context())
	keys, err := h.keys.ListKeys(r.Context(), requester)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, keys)
}

// CreateKey returns the raw secret. It is the only response that ever carries it.
func (h *KeyHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	requester, _ := UserFromContext(r.Context())
	var req CreateKeyRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	created, err := h.keys.CreateKey(r.Context(), requester, req.Name, string(req.ExpiresIn))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, created)
}

func (h *KeyHandler) ToggleKey(w http.ResponseWriter, r *http.Request) {
	requester, _ := UserFromContext(r.Context())
	if err := h.keys.ToggleKey(r.Context(), chi.URLParam(r, "keyID"), requester); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

func (h *KeyHandler) DeleteKey(w http.ResponseWriter, r *http.Request) {
	requester, _ := UserFromContext(r.Context())
	if err := h.keys.DeleteKey(r.Context(), chi.URLParam(r, "keyID"), requester); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}

type CreateKeyRequest struct {
	Name      string     `json:"name"`
	ExpiresIn flexString `json:"expiresIn"`
}
