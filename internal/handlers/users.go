package handlers

import (
	"net/http"

	"github.com/esp-pix/authserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// UserHandler exposes admin user management.
type UserHandler struct {
	users *services.UserService
}

func NewUserHandler(users *services.UserService) *UserHandler {
	return &UserHandler{users: users}
}

// UserRouter registers user routes behind requireSession.
func UserRouter(r chi.Router, users *services.UserService, requireSession func(http.Handler) http.Handler) {
	handler := NewUserHandler(users)

	r.Use(requireSession)
	r.Get("/", handler.ListUsers)
	r.Post("/", handler.CreateUser)
	r.Delete("/{userID}", handler.DeleteUser)
}

func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	requester, _ := UserFromContext(r.Context())
	users, err := h.users.ListUsers(r.Context(), requester)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, users)
}

func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	requester, _ := UserFromContext(r.Context())
	var req services.NewUser
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.users.CreateUser(r.Context(), requester, req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusCreated, user)
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	requester, _ := UserFromContext(r.Context())
	if err := h.users.DeleteUser(r.Context(), requester, chi.URLParam(r, "userID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeOK(w, http.StatusOK, nil)
}
