package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/esp-pix/authserver/internal/auth"
	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/store"
	"github.com/esp-pix/authserver/types"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id string) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	List(ctx context.Context) ([]types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
	Delete(ctx context.Context, id string) error
}

// NewUser is the input of an admin creating an operator account.
type NewUser struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// UserService encapsulates admin-only user management.
type UserService struct {
	repo   UserRepository
	hasher *auth.Hasher
	events EventPublisher
}

func NewUserService(repo UserRepository, hasher *auth.Hasher, events EventPublisher) *UserService {
	return &UserService{repo: repo, hasher: hasher, events: events}
}

func (s *UserService) CreateUser(ctx context.Context, requester types.AuthUser, in NewUser) (types.User, error) {
	if err := RequireAdmin(requester); err != nil {
		return types.User{}, err
	}

	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || in.Password == "" {
		return types.User{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}
	role := strings.TrimSpace(in.Role)
	if role == "" {
		role = types.RoleUser
	}
	if !types.ValidRole(role) {
		return types.User{}, fmt.Errorf("%w: role must be %q or %q", ErrValidation, types.RoleUser, types.RoleAdmin)
	}

	if _, err := s.repo.GetByEmail(ctx, in.Email); err == nil {
		return types.User{}, fmt.Errorf("%w: email already in use", ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.User{}, fmt.Errorf("check email: %w", err)
	}

	hash, err := hashPassword(s.hasher, in.Password)
	if err != nil {
		return types.User{}, err
	}
	var name *string
	if n := strings.TrimSpace(in.Name); n != "" {
		name = &n
	}

	user, err := s.repo.Create(ctx, types.User{
		Email:        in.Email,
		Name:         name,
		Role:         role,
		PasswordHash: hash,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return types.User{}, fmt.Errorf("%w: email already in use", ErrConflict)
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}

	logging.FromContext(ctx).Info("user created", "svc", "user", "user_id", user.ID, "role", user.Role, "by", requester.ID)
	s.events.Publish(ctx, types.AuthEvent{Type: types.EventUserCreated, ActorID: requester.ID, SubjectID: user.ID, Email: user.Email})
	return user, nil
}

// DeleteUser removes a user and, by cascade, their sessions and keys.
func (s *UserService) DeleteUser(ctx context.Context, requester types.AuthUser, id string) error {
	if err := AuthorizeUserDeletion(requester, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return translateStoreErr(err, "user not found")
	}

	logging.FromContext(ctx).Info("user deleted", "svc", "user", "user_id", id, "by", requester.ID)
	s.events.Publish(ctx, types.AuthEvent{Type: types.EventUserDeleted, ActorID: requester.ID, SubjectID: id})
	return nil
}

func (s *UserService) ListUsers(ctx context.Context, requester types.AuthUser) ([]types.User, error) {
	if err := RequireAdmin(requester); err != nil {
		return nil, err
	}
	users, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// hashPassword reports bcrypt's input limit as a validation error.
func hashPassword(hasher *auth.Hasher, password string) (string, error) {
	hash, err := hasher.Hash(password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return "", fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, auth.MaxPasswordBytes)
	}
	return hash, err
}
