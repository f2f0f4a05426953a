package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/esp-pix/authserver/internal/auth"
	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/internal/store"
	"github.com/esp-pix/authserver/types"
)

// ExpiresNever is the expiresIn value for keys without expiry.
const ExpiresNever = "never"

const (
	previewHead = 8
	previewTail = 4
)

// APIKeyRepository defines persistence operations for device API keys.
type APIKeyRepository interface {
	Create(ctx context.Context, key types.APIKey) (types.APIKey, error)
	GetByID(ctx context.Context, id string) (types.APIKey, error)
	GetByKey(ctx context.Context, secret string) (types.APIKey, error)
	List(ctx context.Context, ownerID string) ([]types.OwnedAPIKey, error)
	SetActive(ctx context.Context, id string, active bool) error
	TouchLastUsed(ctx context.Context, id string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// CreatedKey is returned once at creation. Secret is never retrievable again.
type CreatedKey struct {
	Key    types.APIKeyView `json:"key"`
	Secret string           `json:"secret"`
}

// APIKeyManager issues and validates device API keys.
type APIKeyManager struct {
	keys   APIKeyRepository
	events EventPublisher
	now    func() time.Time
}

func NewAPIKeyManager(keys APIKeyRepository, events EventPublisher) *APIKeyManager {
	return &APIKeyManager{
		keys:   keys,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GenerateKey returns a fresh "esp_" prefixed secret.
func GenerateKey() (string, error) {
	raw, err := auth.RandomHex(auth.APIKeyTokenBytes)
	if err != nil {
		return "", err
	}
	return types.APIKeyPrefix + raw, nil
}

// Preview masks secret down to its first 8 and last 4 characters.
func Preview(secret string) string {
	if len(secret) <= previewHead+previewTail {
		return strings.Repeat("*", len(secret))
	}
	return secret[:previewHead] + "..." + secret[len(secret)-previewTail:]
}

// ParseExpiresIn converts a day count into an absolute expiry.
// "" and "never" mean no expiry.
func ParseExpiresIn(expiresIn string, now time.Time) (*time.Time, error) {
	expiresIn = strings.TrimSpace(expiresIn)
	if expiresIn == "" || expiresIn == ExpiresNever {
		return nil, nil
	}
	days, err := strconv.Atoi(expiresIn)
	if err != nil || days <= 0 {
		return nil, fmt.Errorf("%w: expiresIn must be a positive number of days or %q", ErrValidation, ExpiresNever)
	}
	at := now.Add(time.Duration(days) * 24 * time.Hour)
	return &at, nil
}

// CreateKey issues a key owned by owner.
func (m *APIKeyManager) CreateKey(ctx context.Context, owner types.AuthUser, name, expiresIn string) (CreatedKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return CreatedKey{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	now := m.now()
	expiresAt, err := ParseExpiresIn(expiresIn, now)
	if err != nil {
		return CreatedKey{}, err
	}

	secret, err := GenerateKey()
	if err != nil {
		return CreatedKey{}, err
	}
	key, err := m.keys.Create(ctx, types.APIKey{
		Name:      name,
		Key:       secret,
		UserID:    owner.ID,
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	})
	if err != nil {
		return CreatedKey{}, fmt.Errorf("create api key: %w", err)
	}

	logging.FromContext(ctx).Info("api key created", "svc", "apikey", "key_id", key.ID, "user_id", owner.ID)
	m.events.Publish(ctx, types.AuthEvent{Type: types.EventKeyCreated, ActorID: owner.ID, SubjectID: key.ID, Detail: name, At: now})

	return CreatedKey{
		Key:    viewOf(types.OwnedAPIKey{APIKey: key, Owner: types.KeyOwner{Email: owner.Email, Name: owner.Name}}),
		Secret: secret,
	}, nil
}

// ListKeys returns every key for admins and the requester's own keys otherwise.
func (m *APIKeyManager) ListKeys(ctx context.Context, requester types.AuthUser) ([]types.APIKeyView, error) {
	ownerID := requester.ID
	if requester.IsAdmin() {
		ownerID = ""
	}
	owned, err := m.keys.List(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	views := make([]types.APIKeyView, 0, len(owned))
	for _, k := range owned {
		views = append(views, viewOf(k))
	}
	return views, nil
}

// ToggleKey flips the active flag of a key the requester may manage.
func (m *APIKeyManager) ToggleKey(ctx context.Context, keyID string, requester types.AuthUser) error {
	key, err := m.manageable(ctx, keyID, requester)
	if err != nil {
		return err
	}
	if err := m.keys.SetActive(ctx, key.ID, !key.IsActive); err != nil {
		return translateStoreErr(err, "api key not found")
	}
	logging.FromContext(ctx).Info("api key toggled", "svc", "apikey", "key_id", key.ID, "active", !key.IsActive)
	m.events.Publish(ctx, types.AuthEvent{
		Type:      types.EventKeyToggled,
		ActorID:   requester.ID,
		SubjectID: key.ID,
		Detail:    "active=" + strconv.FormatBool(!key.IsActive),
	})
	return nil
}

// DeleteKey permanently removes a key the requester may manage.
func (m *APIKeyManager) DeleteKey(ctx context.Context, keyID string, requester types.AuthUser) error {
	key, err := m.manageable(ctx, keyID, requester)
	if err != nil {
		return err
	}
	if err := m.keys.Delete(ctx, key.ID); err != nil {
		return translateStoreErr(err, "api key not found")
	}
	logging.FromContext(ctx).Info("api key deleted", "svc", "apikey", "key_id", key.ID)
	m.events.Publish(ctx, types.AuthEvent{Type: types.EventKeyDeleted, ActorID: requester.ID, SubjectID: key.ID})
	return nil
}

// ValidateKey resolves a raw secret to its principal and records the use.
// Missing, inactive and expired keys are all reported as absent.
func (m *APIKeyManager) ValidateKey(ctx context.Context, raw string) (types.KeyPrincipal, bool, error) {
	if raw == "" {
		return types.KeyPrincipal{}, false, nil
	}

	key, err := m.keys.GetByKey(ctx, raw)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			m.reject(ctx, "", "unknown key")
			return types.KeyPrincipal{}, false, nil
		}
		return types.KeyPrincipal{}, false, fmt.Errorf("load api key: %w", err)
	}

	now := m.now()
	if !key.Usable(now) {
		reason := "inactive"
		if key.IsActive {
			reason = ErrExpired.Error()
		}
		m.reject(ctx, key.ID, reason)
		return types.KeyPrincipal{}, false, nil
	}

	if err := m.keys.TouchLastUsed(ctx, key.ID, now); err != nil && !errors.Is(err, store.ErrNotFound) {
		return types.KeyPrincipal{}, false, fmt.Errorf("touch api key: %w", err)
	}

	return types.KeyPrincipal{KeyID: key.ID, Name: key.Name, UserID: key.UserID}, true, nil
}

func (m *APIKeyManager) manageable(ctx context.Context, keyID string, requester types.AuthUser) (types.APIKey, error) {
	key, err := m.keys.GetByID(ctx, keyID)
	if err != nil {
		return types.APIKey{}, translateStoreErr(err, "api key not found")
	}
	if !CanManageKey(requester, key) {
		return types.APIKey{}, ErrForbidden
	}
	return key, nil
}

func (m *APIKeyManager) reject(ctx context.Context, keyID, reason string) {
	logging.FromContext(ctx).Warn("api key rejected", "svc", "apikey", "key_id", keyID, "reason", reason)
	m.events.Publish(ctx, types.AuthEvent{Type: types.EventKeyRejected, SubjectID: keyID, Detail: reason})
}

func viewOf(k types.OwnedAPIKey) types.APIKeyView {
	return types.APIKeyView{
		ID:         k.ID,
		Name:       k.Name,
		KeyPreview: Preview(k.Key),
		UserID:     k.UserID,
		IsActive:   k.IsActive,
		LastUsedAt: k.LastUsedAt,
		ExpiresAt:  k.ExpiresAt,
		CreatedAt:  k.CreatedAt,
		User:       k.Owner,
	}
}

// translateStoreErr maps persistence sentinels onto service errors.
func translateStoreErr(err error, notFound string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, notFound)
	case errors.Is(err, store.ErrConflict):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	default:
		return err
	}
}
