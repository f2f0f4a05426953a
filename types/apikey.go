package types

import "time"

// APIKeyPrefix marks device credentials so they are recognizable in logs and configs.
const APIKeyPrefix = "esp_"

// APIKey is a long-lived bearer credential used by device clients.
type APIKey struct {
	// ID is the unique identifier of the key.
	ID string `json:"id" db:"id"`

	// Name is the human-readable label, e.g. the device it was issued to.
	Name string `json:"name" db:"name"`

	// Key is the raw secret. It is returned once at creation and never serialized afterwards.
	Key string `json:"-" db:"key"`

	// UserID references the owning user.
	UserID string `json:"user_id" db:"user_id"`

	// IsActive toggles the key without deleting it.
	IsActive bool `json:"is_active" db:"is_active"`

	// ExpiresAt is the optional absolute expiry; nil means the key never expires.
	ExpiresAt *time.Time `json:"expires_at" db:"expires_at"`

	// LastUsedAt is updated on every successful validation.
	LastUsedAt *time.Time `json:"last_used_at" db:"last_used_at"`

	// CreatedAt is the timestamp when the key was issued.
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Usable reports whether the key authorizes a request at now.
func (k APIKey) Usable(now time.Time) bool {
	if !k.IsActive {
		return false
	}
	return k.ExpiresAt == nil || now.Before(*k.ExpiresAt)
}

// KeyOwner is the owning user's public identity shown next to a key.
type KeyOwner struct {
	Email string  `json:"email"`
	Name  *string `json:"name"`
}

// APIKeyView is the listing projection of a key. It carries a masked preview instead of the secret.
type APIKeyView struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	KeyPreview string     `json:"key_preview"`
	UserID     string     `json:"user_id"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at"`
	ExpiresAt  *time.Time `json:"expires_at"`
	CreatedAt  time.Time  `json:"created_at"`
	User       KeyOwner   `json:"user"`
}

// KeyPrincipal is what a device endpoint learns about a validated key.
type KeyPrincipal struct {
	KeyID  string `json:"key_id"`
	Name   string `json:"name"`
	UserID string `json:"user_id"`
}

// OwnedAPIKey pairs a stored key with its owner's public identity.
type OwnedAPIKey struct {
	APIKey
	Owner KeyOwner
}
