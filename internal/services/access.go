package services

import "github.com/esp-pix/authserver/types"

// IsAdmin reports whether u may perform admin-only operations.
func IsAdmin(u types.AuthUser) bool {
	return u.IsAdmin()
}

// CanManageKey reports whether requester may toggle or delete key.
func CanManageKey(requester types.AuthUser, key types.APIKey) bool {
	return requester.IsAdmin() || key.UserID == requester.ID
}

// RequireAdmin fails with ErrForbidden for non-admins.
func RequireAdmin(requester types.AuthUser) error {
	if !requester.IsAdmin() {
		return ErrForbidden
	}
	return nil
}

// AuthorizeUserDeletion checks that requester is an admin deleting someone else.
func AuthorizeUserDeletion(requester types.AuthUser, targetID string) error {
	if err := RequireAdmin(requester); err != nil {
		return err
	}
	if targetID == requester.ID {
		return ErrSelfDeletion
	}
	return nil
}
