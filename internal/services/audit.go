package services

import (
	"context"
	"fmt"
	"time"

	"github.com/esp-pix/authserver/internal/logging"
	"github.com/esp-pix/authserver/types"
)

// AuditSink persists an encoded snapshot under an object key.
type AuditSink interface {
	PutJSON(ctx context.Context, key string, v any) error
}

// AuditService builds credential snapshots for offline review.
// Snapshots carry no password hashes and only masked key previews.
type AuditService struct {
	users UserRepository
	keys  APIKeyRepository
	sink  AuditSink
	now   func() time.Time
}

func NewAuditService(users UserRepository, keys APIKeyRepository, sink AuditSink) *AuditService {
	return &AuditService{
		users: users,
		keys:  keys,
		sink:  sink,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *AuditService) Snapshot(ctx context.Context) (types.CredentialSnapshot, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return types.CredentialSnapshot{}, fmt.Errorf("list users: %w", err)
	}
	owned, err := s.keys.List(ctx, "")
	if err != nil {
		return types.CredentialSnapshot{}, fmt.Errorf("list api keys: %w", err)
	}
	views := make([]types.APIKeyView, 0, len(owned))
	for _, k := range owned {
		views = append(views, viewOf(k))
	}
	return types.CredentialSnapshot{GeneratedAt: s.now(), Users: users, APIKeys: views}, nil
}

// Export uploads a snapshot and returns the object key it was written to.
func (s *AuditService) Export(ctx context.Context) (string, error) {
	snapshot, err := s.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	key := "audit/credentials-" + snapshot.GeneratedAt.Format("20060102T150405Z") + ".json"
	if err := s.sink.PutJSON(ctx, key, snapshot); err != nil {
		return "", fmt.Errorf("upload snapshot: %w", err)
	}
	logging.FromContext(ctx).Info("audit snapshot exported", "svc", "audit", "key", key,
		"users", len(snapshot.Users), "api_keys", len(snapshot.APIKeys))
	return key, nil
}
