package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/esp-pix/authserver/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	ensured     bool
	ensureErr   error
	objects     map[string][]byte
	contentType string
}

func (m *memoryBackend) EnsureBucket(context.Context) error {
	m.ensured = true
	return m.ensureErr
}

func (m *memoryBackend) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return errors.New("size mismatch")
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	m.contentType = contentType
	return nil
}

func (m *memoryBackend) Bucket() string { return "audit-bucket" }
func (m *memoryBackend) Close() error   { return nil }

func TestStorage_PutJSON(t *testing.T) {
	backend := &memoryBackend{}
	s := NewStorage(backend)

	require.NoError(t, s.PutJSON(context.Background(), "audit/a.json", map[string]int{"users": 2}))

	assert.True(t, backend.ensured)
	assert.Equal(t, "application/json", backend.contentType)
	var decoded map[string]int
	require.NoError(t, json.Unmarshal(backend.objects["audit/a.json"], &decoded))
	assert.Equal(t, 2, decoded["users"])
}

func TestStorage_PutJSONStopsWhenBucketFails(t *testing.T) {
	backend := &memoryBackend{ensureErr: errors.New("denied")}
	s := NewStorage(backend)

	err := s.PutJSON(context.Background(), "audit/a.json", struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit-bucket")
	assert.Empty(t, backend.objects)
}

func TestNewFromConfig_Validation(t *testing.T) {
	_, err := NewFromConfig(context.Background(), config.Config{Storage: config.StorageConfig{Backend: "ftp"}})
	assert.Error(t, err)

	_, err = NewFromConfig(context.Background(), config.Config{Storage: config.StorageConfig{Backend: BackendMinio}})
	assert.ErrorContains(t, err, "minio endpoint is required")

	_, err = NewFromConfig(context.Background(), config.Config{Storage: config.StorageConfig{Backend: BackendGCS}})
	assert.ErrorContains(t, err, "gcs bucket is required")
}
