package minio

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmunell/featurespace/blobstore"
)

func TestStore_Keys(t *testing.T) {
	s := NewStore(nil, "b", "/models/")
	key, err := s.key("a/m.fsd")
	require.NoError(t, err)
	assert.Equal(t, "models/a/m.fsd", key)
	assert.Equal(t, "a/m.fsd", s.relative("models/a/m.fsd"))

	_, err = s.key("../x")
	require.ErrorIs(t, err, os.ErrInvalid)

	bare := NewStore(nil, "b", "")
	key, err = bare.key("m.fsd")
	require.NoError(t, err)
	assert.Equal(t, "m.fsd", key)
	assert.Equal(t, "m.fsd", bare.relative("m.fsd"))
}

// TestStore_Integration requires a running MinIO instance.
// Skip if not available.
func TestStore_Integration(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := Open(ctx, Config{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    "featurespace-test",
		Prefix:    fmt.Sprintf("run-%d", time.Now().UnixNano()),
	})
	if err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	data := []byte("hello minio world")
	require.NoError(t, store.Put(ctx, "m/test.fsd", data))

	got, err := store.Get(ctx, "m/test.fsd")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "m/")
	require.NoError(t, err)
	assert.Equal(t, []string{"m/test.fsd"}, names)

	require.NoError(t, store.Delete(ctx, "m/test.fsd"))
	_, err = store.Get(ctx, "m/test.fsd")
	require.ErrorIs(t, err, blobstore.ErrNotFound)
}
