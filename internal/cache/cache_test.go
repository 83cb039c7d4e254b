package cache

import (
	"context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"io/ioutil"
	"moff.io/frame-bridge/internal/config"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	_, ok, err := s.Get(ctx, "EMAIL")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Set(ctx, "EMAIL", "a@b.com"))
	require.NoError(t, s.Set(ctx, "LAST_USED_CHAIN_KEY", "137"))
	v, ok, err := s.Get(ctx, "EMAIL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)

	require.NoError(t, s.Delete(ctx, "EMAIL", "LAST_USED_CHAIN_KEY", "MISSING"))
	_, ok, err = s.Get(ctx, "LAST_USED_CHAIN_KEY")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestNamespace(t *testing.T) {
	ctx := context.Background()
	backend := NewMemory()
	a := Namespace(backend, "app-a")
	b := Namespace(backend, "app-b")
	exerciseStore(t, a)

	require.NoError(t, a.Set(ctx, "EMAIL", "a@b.com"))
	_, ok, err := b.Get(ctx, "EMAIL")
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := backend.Get(ctx, "app-a:EMAIL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@b.com", v)

	assert.Equal(t, backend, Namespace(backend, ""))
}

func TestFileSurvivesReopen(t *testing.T) {
	dir, err := ioutil.TempDir("", "cache")
	require.NoError(t, err)
	defer os.RemoveAll(dir)
	path := filepath.Join(dir, "session.json")

	f, err := OpenFile(path)
	require.NoError(t, err)
	exerciseStore(t, f)
	require.NoError(t, f.Set(context.Background(), "EMAIL", "keep@b.com"))

	reopened, err := OpenFile(path)
	require.NoError(t, err)
	v, ok, err := reopened.Get(context.Background(), "EMAIL")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "keep@b.com", v)

	require.NoError(t, ioutil.WriteFile(path, []byte("{"), 0600))
	_, err = OpenFile(path)
	assert.Error(t, err)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	host, port := addr, "6379"
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host, port = addr[:i], addr[i+1:]
	}
	r, err := NewRedis(context.Background(), &config.DBCredential{Address: host, Port: port})
	require.NoError(t, err)
	defer r.Close()
	assert.NotNil(t, r.Limiter())
	exerciseStore(t, Namespace(r, "frame-bridge-test"))
}
