package redemptions

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/edurewards/edurewards-backend/pkg/config"
	pkgredis "github.com/edurewards/edurewards-backend/pkg/redis"
)

const testRedisURLEnv = "EDUREWARDS_TEST_REDIS_URL"

func newTestRedisStore(t *testing.T) Store {
	t.Helper()
	url := os.Getenv(testRedisURLEnv)
	if url == "" {
		t.Skipf("%s not set", testRedisURLEnv)
	}
	client, err := pkgredis.New(context.Background(), config.RedisConfig{URL: url}, nil)
	require.NoError(t, err)
	require.NoError(t, client.Raw().FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisStore(client, 0)
	require.NoError(t, err)
	return store
}

func TestRedisStoreContract(t *testing.T) {
	if os.Getenv(testRedisURLEnv) == "" {
		t.Skipf("%s not set", testRedisURLEnv)
	}
	runStoreContract(t, newTestRedisStore)
}

func TestNewRedisStoreRequiresClient(t *testing.T) {
	_, err := NewRedisStore(nil, 0)
	require.Error(t, err)
	_, err = NewRedisStore(&pkgredis.Client{}, 0)
	require.Error(t, err)
}
