package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Manager 测试
// =============================================================================

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *Manager) {
	t.Helper()
	mr := miniredis.RunT(t)

	config := DefaultConfig()
	config.Addr = mr.Addr()
	config.DefaultTTL = time.Minute
	config.HealthCheckInterval = 0

	manager, err := NewManager(config, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = manager.Close() })

	return mr, manager
}

func TestManager_SetAndGet(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "test-key", "test-value", time.Minute))

	value, err := manager.Get(ctx, "test-key")
	require.NoError(t, err)
	assert.Equal(t, "test-value", value)
}

func TestManager_GetMiss(t *testing.T) {
	_, manager := setupTestRedis(t)

	value, err := manager.Get(context.Background(), "non-existent")
	assert.True(t, IsCacheMiss(err))
	assert.Equal(t, "", value)
}

func TestManager_Delete(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "test-key", "test-value", time.Minute))
	require.NoError(t, manager.Delete(ctx, "test-key"))

	_, err := manager.Get(ctx, "test-key")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_JSON(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	type subQuery struct {
		Text string `json:"sub_query"`
		Hint string `json:"graph_query"`
	}
	in := []subQuery{{Text: "what is KAG", Hint: "KAG"}}

	require.NoError(t, manager.SetJSON(ctx, "decomp", in, time.Minute))

	var out []subQuery
	require.NoError(t, manager.GetJSON(ctx, "decomp", &out))
	assert.Equal(t, in, out)
}

func TestManager_GetJSONInvalid(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "bad", "not a json", time.Minute))

	var out map[string]any
	assert.Error(t, manager.GetJSON(ctx, "bad", &out))
	assert.Error(t, manager.SetJSON(ctx, "chan", make(chan int), time.Minute))
}

func TestManager_DefaultTTL(t *testing.T) {
	mr, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "ttl", "value", 0))
	assert.Equal(t, time.Minute, mr.TTL("ttl"))

	mr.FastForward(2 * time.Minute)
	_, err := manager.Get(ctx, "ttl")
	assert.True(t, IsCacheMiss(err))
}

func TestManager_Key(t *testing.T) {
	_, manager := setupTestRedis(t)

	a := manager.Key("decomposition", "query one")
	b := manager.Key("decomposition", "query one")
	c := manager.Key("decomposition", "query", " one")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "cortex:decomposition:")
}

func TestManager_Stats(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, manager.Set(ctx, "k", "v", time.Minute))
	_, _ = manager.Get(ctx, "k")
	_, _ = manager.Get(ctx, "missing")

	stats, err := manager.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Keys)
}

func TestManager_Closed(t *testing.T) {
	_, manager := setupTestRedis(t)
	require.NoError(t, manager.Close())
	require.NoError(t, manager.Close())

	_, err := manager.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, manager.Ping(context.Background()), ErrClosed)
}

func TestNewManager_Unreachable(t *testing.T) {
	config := DefaultConfig()
	config.Addr = "127.0.0.1:1"
	config.MaxRetries = -1

	manager, err := NewManager(config, zap.NewNop())
	assert.Nil(t, manager)
	assert.Error(t, err)
}

func TestManager_ConcurrentOperations(t *testing.T) {
	_, manager := setupTestRedis(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := fmt.Sprintf("concurrent-%d", id)
			assert.NoError(t, manager.Set(ctx, key, "value", time.Minute))
			v, err := manager.Get(ctx, key)
			assert.NoError(t, err)
			assert.Equal(t, "value", v)
		}(i)
	}
	wg.Wait()
}

func TestConfig_Enabled(t *testing.T) {
	assert.False(t, DefaultConfig().Enabled())
	assert.True(t, Config{Addr: "localhost:6379"}.Enabled())
}
