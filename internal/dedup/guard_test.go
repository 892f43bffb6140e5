package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestMemoryGuard_ClaimOnce(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	ctx := context.Background()

	ok, err := g.Claim(ctx, "AMM|MINTX|POOL")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "AMM|MINTX|POOL")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = g.Claim(ctx, "AMM|MINTY|POOL")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryGuard_Expiry(t *testing.T) {
	g := NewMemoryGuard(time.Minute)
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	ok, _ := g.Claim(ctx, "k")
	assert.True(t, ok)

	now = now.Add(59 * time.Second)
	ok, _ = g.Claim(ctx, "k")
	assert.False(t, ok)

	now = now.Add(2 * time.Second)
	ok, _ = g.Claim(ctx, "k")
	assert.True(t, ok)
}

func TestMemoryGuard_Sweep(t *testing.T) {
	g := NewMemoryGuard(time.Second)
	now := time.Unix(1_700_000_000, 0)
	g.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 255; i++ {
		_, _ = g.Claim(ctx, fmt.Sprintf("old-%d", i))
	}
	now = now.Add(time.Hour)
	_, _ = g.Claim(ctx, "fresh")

	assert.Len(t, g.claims, 1)
}

func TestRedisGuard(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	rdb, err := DialRedis(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)

	g := NewRedisGuard(rdb, time.Minute)
	defer g.Close()

	ok, err := g.Claim(ctx, "AMM|MINTX|POOL")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.Claim(ctx, "AMM|MINTX|POOL")
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := rdb.TTL(ctx, keyPrefix+"AMM|MINTX|POOL").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
