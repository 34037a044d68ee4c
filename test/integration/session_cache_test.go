//go:build integration

// Package integration exercises the infrastructure adapters against real
// backends.  Tests require Docker and are gated behind the "integration"
// build tag.
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/turtacn/NeuroChart-Intelligence/internal/config"
	"github.com/turtacn/NeuroChart-Intelligence/internal/infrastructure/database/redis"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/common"
)

// startRedis launches a Redis 7 container and returns a connected client.
func startRedis(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := redis.NewClient(config.RedisConfig{
		Addr:        fmt.Sprintf("%s:%s", host, port.Port()),
		DialTimeout: 10 * time.Second,
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func sampleRequest() *clinical.ExtractionRequest {
	return &clinical.ExtractionRequest{
		Documents: []string{
			"Admitted 2025-01-14 with subarachnoid hemorrhage, Hunt-Hess grade 3.",
			"POD2: vasospasm on transcranial doppler. Started nimodipine.",
		},
		Hints: clinical.ExtractionHints{Pathology: clinical.PathologySAH, PatientAge: 54},
	}
}

func TestSessionCache_RoundTrip(t *testing.T) {
	client := startRedis(t)
	cache := redis.NewSessionCache(client, "neurochart-test:", time.Minute, nil)
	ctx := context.Background()

	req := sampleRequest()

	_, err := cache.Lookup(ctx, req)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)

	session := &clinical.ExtractionSession{
		ID:               common.ID("sess-itest-1"),
		CreatedAt:        time.Now().UTC().Truncate(time.Millisecond),
		PrimaryPathology: clinical.PathologySAH,
		DeduplicatedText: "Admitted 2025-01-14 with subarachnoid hemorrhage.",
	}
	require.NoError(t, cache.Store(ctx, req, session))

	got, err := cache.Lookup(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, session.ID, got.ID)
	assert.Equal(t, clinical.PathologySAH, got.PrimaryPathology)
	assert.Equal(t, session.DeduplicatedText, got.DeduplicatedText)
}

func TestSessionCache_KeyDependsOnHints(t *testing.T) {
	client := startRedis(t)
	cache := redis.NewSessionCache(client, "neurochart-test:", time.Minute, nil)
	ctx := context.Background()

	req := sampleRequest()
	require.NoError(t, cache.Store(ctx, req, &clinical.ExtractionSession{ID: common.ID("sess-a")}))

	// same documents, different hints: must not collide
	other := sampleRequest()
	other.Hints.PatientAge = 55
	_, err := cache.Lookup(ctx, other)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)
}

func TestSessionCache_Invalidate(t *testing.T) {
	client := startRedis(t)
	cache := redis.NewSessionCache(client, "neurochart-test:", time.Minute, nil)
	ctx := context.Background()

	req := sampleRequest()
	require.NoError(t, cache.Store(ctx, req, &clinical.ExtractionSession{ID: common.ID("sess-b")}))
	require.NoError(t, cache.Invalidate(ctx, req))

	_, err := cache.Lookup(ctx, req)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)
}

func TestSessionCache_CorruptEntryDropped(t *testing.T) {
	client := startRedis(t)
	cache := redis.NewSessionCache(client, "neurochart-test:", time.Minute, nil)
	ctx := context.Background()

	req := sampleRequest()
	key := "neurochart-test:session:" + redis.RequestDigest(req)
	require.NoError(t, client.Set(ctx, key, "{not json", time.Minute).Err())

	_, err := cache.Lookup(ctx, req)
	assert.ErrorIs(t, err, redis.ErrCacheMiss)

	// the corrupt value is gone after the failed lookup
	_, err = client.Get(ctx, key).Bytes()
	assert.Error(t, err)
}
