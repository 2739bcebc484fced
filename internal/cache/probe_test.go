package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/servifield/servifield/internal/cache"
	"github.com/servifield/servifield/internal/degradation"
)

type fakePinger struct {
	err error
}

func (f *fakePinger) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal("PONG")
	}
	return cmd
}

func TestProbe_HealthyRedis(t *testing.T) {
	probe := cache.NewProbe(&fakePinger{}, zerolog.Nop())

	state, err := probe.CheckState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, degradation.StatusHealthy, state.Status)
	assert.Equal(t, 100.0, state.SuccessRate)
	assert.False(t, state.LastSuccess.IsZero())
	assert.Empty(t, state.LastErrorMessage)
}

func TestProbe_UnreachableRedis(t *testing.T) {
	probe := cache.NewProbe(&fakePinger{err: errors.New("dial tcp: connection refused")}, zerolog.Nop())

	state, err := probe.CheckState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, degradation.StatusUnavailable, state.Status)
	assert.Contains(t, state.LastErrorMessage, "connection refused")
	assert.Equal(t, 0.0, state.SuccessRate)
}

func TestProbe_FlappingRedis(t *testing.T) {
	pinger := &fakePinger{}
	probe := cache.NewProbe(pinger, zerolog.Nop())

	for i := 0; i < 3; i++ {
		_, err := probe.CheckState(context.Background())
		require.NoError(t, err)
	}

	pinger.err = errors.New("LOADING Redis is loading the dataset in memory")
	state, err := probe.CheckState(context.Background())
	require.NoError(t, err)

	assert.Equal(t, degradation.StatusUnavailable, state.Status)
	assert.Equal(t, 75.0, state.SuccessRate)
	assert.False(t, state.LastSuccess.IsZero())
}

func TestNewClient_BareAddress(t *testing.T) {
	client := cache.NewClient("localhost:6379")
	assert.Equal(t, "localhost:6379", client.Options().Addr)
}

func TestNewClient_URL(t *testing.T) {
	client := cache.NewClient("redis://:secret@localhost:6380/2")

	opts := client.Options()
	assert.Equal(t, "localhost:6380", opts.Addr)
	assert.Equal(t, "secret", opts.Password)
	assert.Equal(t, 2, opts.DB)
}
