package session

import (
	"context"
	"errors"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data    map[string]string
	ttls    map[string]time.Duration
	failErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.failErr != nil {
		return redis.NewStringResult("", f.failErr)
	}
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.failErr != nil {
		return redis.NewStatusResult("", f.failErr)
	}
	f.data[key] = string(value.([]byte))
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.failErr != nil {
		return redis.NewIntResult(0, f.failErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func TestRedisStore_RoundTrip(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	s := NewRedisStore(fake, time.Hour)

	_, ok, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.Save(ctx, "k", []byte(`[]`)))
	assert.Equal(t, time.Hour, fake.ttls["k"])

	data, ok, err := s.Load(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `[]`, string(data))

	require.NoError(t, s.Delete(ctx, "k"))
	_, ok, err = s.Load(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisStore_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeRedis()
	fake.failErr = errors.New("connection refused")
	s := NewRedisStore(fake, 0)

	_, _, err := s.Load(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis get k")

	err = s.Save(ctx, "k", []byte(`[]`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis set k")

	err = s.Delete(ctx, "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis del k")
}
