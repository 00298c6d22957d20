package state

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-bizbot-backend/internal/domain"
)

func TestRedisStore_RoundTrip(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	rdb, err := NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	s := NewRedisStore(rdb, "bizbot:test:"+uuid.NewString()+":", time.Minute)
	key := "user-1"
	defer s.Clear(ctx, key)

	m, err := s.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, Memory{}, m)

	m, err = s.Update(ctx, key, domain.IntentUnknown)
	require.NoError(t, err)
	assert.Equal(t, 1, m.MessageCount)
	assert.Equal(t, 1, m.UnknownIntentCount)

	m, err = s.Update(ctx, key, domain.IntentPricing)
	require.NoError(t, err)
	assert.Equal(t, 2, m.MessageCount)
	assert.Equal(t, 0, m.UnknownIntentCount)
	assert.Equal(t, domain.IntentPricing, m.LastIntent)
	assert.False(t, m.UpdatedAt.IsZero())

	ttl, err := rdb.TTL(ctx, s.key(key)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, s.Clear(ctx, key))
	m, _ = s.Get(ctx, key)
	assert.Equal(t, 0, m.MessageCount)
}

func TestNewRedisClient_BadURL(t *testing.T) {
	_, err := NewRedisClient(context.Background(), "not-a-url://")
	assert.Error(t, err)
}

func TestMemoryFromHash(t *testing.T) {
	m := memoryFromHash(map[string]string{"last_intent": "help", "message_count": "3", "unknown_intent_count": "x"})
	assert.Equal(t, domain.IntentHelp, m.LastIntent)
	assert.Equal(t, 3, m.MessageCount)
	assert.Equal(t, 0, m.UnknownIntentCount)
	assert.True(t, m.UpdatedAt.IsZero())

	_, err := NewRedisStore(nil, "", 0).Get(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyKey)
}
