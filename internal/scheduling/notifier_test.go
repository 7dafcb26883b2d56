package scheduling

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisNotifierPublishesIntent(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	n := NewRedisNotifier(client)
	intent := NotificationIntent{
		UserID:        uuid.New(),
		Type:          NotifyConfirmationPending,
		AppointmentID: uuid.New(),
	}
	n.Notify(context.Background(), intent)

	raw, err := mr.Lpop(intentQueueKey)
	require.NoError(t, err)

	var got NotificationIntent
	require.NoError(t, json.Unmarshal([]byte(raw), &got))
	assert.Equal(t, intent, got)
}

func TestRedisNotifierSwallowsFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	n := NewRedisNotifier(client)
	// Must not panic or block when Redis is gone.
	n.Notify(context.Background(), NotificationIntent{
		UserID:        uuid.New(),
		Type:          NotifyReminder,
		AppointmentID: uuid.New(),
	})
}
