package scheduling

import (
	"context"
	"encoding/json"
	"log"

	"github.com/redis/go-redis/v9"
)

const intentQueueKey = "notifications:intents"

// RedisNotifier pushes notification intents onto a Redis list for an
// external delivery service to drain. Publishing is fire-and-forget:
// failures are logged, never surfaced to the booking path.
type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, intent NotificationIntent) {
	data, err := json.Marshal(intent)
	if err != nil {
		log.Printf("failed to marshal notification intent %s: %v", intent.Type, err)
		return
	}

	if err := n.client.LPush(ctx, intentQueueKey, data).Err(); err != nil {
		log.Printf("failed to publish notification intent %s for appointment %s: %v",
			intent.Type, intent.AppointmentID, err)
	}
}
