package payment

import (
	"context"
	"encoding/json"
	"time"

	"ms-reservations/internal/models"

	"github.com/go-redis/redis/v8"
)

const infoKeyPrefix = "payment_info:"

// InfoCache keeps the PaymentInfo computed for a reservation so a repeated
// selection of the same payment type is served from cache instead of being
// recomputed against the gateway.
type InfoCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewInfoCache(client *redis.Client, ttl time.Duration) *InfoCache {
	return &InfoCache{Client: client, TTL: ttl}
}

func (c *InfoCache) Save(ctx context.Context, info *models.PaymentInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return err
	}
	return c.Client.Set(ctx, infoKeyPrefix+info.ReservationID, data, c.TTL).Err()
}

// Load returns the cached PaymentInfo or nil when none exists.
func (c *InfoCache) Load(ctx context.Context, reservationID string) (*models.PaymentInfo, error) {
	data, err := c.Client.Get(ctx, infoKeyPrefix+reservationID).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var info models.PaymentInfo
	if err := json.Unmarshal([]byte(data), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *InfoCache) Clear(ctx context.Context, reservationID string) error {
	return c.Client.Del(ctx, infoKeyPrefix+reservationID).Err()
}
