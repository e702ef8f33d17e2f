package redis

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// HoldKeyPrefix namespaces room-hold keys so the expiry subscriber can
// recognize them in keyspace notifications.
const HoldKeyPrefix = "room_hold:"

// Redis holds room-type inventory for a pending reservation. A hold expires
// on its own if the reservation is neither approved nor cancelled in time;
// the expiry subscriber then cancels the reservation.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// getHoldDuration returns the room hold TTL from the environment or the
// default of 30 minutes.
func (r *Redis) getHoldDuration() time.Duration {
	defaultDuration := 30 * time.Minute

	holdTTLStr := os.Getenv("ROOM_HOLD_TTL_MINUTES")
	if holdTTLStr == "" {
		return defaultDuration
	}

	holdTTLMin, err := strconv.Atoi(holdTTLStr)
	if err != nil {
		r.Logger.Println("REDIS: Invalid ROOM_HOLD_TTL_MINUTES value '" + holdTTLStr + "', using default 30 minutes")
		return defaultDuration
	}

	return time.Duration(holdTTLMin) * time.Minute
}

func holdKey(hotelID, roomTypeID string) string {
	return fmt.Sprintf("%s%s:%s", HoldKeyPrefix, hotelID, roomTypeID)
}

// CheckRoomAvailability checks if a room type is free of holds without
// taking one.
func (r *Redis) CheckRoomAvailability(hotelID, roomTypeID string) (bool, error) {
	_, err := r.Client.Get(context.Background(), holdKey(hotelID, roomTypeID)).Result()
	if err == redis.Nil {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return false, nil
}

// HoldRoom takes a hold on one room type for a reservation.
func (r *Redis) HoldRoom(hotelID, roomTypeID, reservationID string) (bool, error) {
	key := holdKey(hotelID, roomTypeID)
	ok, err := r.Client.SetNX(context.Background(), key, reservationID, r.getHoldDuration()).Result()
	return ok, err
}

// ReleaseRoom releases a hold, but only if this reservation owns it.
func (r *Redis) ReleaseRoom(hotelID, roomTypeID, reservationID string) error {
	ctx := context.Background()
	key := holdKey(hotelID, roomTypeID)
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == reservationID {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// HoldRooms takes holds on all room types of a reservation, rolling back
// already-taken holds if any one of them fails.
func (r *Redis) HoldRooms(hotelID string, roomTypeIDs []string, reservationID string) (bool, error) {
	held := []string{}
	for _, roomTypeID := range roomTypeIDs {
		ok, err := r.HoldRoom(hotelID, roomTypeID, reservationID)
		if err != nil {
			for _, h := range held {
				_ = r.ReleaseRoom(hotelID, h, reservationID)
			}
			return false, err
		}
		if !ok {
			for _, h := range held {
				_ = r.ReleaseRoom(hotelID, h, reservationID)
			}
			return false, nil
		}
		held = append(held, roomTypeID)
	}
	return true, nil
}

// ReleaseRooms releases all holds of a reservation, returning the first
// error encountered.
func (r *Redis) ReleaseRooms(hotelID string, roomTypeIDs []string, reservationID string) error {
	var firstErr error
	for _, roomTypeID := range roomTypeIDs {
		err := r.ReleaseRoom(hotelID, roomTypeID, reservationID)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// OwnerOf returns the reservation currently holding a room type, or "" when
// no hold exists.
func (r *Redis) OwnerOf(hotelID, roomTypeID string) (string, error) {
	val, err := r.Client.Get(context.Background(), holdKey(hotelID, roomTypeID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}
