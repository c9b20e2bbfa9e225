package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// rideStatusTTL bounds staleness of the ride status cache; the database row
// is always authoritative and every mutation rewrites the cache entry.
const rideStatusTTL = 5 * time.Minute

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	ctx := context.Background()
	if _, err := RedisClient.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// RideStatusSnapshot is the cached read-model for ride status checks.
type RideStatusSnapshot struct {
	RideID         uint   `json:"rideId"`
	Status         string `json:"status"`
	AvailableSeats int    `json:"availableSeats"`
	UpdatedAt      int64  `json:"updatedAt"`
}

// SetRideStatusCache stores the latest ride status snapshot.
func SetRideStatusCache(ctx context.Context, rideID uint, status string, availableSeats int) error {
	if RedisClient == nil {
		return nil
	}
	snapshot := RideStatusSnapshot{
		RideID:         rideID,
		Status:         status,
		AvailableSeats: availableSeats,
		UpdatedAt:      time.Now().Unix(),
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("ride:status:%d", rideID)
	return RedisClient.Set(ctx, key, data, rideStatusTTL).Err()
}

// GetRideStatusCache retrieves a cached ride status snapshot.
func GetRideStatusCache(ctx context.Context, rideID uint) (*RideStatusSnapshot, error) {
	if RedisClient == nil {
		return nil, redis.Nil
	}
	key := fmt.Sprintf("ride:status:%d", rideID)
	data, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var snapshot RideStatusSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// InvalidateRideStatusCache drops the cached snapshot after a mutation.
func InvalidateRideStatusCache(ctx context.Context, rideID uint) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("ride:status:%d", rideID)
	return RedisClient.Del(ctx, key).Err()
}

// PublishRideUpdate publishes a ride event to Redis pub/sub so other
// instances (and any interested consumer) see state changes.
func PublishRideUpdate(ctx context.Context, rideID uint, event string, data map[string]interface{}) error {
	if RedisClient == nil {
		return nil
	}
	updateData := map[string]interface{}{
		"rideId":    rideID,
		"event":     event,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "ride:updates", jsonData).Err()
}
