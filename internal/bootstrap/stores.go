package bootstrap

import (
	"context"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/redis/go-redis/v9"

	"github.com/walking-football-hub/wfh-backend/config"
)

// OpenFirestore returns the document-store client backing programs, outbox
// records and roles.
func OpenFirestore(ctx context.Context, app *firebase.App) (*firestore.Client, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("open firestore: %w", err)
	}
	return client, nil
}

// OpenRedis connects the public-endpoint cache. The cache is optional: a
// failed ping logs a warning and the service runs uncached.
func OpenRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		log.Printf("Redis not reachable at %s, running without cache: %v", cfg.Addr, err)
	}
	return client
}
