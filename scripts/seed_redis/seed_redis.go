package main

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"

	"github.com/duyphuc0701/Wood-Freight-Logistics/internal/config"
)

const authPrefix = "ingest:auth:"

func main() {
	cfg := config.Load()

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	defer client.Close()

	ctx := context.Background()

	fmt.Println("Connecting to Redis...")
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatalf("Connection failed: %v\n\nMake sure Redis is running:\n  docker-compose up -d redis", err)
	}
	fmt.Println("✓ Connected")

	step1_api_keys(ctx, client)
	step2_verify(ctx, client)

	fmt.Println("\n✅ Redis seeded successfully")
	fmt.Println("   Run next: go run ./cmd/fleetops ingest")
}

func step1_api_keys(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 1: Seeding ingest API keys ─────────────")

	// Key pattern: ingest:auth:{api_key} → client id
	// Looked up by the authenticator after static keys and its local cache
	// TTL = 0 means permanent
	apiKeys := map[string]string{
		"hcm_depot_gateway_key": "gateway_hcm_depot",
		"danang_yard_key":       "gateway_danang_yard",
		"haiphong_port_key":     "gateway_haiphong_port",
		"test_key":              "test_client",
	}

	for apiKey, owner := range apiKeys {
		key := authPrefix + apiKey
		err := client.Set(ctx, key, owner, 0).Err()
		if err != nil {
			log.Fatalf("Failed to set key %s: %v", key, err)
		}
		fmt.Printf("  ✓ %-45s → %s\n", key, owner)
	}
}

func step2_verify(ctx context.Context, client *redis.Client) {
	fmt.Println("\n── Step 2: Verification ────────────────────────")

	var count int
	iter := client.Scan(ctx, 0, authPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		log.Fatalf("Verification failed: %v", err)
	}
	fmt.Printf("  ✓ %d API keys found in Redis\n", count)

	val, err := client.Get(ctx, authPrefix+"test_key").Result()
	if err != nil {
		log.Fatalf("Spot check failed: %v", err)
	}
	fmt.Printf("  ✓ spot check: %stest_key → %s\n", authPrefix, val)
}
