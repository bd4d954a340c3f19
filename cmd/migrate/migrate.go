// Maintenance command for the course index and stats collections.
package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"coursechat-backend/internal/config"
	"coursechat-backend/internal/index"
	"coursechat-backend/internal/stats"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: migrate <command>")
		fmt.Println("Commands:")
		fmt.Println("  compact      - Delete chunks left behind by superseded ingests")
		fmt.Println("  prune-stats  - Drop ask samples past the retention window")
		os.Exit(1)
	}
	command := os.Args[1]

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	client, err := config.ConnectMongoDB(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(context.Background())
	db := client.Database(cfg.DBName)

	ctx := context.Background()

	switch command {
	case "compact":
		// The model label only matters for search; compaction ignores it.
		store := index.NewStore(db, "")
		removed, err := store.CompactSuperseded(ctx)
		if err != nil {
			log.Fatalf("Compaction failed: %v", err)
		}
		fmt.Printf("Removed %d superseded chunks\n", removed)

	case "prune-stats":
		store := stats.NewMongoStore(db)
		removed, err := store.Prune(ctx, cfg.StatsRetention)
		if err != nil {
			log.Fatalf("Prune failed: %v", err)
		}
		fmt.Printf("Removed %d ask samples\n", removed)

	default:
		log.Fatalf("Unknown command: %s", command)
	}
}
