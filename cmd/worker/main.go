package main

import (
	"context"
	"log"
	"os"

	"evalqueue/internal/db"
	"evalqueue/internal/llm"
	"evalqueue/internal/storage"
	"evalqueue/internal/worker"
)

func main() {
	// Start services
	store := db.NewStore(db.MustOpen())
	s3c, err := storage.New(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	client, err := llm.FromEnv(nil)
	if err != nil {
		log.Fatal(err)
	}
	if err := worker.Run(os.Getenv("REDIS_ADDR"), store, s3c, client); err != nil {
		log.Fatal(err)
	}
}
