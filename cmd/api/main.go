package main

import (
	"context"
	"log"
	"os"

	"github.com/hibiken/asynq"

	"evalqueue/internal/db"
	httpSrv "evalqueue/internal/http"
	"evalqueue/internal/migrations"
	"evalqueue/internal/storage"
)

func main() {
	// Run embedded migrations (idempotent)
	migrations.Run()

	// Start services
	store := db.NewStore(db.MustOpen())
	s3c, err := storage.New(context.Background())
	if err != nil {
		log.Fatal(err)
	}
	asq := asynq.NewClient(asynq.RedisClientOpt{Addr: os.Getenv("REDIS_ADDR")})
	srv := httpSrv.NewServer(store, s3c, asq)
	if err := srv.ListenAndServe(); err != nil {
		log.Fatal(err)
	}
}
