package main

import (
	"context"
	"log"

	"github.com/walking-football-hub/wfh-backend/config"
	"github.com/walking-football-hub/wfh-backend/internal/auth"
	"github.com/walking-football-hub/wfh-backend/internal/bootstrap"
	"github.com/walking-football-hub/wfh-backend/internal/programs"
	cronjob "github.com/walking-football-hub/wfh-backend/internal/programs/cron"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	bootstrap.SetGinMode(cfg.App.Environment)

	ctx := context.Background()

	app, authClient, err := auth.InitializeFirebase(&cfg.Firebase)
	if err != nil {
		log.Fatalf("firebase: %v", err)
	}

	fs, err := bootstrap.OpenFirestore(ctx, app)
	if err != nil {
		log.Fatalf("firestore: %v", err)
	}
	defer fs.Close()

	rdb := bootstrap.OpenRedis(ctx, cfg.Redis)
	defer rdb.Close()

	scheduler := cronjob.NewScheduler(cfg.Jobs.ReconcileCron, programs.NewRepo(fs))
	scheduler.Start()

	r := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName: "wfh-backend",
		Version:     cfg.App.Version,
		Cfg:         cfg,
		AuthClient:  authClient,
		Firestore:   fs,
		Redis:       rdb,
	})

	log.Printf("listening on :%s", cfg.Server.Port)
	log.Fatal(r.Run(":" + cfg.Server.Port))
}
