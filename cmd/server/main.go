package main

import (
	"log"

	"github.com/he1237596/feed-service/internal/api"
	"github.com/he1237596/feed-service/internal/auth"
	"github.com/he1237596/feed-service/internal/config"
	"github.com/he1237596/feed-service/internal/extract"
	"github.com/he1237596/feed-service/internal/feed"
	"github.com/he1237596/feed-service/internal/storage"
	"github.com/he1237596/feed-service/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()

	artifacts, err := storage.New(cfg.DataDir, cfg.MaxUploadBytes, cfg.AllowedExts)
	if err != nil {
		log.Fatalf("init artifact store: %v", err)
	}

	st := store.New(db, artifacts)
	extractor := extract.NewExtractor(cfg.ExtractWorkers, cfg.ExtractTimeout)
	feeds := feed.New(st, cfg.BaseURL, cfg.FeedCacheTTL)

	r := api.SetupRouter(api.Deps{
		Store:      st,
		Artifacts:  artifacts,
		Extractor:  extractor,
		Feeds:      feeds,
		Policy:     auth.OwnerPolicy{},
		SigningKey: []byte(cfg.SigningKey),
	})

	log.Printf("pilet feed service listening on %s", cfg.Addr)
	if err := r.Run(cfg.Addr); err != nil {
		log.Fatalf("server: %v", err)
	}
}
