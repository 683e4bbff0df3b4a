// Command server is the LingoBridge process entrypoint: it wires every
// collaborator (AWS clients, translator, synthesizer, registry, caches,
// LiveKit/JWT/S3 integrations) and starts the Fiber app.
package main

import (
	"context"

	"lingobridge/internal/auth"
	"lingobridge/internal/aws"
	"lingobridge/internal/cache"
	"lingobridge/internal/config"
	"lingobridge/internal/database"
	"lingobridge/internal/livekit"
	"lingobridge/internal/logging"
	"lingobridge/internal/pipeline"
	"lingobridge/internal/protocol"
	"lingobridge/internal/registry"
	"lingobridge/internal/rest"
	"lingobridge/internal/server"
	"lingobridge/internal/storage"
	"lingobridge/internal/translator"
	"lingobridge/internal/tts"
)

var log = logging.New("main")

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.Database.URL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatalf("database: migrate: %v", err)
	}

	ctx := context.Background()
	clients, err := aws.NewClientPool(ctx, cfg)
	if err != nil {
		log.Fatalf("aws: %v", err)
	}

	transcriptBuffer, err := cache.NewTranscriptBuffer(cfg.Redis.URL)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}

	uploads, err := storage.NewS3Service(cfg.S3)
	if err != nil {
		log.Printf("S3 upload path disabled: %v", err)
		uploads = nil
	}

	tokenIssuer := livekit.NewTokenIssuer(cfg.LiveKit)
	verifier := auth.NewVerifier(cfg.Auth.JWTSecret)

	reg := registry.New()
	deps := pipeline.Deps{
		ASRService:  clients.Transcribe,
		Translator:  translator.New(clients.Translate),
		TTS:         tts.New(clients.Polly),
		Cache:       cache.New(cache.DefaultConfig()),
		Registry:    reg,
		Workers:     aws.NewWorkerPool(ctx, "translation", 8, 256),
		Transcripts: transcriptBuffer,
		DB:          db,
	}

	newPipe := func(connID string, session *pipeline.ParticipantSession) *pipeline.Pipeline {
		return pipeline.New(ctx, deps, session)
	}

	restHandler := rest.New(db, tokenIssuer, transcriptBuffer, reg, uploads)
	srv := server.New(cfg, restHandler, protocol.PipelineFactory(newPipe), verifier)
	srv.SetupMiddleware()
	srv.SetupRoutes()

	if err := srv.Start(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
