package main

import (
	"log"
	"net/http"

	"github.com/tidelands/worldstream/internal/api"
	"github.com/tidelands/worldstream/internal/auth"
	"github.com/tidelands/worldstream/internal/config"
	"github.com/tidelands/worldstream/internal/performance"
	"github.com/tidelands/worldstream/internal/streaming"
	"github.com/tidelands/worldstream/internal/terrain"
	"github.com/tidelands/worldstream/internal/tilemap"
)

// main starts the worldstream chunk streaming server.
// It builds the terrain classifier and streaming manager from the
// environment configuration, then serves the viewer websocket and
// health endpoints on the configured port (default: 8080).
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	source, err := terrain.NewSource(cfg.Terrain.Algorithm, cfg.Terrain.Seed)
	if err != nil {
		log.Fatalf("Terrain source error: %v", err)
	}
	classifier := terrain.NewClassifier(source, cfg.Terrain.Frequency)
	log.Printf("[Terrain] %s noise, seed=%d frequency=%g",
		cfg.Terrain.Algorithm, cfg.Terrain.Seed, cfg.Terrain.Frequency)

	tiles := tilemap.NewMemoryTileMap(cfg.Stream.TilePixelExtent)

	profiler := performance.NewProfiler(cfg.Viewer.ProfileInterval > 0)
	if profiler.IsEnabled() {
		stop := make(chan struct{})
		defer close(stop)
		go profiler.LogEvery(cfg.Viewer.ProfileInterval, stop)
	}

	manager, err := streaming.NewManager(cfg.Stream, classifier, tiles, profiler)
	if err != nil {
		log.Fatalf("Streaming manager error: %v", err)
	}
	log.Printf("[Stream] chunks %dx%d tiles (%gx%g px), buffer radius %d",
		cfg.Stream.ChunkTileWidth, cfg.Stream.ChunkTileHeight,
		cfg.Stream.ChunkPixelWidth(), cfg.Stream.ChunkPixelHeight(),
		cfg.Stream.BufferRadius)

	tokens := auth.NewTokenService(cfg.Viewer.AuthSecret, cfg.Viewer.TokenExpiration)
	if tokens == nil {
		log.Printf("[Viewer] token auth disabled (no VIEWER_AUTH_SECRET set)")
	}

	mux := http.NewServeMux()
	api.SetupRoutes(mux, cfg, manager, tokens, profiler)

	addr := cfg.Server.Host + ":" + cfg.Server.Port
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	log.Printf("Worldstream server starting on %s", addr)
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
