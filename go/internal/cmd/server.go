package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/cors"

	"github.com/clockroom/clockroom/go/internal/relay"
	"github.com/clockroom/clockroom/go/internal/store"
)

func setupServer(config *Config, manager *relay.ConnectionManager, st store.Store) *http.Server {
	mux := http.NewServeMux()

	wsHandler := relay.NewWebSocketHandler(manager)
	wsHandler.RegisterRoutes(mux)

	health := store.NewHealthChecker(st, 5*time.Second)
	mux.Handle("/health", health)
	mux.HandleFunc("/metrics", health.MetricsHandler)

	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", config.Server.Port),
		Handler: c.Handler(mux),
	}
}
