// Command mockapi serves an in-memory exercise API for local development.
package main

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/matuc/lti-exercise-composer/internal/config"
	"github.com/matuc/lti-exercise-composer/internal/mockapi"
)

func main() {
	cfg := config.Load()

	store := mockapi.NewStore()
	if err := mockapi.Seed(store); err != nil {
		log.Fatalf("seed: %v", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Mount("/api", mockapi.Routes(store))

	log.Printf("mock exercise API listening on %s", cfg.MockAPIAddr)
	log.Fatal(http.ListenAndServe(cfg.MockAPIAddr, r))
}
