package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/matuc/lti-exercise-composer/internal/apiclient"
	"github.com/matuc/lti-exercise-composer/internal/attempt"
	"github.com/matuc/lti-exercise-composer/internal/auth"
	"github.com/matuc/lti-exercise-composer/internal/config"
	"github.com/matuc/lti-exercise-composer/internal/db"
	"github.com/matuc/lti-exercise-composer/internal/prefs"
	syncx "github.com/matuc/lti-exercise-composer/internal/sync"
	"github.com/matuc/lti-exercise-composer/internal/web"
)

func main() {
	hashPassword := flag.String("hash-password", "", "print a bcrypt hash for INSTRUCTOR_PASS_HASH / STUDENT_PASS_HASH and exit")
	flag.Parse()
	if *hashPassword != "" {
		h, err := auth.HashPassword(*hashPassword)
		if err != nil {
			log.Fatalf("hash password: %v", err)
		}
		fmt.Println(h)
		return
	}

	cfg := config.Load()

	// --- DB (preferences + attempt event log) ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbh, err := db.Open(ctx, db.Driver(cfg.DBDriver), cfg.DBDSN)
	if err != nil {
		log.Fatalf("db open failed: %v", err)
	}
	defer dbh.Close()
	events := syncx.NewEventRepo(dbh)

	theme, ok := prefs.ParseTheme(cfg.DefaultTheme)
	if !ok {
		theme = prefs.Light
	}
	prefSvc := prefs.NewService(prefs.NewSQLStore(dbh), theme)

	// --- Exercise API ---
	client, err := apiclient.New(apiclient.Config{
		BaseURL:      cfg.APIBaseURL,
		Timeout:      cfg.APITimeout,
		TokenURL:     cfg.APITokenURL,
		ClientID:     cfg.APIClientID,
		ClientSecret: cfg.APIClientSecret,
	})
	if err != nil {
		log.Fatalf("api client: %v", err)
	}

	// --- Attempts ---
	var guard attempt.Guard
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatalf("redis ping %s: %v", cfg.RedisAddr, err)
		}
		defer rdb.Close()
		guard = attempt.NewRedisGuard(rdb)
	}
	attempts := attempt.NewManager(attempt.Options{
		Guard:     guard,
		Submitter: attempt.LogSubmitter{Events: events},
		IdleTTL:   cfg.AttemptIdleTTL,
	}, events, cfg.SubmitRedirectDelay)

	srv, err := web.New(web.Deps{
		Config:    cfg,
		Sets:      client.ExerciseSets,
		Questions: client.Questions,
		API:       client,
		Attempts:  attempts,
		Prefs:     prefSvc,
		Sessions:  auth.NewSessionService(cfg.SessionSecret, cfg.Mode == config.ModeOnline),
		Auth:      auth.NewAuthenticator(cfg),
		Events:    events,
		DB:        dbh,
	})
	if err != nil {
		log.Fatalf("templates: %v", err)
	}

	hs := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("listening on %s (mode=%s, api=%s, db=%s)", cfg.HTTPAddr, cfg.Mode, cfg.APIBaseURL, cfg.DBDriver)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, done := context.WithTimeout(context.Background(), 10*time.Second)
	defer done()
	if err := hs.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	attempts.Shutdown()
}
