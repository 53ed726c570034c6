// Copyright (C) 2026 fadechat <dev@fadechat.io>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fadechat/fadechat/backend/config"
	"github.com/fadechat/fadechat/backend/crypto"
	"github.com/fadechat/fadechat/backend/handlers"
	"github.com/fadechat/fadechat/backend/middleware"
	"github.com/fadechat/fadechat/backend/reaper"
	"github.com/fadechat/fadechat/backend/storage"
	"github.com/fadechat/fadechat/backend/storage/postgres"
	redisstore "github.com/fadechat/fadechat/backend/storage/redis"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Environment)

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	store := postgres.NewStore(db)
	if err := store.Migrate(); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	var throttle storage.Throttle
	if cfg.RedisURL != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		throttle = redisstore.NewThrottle(rdb, cfg.RateLimitWindow)
		defer rdb.Close()
	} else {
		mem := middleware.NewMemoryThrottle(cfg.RateLimitWindow)
		defer mem.Stop()
		throttle = mem
	}

	box := crypto.NewBox(cfg.MessageKey)
	if box.Insecure() {
		logger.Warn().Msg("MESSAGE_KEY absent or malformed; running with the built-in development key, stored messages are NOT confidential")
	}

	roomHandler := handlers.NewRoomHandler(store, box, cfg.UserTimeout, cfg.RetrieveLimit, logger)

	r := mux.NewRouter()
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(cfg.AllowedOrigins))
	r.Use(middleware.NoStore)
	r.NotFoundHandler = http.HandlerFunc(handlers.NotFound)
	r.MethodNotAllowedHandler = http.HandlerFunc(handlers.MethodNotAllowed)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.RateLimit(throttle, logger))
	api.HandleFunc("/room/{roomId}/messages", roomHandler.Sync).Methods("GET")
	api.HandleFunc("/room/{roomId}/send", roomHandler.Send).Methods("POST")
	api.HandleFunc("/room/{roomId}/join", roomHandler.Join).Methods("POST")
	api.HandleFunc("/room/{roomId}/destroy", roomHandler.Destroy).Methods("POST")

	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if err := store.Ping(req.Context()); err != nil {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("database unavailable"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	r.HandleFunc("/", handlers.Index).Methods("GET")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go reaper.New(store, cfg.MessageRetention, cfg.ReapInterval, logger).Run(ctx)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("fadechat server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown failed")
	}
}

func newLogger(env string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339
	if env == "dev" {
		cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
		return zerolog.New(cw).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}
