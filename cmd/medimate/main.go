package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/PRADEEP131204/Medimate/internal/api"
	"github.com/PRADEEP131204/Medimate/internal/config"
	"github.com/PRADEEP131204/Medimate/internal/database"
	"github.com/PRADEEP131204/Medimate/internal/migrations"
	"github.com/PRADEEP131204/Medimate/internal/notify"
	"github.com/PRADEEP131204/Medimate/internal/reminder"
	"github.com/PRADEEP131204/Medimate/internal/seed"
	"github.com/PRADEEP131204/Medimate/internal/store"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	db := database.Connect(cfg.DatabaseDSN)
	defer db.Close()

	migrations.Run(db)

	users := store.NewUserStore(db)
	prescriptions := store.NewPrescriptionStore(db)
	flags := store.NewFlagStore(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	seed.Run(ctx, users, prescriptions)

	deriver := reminder.NewDeriver(prescriptions, flags)
	controller := reminder.NewController(flags, nil)

	// The sweep covers every patient; cancelling ctx stops it before the
	// server exits, so no alert fires for a dead process.
	sweep := reminder.NewSweep(deriver, flags, notify.NewLogNotifier(), reminder.ScopeAll(), cfg.SweepInterval, nil)
	go sweep.Run(ctx)

	handler := api.New(users, prescriptions, deriver, controller, cfg.Secret, nil)
	server := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: handler.Router()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Printf("Medimate reminder server starting on :%s", cfg.HTTPPort)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server error: %v", err)
	}
}
