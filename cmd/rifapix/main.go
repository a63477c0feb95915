package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rifapix/rifapix/internal/app"
	log "github.com/sirupsen/logrus"
)

func main() {
	_ = godotenv.Load()

	configPath := flag.String("config", "", "path to config.yaml")
	migrateOnly := flag.Bool("migrate", false, "run database migrations and exit")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.Options{ConfigPath: *configPath}

	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, opts); errMigrate != nil {
			log.WithError(errMigrate).Fatal("migration failed")
		}
		log.Info("migrations applied")
		return
	}

	if errRun := app.Run(ctx, opts); errRun != nil {
		log.WithError(errRun).Fatal("server exited with error")
	}
}
