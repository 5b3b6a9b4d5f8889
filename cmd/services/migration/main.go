package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hoken-app/insurance-portal/internal/notification/adapters/http/dto"
	"github.com/hoken-app/insurance-portal/internal/notification/adapters/repository/mongodb"
	"github.com/hoken-app/insurance-portal/internal/notification/app/service"
	"github.com/hoken-app/insurance-portal/internal/notification/domain/repository"
	"github.com/hoken-app/insurance-portal/internal/platform/config"
	"github.com/hoken-app/insurance-portal/internal/platform/database"
	"github.com/hoken-app/insurance-portal/internal/platform/logger"
)

func main() {
	seedPath := flag.String("seed", "", "JSON file with an array of notifications to insert after the schema is installed")
	timeout := flag.Duration("timeout", time.Minute, "overall timeout")
	flag.Parse()

	cfg, err := config.Load("migration")
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}

	log := logger.New(cfg.Logger)
	log.Info("Starting schema migration", "version", cfg.Version, "database", cfg.Mongo.Database)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	db, err := database.New(ctx, cfg.Mongo)
	if err != nil {
		log.Fatal("failed to connect to database", "error", err)
	}
	defer func() { _ = db.Close(context.Background()) }()

	names := mongodb.SchemaNames{
		Notifications: cfg.Mongo.NotificationCollection,
		ReadStatus:    cfg.Mongo.StatusCollection,
	}
	if err := mongodb.EnsureSchema(ctx, db.Database, names); err != nil {
		log.Fatal("failed to install schema", "error", err)
	}
	log.Info("Schema installed", "notifications", names.Notifications, "read_status", names.ReadStatus)

	if *seedPath == "" {
		return
	}

	svc := service.NewNotificationService(
		mongodb.NewNotificationRepository(db.Notifications()),
		mongodb.NewReadStatusRepository(db.ReadStatus()),
		log,
	)
	inserted, skipped, err := seed(ctx, svc, *seedPath)
	if err != nil {
		log.Fatal("failed to seed notifications", "error", err)
	}
	log.Info("Seed complete", "inserted", inserted, "skipped", skipped)
}

// seed inserts every notification in path. Already stored message ids are skipped
// so the command can be rerun.
func seed(ctx context.Context, svc *service.NotificationService, path string) (inserted, skipped int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read seed file: %w", err)
	}

	var reqs []dto.CreateNotificationRequest
	if err := json.Unmarshal(raw, &reqs); err != nil {
		return 0, 0, fmt.Errorf("failed to decode seed file: %w", err)
	}

	for i, req := range reqs {
		cmd, err := req.ToCommand()
		if err != nil {
			return inserted, skipped, fmt.Errorf("entry %d: %w", i, err)
		}
		if _, err := svc.Create(ctx, cmd); err != nil {
			if errors.Is(err, repository.ErrDuplicateMessageID) {
				skipped++
				continue
			}
			return inserted, skipped, fmt.Errorf("entry %d: %w", i, err)
		}
		inserted++
	}
	return inserted, skipped, nil
}
