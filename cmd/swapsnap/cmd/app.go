package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MilekOfficial/SwapSnap/blobstore"
	"github.com/MilekOfficial/SwapSnap/config"
	"github.com/MilekOfficial/SwapSnap/gallery"
	"github.com/MilekOfficial/SwapSnap/imaging"
	"github.com/MilekOfficial/SwapSnap/ingest"
	"github.com/MilekOfficial/SwapSnap/memory"
	"github.com/MilekOfficial/SwapSnap/postgres"
	"github.com/MilekOfficial/SwapSnap/redis"
	"github.com/MilekOfficial/SwapSnap/sqlite"
)

// uploadsPath is where the API serves stored images from.
const uploadsPath = "/uploads"

// app holds the stores selected by the configuration.
type app struct {
	cfg    config.Config
	logger *slog.Logger

	photos gallery.PhotoStore
	ledger gallery.Ledger
	state  gallery.RotationState
	blobs  *blobstore.Local

	closers []func() error
}

func openApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			err = errors.Join(err, a.Close())
		}
	}()

	switch cfg.DBDriver {
	case config.DriverMemory:
		a.photos = memory.NewStore()
		a.ledger = memory.NewLedger()
	case config.DriverSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.photos, a.ledger = db, db
	case config.DriverPostgres:
		pg, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if err := pg.CreateSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
		a.photos, a.ledger = pg, pg
	default:
		return nil, fmt.Errorf("unknown db driver %q", cfg.DBDriver)
	}

	a.state = memory.NewRotationState()
	if cfg.RedisAddr != "" {
		rdb, err := redis.Connect(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.closers = append(a.closers, rdb.Close)
		rdb.StateTTL = cfg.SessionTTL
		a.state = rdb
		if cfg.LedgerDriver == config.LedgerRedis {
			a.ledger = rdb
		}
	}

	blobs, err := blobstore.NewLocal(cfg.UploadDir, uploadsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open upload dir: %w", err)
	}
	a.closers = append(a.closers, blobs.Close)
	a.blobs = blobs

	logger.Info("Stores ready",
		"db_driver", cfg.DBDriver,
		"ledger", fmt.Sprintf("%T", a.ledger),
		"rotation_state", fmt.Sprintf("%T", a.state),
		"upload_dir", blobs.Dir(),
	)
	return a, nil
}

func (a *app) catalog() *gallery.Catalog {
	return &gallery.Catalog{
		Store:           a.photos,
		Blobs:           a.blobs,
		Logger:          a.logger,
		RefreshInterval: a.cfg.CatalogRefresh,
		Timeout:         a.cfg.StorageTimeout,
	}
}

func (a *app) pipeline(catalog ingest.Registrar) *ingest.Pipeline {
	return &ingest.Pipeline{
		Processor: &imaging.Processor{
			MaxWidth:    a.cfg.MaxWidth,
			MaxHeight:   a.cfg.MaxHeight,
			JPEGQuality: a.cfg.JPEGQuality,
		},
		Storage:  a.blobs,
		Catalog:  catalog,
		Logger:   a.logger,
		MaxBytes: a.cfg.MaxUploadBytes,
	}
}

// Close closes the stores in reverse order of opening.
func (a *app) Close() error {
	var err error
	for i := len(a.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, a.closers[i]())
	}
	a.closers = nil
	return err
}
