package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/BrandonDHaskell/parkgate/internal/config"
	"github.com/BrandonDHaskell/parkgate/internal/db"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store/csvfile"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store/memory"
	"github.com/BrandonDHaskell/parkgate/internal/parkgate/store/sqlite"
)

type stores struct {
	Records     store.RecordStore
	Settlements store.SettlementEventStore

	closers []func()
}

func (s *stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	switch cfg.Store {
	case config.StoreSQLite:
		return openSQLite(ctx, cfg, logger)

	case config.StoreCSV:
		// The CSV log has no audit table; audit entries live in memory.
		logger.Info("record store", "kind", "csv", "path", cfg.CSVPath)
		return &stores{
			Records:     csvfile.NewRecordStore(cfg.CSVPath, time.Local),
			Settlements: memory.NewSettlementEventStore(),
		}, nil

	case config.StoreMemory:
		rs := memory.NewRecordStore()
		if seedDev(cfg) {
			entry := time.Now().Add(-95 * time.Minute)
			for _, plate := range []string{"RAB123A", "RAC456B", "RAD789C"} {
				rs.Insert(store.ParkingRecord{Plate: plate, EntryTime: entry})
			}
		}
		logger.Info("record store", "kind", "memory", "seeded", seedDev(cfg))
		return &stores{
			Records:     rs,
			Settlements: memory.NewSettlementEventStore(),
		}, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

// seedDev reports whether sample visits should be registered. Never in prod.
func seedDev(cfg config.Config) bool {
	return cfg.SeedDev && cfg.Env == "dev"
}

func openSQLite(ctx context.Context, cfg config.Config, logger *slog.Logger) (*stores, error) {
	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		return nil, err
	}

	if seedDev(cfg) {
		if err := db.SeedDev(ctx, conn, db.SeedDevOptions{}); err != nil {
			closeDB(conn, logger)
			return nil, fmt.Errorf("seed dev: %w", err)
		}
		logger.Info("dev visits seeded")
	}

	writer := db.NewWorker(conn)
	logger.Info("record store", "kind", "sqlite", "path", cfg.DBPath)

	return &stores{
		Records:     sqlite.NewRecordStore(conn, writer),
		Settlements: sqlite.NewSettlementEventStore(conn, writer),
		closers: []func(){
			func() { closeDB(conn, logger) },
			writer.Close,
		},
	}, nil
}

func closeDB(conn *sql.DB, logger *slog.Logger) {
	if err := conn.Close(); err != nil {
		logger.Error("db close", "err", err)
	}
}
