package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	listservice "rollcall/internal/attendancelist/service"
	liststore "rollcall/internal/attendancelist/store"
	ledgerservice "rollcall/internal/ledger/service"
	ledgerstore "rollcall/internal/ledger/store"
	"rollcall/internal/platform/config"
	"rollcall/internal/platform/database"
	registryservice "rollcall/internal/registry/service"
	registrystore "rollcall/internal/registry/store"
	audit "rollcall/pkg/platform/audit"
	auditmemory "rollcall/pkg/platform/audit/store/memory"
	auditpostgres "rollcall/pkg/platform/audit/store/postgres"
	txcontext "rollcall/pkg/platform/tx"
)

// backend groups the durable stores for one storage choice. outbox is set
// only for postgres, where audit events commit with the rows they describe.
type backend struct {
	professionals registryservice.Store
	lists         listservice.Store
	records       ledgerservice.Store
	audit         audit.Store
	outbox        *auditpostgres.Store
	tx            txcontext.Runner
	db            *sql.DB
}

func (b *backend) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *backend) Ping(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	return b.db.PingContext(ctx)
}

func openBackend(ctx context.Context, cfg config.Server, logger *slog.Logger) (*backend, error) {
	switch cfg.Storage {
	case config.StoragePostgres:
		db, err := database.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		outbox := auditpostgres.New(db)
		logger.Info("using postgres storage")
		return &backend{
			professionals: registrystore.NewPostgres(db),
			lists:         liststore.NewPostgres(db),
			records:       ledgerstore.NewPostgres(db),
			audit:         outbox,
			outbox:        outbox,
			tx:            txcontext.NewSQLRunner(db),
			db:            db,
		}, nil
	case config.StorageSQLite:
		db, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		logger.Info("using sqlite storage", "path", cfg.SQLitePath)
		return &backend{
			professionals: registrystore.NewSQLite(db),
			lists:         liststore.NewSQLite(db),
			records:       ledgerstore.NewSQLite(db),
			audit:         auditmemory.NewInMemoryStore(),
			tx:            txcontext.NoopRunner{},
			db:            db,
		}, nil
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return &backend{
			professionals: registrystore.NewInMemory(),
			lists:         liststore.NewInMemory(),
			records:       ledgerstore.NewInMemory(),
			audit:         auditmemory.NewInMemoryStore(),
			tx:            txcontext.NoopRunner{},
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
