package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"pooledger/config"
	"pooledger/core/events"
	"pooledger/core/executor"
	"pooledger/journal"
	"pooledger/observability"
	"pooledger/rpc"
	"pooledger/storage"
)

// node bundles the long-lived components of a running daemon.
type node struct {
	db      storage.Database
	exec    *executor.Executor
	journal *journal.Journal
	server  *rpc.Server
	handler http.Handler
	logger  *slog.Logger
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Node.Database {
	case config.DatabaseMemory:
		return storage.NewMemDB(), nil
	case config.DatabaseLevelDB:
		if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("prepare data dir: %w", err)
		}
		return storage.NewLevelDB(filepath.Join(cfg.Node.DataDir, "ledger"))
	default:
		return nil, fmt.Errorf("unsupported database %q", cfg.Node.Database)
	}
}

func openJournal(cfg *config.Config) (*journal.Journal, error) {
	if cfg.Journal.Driver == config.JournalDisabled {
		return nil, nil
	}
	if cfg.Journal.Driver == journal.DriverSQLite {
		if dir := filepath.Dir(cfg.Journal.DSN); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("prepare journal dir: %w", err)
			}
		}
	}
	return journal.Open(cfg.Journal)
}

func buildNode(cfg *config.Config, logger *slog.Logger) (*node, error) {
	authority, err := cfg.MintAuthority()
	if err != nil {
		return nil, err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return nil, err
	}
	j, err := openJournal(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	exec := executor.New(db, executor.Config{
		LendingProgram: cfg.LendingProgram(),
		Rent:           cfg.Rent,
		MintAuthority:  authority,
		Paused:         cfg.Program.Paused,
		Quota:          cfg.Quota,
	})
	exec.SetLogger(logger.With(slog.String("component", "executor")))
	exec.SetMetrics(observability.Executor())

	hub := rpc.NewHub()
	exec.SetPublisher(events.Fanout{hub})

	var backendJournal rpc.Journal
	if j != nil {
		exec.SetJournal(j)
		backendJournal = j
	}
	server := rpc.NewServer(exec, backendJournal, hub, cfg.API, logger.With(slog.String("component", "api")))

	return &node{
		db:      db,
		exec:    exec,
		journal: j,
		server:  server,
		handler: server.Handler(),
		logger:  logger,
	}, nil
}

func (n *node) Close() error {
	var errs []error
	if n.journal != nil {
		errs = append(errs, n.journal.Close())
	}
	n.db.Close()
	return errors.Join(errs...)
}
