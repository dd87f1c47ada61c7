package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/rendis/rootfinder/internal/engine"
	"github.com/rendis/rootfinder/internal/history"
	"github.com/rendis/rootfinder/internal/logging"
	"github.com/rendis/rootfinder/internal/store"
	"github.com/rendis/rootfinder/internal/validation"
)

// app wires the components shared by every command.
type app struct {
	cfg        Config
	logger     *slog.Logger
	validator  *validation.JSONSchemaValidator
	pool       *engine.WorkerPool
	comparator *engine.Comparator

	store   *store.LibSQLStore
	history *history.Service
}

func newApp(cfg Config, logOut io.Writer) (*app, error) {
	logger, err := logging.New(logOut, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	v, err := validation.NewJSONSchemaValidator()
	if err != nil {
		return nil, fmt.Errorf("build request validator: %w", err)
	}

	pool := engine.NewWorkerPool(cfg.PoolSize)
	opts := []engine.ComparatorOption{engine.WithLogger(logger)}
	if cfg.Verify {
		opts = append(opts, engine.WithVerifier(engine.NewVerifier()))
	}

	return &app{
		cfg:        cfg,
		logger:     logger,
		validator:  v,
		pool:       pool,
		comparator: engine.NewComparator(pool, opts...),
	}, nil
}

// openHistory opens and migrates the history store on first use. It returns
// nil when history is disabled.
func (a *app) openHistory(ctx context.Context) (*history.Service, error) {
	if !a.cfg.History {
		return nil, nil
	}
	if a.history != nil {
		return a.history, nil
	}

	if path, ok := store.LocalPath(a.cfg.DBPath); ok {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	st, err := store.NewLibSQLStore(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	svc, err := history.NewService(st, history.WithLogger(a.logger))
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.store, a.history = st, svc
	return svc, nil
}

// requireHistory is openHistory for commands that cannot run without it.
func (a *app) requireHistory(ctx context.Context) (*history.Service, error) {
	svc, err := a.openHistory(ctx)
	if err != nil {
		return nil, err
	}
	if svc == nil {
		return nil, errors.New("history is disabled (--no-history or ROOTFINDER_HISTORY=false)")
	}
	return svc, nil
}

func (a *app) close() error {
	a.pool.Shutdown()
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}

// writeJSON prints v as indented JSON.
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
