// Package app wires configuration, logging, storage and the engine for the
// command line.
package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/tidwall/pretty"
	"github.com/wenzapen/bookrule/collect"
	"github.com/wenzapen/bookrule/config"
	"github.com/wenzapen/bookrule/engine"
	"github.com/wenzapen/bookrule/log"
	"github.com/wenzapen/bookrule/proxy"
	"github.com/wenzapen/bookrule/storage/sqlstorage"
	"go.uber.org/zap"
)

var ConfigPath = config.DefaultPath

type App struct {
	Config config.Config
	Logger *zap.Logger
	Store  *sqlstorage.SQLStorage
	Engine *engine.Engine

	logCloser io.Closer
}

func Boot() (*App, error) {
	cfg, err := config.Load(ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", ConfigPath, err)
	}
	logger, logCloser, err := log.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	zap.ReplaceGlobals(logger)

	p, err := proxy.RoundRobinSwitcher(cfg.Fetcher.Proxy...)
	if err != nil && !errors.Is(err, proxy.ErrNoProxy) {
		logger.Error("RoundRobinProxySwitcher", zap.Error(err))
	}
	var f collect.Fetcher = &collect.BrowserFetch{
		Timeout:   cfg.Fetcher.TimeoutDuration(),
		Proxy:     p,
		UserAgent: cfg.Fetcher.UserAgent,
		Bandwidth: cfg.Fetcher.Bandwidth,
		Logger:    logger,
	}

	store, err := sqlstorage.New(
		sqlstorage.WithLogger(logger),
		sqlstorage.WithSQLURL(cfg.Storage.Path),
	)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	e := engine.New(
		engine.WithFetcher(f),
		engine.WithLogger(logger),
		engine.WithWorkCount(cfg.Engine.WorkCount),
		engine.WithMaxPages(cfg.Engine.MaxPages),
		engine.WithCacheTTL(cfg.Script.TTL()),
		engine.WithLoader(store),
	)
	logger.Debug("app booted", zap.String("config", ConfigPath), zap.String("storage", cfg.Storage.Path))
	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Engine:    e,
		logCloser: logCloser,
	}, nil
}

func (a *App) Close() {
	a.Engine.Close()
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("close storage", zap.Error(err))
	}
	a.logCloser.Close()
}

// Print writes v as indented JSON.
func Print(w io.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = w.Write(pretty.Pretty(b))
	return err
}
