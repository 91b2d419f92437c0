// Package common wires shared dependencies for the countyscan commands:
// configuration, logger, registry, and the fetch/navigate/extract stack.
package common

import (
	"fmt"

	"github.com/jonesrussell/countyscan/internal/config"
	"github.com/jonesrussell/countyscan/internal/counties"
	"github.com/jonesrussell/countyscan/internal/extractor"
	"github.com/jonesrussell/countyscan/internal/fetcher"
	"github.com/jonesrussell/countyscan/internal/logger"
	"github.com/jonesrussell/countyscan/internal/navigator"
	"github.com/jonesrussell/countyscan/internal/pipeline"
	"github.com/jonesrussell/countyscan/internal/store"
)

// App bundles the dependencies every command needs.
type App struct {
	Config   *config.Config
	Logger   logger.Interface
	Registry *counties.Registry
	Store    *store.Store
}

// NewApp loads configuration, builds the logger, loads the county
// registry, and opens the data store.
func NewApp(cfgFile string, debug bool) (*App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if debug {
		cfg.Log.Level = logger.DebugLevel
		cfg.Log.Development = true
	}

	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	registry, err := counties.NewLoader(cfg.RegistryPath).Load()
	if err != nil {
		return nil, fmt.Errorf("load county registry: %w", err)
	}

	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	return &App{
		Config:   cfg,
		Logger:   log,
		Registry: registry,
		Store:    st,
	}, nil
}

// NewPipeline builds the full fetch/navigate/extract pipeline from the
// app's configuration.
func (a *App) NewPipeline() *pipeline.Pipeline {
	gate := fetcher.NewGate(
		a.Config.Fetch.DelayMin,
		a.Config.Fetch.DelayMax,
		a.Config.Fetch.Politeness == config.PolitenessPerHost,
	)
	f := fetcher.New(a.Config.Fetch, gate, a.Logger.WithComponent("fetcher"))

	nav := navigator.New(f, a.Registry.Keywords, a.Config.Navigation, a.Logger.WithComponent("navigator"))
	ext := extractor.New(f, a.Config.Extract, a.Logger.WithComponent("extractor"))

	return pipeline.New(nav, ext, a.Store, a.Config.Pipeline, a.Logger.WithComponent("pipeline"))
}
