package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/freeeve/repertoire/internal/book"
	"github.com/freeeve/repertoire/internal/config"
	"github.com/freeeve/repertoire/internal/eco"
	"github.com/freeeve/repertoire/internal/engine"
	"github.com/freeeve/repertoire/internal/explorer"
	"github.com/freeeve/repertoire/internal/export"
	"github.com/freeeve/repertoire/internal/logx"
	"github.com/freeeve/repertoire/internal/metrics"
	"github.com/freeeve/repertoire/internal/repertoire"
)

type options struct {
	configPath  string
	outDir      string
	stockfish   string
	metricsAddr string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "settings file (yaml, toml or json)")
	flag.StringVar(&opts.outDir, "out", "", "chapter output directory (overrides book.out_dir)")
	flag.StringVar(&opts.stockfish, "stockfish", "", "path to Stockfish executable (overrides engine.path)")
	flag.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (empty = disabled)")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := logx.NewLogger(*logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, opts, logger)
	stop()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn().Msg("interrupted")
			return
		}
		logger.Error().Err(err).Msg("build failed")
		os.Exit(1)
	}
}

// enginePath resolves the Stockfish binary: the flag wins, then
// STOCKFISH_PATH, then the configured path.
func enginePath(flagPath, envPath, cfgPath string) string {
	switch {
	case flagPath != "":
		return flagPath
	case envPath != "":
		return envPath
	}
	return cfgPath
}

// loadConfig reads the settings file and applies command line overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	cfg.Engine.Path = enginePath(opts.stockfish, os.Getenv("STOCKFISH_PATH"), cfg.Engine.Path)
	if opts.outDir != "" {
		cfg.Book.OutDir = opts.outDir
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, opts options, logger zerolog.Logger) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	books := cfg.Book.Books
	if cfg.Book.BooksFile != "" {
		loaded, err := book.LoadBooks(cfg.Book.BooksFile)
		if err != nil {
			return fmt.Errorf("load books %s: %w", cfg.Book.BooksFile, err)
		}
		books = append(books, loaded...)
	}

	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:        opts.metricsAddr,
			Handler:     metrics.Handler(logger),
			ReadTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", srv.Addr).Msg("metrics listening")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server")
			}
		}()
		defer srv.Close()
	}

	explorerCfg := cfg.Explorer(logger)
	cache, closeCache := openCache(ctx, cfg, logger)
	defer closeCache()
	explorerCfg.Cache = cache
	stats := explorer.New(explorerCfg)

	var evaluator repertoire.Evaluator
	if cfg.UsesEngine() {
		eng, err := engine.New(cfg.EngineConfig(logger))
		if err != nil {
			return fmt.Errorf("start engine %s: %w", cfg.Engine.Path, err)
		}
		defer eng.Close()
		evaluator = eng
		logger.Info().Str("path", cfg.Engine.Path).Int("depth", cfg.Engine.Depth).Msg("engine started")
	}

	settings := cfg.Settings()
	selector := repertoire.NewSelector(settings, evaluator, logger)
	expander := repertoire.NewExpander(repertoire.ExpanderConfig{
		Stats:     stats,
		Selector:  selector,
		Evaluator: evaluator,
		Settings:  settings,
		Logger:    logger,
	})

	var openings *eco.Database
	if cfg.Book.EcoDir != "" {
		openings = eco.NewDatabase()
		if err := openings.LoadDir(cfg.Book.EcoDir); err != nil {
			logger.Warn().Err(err).Str("dir", cfg.Book.EcoDir).Msg("failed to load ECO database")
			openings = nil
		} else {
			logger.Info().Int("openings", openings.Count()).Msg("ECO database loaded")
		}
	}

	sink, err := export.NewDirSink(cfg.Book.OutDir, cfg.Book.Compress, export.NewPrinter(openings), logger)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer sink.Close()

	builder := book.NewBuilder(book.Config{
		Expander:    expander,
		Sink:        sink,
		LongToShort: settings.LongToShort,
		Logger:      logger,
	})
	report, err := builder.Run(ctx, books)
	if err != nil {
		return err
	}
	for _, o := range report.Outcomes {
		if o.Err != nil {
			logger.Warn().Err(o.Err).Str("book", o.Book.Name).Int("chapter", o.Number).Msg("book skipped")
		}
	}
	logger.Info().Str("run_id", report.RunID).Int("failed", report.Failed()).Str("out", cfg.Book.OutDir).Msg("done")
	return nil
}

// openCache picks the persistent response cache: redis when configured,
// else a disk directory, else none.
func openCache(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (explorer.Cache, func()) {
	d := cfg.Database
	switch {
	case d.RedisURL != "":
		rc, err := explorer.NewRedisCache(ctx, d.RedisURL, d.CacheTTL)
		if err != nil {
			logger.Warn().Err(err).Msg("redis cache unavailable, continuing without it")
			return nil, func() {}
		}
		logger.Info().Dur("ttl", d.CacheTTL).Msg("using redis response cache")
		return rc, func() { rc.Close() }
	case d.CacheDir != "":
		dc, err := explorer.NewDiskCache(d.CacheDir)
		if err != nil {
			logger.Warn().Err(err).Str("dir", d.CacheDir).Msg("disk cache unavailable, continuing without it")
			return nil, func() {}
		}
		logger.Info().Str("dir", d.CacheDir).Msg("using disk response cache")
		return dc, func() { dc.Close() }
	}
	return nil, func() {}
}
