// Package config loads build settings from an optional file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/freeeve/repertoire/internal/book"
	"github.com/freeeve/repertoire/internal/engine"
	"github.com/freeeve/repertoire/internal/explorer"
	"github.com/freeeve/repertoire/internal/repertoire"
)

// EnvPrefix prefixes environment overrides, e.g. BOOKBUILDER_ENGINE_PATH.
const EnvPrefix = "BOOKBUILDER"

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("invalid config")

// Config is the full settings tree.
type Config struct {
	Book          Book          `mapstructure:"book"`
	Database      Database      `mapstructure:"database"`
	MoveSelection MoveSelection `mapstructure:"move_selection"`
	Engine        Engine        `mapstructure:"engine"`
}

// Book lists the starting lines and where chapters go.
type Book struct {
	Books       []book.Book `mapstructure:"books"`
	BooksFile   string      `mapstructure:"books_file"`
	LongToShort bool        `mapstructure:"long_to_short"`
	EcoDir      string      `mapstructure:"eco_dir"`
	OutDir      string      `mapstructure:"out_dir"`
	Compress    bool        `mapstructure:"compress"`
}

// Database configures the opening explorer and its caches.
type Database struct {
	Source            string        `mapstructure:"source"`
	URL               string        `mapstructure:"url"`
	Token             string        `mapstructure:"token"`
	Variant           string        `mapstructure:"variant"`
	Speeds            []string      `mapstructure:"speeds"`
	Ratings           []int         `mapstructure:"ratings"`
	Moves             int           `mapstructure:"moves"`
	Backoff           time.Duration `mapstructure:"backoff"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	CacheDir          string        `mapstructure:"cache_dir"`
	RedisURL          string        `mapstructure:"redis_url"`
	CacheTTL          time.Duration `mapstructure:"cache_ttl"`
}

// MoveSelection holds the statistical thresholds.
type MoveSelection struct {
	DepthLikelihood   float64 `mapstructure:"depth_likelihood"`
	Alpha             float64 `mapstructure:"alpha"`
	MinPlayRate       float64 `mapstructure:"min_play_rate"`
	MinGames          int64   `mapstructure:"min_games"`
	ContinuationGames int64   `mapstructure:"continuation_games"`
	DrawsAreHalf      bool    `mapstructure:"draws_are_half"`
}

// Engine configures the evaluator and its limits, in centipawns.
type Engine struct {
	Enabled         bool   `mapstructure:"enabled"`
	Path            string `mapstructure:"path"`
	Finish          bool   `mapstructure:"finish"`
	Depth           int    `mapstructure:"depth"`
	Threads         int    `mapstructure:"threads"`
	Hash            int    `mapstructure:"hash"`
	SoundnessLimit  int    `mapstructure:"soundness_limit"`
	MoveLossLimit   int    `mapstructure:"move_loss_limit"`
	IgnoreLossLimit int    `mapstructure:"ignore_loss_limit"`
	ReplyCheck      bool   `mapstructure:"reply_check"`
}

func setDefaults(v *viper.Viper) {
	s := repertoire.DefaultSettings()

	v.SetDefault("book.books", []book.Book{})
	v.SetDefault("book.books_file", "")
	v.SetDefault("book.long_to_short", false)
	v.SetDefault("book.eco_dir", "")
	v.SetDefault("book.out_dir", "out")
	v.SetDefault("book.compress", false)

	v.SetDefault("database.source", explorer.SourceLichess)
	v.SetDefault("database.url", explorer.DefaultBaseURL)
	v.SetDefault("database.token", "")
	v.SetDefault("database.variant", "standard")
	v.SetDefault("database.speeds", []string{"blitz", "rapid", "classical", "correspondence"})
	v.SetDefault("database.ratings", []int{1600, 1800, 2000, 2200, 2500})
	v.SetDefault("database.moves", 10)
	v.SetDefault("database.backoff", 60*time.Second)
	v.SetDefault("database.requests_per_second", 1.0)
	v.SetDefault("database.cache_dir", "")
	v.SetDefault("database.redis_url", "")
	v.SetDefault("database.cache_ttl", 30*24*time.Hour)

	v.SetDefault("move_selection.depth_likelihood", s.DepthLikelihood)
	v.SetDefault("move_selection.alpha", s.Alpha)
	v.SetDefault("move_selection.min_play_rate", s.MinPlayRate)
	v.SetDefault("move_selection.min_games", s.MinGames)
	v.SetDefault("move_selection.continuation_games", s.ContinuationGames)
	v.SetDefault("move_selection.draws_are_half", s.DrawsHalf)

	v.SetDefault("engine.enabled", false)
	v.SetDefault("engine.path", "")
	v.SetDefault("engine.finish", false)
	v.SetDefault("engine.depth", s.EngineDepth)
	v.SetDefault("engine.threads", 1)
	v.SetDefault("engine.hash", 256)
	v.SetDefault("engine.soundness_limit", s.SoundnessLimit)
	v.SetDefault("engine.move_loss_limit", s.MoveLossLimit)
	v.SetDefault("engine.ignore_loss_limit", s.IgnoreLossLimit)
	v.SetDefault("engine.reply_check", false)
}

// Load reads path (YAML, TOML or JSON by extension) over the defaults and
// applies BOOKBUILDER_* environment overrides. An empty path uses defaults
// and the environment only.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Validate checks ranges and required fields.
func (c *Config) Validate() error {
	var errs []error
	ms := c.MoveSelection
	if ms.Alpha <= 0 || ms.Alpha >= 1 {
		errs = append(errs, fmt.Errorf("move_selection.alpha %v not in (0,1)", ms.Alpha))
	}
	if ms.DepthLikelihood < 0 || ms.DepthLikelihood > 1 {
		errs = append(errs, fmt.Errorf("move_selection.depth_likelihood %v not in [0,1]", ms.DepthLikelihood))
	}
	if ms.MinPlayRate < 0 || ms.MinPlayRate > 1 {
		errs = append(errs, fmt.Errorf("move_selection.min_play_rate %v not in [0,1]", ms.MinPlayRate))
	}
	if ms.MinGames < 0 || ms.ContinuationGames < 0 {
		errs = append(errs, fmt.Errorf("move_selection game thresholds must not be negative"))
	}
	if c.Database.Moves < 5 {
		errs = append(errs, fmt.Errorf("database.moves %d below 5", c.Database.Moves))
	}
	switch c.Database.Source {
	case explorer.SourceLichess, explorer.SourceMasters:
	default:
		errs = append(errs, fmt.Errorf("database.source %q unknown", c.Database.Source))
	}
	if c.Engine.Enabled || c.Engine.Finish {
		if c.Engine.Path == "" {
			errs = append(errs, fmt.Errorf("engine.path required when the engine is used"))
		}
		if c.Engine.Depth <= 0 {
			errs = append(errs, fmt.Errorf("engine.depth %d must be positive", c.Engine.Depth))
		}
	}
	if len(c.Book.Books) == 0 && c.Book.BooksFile == "" {
		errs = append(errs, book.ErrNoBooks)
	}
	for i, b := range c.Book.Books {
		if strings.TrimSpace(b.PGN) == "" {
			errs = append(errs, fmt.Errorf("book.books[%d] %q has no pgn", i, b.Name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalid, errors.Join(errs...))
	}
	return nil
}

// Settings maps the thresholds onto the builder's settings.
func (c *Config) Settings() repertoire.Settings {
	return repertoire.Settings{
		DepthLikelihood:   c.MoveSelection.DepthLikelihood,
		Alpha:             c.MoveSelection.Alpha,
		MinPlayRate:       c.MoveSelection.MinPlayRate,
		MinGames:          c.MoveSelection.MinGames,
		ContinuationGames: c.MoveSelection.ContinuationGames,
		DrawsHalf:         c.MoveSelection.DrawsAreHalf,
		Engine:            c.Engine.Enabled,
		EngineFinish:      c.Engine.Finish,
		EngineDepth:       c.Engine.Depth,
		SoundnessLimit:    c.Engine.SoundnessLimit,
		MoveLossLimit:     c.Engine.MoveLossLimit,
		IgnoreLossLimit:   c.Engine.IgnoreLossLimit,
		ReplyCheck:        c.Engine.ReplyCheck,
		LongToShort:       c.Book.LongToShort,
	}
}

// Explorer builds the explorer client config. The persistent cache is
// attached by the caller.
func (c *Config) Explorer(logger zerolog.Logger) explorer.Config {
	d := c.Database
	return explorer.Config{
		BaseURL:           d.URL,
		Source:            d.Source,
		Token:             d.Token,
		Variant:           d.Variant,
		Speeds:            d.Speeds,
		Ratings:           d.Ratings,
		Moves:             d.Moves,
		Backoff:           d.Backoff,
		RequestsPerSecond: d.RequestsPerSecond,
		Logger:            logger,
	}
}

// EngineConfig builds the engine process config.
func (c *Config) EngineConfig(logger zerolog.Logger) engine.Config {
	return engine.Config{
		Path:    c.Engine.Path,
		Threads: c.Engine.Threads,
		HashMB:  c.Engine.Hash,
		Logger:  logger,
	}
}

// UsesEngine reports whether a run needs an engine process.
func (c *Config) UsesEngine() bool {
	return c.Engine.Enabled || c.Engine.Finish
}
