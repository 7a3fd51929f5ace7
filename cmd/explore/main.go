package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/config"
	"github.com/freeeve/repertoire/internal/engine"
	"github.com/freeeve/repertoire/internal/explorer"
	"github.com/freeeve/repertoire/internal/logx"
	"github.com/freeeve/repertoire/internal/repertoire"
)

type options struct {
	configPath string
	movetext   string
	stockfish  string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "settings file (yaml, toml or json)")
	flag.StringVar(&opts.movetext, "pgn", "", "movetext leading to the position, e.g. \"1. e4 e5\"")
	flag.StringVar(&opts.stockfish, "stockfish", "", "path to Stockfish executable (enables engine validation)")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	flag.Parse()

	logger := logx.New(os.Stderr, *logLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, opts, logger)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger zerolog.Logger) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	stockfish := opts.stockfish
	if envPath := os.Getenv("STOCKFISH_PATH"); envPath != "" && stockfish == "" {
		stockfish = envPath
	}

	pos := board.Start()
	if opts.movetext != "" {
		pos, err = board.ReplayMovetext(opts.movetext)
		if err != nil {
			return fmt.Errorf("replay %q: %w", opts.movetext, err)
		}
	}

	client := explorer.New(cfg.Explorer(logger))
	stats, err := client.Fetch(ctx, pos.FEN())
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	side := pos.SideToMove()
	settings := cfg.Settings()
	fmt.Printf("FEN:   %s\n", pos.FEN())
	fmt.Printf("Games: %d (white %d, draws %d, black %d)\n", stats.Total, stats.White, stats.Draws, stats.Black)
	if stats.Opening != nil {
		fmt.Printf("Opening: %s %s\n", stats.Opening.ECO, stats.Opening.Name)
	}
	fmt.Printf("Scores for %s, alpha %v, min games %d\n\n", side, settings.Alpha, settings.MinGames)

	var evaluator repertoire.Evaluator
	if stockfish != "" {
		engCfg := cfg.EngineConfig(logger)
		engCfg.Path = stockfish
		eng, err := engine.New(engCfg)
		if err != nil {
			return fmt.Errorf("start engine: %w", err)
		}
		defer eng.Close()
		evaluator = eng
		settings.Engine = true
	}

	selector := repertoire.NewSelector(settings, evaluator, logger)
	cands, err := selector.Candidates(pos, stats)
	if err != nil {
		return fmt.Errorf("score candidates: %w", err)
	}

	fmt.Printf("%-8s %8s %8s %8s %8s %8s\n", "move", "games", "played", "lower", "winrate", "upper")
	for _, c := range cands {
		fmt.Printf("%-8s %8d %7.2f%% %7.2f%% %7.2f%% %7.2f%%\n",
			c.Stat.SAN, c.Stat.Total, c.Stat.PlayRate*100,
			c.Score.Lower*100, c.Score.Value*100, c.Score.Upper*100)
	}

	sel, err := selector.SelectReply(ctx, pos, stats)
	if err != nil {
		return fmt.Errorf("select: %w", err)
	}
	fmt.Println()
	if !sel.Approved {
		fmt.Println("No reply approved")
		return nil
	}
	fmt.Printf("Reply: %s (lower bound %.2f%%)\n", sel.Move, sel.Potency.Lower*100)
	if sel.Verdict != nil {
		fmt.Printf("Engine: %s, %s\n", sel.Verdict.Score, sel.Verdict.Reason)
	}
	return nil
}
