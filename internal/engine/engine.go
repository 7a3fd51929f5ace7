// Package engine drives a UCI engine process to pick and evaluate moves.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/freeeve/uci"
	"github.com/rs/zerolog"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/metrics"
)

// ErrEvaluationFailed is returned when the engine errors or gives no usable
// result.
var ErrEvaluationFailed = errors.New("evaluation failed")

// Config configures the engine process.
type Config struct {
	Path    string
	Threads int
	HashMB  int
	Logger  zerolog.Logger
}

// Move is an engine choice and the position it leads to.
type Move struct {
	UCI      string
	SAN      string
	Position *board.Position
}

// Engine is a single long-lived engine process. Calls must not overlap.
type Engine struct {
	engine *uci.Engine
	log    zerolog.Logger
}

// New starts the engine at cfg.Path.
func New(cfg Config) (*Engine, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("engine path required")
	}
	if cfg.HashMB == 0 {
		cfg.HashMB = 256
	}
	if cfg.Threads == 0 {
		cfg.Threads = 1
	}

	eng, err := uci.NewEngine(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	opts := uci.Options{
		Hash:    cfg.HashMB,
		Threads: cfg.Threads,
		MultiPV: 1,
		Ponder:  false,
		OwnBook: false,
	}
	if err := eng.SetOptions(opts); err != nil {
		eng.Close()
		return nil, fmt.Errorf("set options: %w", err)
	}

	return &Engine{
		engine: eng,
		log:    cfg.Logger.With().Str("component", "engine").Logger(),
	}, nil
}

// Close stops the engine process.
func (e *Engine) Close() error {
	if e.engine != nil {
		e.engine.Close()
		e.engine = nil
	}
	return nil
}

// BestMove searches pos to depth and plays the engine's choice.
func (e *Engine) BestMove(ctx context.Context, pos *board.Position, depth int) (Move, error) {
	if err := e.prepare(ctx, pos); err != nil {
		metrics.EngineCalls.WithLabelValues("bestmove", "error").Inc()
		return Move{}, err
	}
	results, err := e.engine.GoDepth(depth, uci.HighestDepthOnly)
	if err != nil {
		metrics.EngineCalls.WithLabelValues("bestmove", "error").Inc()
		return Move{}, fmt.Errorf("%w: go depth %d: %v", ErrEvaluationFailed, depth, err)
	}

	best := results.BestMove
	if (best == "" || best == "(none)") && len(results.Results) > 0 {
		top := results.Results[0]
		for _, r := range results.Results {
			if r.Depth > top.Depth {
				top = r
			}
		}
		if len(top.BestMoves) > 0 {
			best = top.BestMoves[0]
		}
	}
	if best == "" || best == "(none)" {
		metrics.EngineCalls.WithLabelValues("bestmove", "error").Inc()
		return Move{}, fmt.Errorf("%w: no best move for %s", ErrEvaluationFailed, pos.FEN())
	}

	next, san, err := pos.PlayUCI(best)
	if err != nil {
		metrics.EngineCalls.WithLabelValues("bestmove", "error").Inc()
		return Move{}, fmt.Errorf("%w: engine move %s: %v", ErrEvaluationFailed, best, err)
	}
	metrics.EngineCalls.WithLabelValues("bestmove", "ok").Inc()
	e.log.Debug().Str("fen", pos.FEN()).Str("move", san).Msg("best move")
	return Move{UCI: pos.NormalizeUCI(best), SAN: san, Position: next}, nil
}

// Evaluate returns the score of pos at depth from White's perspective. A
// mated position is scored without asking the engine.
func (e *Engine) Evaluate(ctx context.Context, pos *board.Position, depth int) (Score, error) {
	if pos.IsCheckmate() {
		return MateFor(pos.SideToMove().Opponent(), 0), nil
	}
	if pos.LegalMoves() == 0 {
		return Centipawns(0), nil
	}

	if err := e.prepare(ctx, pos); err != nil {
		metrics.EngineCalls.WithLabelValues("evaluate", "error").Inc()
		return Score{}, err
	}
	results, err := e.engine.GoDepth(depth, uci.HighestDepthOnly)
	if err != nil {
		metrics.EngineCalls.WithLabelValues("evaluate", "error").Inc()
		return Score{}, fmt.Errorf("%w: go depth %d: %v", ErrEvaluationFailed, depth, err)
	}
	if len(results.Results) == 0 {
		metrics.EngineCalls.WithLabelValues("evaluate", "error").Inc()
		return Score{}, fmt.Errorf("%w: no results for %s", ErrEvaluationFailed, pos.FEN())
	}

	best := results.Results[0]
	for _, r := range results.Results {
		if r.Depth > best.Depth {
			best = r
		}
	}

	score := fromEngine(best.Score, best.Mate, pos.SideToMove())
	metrics.EngineCalls.WithLabelValues("evaluate", "ok").Inc()
	e.log.Debug().
		Str("fen", pos.FEN()).
		Int("raw_score", best.Score).
		Bool("mate", best.Mate).
		Stringer("score", score).
		Msg("evaluated")
	return score, nil
}

func (e *Engine) prepare(ctx context.Context, pos *board.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if e.engine == nil {
		return fmt.Errorf("%w: engine closed", ErrEvaluationFailed)
	}
	if err := e.engine.SetFEN(pos.FEN()); err != nil {
		return fmt.Errorf("%w: set FEN: %v", ErrEvaluationFailed, err)
	}
	return nil
}
