package repertoire

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/engine"
	"github.com/freeeve/repertoire/internal/explorer"
	"github.com/freeeve/repertoire/internal/metrics"
)

// ExpanderConfig wires an Expander.
type ExpanderConfig struct {
	Stats    StatsProvider
	Selector ReplySelector
	// Evaluator finishes lines when Settings.EngineFinish is set. Optional.
	Evaluator Evaluator
	Settings  Settings
	Logger    zerolog.Logger
}

// Expander grows a starting line into terminal lines.
type Expander struct {
	stats    StatsProvider
	selector ReplySelector
	eval     Evaluator
	settings Settings
	log      zerolog.Logger
}

// Expansion is what one leaf expansion produces.
type Expansion struct {
	Lines     []OpeningLine
	Terminals []TerminalLine
}

// NewExpander creates an expander.
func NewExpander(cfg ExpanderConfig) *Expander {
	return &Expander{
		stats:    cfg.Stats,
		selector: cfg.Selector,
		eval:     cfg.Evaluator,
		settings: cfg.Settings,
		log:      cfg.Logger.With().Str("component", "expander").Logger(),
	}
}

// Expand replays the starting line and drains the work queue breadth first,
// returning every terminal line found.
func (e *Expander) Expand(ctx context.Context, startingPGN string) ([]TerminalLine, error) {
	root, err := e.RootExpand(ctx, startingPGN)
	if err != nil {
		return nil, err
	}
	e.log.Info().
		Str("pgn", root.PGN()).
		Str("owner", root.Owner.String()).
		Float64("likelihood", root.Likelihood).
		Msg("root replayed")

	queue := []OpeningLine{root}
	var terminals []TerminalLine
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line := queue[0]
		queue = queue[1:]

		exp, err := e.LeafExpand(ctx, line)
		if err != nil {
			return nil, fmt.Errorf("expand %q: %w", line.PGN(), err)
		}
		metrics.LinesExpanded.Inc()
		queue = append(queue, exp.Lines...)
		terminals = append(terminals, exp.Terminals...)
	}
	return terminals, nil
}

// RootExpand replays the starting movetext. Each opponent move multiplies
// the likelihood by the share of games it was played in and is recorded on
// the path.
func (e *Expander) RootExpand(ctx context.Context, startingPGN string) (OpeningLine, error) {
	moves, err := board.ParseMovetext(startingPGN)
	if err != nil {
		return OpeningLine{}, fmt.Errorf("%w: %v", ErrInvalidPgn, err)
	}

	if _, err := board.Replay(moves); err != nil {
		return OpeningLine{}, fmt.Errorf("%w: %v", ErrInvalidPgn, err)
	}

	owner := board.Owner(len(moves))
	line := OpeningLine{Likelihood: 1, Owner: owner}
	pos := board.Start()
	for _, san := range moves {
		mover := pos.SideToMove()
		next, err := pos.Play(san)
		if err != nil {
			return OpeningLine{}, fmt.Errorf("%w: %v", ErrInvalidPgn, err)
		}
		if mover != owner {
			chance, err := e.playRate(ctx, pos, san)
			if err != nil {
				return OpeningLine{}, err
			}
			line.Likelihood *= chance
			line.Path = append(line.Path, Step{Move: next.LastMove(), Probability: chance})
		}
		pos = next
	}
	line.Moves = pos.Moves()
	return line, nil
}

// playRate finds san among the continuations at pos and returns its share.
func (e *Expander) playRate(ctx context.Context, pos *board.Position, san string) (float64, error) {
	stats, err := e.stats.Fetch(ctx, pos.FEN())
	if err != nil {
		return 0, err
	}
	uci, err := pos.UCI(san)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPgn, err)
	}
	bare := strings.TrimRight(san, "+#")
	for _, m := range stats.Moves {
		if (m.UCI != "" && pos.NormalizeUCI(m.UCI) == uci) || strings.TrimRight(m.SAN, "+#") == bare {
			return m.PlayRate, nil
		}
	}
	return 0, fmt.Errorf("%w: %s at %s", ErrMoveNotFound, san, pos.FEN())
}

// LeafExpand expands one queued line: every sufficiently likely and
// sufficiently played opponent continuation gets the owner's reply and goes
// back on the queue, or ends as a terminal line when no reply is found.
func (e *Expander) LeafExpand(ctx context.Context, line OpeningLine) (Expansion, error) {
	var out Expansion

	pos, err := board.Replay(line.Moves)
	if err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidPgn, err)
	}
	stats, err := e.stats.Fetch(ctx, pos.FEN())
	if err != nil {
		return out, err
	}

	valid := e.continuations(line, stats)
	if len(valid) == 0 {
		t, err := e.terminate(ctx, line, pos, stats)
		if err != nil {
			return out, err
		}
		out.Terminals = append(out.Terminals, t)
		return out, nil
	}

	for _, m := range valid {
		oppPos, san, err := playCandidate(pos, m)
		if err != nil {
			return out, err
		}
		working := line.withOpponent(san, m.PlayRate)

		reply, err := e.reply(ctx, oppPos)
		if err != nil {
			return out, err
		}
		if reply == "" {
			oppStats, err := e.stats.Fetch(ctx, oppPos.FEN())
			if err != nil {
				return out, err
			}
			t, err := e.terminate(ctx, working, oppPos, oppStats)
			if err != nil {
				return out, err
			}
			out.Terminals = append(out.Terminals, t)
			continue
		}

		next := working.withReply(reply)
		e.log.Debug().
			Str("against", san).
			Float64("play_rate", m.PlayRate).
			Float64("likelihood", next.Likelihood).
			Str("reply", reply).
			Msg("line extended")
		out.Lines = append(out.Lines, next)
	}
	return out, nil
}

// continuations keeps the opponent moves likely and well played enough to
// follow.
func (e *Expander) continuations(line OpeningLine, stats *explorer.PositionStats) []explorer.MoveStat {
	var valid []explorer.MoveStat
	for _, m := range stats.Moves {
		if m.PlayRate*line.Likelihood >= e.settings.DepthLikelihood && m.Total > e.settings.ContinuationGames {
			valid = append(valid, m)
		}
	}
	return valid
}

// reply returns the owner's move at pos, or "" when the line must end there.
func (e *Expander) reply(ctx context.Context, pos *board.Position) (string, error) {
	if pos.LegalMoves() == 0 {
		return "", nil
	}
	stats, err := e.stats.Fetch(ctx, pos.FEN())
	if err != nil {
		return "", err
	}

	sel, err := e.selector.SelectReply(ctx, pos, stats)
	switch {
	case err == nil:
	case errors.Is(err, engine.ErrEvaluationFailed) && ctx.Err() == nil:
		e.log.Warn().Err(err).Str("fen", pos.FEN()).Msg("reply validation failed, ending line")
		return "", nil
	default:
		return "", err
	}
	if sel.Approved {
		return sel.Move, nil
	}

	if !e.settings.EngineFinish || e.eval == nil {
		e.log.Debug().Str("fen", pos.FEN()).Msg("no reply")
		return "", nil
	}
	mv, err := e.eval.BestMove(ctx, pos, e.settings.EngineDepth)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		e.log.Warn().Err(err).Str("fen", pos.FEN()).Msg("engine finish failed, ending line")
		return "", nil
	}
	e.log.Debug().Str("fen", pos.FEN()).Str("move", mv.SAN).Msg("engine finished line")
	return mv.SAN, nil
}

func (e *Expander) terminate(ctx context.Context, line OpeningLine, pos *board.Position, stats *explorer.PositionStats) (TerminalLine, error) {
	winRate, games, err := e.outcome(ctx, line.Owner, pos, stats)
	if err != nil {
		return TerminalLine{}, err
	}
	t := line.terminal(winRate, games)
	metrics.TerminalLines.Inc()
	e.log.Debug().
		Str("pgn", t.PGN).
		Float64("likelihood", t.Likelihood).
		Float64("win_rate", t.WinRate).
		Int64("games", t.Games).
		Msg("terminal line")
	return t, nil
}
