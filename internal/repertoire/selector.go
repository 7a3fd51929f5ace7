package repertoire

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/freeeve/repertoire/internal/board"
	"github.com/freeeve/repertoire/internal/engine"
	"github.com/freeeve/repertoire/internal/explorer"
	"github.com/freeeve/repertoire/internal/metrics"
	"github.com/freeeve/repertoire/internal/potency"
)

// replyCheckMargin is how far above the ignore-loss limit a candidate must
// score to skip the reply check.
const replyCheckMargin = 100

// Selection is the outcome of choosing a reply. A zero Selection means no
// candidate was approved.
type Selection struct {
	Approved bool
	Move     string
	UCI      string
	Potency  potency.Score
	Position *board.Position
	// Verdict is set when the engine took part in the decision.
	Verdict *Verdict
}

// Verdict records the engine's judgement of one candidate.
type Verdict struct {
	Approved bool
	Move     string
	Score    engine.Score
	Reason   string
}

// Selector picks the owner's reply from explorer statistics, optionally
// confirmed by an engine.
type Selector struct {
	settings Settings
	eval     Evaluator
	log      zerolog.Logger
}

// NewSelector creates a selector. eval may be nil when the engine is off.
func NewSelector(settings Settings, eval Evaluator, logger zerolog.Logger) *Selector {
	if eval == nil {
		settings.Engine = false
	}
	return &Selector{
		settings: settings,
		eval:     eval,
		log:      logger.With().Str("component", "selector").Logger(),
	}
}

// Candidate is a reply with its potency for the side to move.
type Candidate struct {
	Stat  explorer.MoveStat
	Score potency.Score
}

// baseline is the engine's own choice at the position, computed at most once
// per SelectReply call.
type baseline struct {
	move  engine.Move
	score engine.Score
}

// Candidates scores every reply for the side to move, in explorer order.
func (s *Selector) Candidates(pos *board.Position, stats *explorer.PositionStats) ([]Candidate, error) {
	side := pos.SideToMove()
	out := make([]Candidate, 0, len(stats.Moves))
	for _, m := range stats.Moves {
		rates, err := m.Rates(side, s.settings.DrawsHalf)
		if errors.Is(err, potency.ErrNoData) {
			out = append(out, Candidate{Stat: m})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("rates for %s: %w", m.SAN, err)
		}
		score, err := potency.Compute(rates.Win, rates.Total, m.PlayRate, s.settings.MinGames, s.settings.MinPlayRate, s.settings.Alpha)
		if err != nil {
			return nil, fmt.Errorf("potency for %s: %w", m.SAN, err)
		}
		out = append(out, Candidate{Stat: m, Score: score})
	}
	return out, nil
}

// SelectReply returns the approved reply or a zero Selection. An error
// wrapping engine.ErrEvaluationFailed means the engine could not produce its
// own baseline, so no candidate could be judged.
func (s *Selector) SelectReply(ctx context.Context, pos *board.Position, stats *explorer.PositionStats) (Selection, error) {
	cands, err := s.Candidates(pos, stats)
	if err != nil {
		return Selection{}, err
	}

	best := argmaxLower(cands)
	if best < 0 || !cands[best].Score.Usable() {
		metrics.Selections.WithLabelValues("no_candidate").Inc()
		s.log.Debug().Str("fen", pos.FEN()).Msg("no statistically defensible reply")
		return Selection{}, nil
	}

	if !s.settings.Engine {
		c := cands[best]
		next, san, err := playCandidate(pos, c.Stat)
		if err != nil {
			return Selection{}, err
		}
		metrics.Selections.WithLabelValues("approved").Inc()
		return Selection{Approved: true, Move: san, UCI: pos.NormalizeUCI(c.Stat.UCI), Potency: c.Score, Position: next}, nil
	}

	return s.validate(ctx, pos, cands)
}

func (s *Selector) validate(ctx context.Context, pos *board.Position, cands []Candidate) (Selection, error) {
	owner := pos.SideToMove()
	depth := s.settings.EngineDepth
	var base *baseline

	for {
		idx := argmaxLower(cands)
		if idx < 0 || !cands[idx].Score.Usable() {
			metrics.Selections.WithLabelValues("no_candidate").Inc()
			s.log.Debug().Str("fen", pos.FEN()).Msg("all candidates rejected")
			return Selection{}, nil
		}
		c := cands[idx]

		if base == nil {
			b, err := s.baseline(ctx, pos, depth)
			if err != nil {
				metrics.Selections.WithLabelValues("failed").Inc()
				return Selection{}, err
			}
			base = b
		}

		next, san, err := playCandidate(pos, c.Stat)
		if err != nil {
			s.log.Warn().Err(err).Str("move", c.Stat.SAN).Msg("candidate not playable")
			cands[idx].Score = c.Score.Zeroed()
			continue
		}

		if pos.NormalizeUCI(c.Stat.UCI) == base.move.UCI || san == base.move.SAN {
			if base.score.MatesFor(owner) {
				c.Score = potency.Forced(c.Score.Games)
			}
			return s.approve(san, pos, c, next, Verdict{Approved: true, Move: san, Score: base.score, Reason: "engine_move"}), nil
		}

		after, err := s.eval.Evaluate(ctx, next, depth)
		if err != nil {
			if ctx.Err() != nil {
				return Selection{}, ctx.Err()
			}
			s.log.Warn().Err(err).Str("move", san).Msg("candidate evaluation failed, dropping")
			cands[idx].Score = c.Score.Zeroed()
			continue
		}

		verdict := s.judge(ctx, owner, next, after, base.score)
		verdict.Move = san
		s.log.Debug().
			Str("move", san).
			Stringer("score", after).
			Stringer("baseline", base.score).
			Str("engine_move", base.move.SAN).
			Bool("approved", verdict.Approved).
			Str("reason", verdict.Reason).
			Msg("engine verdict")

		if !verdict.Approved {
			cands[idx].Score = c.Score.Zeroed()
			continue
		}
		if verdict.Score.MatesFor(owner) {
			c.Score = potency.Forced(c.Score.Games)
		}
		return s.approve(san, pos, c, next, verdict), nil
	}
}

// judge applies the soundness and loss limits to a candidate scored after.
func (s *Selector) judge(ctx context.Context, owner board.Color, next *board.Position, after, base engine.Score) Verdict {
	if after.MatesFor(owner) {
		return Verdict{Approved: true, Score: after, Reason: "mates"}
	}
	if base.MatesFor(owner) {
		return Verdict{Score: after, Reason: "missed_mate"}
	}

	afterCP := after.Value(owner)
	moveLoss := afterCP - base.Value(owner)
	approved := (afterCP > s.settings.SoundnessLimit && moveLoss > s.settings.MoveLossLimit) ||
		afterCP > s.settings.IgnoreLossLimit ||
		moveLoss >= 0
	if !approved {
		return Verdict{Score: after, Reason: "unsound"}
	}

	if s.settings.ReplyCheck && moveLoss < 0 && afterCP <= s.settings.IgnoreLossLimit+replyCheckMargin {
		return s.replyCheck(ctx, owner, next, after, base)
	}
	return Verdict{Approved: true, Score: after, Reason: "within_limits"}
}

// replyCheck lets the engine answer the candidate and re-applies the limits
// to the score after that answer.
func (s *Selector) replyCheck(ctx context.Context, owner board.Color, next *board.Position, after, base engine.Score) Verdict {
	if next.LegalMoves() == 0 {
		return Verdict{Approved: true, Score: after, Reason: "within_limits"}
	}
	reply, err := s.eval.BestMove(ctx, next, s.settings.EngineDepth)
	if err != nil {
		s.log.Warn().Err(err).Msg("reply check failed")
		return Verdict{Score: after, Reason: "reply_check_failed"}
	}
	replied, err := s.eval.Evaluate(ctx, reply.Position, s.settings.EngineDepth)
	if err != nil {
		s.log.Warn().Err(err).Msg("reply check failed")
		return Verdict{Score: after, Reason: "reply_check_failed"}
	}
	if replied.MatesFor(owner) {
		return Verdict{Approved: true, Score: replied, Reason: "mates"}
	}

	cp := replied.Value(owner)
	if cp > s.settings.SoundnessLimit && (cp > s.settings.IgnoreLossLimit || cp-base.Value(owner) > s.settings.MoveLossLimit) {
		return Verdict{Approved: true, Score: replied, Reason: "reply_checked"}
	}
	return Verdict{Score: replied, Reason: "reply_unsound"}
}

func (s *Selector) baseline(ctx context.Context, pos *board.Position, depth int) (*baseline, error) {
	mv, err := s.eval.BestMove(ctx, pos, depth)
	if err != nil {
		return nil, evalError(ctx, "engine best move", err)
	}
	score, err := s.eval.Evaluate(ctx, mv.Position, depth)
	if err != nil {
		return nil, evalError(ctx, "engine baseline", err)
	}
	mv.UCI = pos.NormalizeUCI(mv.UCI)
	return &baseline{move: mv, score: score}, nil
}

func (s *Selector) approve(san string, pos *board.Position, c Candidate, next *board.Position, v Verdict) Selection {
	metrics.Selections.WithLabelValues("approved").Inc()
	return Selection{
		Approved: true,
		Move:     san,
		UCI:      pos.NormalizeUCI(c.Stat.UCI),
		Potency:  c.Score,
		Position: next,
		Verdict:  &v,
	}
}

// argmaxLower returns the index of the highest lower bound; the first wins
// ties. It returns -1 for no candidates.
func argmaxLower(cands []Candidate) int {
	best := -1
	for i, c := range cands {
		if best < 0 || c.Score.Lower > cands[best].Score.Lower {
			best = i
		}
	}
	return best
}

// playCandidate plays a reply by UCI, falling back to its SAN.
func playCandidate(pos *board.Position, m explorer.MoveStat) (*board.Position, string, error) {
	if m.UCI != "" {
		if next, san, err := pos.PlayUCI(m.UCI); err == nil {
			return next, san, nil
		}
	}
	next, err := pos.Play(m.SAN)
	if err != nil {
		return nil, "", fmt.Errorf("%w: reply %s: %v", explorer.ErrDataUnavailable, m.SAN, err)
	}
	return next, next.LastMove(), nil
}

// evalError keeps cancellation distinct from engine failure.
func evalError(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if errors.Is(err, engine.ErrEvaluationFailed) {
		return fmt.Errorf("%s: %w", what, err)
	}
	return fmt.Errorf("%w: %s: %v", engine.ErrEvaluationFailed, what, err)
}
