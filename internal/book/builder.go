package book

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/freeeve/repertoire/internal/metrics"
	"github.com/freeeve/repertoire/internal/repertoire"
)

// Expander turns a starting line into raw terminal lines.
type Expander interface {
	Expand(ctx context.Context, startingPGN string) ([]repertoire.TerminalLine, error)
}

// Chapter is the finished repertoire for one book.
type Chapter struct {
	Number int
	Book   Book
	Lines  []repertoire.TerminalLine
}

// Sink receives finished chapters.
type Sink interface {
	WriteChapter(ctx context.Context, ch Chapter) error
}

// Config wires a Builder.
type Config struct {
	Expander    Expander
	Sink        Sink
	LongToShort bool
	Logger      zerolog.Logger
}

// Outcome records how one book went.
type Outcome struct {
	Number int
	Book   Book
	Lines  int
	Err    error
}

// Report summarizes a run.
type Report struct {
	RunID    string
	Outcomes []Outcome
}

// Failed returns the number of books that ended in an error.
func (r Report) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}

// Builder builds one chapter per book, in order.
type Builder struct {
	expander    Expander
	sink        Sink
	longToShort bool
	log         zerolog.Logger
}

// NewBuilder creates a builder.
func NewBuilder(cfg Config) *Builder {
	return &Builder{
		expander:    cfg.Expander,
		sink:        cfg.Sink,
		longToShort: cfg.LongToShort,
		log:         cfg.Logger.With().Str("component", "builder").Logger(),
	}
}

// Run expands, finalizes and writes every book. A failing book is recorded
// in the report and the run moves on; cancellation stops the run before the
// next book and is returned.
func (b *Builder) Run(ctx context.Context, books []Book) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	log := b.log.With().Str("run_id", report.RunID).Logger()
	log.Info().Int("books", len(books)).Msg("build starting")
	start := time.Now()

	for i, bk := range books {
		if err := ctx.Err(); err != nil {
			log.Warn().Int("done", i).Msg("build interrupted")
			return report, err
		}
		out := b.build(ctx, log, i+1, bk)
		if out.Err != nil && ctx.Err() != nil {
			return report, ctx.Err()
		}
		report.Outcomes = append(report.Outcomes, out)
	}

	log.Info().
		Int("books", len(books)).
		Int("failed", report.Failed()).
		Dur("elapsed", time.Since(start)).
		Msg("build complete")
	return report, nil
}

func (b *Builder) build(ctx context.Context, runLog zerolog.Logger, number int, bk Book) Outcome {
	out := Outcome{Number: number, Book: bk}
	log := runLog.With().Str("book", bk.Name).Int("chapter", number).Logger()
	log.Info().Str("pgn", bk.PGN).Msg("expanding")
	start := time.Now()

	raw, err := b.expander.Expand(ctx, bk.PGN)
	if err != nil {
		out.Err = err
		metrics.Books.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("book failed")
		return out
	}

	lines := repertoire.Finalize(raw, b.longToShort)
	out.Lines = len(lines)
	if b.sink != nil {
		if err := b.sink.WriteChapter(ctx, Chapter{Number: number, Book: bk, Lines: lines}); err != nil {
			out.Err = err
			metrics.Books.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("write chapter failed")
			return out
		}
	}

	metrics.Books.WithLabelValues("ok").Inc()
	log.Info().
		Int("raw", len(raw)).
		Int("lines", len(lines)).
		Dur("elapsed", time.Since(start)).
		Msg("book complete")
	return out
}
