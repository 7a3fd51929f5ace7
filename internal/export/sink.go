package export

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"

	"github.com/freeeve/repertoire/internal/book"
)

// DirSink writes one PGN file per chapter into a directory.
type DirSink struct {
	dir     string
	printer *Printer
	enc     *zstd.Encoder
	log     zerolog.Logger
}

// NewDirSink creates dir if needed. With compress set, chapters are written
// as .pgn.zst.
func NewDirSink(dir string, compress bool, printer *Printer, logger zerolog.Logger) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	s := &DirSink{
		dir:     dir,
		printer: printer,
		log:     logger.With().Str("component", "export").Logger(),
	}
	if compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
		if err != nil {
			return nil, fmt.Errorf("zstd encoder: %w", err)
		}
		s.enc = enc
	}
	return s, nil
}

// Close releases the encoder.
func (s *DirSink) Close() error {
	if s.enc != nil {
		return s.enc.Close()
	}
	return nil
}

// Path returns where ch is written.
func (s *DirSink) Path(ch book.Chapter) string {
	return filepath.Join(s.dir, FileName(ch, s.enc != nil))
}

// WriteChapter renders ch and replaces its file.
func (s *DirSink) WriteChapter(ctx context.Context, ch book.Chapter) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := s.printer.Chapter(&buf, ch); err != nil {
		return fmt.Errorf("render chapter %d: %w", ch.Number, err)
	}
	data := buf.Bytes()
	if s.enc != nil {
		data = s.enc.EncodeAll(data, nil)
	}

	path := s.Path(ch)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	s.log.Info().Str("path", path).Int("lines", len(ch.Lines)).Msg("chapter written")
	return nil
}

// FileName is Chapter_<n>_<name>.pgn, with .zst appended when compressed.
// Characters outside letters, digits, '-' and '_' become '_'.
func FileName(ch book.Chapter, compressed bool) string {
	name := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, ch.Book.Name)
	out := fmt.Sprintf("Chapter_%d_%s.pgn", ch.Number, name)
	if compressed {
		out += ".zst"
	}
	return out
}
