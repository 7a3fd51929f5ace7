package repertoire

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Finalize removes duplicate and subsumed lines and orders the rest by their
// opponent-move probabilities, ascending, or descending with longToShort.
// Finalize(Finalize(x)) == Finalize(x).
func Finalize(lines []TerminalLine, longToShort bool) []TerminalLine {
	unique := dedupe(lines)

	kept := make([]TerminalLine, 0, len(unique))
	for i, l := range unique {
		if !subsumed(l, unique, i) {
			kept = append(kept, l)
		}
	}

	slices.SortFunc(kept, compareLines)
	if longToShort {
		slices.Reverse(kept)
	}
	return kept
}

func dedupe(lines []TerminalLine) []TerminalLine {
	seen := make(map[string]struct{}, len(lines))
	out := make([]TerminalLine, 0, len(lines))
	for _, l := range lines {
		k := lineKey(l)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, l)
	}
	return out
}

func lineKey(l TerminalLine) string {
	var sb strings.Builder
	sb.WriteString(l.PGN)
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(l.Likelihood, 'g', -1, 64))
	for _, s := range l.Path {
		sb.WriteByte('|')
		sb.WriteString(s.Move)
		sb.WriteByte('=')
		sb.WriteString(strconv.FormatFloat(s.Probability, 'g', -1, 64))
	}
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatFloat(l.WinRate, 'g', -1, 64))
	sb.WriteByte('|')
	sb.WriteString(strconv.FormatInt(l.Games, 10))
	return sb.String()
}

// subsumed reports whether another line continues l's movetext.
func subsumed(l TerminalLine, lines []TerminalLine, self int) bool {
	prefix := l.PGN + " "
	for j, other := range lines {
		if j != self && strings.HasPrefix(other.PGN, prefix) {
			return true
		}
	}
	return false
}

// compareLines orders by path probabilities, then falls back to the other
// fields so the order is total.
func compareLines(a, b TerminalLine) int {
	n := min(len(a.Path), len(b.Path))
	for i := 0; i < n; i++ {
		if c := cmp.Compare(a.Path[i].Probability, b.Path[i].Probability); c != 0 {
			return c
		}
	}
	if c := cmp.Compare(len(a.Path), len(b.Path)); c != 0 {
		return c
	}
	if c := cmp.Compare(len(a.Moves), len(b.Moves)); c != 0 {
		return c
	}
	if c := strings.Compare(a.PGN, b.PGN); c != 0 {
		return c
	}
	if c := cmp.Compare(a.WinRate, b.WinRate); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Games, b.Games); c != 0 {
		return c
	}
	return cmp.Compare(a.Likelihood, b.Likelihood)
}
