package transcribe

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

var (
	ErrEmptyInput           = errors.New("no chunk transcripts to merge")
	ErrIncompleteTranscript = errors.New("incomplete transcript")
)

// IncompleteError reports a merged transcript whose last timestamp falls short
// of the audio duration. Observed is -1 if no timestamp was found at all.
type IncompleteError struct {
	Expected  int
	Observed  int
	Shortfall int
}

func (e *IncompleteError) Error() string {
	if e.Observed < 0 {
		return fmt.Sprintf("%s: no timestamps found, expected coverage up to %ds", ErrIncompleteTranscript, e.Expected)
	}
	return fmt.Sprintf("%s: last timestamp %ds, expected %ds (missing %ds)",
		ErrIncompleteTranscript, e.Observed, e.Expected, e.Shortfall)
}

func (e *IncompleteError) Unwrap() error {
	return ErrIncompleteTranscript
}

type MergeOptions struct {
	// Lines of a chunk at or before the previous chunk's end minus
	// Tolerance seconds are considered duplicates of the overlap.
	Tolerance int
	// The merged transcript must reach the expected duration minus
	// CompletenessTolerance seconds.
	CompletenessTolerance int
}

func (o *MergeOptions) SetDefaults() {
	o.Tolerance = 2
	o.CompletenessTolerance = 30
}

func (o *MergeOptions) IsValid() error {
	if o.Tolerance < 0 {
		return fmt.Errorf("Tolerance should not be negative")
	}
	if o.CompletenessTolerance < 0 {
		return fmt.Errorf("CompletenessTolerance should not be negative")
	}
	return nil
}

func DefaultMergeOptions() MergeOptions {
	var opts MergeOptions
	opts.SetDefaults()
	return opts
}

// Merge stitches chunk transcripts into a single transcript covering
// expectedTotal seconds. Chunks can be passed in any order.
func Merge(chunks []ChunkTranscript, expectedTotal int, opts MergeOptions) (MergedTranscript, error) {
	if len(chunks) == 0 {
		return MergedTranscript{}, ErrEmptyInput
	}
	if err := opts.IsValid(); err != nil {
		return MergedTranscript{}, fmt.Errorf("invalid merge options: %w", err)
	}

	sorted := make([]ChunkTranscript, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Index < sorted[j].Index
	})

	lines := dedupOverlap(sorted, opts.Tolerance)
	lines = enforceMonotonic(lines)

	var lastTS = -1
	for _, l := range lines {
		if l.HasTimestamp() {
			lastTS = l.Timestamp
		}
	}

	if lastTS < 0 || lastTS < expectedTotal-opts.CompletenessTolerance {
		shortfall := expectedTotal
		if lastTS >= 0 {
			shortfall = expectedTotal - lastTS
		}
		return MergedTranscript{}, &IncompleteError{
			Expected:  expectedTotal,
			Observed:  lastTS,
			Shortfall: shortfall,
		}
	}

	raws := make([]string, 0, len(lines))
	for _, l := range lines {
		raws = append(raws, l.Raw)
	}

	slog.Debug("merge done",
		slog.Int("chunks", len(sorted)),
		slog.Int("lines", len(lines)),
		slog.Int("lastTS", lastTS),
		slog.Int("expected", expectedTotal))

	return MergedTranscript{
		Text:     strings.Join(raws, "\n"),
		Duration: expectedTotal,
	}, nil
}

func dedupOverlap(chunks []ChunkTranscript, tolerance int) []Line {
	var out []Line
	for i, c := range chunks {
		if i == 0 {
			out = append(out, ParseLines(c.Text)...)
			continue
		}

		cutoff := chunks[i-1].End - tolerance
		var dropped int
		for _, l := range ParseLines(c.Text) {
			if !l.HasTimestamp() || l.Timestamp > cutoff {
				out = append(out, l)
			} else {
				dropped++
			}
		}
		if dropped > 0 {
			slog.Debug("dropped overlapping lines",
				slog.Int("chunk", c.Index),
				slog.Int("cutoff", cutoff),
				slog.Int("count", dropped))
		}
	}
	return out
}

func enforceMonotonic(lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	last := -1
	for _, l := range lines {
		if !l.HasTimestamp() {
			out = append(out, l)
			continue
		}
		if l.Timestamp >= last {
			out = append(out, l)
			last = l.Timestamp
			continue
		}
		slog.Debug("dropped out of order line",
			slog.Int("ts", l.Timestamp),
			slog.Int("last", last))
	}
	return out
}
