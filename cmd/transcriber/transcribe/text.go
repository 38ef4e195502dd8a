package transcribe

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
)

type TextCompactOptions struct {
	SilenceThresholdMs   int
	MaxSegmentDurationMs int
}

func (o *TextCompactOptions) SetDefaults() {
	o.SilenceThresholdMs = 2000
	o.MaxSegmentDurationMs = 10000
}

func (o *TextCompactOptions) IsEmpty() bool {
	return o == nil || *o == TextCompactOptions{}
}

type TextOptions struct {
	CompactOptions TextCompactOptions
}

func (o *TextOptions) SetDefaults() {
	o.CompactOptions.SetDefaults()
}

func (o *TextOptions) IsValid() error {
	if o.CompactOptions.SilenceThresholdMs <= 0 {
		return fmt.Errorf("SilenceThresholdMs should be a positive number")
	}

	if o.CompactOptions.MaxSegmentDurationMs <= 0 {
		return fmt.Errorf("MaxSegmentDurationMs should be a positive number")
	}

	return nil
}

func (o *TextOptions) IsEmpty() bool {
	return o.CompactOptions.IsEmpty()
}

func (o *TextOptions) ToEnv() []string {
	return []string{
		fmt.Sprintf("TEXT_COMPACT_SILENCE_THRESHOLD_MS=%d", o.CompactOptions.SilenceThresholdMs),
		fmt.Sprintf("TEXT_COMPACT_MAX_SEGMENT_DURATION_MS=%d", o.CompactOptions.MaxSegmentDurationMs),
	}
}

func (o *TextOptions) FromEnv() {
	o.CompactOptions.SilenceThresholdMs, _ = strconv.Atoi(os.Getenv("TEXT_COMPACT_SILENCE_THRESHOLD_MS"))
	o.CompactOptions.MaxSegmentDurationMs, _ = strconv.Atoi(os.Getenv("TEXT_COMPACT_MAX_SEGMENT_DURATION_MS"))
}

func (o *TextOptions) ToMap() map[string]any {
	return map[string]any{
		"text_compact_silence_threshold_ms":    o.CompactOptions.SilenceThresholdMs,
		"text_compact_max_segment_duration_ms": o.CompactOptions.MaxSegmentDurationMs,
	}
}

func compactSegments(segments []segment, opts TextCompactOptions) []segment {
	if len(segments) < 2 {
		return segments
	}

	out := []segment{segments[0]}

	for i := 1; i < len(segments); i++ {
		curr := segments[i]
		last := &out[len(out)-1]

		// Consecutive lines of the same speaker are joined as long as the
		// pause between them and the running length stay below the limits.
		sameSpeaker := curr.Speaker == last.Speaker
		pause := int(curr.StartTS - segments[i-1].EndTS)
		running := int(curr.StartTS - last.StartTS)
		if sameSpeaker && pause < opts.SilenceThresholdMs && running < opts.MaxSegmentDurationMs {
			last.Text += " " + curr.Text
			last.EndTS = curr.EndTS
			continue
		}
		out = append(out, curr)
	}

	slog.Debug("compacted segments", slog.Int("in", len(segments)), slog.Int("out", len(out)))

	return out
}

// PlainText renders the transcript as blocks of time range, speaker and text.
func (t MergedTranscript) PlainText(w io.Writer, opts TextOptions) error {
	segments := t.segments()

	if !opts.CompactOptions.IsEmpty() {
		segments = compactSegments(segments, opts.CompactOptions)
	}

	for i, s := range segments {
		s.sanitize()

		nl := "\n"
		if i == 0 {
			nl = ""
		}
		_, err := fmt.Fprintf(w, "%s%v -> %v\n", nl, formatClock(s.StartTS, false), formatClock(s.EndTS, false))
		if err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
		if s.Speaker == "" {
			_, err = fmt.Fprintf(w, "%s\n", s.Text)
		} else {
			_, err = fmt.Fprintf(w, "%s\n%s\n", s.Speaker, s.Text)
		}
		if err != nil {
			return fmt.Errorf("failed to write: %w", err)
		}
	}

	return nil
}
