package transcribe

import (
	"fmt"
	"html"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

const envWebVTTOmitSpeaker = "WEBVTT_OMIT_SPEAKER"

// WebVTTOptions tunes the subtitle rendition of a transcript.
type WebVTTOptions struct {
	// OmitSpeaker drops the voice tag and the speaker label from cues.
	OmitSpeaker bool
}

func (o *WebVTTOptions) IsValid() error { return nil }

func (o *WebVTTOptions) IsEmpty() bool {
	return o == nil || !o.OmitSpeaker
}

func (o *WebVTTOptions) SetDefaults() {
	*o = WebVTTOptions{}
}

func (o *WebVTTOptions) FromEnv() {
	if v, err := strconv.ParseBool(os.Getenv(envWebVTTOmitSpeaker)); err == nil {
		o.OmitSpeaker = v
	}
}

func (o *WebVTTOptions) ToEnv() []string {
	return []string{envWebVTTOmitSpeaker + "=" + strconv.FormatBool(o.OmitSpeaker)}
}

func (o *WebVTTOptions) ToMap() map[string]any {
	return map[string]any{"webvtt_omit_speaker": o.OmitSpeaker}
}

// formatClock renders a millisecond offset as HH:MM:SS.mmm, or as HH:MM:SS
// rounded to the closest second.
func formatClock(offsetMs int64, withMs bool) string {
	d := time.Duration(offsetMs) * time.Millisecond
	if !withMs {
		d = d.Round(time.Second)
	}

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second

	if !withMs {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d:%02d.%03d", h, m, s, d/time.Millisecond)
}

type cue struct {
	start, end int64
	voice      string
	payload    string
}

func (c cue) writeTo(sb *strings.Builder) {
	sb.WriteByte('\n')
	sb.WriteString(formatClock(c.start, true))
	sb.WriteString(" --> ")
	sb.WriteString(formatClock(c.end, true))
	sb.WriteByte('\n')
	if c.voice != "" {
		fmt.Fprintf(sb, "<v %s>(%s) ", c.voice, c.voice)
	}
	sb.WriteString(c.payload)
	sb.WriteByte('\n')
}

// WebVTT writes the transcript as a WebVTT document with one cue per line.
func (t MergedTranscript) WebVTT(w io.Writer, opts WebVTTOptions) error {
	var sb strings.Builder
	sb.WriteString("WEBVTT\n")

	for _, seg := range t.segments() {
		seg.sanitize(html.EscapeString)
		c := cue{start: seg.StartTS, end: seg.EndTS, payload: seg.Text}
		if !opts.OmitSpeaker {
			c.voice = seg.Speaker
		}
		c.writeTo(&sb)
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return fmt.Errorf("failed to write webvtt: %w", err)
	}

	return nil
}
