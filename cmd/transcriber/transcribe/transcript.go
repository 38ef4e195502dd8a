package transcribe

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
)

// tsRE matches an absolute [MM:SS] tag. Minutes take up to six digits.
var tsRE = regexp.MustCompile(`\[(\d{1,6}):([0-5]\d)\]`)

// Line is a single transcript line in the "<Role>: [MM:SS] <content>" format.
// Timestamp is -1 when the line carries no parseable tag.
type Line struct {
	Role      string
	Timestamp int
	Content   string
	Raw       string
}

func (l Line) HasTimestamp() bool {
	return l.Timestamp >= 0
}

func (l Line) String() string {
	if l.Raw != "" {
		return l.Raw
	}
	return FormatLine(l.Role, l.Timestamp, l.Content)
}

// FormatLine renders a line in its wire format.
func FormatLine(role string, ts int, content string) string {
	var sb strings.Builder
	if role != "" {
		sb.WriteString(role)
		sb.WriteString(": ")
	}
	if ts >= 0 {
		fmt.Fprintf(&sb, "[%s] ", chunk.FormatTS(ts))
	}
	sb.WriteString(content)
	return strings.TrimRight(sb.String(), " ")
}

// ParseTimestamp returns the seconds of the first [MM:SS] tag found in s.
func ParseTimestamp(s string) (int, bool) {
	m := tsRE.FindStringSubmatch(s)
	if m == nil {
		return -1, false
	}
	mm, err := strconv.Atoi(m[1])
	if err != nil {
		return -1, false
	}
	ss, _ := strconv.Atoi(m[2])
	return mm*60 + ss, true
}

// ParseLine splits a raw line into its parts. The original text is kept in
// Raw so that lines are re-emitted exactly as received.
func ParseLine(raw string) Line {
	l := Line{Timestamp: -1, Raw: raw}
	rest := strings.TrimSpace(raw)

	loc := tsRE.FindStringSubmatchIndex(rest)
	if loc != nil {
		l.Timestamp, _ = ParseTimestamp(rest[loc[0]:loc[1]])
		prefix := strings.TrimSpace(rest[:loc[0]])
		if role, ok := strings.CutSuffix(prefix, ":"); ok && !strings.ContainsAny(role, ":[]") {
			l.Role = strings.TrimSpace(role)
		}
		l.Content = strings.TrimSpace(rest[loc[1]:])
		return l
	}

	if role, content, ok := strings.Cut(rest, ":"); ok && role != "" && !strings.ContainsAny(role, " \t[]") {
		l.Role = role
		l.Content = strings.TrimSpace(content)
		return l
	}

	l.Content = rest
	return l
}

// SplitLines breaks text into raw lines the way the merger consumes them.
func SplitLines(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

// ParseLines parses every line of text.
func ParseLines(text string) []Line {
	raws := SplitLines(text)
	lines := make([]Line, 0, len(raws))
	for _, raw := range raws {
		lines = append(lines, ParseLine(raw))
	}
	return lines
}

// LastTimestamp returns the last parseable timestamp in text.
func LastTimestamp(text string) (int, bool) {
	last, found := -1, false
	for _, raw := range SplitLines(text) {
		if ts, ok := ParseTimestamp(raw); ok {
			last, found = ts, true
		}
	}
	return last, found
}

// ChunkTranscript is the accepted text of a single chunk. Timestamps in Text
// are absolute, i.e. relative to the start of the whole recording.
type ChunkTranscript struct {
	Index int
	Start int
	End   int
	Text  string
}

func (c ChunkTranscript) Window() chunk.Window {
	return chunk.Window{Index: c.Index, Start: c.Start, End: c.End}
}

// MergedTranscript is the final transcript covering the whole recording.
type MergedTranscript struct {
	Text string
	// Duration of the source audio in seconds.
	Duration int
}

func (t MergedTranscript) Lines() []Line {
	return ParseLines(t.Text)
}
