package transcribe

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatClock(t *testing.T) {
	require.Equal(t, "00:00:00.000", formatClock(0, true))
	require.Equal(t, "00:01:10.000", formatClock(70000, true))
	require.Equal(t, "00:00:00.999", formatClock(999, true))
	require.Equal(t, "01:00:00.000", formatClock(3600000, true))
	require.Equal(t, "01:45:45.045", formatClock(6345045, true))

	require.Equal(t, "00:00:00", formatClock(0, false))
	require.Equal(t, "00:07:30", formatClock(450000, false))
	require.Equal(t, "01:05:30", formatClock(3930000, false))
	require.Equal(t, "00:01:00", formatClock(59500, false))
	require.Equal(t, "00:00:59", formatClock(59499, false))
}

func TestSegments(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var tr MergedTranscript
		require.Empty(t, tr.segments())
	})

	t.Run("timed lines", func(t *testing.T) {
		tr := MergedTranscript{
			Text: lines(
				"Interviewer: [00:05] Hello.",
				"Interviewee: [00:12] Hi there.",
				"Interviewer: [00:40] Let's begin.",
			),
			Duration: 60,
		}
		require.Equal(t, []segment{
			{Speaker: "Interviewer", Text: "Hello.", StartTS: 5000, EndTS: 12000},
			{Speaker: "Interviewee", Text: "Hi there.", StartTS: 12000, EndTS: 40000},
			{Speaker: "Interviewer", Text: "Let's begin.", StartTS: 40000, EndTS: 60000},
		}, tr.segments())
	})

	t.Run("untimed lines folded", func(t *testing.T) {
		tr := MergedTranscript{
			Text: lines(
				"(music)",
				"Interviewer: [00:05] Hello.",
				"Interviewer: still me",
				"",
				"Interviewee: [00:12] Hi.",
			),
		}
		require.Equal(t, []segment{
			{Text: "(music)", StartTS: 0, EndTS: 5000},
			{Speaker: "Interviewer", Text: "Hello. still me", StartTS: 5000, EndTS: 12000},
			{Speaker: "Interviewee", Text: "Hi.", StartTS: 12000, EndTS: 17000},
		}, tr.segments())
	})
}

func TestWebVTT(t *testing.T) {
	tr := MergedTranscript{
		Text: lines(
			"Interviewer: [00:05] Q&A time.",
			"Interviewee: [01:10] <sure>",
		),
		Duration: 90,
	}

	t.Run("with speaker", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, tr.WebVTT(&buf, WebVTTOptions{}))
		require.Equal(t, `WEBVTT

00:00:05.000 --> 00:01:10.000
<v Interviewer>(Interviewer) Q&amp;A time.

00:01:10.000 --> 00:01:30.000
<v Interviewee>(Interviewee) &lt;sure&gt;
`, buf.String())
	})

	t.Run("omit speaker", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, tr.WebVTT(&buf, WebVTTOptions{OmitSpeaker: true}))
		require.Equal(t, `WEBVTT

00:00:05.000 --> 00:01:10.000
Q&amp;A time.

00:01:10.000 --> 00:01:30.000
&lt;sure&gt;
`, buf.String())
	})

	t.Run("line without speaker", func(t *testing.T) {
		tr := MergedTranscript{
			Text:     lines("(music)", "Interviewer: [00:05] Hello."),
			Duration: 10,
		}

		var buf bytes.Buffer
		require.NoError(t, tr.WebVTT(&buf, WebVTTOptions{}))
		require.Equal(t, `WEBVTT

00:00:00.000 --> 00:00:05.000
(music)

00:00:05.000 --> 00:00:10.000
<v Interviewer>(Interviewer) Hello.
`, buf.String())
	})

	t.Run("write failure", func(t *testing.T) {
		err := tr.WebVTT(failingWriter{}, WebVTTOptions{})
		require.ErrorIs(t, err, errWrite)
		require.ErrorContains(t, err, "failed to write webvtt")
	})
}

var errWrite = errors.New("disk full")

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errWrite
}

func TestPlainText(t *testing.T) {
	tr := MergedTranscript{
		Text: lines(
			"Interviewer: [00:00] Welcome.",
			"Interviewer: [00:03] Shall we start?",
			"Interviewee: [00:06] Yes.",
			"Interviewee: [00:30] Much later.",
		),
		Duration: 40,
	}

	t.Run("no compaction", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, tr.PlainText(&buf, TextOptions{}))
		require.Equal(t, `00:00:00 -> 00:00:03
Interviewer
Welcome.

00:00:03 -> 00:00:06
Interviewer
Shall we start?

00:00:06 -> 00:00:30
Interviewee
Yes.

00:00:30 -> 00:00:40
Interviewee
Much later.
`, buf.String())
	})

	t.Run("compaction", func(t *testing.T) {
		var opts TextOptions
		opts.SetDefaults()

		var buf bytes.Buffer
		require.NoError(t, tr.PlainText(&buf, opts))
		require.Equal(t, `00:00:00 -> 00:00:06
Interviewer
Welcome. Shall we start?

00:00:06 -> 00:00:30
Interviewee
Yes.

00:00:30 -> 00:00:40
Interviewee
Much later.
`, buf.String())
	})
}

func TestCompactSegments(t *testing.T) {
	opts := TextCompactOptions{SilenceThresholdMs: 2000, MaxSegmentDurationMs: 10000}

	tcs := []struct {
		name     string
		input    []segment
		expected []segment
	}{
		{
			name: "single",
			input: []segment{
				{Speaker: "A", Text: "one", StartTS: 0, EndTS: 1000},
			},
			expected: []segment{
				{Speaker: "A", Text: "one", StartTS: 0, EndTS: 1000},
			},
		},
		{
			name: "speaker change",
			input: []segment{
				{Speaker: "A", Text: "one", StartTS: 0, EndTS: 1000},
				{Speaker: "B", Text: "two", StartTS: 1000, EndTS: 2000},
			},
			expected: []segment{
				{Speaker: "A", Text: "one", StartTS: 0, EndTS: 1000},
				{Speaker: "B", Text: "two", StartTS: 1000, EndTS: 2000},
			},
		},
		{
			name: "long pause",
			input: []segment{
				{Speaker: "A", Text: "one", StartTS: 0, EndTS: 1000},
				{Speaker: "A", Text: "two", StartTS: 3000, EndTS: 4000},
			},
			expected: []segment{
				{Speaker: "A", Text: "one", StartTS: 0, EndTS: 1000},
				{Speaker: "A", Text: "two", StartTS: 3000, EndTS: 4000},
			},
		},
		{
			name: "max duration",
			input: []segment{
				{Speaker: "A", Text: "one", StartTS: 0, EndTS: 5000},
				{Speaker: "A", Text: "two", StartTS: 5000, EndTS: 10000},
				{Speaker: "A", Text: "three", StartTS: 10000, EndTS: 12000},
			},
			expected: []segment{
				{Speaker: "A", Text: "one two", StartTS: 0, EndTS: 10000},
				{Speaker: "A", Text: "three", StartTS: 10000, EndTS: 12000},
			},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, compactSegments(tc.input, opts))
		})
	}
}
