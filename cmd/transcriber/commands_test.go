package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/job"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/transcribe"
)

func executeCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()

	t.Setenv("ENV_FILE", filepath.Join(t.TempDir(), "missing.env"))

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.Execute()
	return out.String(), err
}

func TestPlanCmd(t *testing.T) {
	tcs := []struct {
		name   string
		args   []string
		output string
		err    string
	}{
		{
			name: "defaults",
			args: []string{"plan", "--duration", "1200"},
			output: "chunk 1 (00:00-08:00)\t480s\n" +
				"chunk 2 (07:30-15:30)\t480s\n" +
				"chunk 3 (15:00-20:00)\t300s\n",
		},
		{
			name:   "short recording",
			args:   []string{"plan", "--duration", "100"},
			output: "chunk 1 (00:00-01:40)\t100s\n",
		},
		{
			name: "custom chunking",
			args: []string{"plan", "--duration", "250", "--chunk-duration", "100", "--chunk-overlap", "10"},
			output: "chunk 1 (00:00-01:40)\t100s\n" +
				"chunk 2 (01:30-03:10)\t100s\n" +
				"chunk 3 (03:00-04:10)\t70s\n",
		},
		{
			name: "no overlap",
			args: []string{"plan", "--duration", "25", "--chunk-duration", "10", "--chunk-overlap", "0"},
			output: "chunk 1 (00:00-00:10)\t10s\n" +
				"chunk 2 (00:10-00:20)\t10s\n" +
				"chunk 3 (00:20-00:25)\t5s\n",
		},
		{
			name: "overlap too large",
			args: []string{"plan", "--duration", "1000", "--chunk-duration", "30", "--chunk-overlap", "30"},
			err:  "failed to plan chunks",
		},
		{
			name: "missing input",
			args: []string{"plan"},
			err:  "at least one of the flags in the group [duration input] is required",
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out, err := executeCmd(t, tc.args...)
			if tc.err != "" {
				require.ErrorContains(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.output, out)
		})
	}
}

func TestMergeCmd(t *testing.T) {
	dir := t.TempDir()
	chunksDir := filepath.Join(dir, "chunks")

	windows, err := chunk.Plan(600, 480, 30)
	require.NoError(t, err)

	texts := map[int]string{
		1: strings.Join([]string{
			transcribe.FormatLine("Interviewer", 0, "Welcome, please introduce yourself."),
			transcribe.FormatLine("Interviewee", 5, "Sure, I have been a backend engineer for six years."),
			transcribe.FormatLine("Interviewer", 460, "Tell me about the last outage you handled."),
		}, "\n"),
		2: strings.Join([]string{
			transcribe.FormatLine("Interviewer", 460, "Tell me about the last outage you handled."),
			transcribe.FormatLine("Interviewee", 485, "It was a cache stampede after a deploy."),
			transcribe.FormatLine("Interviewer", 590, "Thanks, that's all from me."),
		}, "\n"),
	}
	for _, w := range windows {
		require.NoError(t, job.SaveChunkTranscript(chunksDir, transcribe.ChunkTranscript{
			Index: w.Index,
			Start: w.Start,
			End:   w.End,
			Text:  texts[w.Index],
		}))
	}

	t.Run("success", func(t *testing.T) {
		out, err := executeCmd(t, "merge", "--duration", "600", "--name", "Interview 01", chunksDir)
		require.NoError(t, err)

		finalPath := filepath.Join(dir, "final_transcript.txt")
		require.Equal(t, finalPath+"\n", out)

		data, err := os.ReadFile(finalPath)
		require.NoError(t, err)
		require.Equal(t, strings.Join([]string{
			"Interviewer: [00:00] Welcome, please introduce yourself.",
			"Interviewee: [00:05] Sure, I have been a backend engineer for six years.",
			"Interviewer: [07:40] Tell me about the last outage you handled.",
			"Interviewee: [08:05] It was a cache stampede after a deploy.",
			"Interviewer: [09:50] Thanks, that's all from me.",
		}, "\n")+"\n", string(data))

		_, err = os.Stat(filepath.Join(dir, "Interview_01.vtt"))
		require.NoError(t, err)
		_, err = os.Stat(filepath.Join(dir, "Interview_01.txt"))
		require.NoError(t, err)
	})

	t.Run("incomplete", func(t *testing.T) {
		_, err := executeCmd(t, "merge", "--duration", "900", "--chunk-duration", "480", "-o", t.TempDir(), chunksDir)
		require.Error(t, err)
	})

	t.Run("zero completeness tolerance", func(t *testing.T) {
		_, err := executeCmd(t, "merge", "--duration", "600", "--completeness-tolerance", "0", "-o", t.TempDir(), chunksDir)
		require.ErrorIs(t, err, transcribe.ErrIncompleteTranscript)

		var incErr *transcribe.IncompleteError
		require.ErrorAs(t, err, &incErr)
		require.Equal(t, 10, incErr.Shortfall)
	})

	t.Run("missing duration", func(t *testing.T) {
		_, err := executeCmd(t, "merge", chunksDir)
		require.EqualError(t, err, `required flag(s) "duration" not set`)
	})
}

func TestConfigCmd(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "secret-key")
	t.Setenv("DATA_DIR", "/var/lib/transcriber")

	out, err := executeCmd(t, "config", "--chunk-duration", "600")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Contains(t, lines, "GEMINI_API_KEY=***")
	require.Contains(t, lines, "DATA_DIR=/var/lib/transcriber")
	require.Contains(t, lines, "CHUNK_DURATION_SEC=600")
	require.Contains(t, lines, "CHUNK_OVERLAP_SEC=30")
	require.NotContains(t, out, "secret-key")

	t.Run("explicit zero overlap", func(t *testing.T) {
		t.Setenv("CHUNK_OVERLAP_SEC", "45")

		out, err := executeCmd(t, "config", "--chunk-overlap", "0", "--merge-tolerance", "0")
		require.NoError(t, err)

		lines := strings.Split(strings.TrimSpace(out), "\n")
		require.Contains(t, lines, "CHUNK_OVERLAP_SEC=0")
		require.Contains(t, lines, "MERGE_TOLERANCE_SEC=0")
		require.Contains(t, lines, "COMPLETENESS_TOLERANCE_SEC=30")
	})
}

func TestSlogReplaceAttr(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{
		AddSource:   true,
		ReplaceAttr: slogReplaceAttr,
	}))

	logger.Info("hello")
	require.Contains(t, buf.String(), "source=transcriber/commands_test.go:")
}

func TestSetLogLevel(t *testing.T) {
	defer logLevel.Set(slog.LevelInfo)

	setLogLevel("debug")
	require.Equal(t, slog.LevelDebug, logLevel.Level())

	setLogLevel("not-a-level")
	require.Equal(t, slog.LevelDebug, logLevel.Level())

	setLogLevel("WARN")
	require.Equal(t, slog.LevelWarn, logLevel.Level())
}
