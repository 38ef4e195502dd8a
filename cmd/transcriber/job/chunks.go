package job

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/transcribe"
)

func ChunkTranscriptFileName(index int) string {
	return fmt.Sprintf("transcript_chunk_%03d.txt", index)
}

// SaveChunkTranscript writes an accepted chunk transcript to dir so that a
// failed merge can be retried offline.
func SaveChunkTranscript(dir string, tr transcribe.ChunkTranscript) error {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create chunks directory: %w", err)
	}

	path := filepath.Join(dir, ChunkTranscriptFileName(tr.Index))
	if err := os.WriteFile(path, []byte(tr.Text), 0600); err != nil {
		return fmt.Errorf("failed to write chunk transcript: %w", err)
	}

	return nil
}

// LoadChunkTranscripts reads back the transcripts saved for windows. All of
// them must be present.
func LoadChunkTranscripts(dir string, windows []chunk.Window) ([]transcribe.ChunkTranscript, error) {
	transcripts := make([]transcribe.ChunkTranscript, 0, len(windows))
	for _, w := range windows {
		data, err := os.ReadFile(filepath.Join(dir, ChunkTranscriptFileName(w.Index)))
		if err != nil {
			return nil, fmt.Errorf("failed to read transcript for %s: %w", w, err)
		}

		transcripts = append(transcripts, transcribe.ChunkTranscript{
			Index: w.Index,
			Start: w.Start,
			End:   w.End,
			Text:  string(data),
		})
	}

	return transcripts, nil
}
