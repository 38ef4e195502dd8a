package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

const FinalTranscriptFilename = "final_transcript.txt"

// FileSink writes the merged transcript and its renditions to a directory.
type FileSink struct {
	Dir     string
	Outputs OutputOptions
}

func (s FileSink) Publish(_ context.Context, res Result) error {
	if err := os.MkdirAll(s.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	outs, err := render(res, s.Outputs)
	if err != nil {
		return err
	}
	outs = append([]output{{Filename: FinalTranscriptFilename, Data: []byte(res.Transcript.Text + "\n")}}, outs...)

	for _, out := range outs {
		path := filepath.Join(s.Dir, out.Filename)
		if err := os.WriteFile(path, out.Data, 0600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		slog.Info("transcript saved", slog.String("path", path))
	}

	return nil
}
