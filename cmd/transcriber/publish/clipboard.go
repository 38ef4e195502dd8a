package publish

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/atotto/clipboard"
)

var errClipboardUnsupported = errors.New("clipboard is not supported on this system")

var writeClipboard = func(text string) error {
	if clipboard.Unsupported {
		return errClipboardUnsupported
	}
	return clipboard.WriteAll(text)
}

// ClipboardSink copies the merged transcript to the system clipboard.
type ClipboardSink struct{}

func (ClipboardSink) Publish(_ context.Context, res Result) error {
	if err := writeClipboard(res.Transcript.Text); err != nil {
		return fmt.Errorf("failed to copy transcript: %w", err)
	}

	slog.Info("transcript copied to clipboard", slog.Int("chars", len(res.Transcript.Text)))

	return nil
}
