package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/ogg"
)

func isOgg(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".ogg", ".opus", ".oga":
		return true
	}
	return false
}

func oggDuration(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	d, err := ogg.Duration(f)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to read ogg stream: %w", ErrDurationUnavailable, err)
	}

	return int(d.Seconds()), nil
}
