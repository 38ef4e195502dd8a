package media

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hajimehoshi/go-mp3"
)

func isMP3(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".mp3")
}

// mp3Duration decodes the stream headers of an MP3 file to compute its
// duration. go-mp3 always outputs 16-bit stereo, so a sample is 4 bytes.
func mp3Duration(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to decode mp3: %s", ErrDurationUnavailable, err)
	}

	if dec.SampleRate() <= 0 || dec.Length() <= 0 {
		return 0, fmt.Errorf("%w: mp3 stream has no samples", ErrDurationUnavailable)
	}

	samples := dec.Length() / 4
	return int(samples / int64(dec.SampleRate())), nil
}
