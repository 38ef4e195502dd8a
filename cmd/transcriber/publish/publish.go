package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/transcribe"
)

var filenameSanitizationRE = regexp.MustCompile(`[\\:*?\"<>|\n\s/]`)

// Result is what a successful pipeline run hands over to publishers.
type Result struct {
	JobID string
	// Base name used for output files.
	Name       string
	Transcript transcribe.MergedTranscript
	// Duration of the source audio in seconds.
	Duration int
}

type Publisher interface {
	Publish(ctx context.Context, res Result) error
}

// Publishers fans a result out to every publisher in order. All of them are
// attempted and their errors joined.
type Publishers []Publisher

func (ps Publishers) Publish(ctx context.Context, res Result) error {
	var errs []error
	for _, p := range ps {
		if err := p.Publish(ctx, res); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type OutputOptions struct {
	WebVTT transcribe.WebVTTOptions
	Text   transcribe.TextOptions
}

type output struct {
	Filename string
	Data     []byte
}

// render produces the WebVTT and text renditions of a result.
func render(res Result, opts OutputOptions) ([]output, error) {
	var vtt, txt bytes.Buffer

	if err := res.Transcript.WebVTT(&vtt, opts.WebVTT); err != nil {
		return nil, fmt.Errorf("failed to write WebVTT: %w", err)
	}

	if err := res.Transcript.PlainText(&txt, opts.Text); err != nil {
		return nil, fmt.Errorf("failed to write text: %w", err)
	}

	name := res.Name
	if name == "" {
		name = "transcript"
	}

	return []output{
		{Filename: name + ".vtt", Data: vtt.Bytes()},
		{Filename: name + ".txt", Data: txt.Bytes()},
	}, nil
}

func SanitizeFilename(name string) string {
	return filenameSanitizationRE.ReplaceAllString(name, "_")
}

// NameFromPath derives an output base name from an audio file path.
func NameFromPath(path string) string {
	base := filepath.Base(path)
	return SanitizeFilename(strings.TrimSuffix(base, filepath.Ext(base)))
}
