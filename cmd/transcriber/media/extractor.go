package media

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
)

var (
	ErrSourceNotFound      = errors.New("audio source not found")
	ErrDurationUnavailable = errors.New("audio duration unavailable")
	ErrExtractionFailed    = errors.New("chunk extraction failed")
)

const (
	defaultFFmpegPath  = "ffmpeg"
	defaultFFprobePath = "ffprobe"
	stderrTailSize     = 512
)

type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	cmd         commandRunner
}

type ExtractorOption func(*Extractor)

func WithCommandRunner(r commandRunner) ExtractorOption {
	return func(e *Extractor) {
		e.cmd = r
	}
}

func WithFFmpegPath(path string) ExtractorOption {
	return func(e *Extractor) {
		if path != "" {
			e.ffmpegPath = path
		}
	}
}

func WithFFprobePath(path string) ExtractorOption {
	return func(e *Extractor) {
		if path != "" {
			e.ffprobePath = path
		}
	}
}

func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		ffmpegPath:  defaultFFmpegPath,
		ffprobePath: defaultFFprobePath,
		cmd:         osCommandRunner{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func checkSource(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrSourceNotFound, path)
	} else if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%w: %s is a directory", ErrSourceNotFound, path)
	}
	return nil
}

// ProbeDuration returns the duration of the audio file at path, truncated to
// whole seconds. MP3 and Ogg Opus files are read in process when ffprobe is
// not installed.
func (e *Extractor) ProbeDuration(ctx context.Context, path string) (int, error) {
	if err := checkSource(path); err != nil {
		return 0, err
	}

	args := []string{
		"-i", path,
		"-show_entries", "format=duration",
		"-v", "quiet",
		"-of", "csv=p=0",
	}
	stdout, stderr, err := e.cmd.Run(ctx, e.ffprobePath, args)
	if errors.Is(err, exec.ErrNotFound) && isMP3(path) {
		slog.Debug("ffprobe not found, decoding mp3 to get duration", slog.String("path", path))
		return mp3Duration(path)
	} else if errors.Is(err, exec.ErrNotFound) && isOgg(path) {
		slog.Debug("ffprobe not found, reading ogg pages to get duration", slog.String("path", path))
		return oggDuration(path)
	} else if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		return 0, fmt.Errorf("%w: ffprobe failed on %s: %w: %s", ErrDurationUnavailable, path, err, tail(stderr))
	}

	return parseDuration(string(stdout))
}

func parseDuration(out string) (int, error) {
	out = strings.TrimSpace(out)
	d, err := strconv.ParseFloat(out, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: could not parse %q", ErrDurationUnavailable, out)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: non positive duration %q", ErrDurationUnavailable, out)
	}
	return int(d), nil
}

// Extract writes window w of the source audio to outputPath without
// re-encoding.
func (e *Extractor) Extract(ctx context.Context, sourcePath string, w chunk.Window, outputPath string) error {
	if err := checkSource(sourcePath); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(outputPath), 0700); err != nil {
		return fmt.Errorf("failed to create chunk directory: %w", err)
	}

	args := []string{
		"-i", sourcePath,
		"-ss", strconv.Itoa(w.Start),
		"-t", strconv.Itoa(w.Duration()),
		"-c", "copy",
		"-avoid_negative_ts", "make_zero",
		"-y",
		outputPath,
	}

	start := time.Now()
	_, stderr, err := e.cmd.Run(ctx, e.ffmpegPath, args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %s: %s: %s", ErrExtractionFailed, w, err, tail(stderr))
	}

	slog.Debug("chunk extracted",
		slog.Int("chunk", w.Index),
		slog.String("path", outputPath),
		slog.Duration("took", time.Since(start)))

	return nil
}

// ChunkFileName returns the name of the file holding window w, keeping the
// source extension so that stream copy picks the same container.
func ChunkFileName(w chunk.Window, sourcePath string) string {
	ext := filepath.Ext(sourcePath)
	if ext == "" {
		ext = ".mp3"
	}
	return fmt.Sprintf("chunk_%03d%s", w.Index, ext)
}

// ExtractAll extracts every window into dir, running at most concurrency
// extractions at a time. Returned paths follow the order of windows.
func (e *Extractor) ExtractAll(ctx context.Context, sourcePath string, windows []chunk.Window, dir string, concurrency int) ([]string, error) {
	if err := checkSource(sourcePath); err != nil {
		return nil, err
	}

	paths := make([]string, len(windows))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

	for i, w := range windows {
		if gctx.Err() != nil {
			break
		}
		paths[i] = filepath.Join(dir, ChunkFileName(w, sourcePath))
		g.Go(func() error {
			return e.Extract(gctx, sourcePath, w, paths[i])
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return paths, nil
}

// ValidateChunks checks that every chunk file exists and has a positive
// duration.
func (e *Extractor) ValidateChunks(ctx context.Context, paths []string) error {
	for _, p := range paths {
		if _, err := e.ProbeDuration(ctx, p); err != nil {
			return fmt.Errorf("failed to validate chunk %s: %w", filepath.Base(p), err)
		}
	}
	return nil
}

func tail(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > stderrTailSize {
		s = "..." + s[len(s)-stderrTailSize:]
	}
	return s
}
