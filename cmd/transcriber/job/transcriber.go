package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/apis/gemini"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/config"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/media"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/publish"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/retry"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/transcribe"
)

const chunksDirName = "chunks"

var ErrStopped = errors.New("transcriber stopped")

type Extractor interface {
	ProbeDuration(ctx context.Context, path string) (int, error)
	ExtractAll(ctx context.Context, sourcePath string, windows []chunk.Window, dir string, concurrency int) ([]string, error)
	ValidateChunks(ctx context.Context, paths []string) error
}

type ChunkTranscriber interface {
	Transcribe(ctx context.Context, w chunk.Window, audioPath string) (transcribe.ChunkTranscript, error)
}

type FailureReporter interface {
	ReportFailure(ctx context.Context, jobID string, errMsg string) error
}

// Deps holds the collaborators of a Transcriber. Nil fields are built from
// the config.
type Deps struct {
	Extractor        Extractor
	ChunkTranscriber ChunkTranscriber
	Publisher        publish.Publisher
	Reporter         FailureReporter
}

type Transcriber struct {
	cfg     config.TranscriberConfig
	id      string
	workDir string
	deps    Deps

	cancel   context.CancelFunc
	result   publish.Result
	err      error
	doneCh   chan struct{}
	doneOnce sync.Once
}

func NewTranscriber(cfg config.TranscriberConfig, deps Deps) (*Transcriber, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	if cfg.InputPath == "" {
		return nil, fmt.Errorf("invalid InputPath: should not be empty")
	}

	id := uuid.NewString()

	t := &Transcriber{
		cfg:     cfg,
		id:      id,
		workDir: filepath.Join(cfg.DataDir, id),
		deps:    deps,
		doneCh:  make(chan struct{}),
	}

	if t.deps.Extractor == nil {
		t.deps.Extractor = media.NewExtractor(
			media.WithFFmpegPath(cfg.FFmpegPath),
			media.WithFFprobePath(cfg.FFprobePath),
		)
	}

	if t.deps.ChunkTranscriber == nil {
		ct, err := newChunkTranscriber(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create chunk transcriber: %w", err)
		}
		t.deps.ChunkTranscriber = ct
	}

	if t.deps.Publisher == nil {
		pub, reporter, err := newPublisher(cfg, t.workDir)
		if err != nil {
			return nil, fmt.Errorf("failed to create publisher: %w", err)
		}
		t.deps.Publisher = pub
		if t.deps.Reporter == nil && reporter != nil {
			t.deps.Reporter = reporter
		}
	}

	return t, nil
}

func newChunkTranscriber(cfg config.TranscriberConfig) (*transcribe.ChunkTranscriber, error) {
	validator := transcribe.Validator{
		RoleA:            cfg.RoleALabel,
		RoleB:            cfg.RoleBLabel,
		MinContentChars:  cfg.MinContentChars,
		CoverageFraction: cfg.CoverageFraction,
	}

	policy := retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.RetryBaseDelay,
		Retryable:   gemini.IsRetryable,
	}

	// A nil *rate.Limiter stored in the interface would not compare equal to
	// nil, so it's only assigned when enabled.
	var limiter transcribe.Limiter
	if cfg.RequestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	geminiCfg := cfg.Gemini
	newSession := func(ctx context.Context) (transcribe.Session, error) {
		return gemini.NewSession(ctx, geminiCfg)
	}

	return transcribe.NewChunkTranscriber(newSession, validator, policy, limiter)
}

func newPublisher(cfg config.TranscriberConfig, workDir string) (publish.Publisher, FailureReporter, error) {
	pubs := publish.Publishers{
		publish.FileSink{Dir: workDir, Outputs: cfg.OutputOptions},
	}

	var reporter FailureReporter
	if !cfg.Mattermost.IsEmpty() {
		sink, err := publish.NewMattermostSink(cfg.Mattermost, cfg.OutputOptions)
		if err != nil {
			return nil, nil, err
		}
		pubs = append(pubs, sink)
		reporter = sink
	}

	if cfg.CopyToClipboard {
		pubs = append(pubs, publish.ClipboardSink{})
	}

	return pubs, reporter, nil
}

func (t *Transcriber) ID() string {
	return t.id
}

// WorkDir is where chunk files and outputs of this job are written.
func (t *Transcriber) WorkDir() string {
	return t.workDir
}

// Start runs the pipeline in the background. The given context only bounds
// the startup checks; use Stop to cancel a running job.
func (t *Transcriber) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if t.cancel != nil {
		return fmt.Errorf("transcriber already started")
	}

	if err := os.MkdirAll(t.workDir, 0700); err != nil {
		return fmt.Errorf("failed to create work directory: %w", err)
	}

	runCtx, cancel := context.WithCancelCause(context.Background())
	t.cancel = func() { cancel(ErrStopped) }

	go func() {
		t.done(t.Run(runCtx))
	}()

	return nil
}

func (t *Transcriber) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	select {
	case <-t.doneCh:
		return t.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (t *Transcriber) Done() <-chan struct{} {
	return t.doneCh
}

// Err returns the error the job finished with, or nil while it's running.
func (t *Transcriber) Err() error {
	select {
	case <-t.doneCh:
		return t.err
	default:
		return nil
	}
}

// Result is only meaningful once Done is closed and Err is nil.
func (t *Transcriber) Result() publish.Result {
	<-t.doneCh
	return t.result
}

func (t *Transcriber) done(res publish.Result, err error) {
	t.doneOnce.Do(func() {
		t.result = res
		t.err = err
		close(t.doneCh)
	})
}

// Run executes the whole pipeline synchronously: probe, plan, extract,
// transcribe, merge and publish. The first fatal error stops it and is
// reported if a FailureReporter is set.
func (t *Transcriber) Run(ctx context.Context) (res publish.Result, retErr error) {
	start := time.Now()

	defer func() {
		if retErr == nil {
			return
		}

		if cause := context.Cause(ctx); errors.Is(cause, ErrStopped) {
			retErr = fmt.Errorf("%w: %w", ErrStopped, retErr)
		}

		slog.Error("transcription job failed",
			slog.String("jobID", t.id),
			slog.String("err", retErr.Error()))

		if t.deps.Reporter == nil {
			return
		}
		reportCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := t.deps.Reporter.ReportFailure(reportCtx, t.id, retErr.Error()); err != nil {
			slog.Error("failed to report job failure", slog.String("err", err.Error()))
		}
	}()

	slog.Info("starting transcription job",
		slog.String("jobID", t.id),
		slog.String("input", t.cfg.InputPath),
		slog.String("workDir", t.workDir))

	duration, err := t.deps.Extractor.ProbeDuration(ctx, t.cfg.InputPath)
	if err != nil {
		return res, fmt.Errorf("failed to probe duration: %w", err)
	}

	windows, err := chunk.Plan(duration, t.cfg.ChunkDurationSec, t.cfg.ChunkOverlapSec)
	if err != nil {
		return res, fmt.Errorf("failed to plan chunks: %w", err)
	}

	slog.Info("planned chunks",
		slog.Int("duration", duration),
		slog.Int("chunks", len(windows)))

	chunksDir := filepath.Join(t.workDir, chunksDirName)
	if !t.cfg.KeepChunks {
		defer removeChunkFiles(chunksDir, windows, t.cfg.InputPath)
	}
	paths, err := t.deps.Extractor.ExtractAll(ctx, t.cfg.InputPath, windows, chunksDir, t.cfg.ExtractConcurrency)
	if err != nil {
		return res, fmt.Errorf("failed to extract chunks: %w", err)
	}

	if err := t.deps.Extractor.ValidateChunks(ctx, paths); err != nil {
		return res, fmt.Errorf("failed to validate chunks: %w", err)
	}

	transcripts, err := t.transcribeAll(ctx, windows, paths, chunksDir)
	if err != nil {
		return res, fmt.Errorf("failed to transcribe chunks: %w", err)
	}

	merged, err := transcribe.Merge(transcripts, duration, transcribe.MergeOptions{
		Tolerance:             t.cfg.MergeToleranceSec,
		CompletenessTolerance: t.cfg.CompletenessToleranceSec,
	})
	if err != nil {
		return res, fmt.Errorf("failed to merge transcripts: %w", err)
	}

	res = publish.Result{
		JobID:      t.id,
		Name:       publish.NameFromPath(t.cfg.InputPath),
		Transcript: merged,
		Duration:   duration,
	}

	if err := t.deps.Publisher.Publish(ctx, res); err != nil {
		return publish.Result{}, fmt.Errorf("failed to publish transcript: %w", err)
	}

	slog.Info("transcription job completed",
		slog.String("jobID", t.id),
		slog.Duration("elapsed", time.Since(start)))

	return res, nil
}

func (t *Transcriber) transcribeAll(ctx context.Context, windows []chunk.Window, paths []string, chunksDir string) ([]transcribe.ChunkTranscript, error) {
	if len(windows) != len(paths) {
		return nil, fmt.Errorf("mismatched chunks: %d windows, %d files", len(windows), len(paths))
	}

	results := make([]transcribe.ChunkTranscript, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.MaxConcurrent)

	for i, w := range windows {
		if gctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			slog.Debug("transcribing chunk", slog.String("chunk", w.String()))

			tr, err := t.deps.ChunkTranscriber.Transcribe(gctx, w, paths[i])
			if err != nil {
				return err
			}

			if err := SaveChunkTranscript(chunksDir, tr); err != nil {
				slog.Error("failed to save chunk transcript",
					slog.Int("chunk", w.Index),
					slog.String("err", err.Error()))
			}

			slog.Info("chunk transcribed", slog.String("chunk", w.String()))
			results[i] = tr

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Work stops being scheduled once the group context is done, which can
	// also happen without any task failing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

// removeChunkFiles deletes the extracted audio of every window, including
// the ones left behind by a failed extraction. Chunk transcripts are kept.
func removeChunkFiles(dir string, windows []chunk.Window, sourcePath string) {
	for _, w := range windows {
		p := filepath.Join(dir, media.ChunkFileName(w, sourcePath))
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Error("failed to remove chunk file",
				slog.String("path", p),
				slog.String("err", err.Error()))
		}
	}
}
