package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
	"github.com/workflowcards/interview-transcriber/cmd/transcriber/retry"
)

var ErrChunkTranscriptionFailed = errors.New("chunk transcription failed")

// Session is a single conversation with the transcription capability. A new
// session is created for every chunk so that no state is shared between them.
type Session interface {
	Submit(ctx context.Context, audioPath, instructions string) (string, error)
}

type SessionFactory func(ctx context.Context) (Session, error)

// Limiter throttles calls to the capability. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// ChunkError is returned once all the attempts for a chunk have failed.
type ChunkError struct {
	Window   chunk.Window
	Attempts int
	Err      error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("%s: %s failed after %d attempt(s): %s", ErrChunkTranscriptionFailed, e.Window, e.Attempts, e.Err)
}

func (e *ChunkError) Unwrap() []error {
	return []error{ErrChunkTranscriptionFailed, e.Err}
}

type ChunkTranscriber struct {
	newSession SessionFactory
	validator  Validator
	policy     retry.Policy
	limiter    Limiter
}

func NewChunkTranscriber(newSession SessionFactory, validator Validator, policy retry.Policy, limiter Limiter) (*ChunkTranscriber, error) {
	if newSession == nil {
		return nil, fmt.Errorf("invalid session factory: should not be nil")
	}
	if err := validator.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate validator: %w", err)
	}
	if err := policy.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate retry policy: %w", err)
	}

	return &ChunkTranscriber{
		newSession: newSession,
		validator:  validator,
		policy:     policy,
		limiter:    limiter,
	}, nil
}

// Transcribe returns the validated transcript of the audio at audioPath,
// which holds window w of the recording.
func (ct *ChunkTranscriber) Transcribe(ctx context.Context, w chunk.Window, audioPath string) (ChunkTranscript, error) {
	session, err := ct.newSession(ctx)
	if err != nil {
		return ChunkTranscript{}, fmt.Errorf("failed to create session: %w", err)
	}

	instructions := Instructions(w, ct.validator.RoleA, ct.validator.RoleB)

	var text string
	var attempts int
	err = retry.Do(ctx, ct.policy, func(ctx context.Context, attempt int) error {
		attempts = attempt + 1

		if ct.limiter != nil {
			if err := ct.limiter.Wait(ctx); err != nil {
				return err
			}
		}

		start := time.Now()
		raw, err := session.Submit(ctx, audioPath, instructions)
		if err != nil {
			slog.Warn("chunk submission failed",
				slog.Int("chunk", w.Index),
				slog.Int("attempt", attempts),
				slog.String("err", err.Error()))
			return err
		}

		text, err = ct.validator.Validate(w, raw)
		if err != nil {
			slog.Warn("chunk transcript rejected",
				slog.Int("chunk", w.Index),
				slog.Int("attempt", attempts),
				slog.String("err", err.Error()))
			return err
		}

		slog.Debug("chunk transcribed",
			slog.Int("chunk", w.Index),
			slog.Int("attempt", attempts),
			slog.Duration("took", time.Since(start)))

		return nil
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ChunkTranscript{}, ctxErr
		}
		var retryErr *retry.Error
		if errors.As(err, &retryErr) {
			err = retryErr.Err
		}
		return ChunkTranscript{}, &ChunkError{
			Window:   w,
			Attempts: attempts,
			Err:      err,
		}
	}

	return ChunkTranscript{
		Index: w.Index,
		Start: w.Start,
		End:   w.End,
		Text:  text,
	}, nil
}
