package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/genai"
)

const deleteTimeout = 30 * time.Second

var audioMIMETypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".opus": "audio/ogg",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

func mimeType(path string) string {
	if t, ok := audioMIMETypes[strings.ToLower(filepath.Ext(path))]; ok {
		return t
	}
	return "application/octet-stream"
}

// Session talks to the Gemini API on behalf of a single chunk. Every session
// owns its client.
type Session struct {
	cfg    Config
	client *genai.Client
}

func NewSession(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.IsValid(); err != nil {
		return nil, fmt.Errorf("failed to validate config: %w", err)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: cfg.RequestTimeout},
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	return &Session{
		cfg:    cfg,
		client: client,
	}, nil
}

// Submit uploads the audio file, waits for it to be processed and asks the
// model to follow instructions on it. The uploaded file is always deleted.
func (s *Session) Submit(ctx context.Context, audioPath, instructions string) (string, error) {
	uploaded, err := s.upload(ctx, audioPath)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio: %w", err)
	}

	name := uploaded.Name
	defer func() {
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
		defer cancel()
		if _, err := s.client.Files.Delete(dctx, name, nil); err != nil {
			slog.Warn("failed to delete uploaded file", slog.String("name", name), slog.String("err", err.Error()))
		}
	}()

	active, err := s.waitForProcessing(ctx, uploaded)
	if err != nil {
		return "", err
	}

	text, err := s.generate(ctx, active, instructions)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	return text, nil
}

func (s *Session) upload(ctx context.Context, audioPath string) (*genai.File, error) {
	info, err := os.Stat(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio file: %w", err)
	}
	mt := mimeType(audioPath)

	f, err := s.client.Files.UploadFromPath(ctx, audioPath, &genai.UploadFileConfig{
		MIMEType:    mt,
		DisplayName: filepath.Base(audioPath),
	})
	if err != nil {
		return nil, apiError(err)
	}
	if f.Name == "" || f.URI == "" {
		return nil, fmt.Errorf("%w: upload response is missing file name or uri", ErrResponseInvalid)
	}
	if f.MIMEType == "" {
		f.MIMEType = mt
	}

	slog.Debug("audio uploaded",
		slog.String("name", f.Name),
		slog.String("state", string(f.State)),
		slog.Int64("size", info.Size()))

	return f, nil
}

func (s *Session) waitForProcessing(ctx context.Context, f *genai.File) (*genai.File, error) {
	deadline := time.Now().Add(s.cfg.MaxProcessingWait)
	for {
		switch f.State {
		case genai.FileStateActive:
			return f, nil
		case genai.FileStateFailed:
			msg := "unknown error"
			if f.Error != nil && f.Error.Message != "" {
				msg = f.Error.Message
			}
			return nil, fmt.Errorf("%w: %s: %s", ErrProcessingFailed, f.Name, msg)
		}

		if time.Now().Add(s.cfg.PollInterval).After(deadline) {
			return nil, fmt.Errorf("%w: %s still %s after %s", ErrProcessingTimeout, f.Name, f.State, s.cfg.MaxProcessingWait)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.cfg.PollInterval):
		}

		updated, err := s.client.Files.Get(ctx, f.Name, nil)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("failed to get file state: %w", apiError(err))
		}
		if updated.Name == "" {
			updated.Name = f.Name
		}
		if updated.URI == "" {
			updated.URI = f.URI
		}
		if updated.MIMEType == "" {
			updated.MIMEType = f.MIMEType
		}
		f = updated
	}
}

func (s *Session) generate(ctx context.Context, f *genai.File, instructions string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(instructions),
			genai.NewPartFromURI(f.URI, f.MIMEType),
		}, genai.RoleUser),
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.cfg.Model, contents, nil)
	if err != nil {
		return "", apiError(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", newEmptyResponseError(resp)
	}

	return text, nil
}

func newEmptyResponseError(resp *genai.GenerateContentResponse) *EmptyResponseError {
	e := &EmptyResponseError{
		Candidates: len(resp.Candidates),
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		e.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if resp.PromptFeedback != nil {
		e.BlockReason = string(resp.PromptFeedback.BlockReason)
	}
	if u := resp.UsageMetadata; u != nil {
		e.PromptTokens = int(u.PromptTokenCount)
		e.CandidateTokens = int(u.CandidatesTokenCount)
		e.TotalTokens = int(u.TotalTokenCount)
	}
	return e
}

// apiError maps a status carried by a genai.APIError onto the package errors.
// Anything else is returned unchanged.
func apiError(err error) error {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return err
	}

	msg := strings.TrimSpace(apiErr.Message)
	switch {
	case apiErr.Code == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", ErrRateLimited, msg)
	case apiErr.Code == http.StatusRequestTimeout || apiErr.Code/100 == 5:
		return &UpstreamError{Status: apiErr.Code, Message: msg}
	default:
		return fmt.Errorf("%w: status %d: %s", ErrInvalidRequest, apiErr.Code, msg)
	}
}

// IsRetryable reports whether err is worth another attempt. Invalid requests
// are not expected to succeed on retry.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrInvalidRequest) {
		return false
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests ||
			apiErr.Code == http.StatusRequestTimeout ||
			apiErr.Code/100 == 5
	}

	return true
}
