package gemini

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrRateLimited       = errors.New("gemini: rate limited")
	ErrEmptyResponse     = errors.New("gemini: empty response")
	ErrProcessingTimeout = errors.New("gemini: file processing timed out")
	ErrProcessingFailed  = errors.New("gemini: file processing failed")
	ErrInvalidRequest    = errors.New("gemini: invalid request")
	ErrResponseInvalid   = errors.New("gemini: invalid response")
)

// UpstreamError is returned for 5xx and 408 responses.
type UpstreamError struct {
	Status  int
	Message string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("gemini upstream %d: %s", e.Status, e.Message)
}

func (e *UpstreamError) Timeout() bool {
	return e.Status == http.StatusRequestTimeout
}

func (e *UpstreamError) Temporary() bool {
	return e.Status/100 == 5
}

// EmptyResponseError describes a response that carried no text.
type EmptyResponseError struct {
	Candidates      int
	FinishReason    string
	BlockReason     string
	PromptTokens    int
	CandidateTokens int
	TotalTokens     int
}

func (e *EmptyResponseError) Error() string {
	var details []string
	details = append(details, fmt.Sprintf("candidates=%d", e.Candidates))
	if e.FinishReason != "" {
		details = append(details, "finish_reason="+e.FinishReason)
	}
	if e.BlockReason != "" {
		details = append(details, "block_reason="+e.BlockReason)
	}
	details = append(details, fmt.Sprintf("tokens=%d/%d/%d", e.PromptTokens, e.CandidateTokens, e.TotalTokens))
	return fmt.Sprintf("%s (%s)", ErrEmptyResponse, strings.Join(details, ", "))
}

func (e *EmptyResponseError) Unwrap() error {
	return ErrEmptyResponse
}
