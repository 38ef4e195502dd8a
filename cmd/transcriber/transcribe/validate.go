package transcribe

import (
	"errors"
	"fmt"
	"strings"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
)

var (
	ErrInvalidTranscript = errors.New("invalid chunk transcript")
	ErrEmptyResponse     = errors.New("empty response")
)

type Validator struct {
	RoleA            string
	RoleB            string
	MinContentChars  int
	CoverageFraction float64
}

func (v *Validator) SetDefaults() {
	v.RoleA = "Interviewer"
	v.RoleB = "Interviewee"
	v.MinContentChars = 100
	v.CoverageFraction = 0.7
}

func (v *Validator) IsValid() error {
	if v.RoleA == "" || v.RoleB == "" {
		return fmt.Errorf("role labels should not be empty")
	}
	if v.RoleA == v.RoleB {
		return fmt.Errorf("role labels should be different")
	}
	if v.MinContentChars < 0 {
		return fmt.Errorf("MinContentChars should not be negative")
	}
	if v.CoverageFraction < 0 || v.CoverageFraction > 1 {
		return fmt.Errorf("CoverageFraction should be in the range [0, 1]")
	}
	return nil
}

// Validate checks that text is an acceptable transcript of window w and
// returns it trimmed.
func (v *Validator) Validate(w chunk.Window, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyResponse
	}

	if n := len([]rune(text)); n < v.MinContentChars {
		return "", fmt.Errorf("%w: content too short (%d < %d characters)", ErrInvalidTranscript, n, v.MinContentChars)
	}

	prefixA, prefixB := v.RoleA+":", v.RoleB+":"
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, prefixA) && !strings.HasPrefix(line, prefixB) {
			return "", fmt.Errorf("%w: line %d is missing a speaker label: %q", ErrInvalidTranscript, i+1, truncate(line, 40))
		}
	}

	last, ok := LastTimestamp(text)
	if !ok {
		return "", fmt.Errorf("%w: no timestamps found", ErrInvalidTranscript)
	}

	threshold := float64(w.Start) + v.CoverageFraction*float64(w.Duration())
	if float64(last) < threshold {
		return "", fmt.Errorf("%w: last timestamp %s does not reach %s",
			ErrInvalidTranscript, chunk.FormatTS(last), chunk.FormatTS(int(threshold)))
	}

	return text, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
