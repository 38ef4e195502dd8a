package transcribe

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
)

func TestValidatorIsValid(t *testing.T) {
	tcs := []struct {
		name          string
		validator     Validator
		expectedError string
	}{
		{
			name:          "empty roles",
			validator:     Validator{},
			expectedError: "role labels should not be empty",
		},
		{
			name:          "same roles",
			validator:     Validator{RoleA: "Host", RoleB: "Host"},
			expectedError: "role labels should be different",
		},
		{
			name:          "negative min chars",
			validator:     Validator{RoleA: "Host", RoleB: "Guest", MinContentChars: -1},
			expectedError: "MinContentChars should not be negative",
		},
		{
			name:          "coverage out of range",
			validator:     Validator{RoleA: "Host", RoleB: "Guest", CoverageFraction: 1.5},
			expectedError: "CoverageFraction should be in the range [0, 1]",
		},
		{
			name:      "valid",
			validator: Validator{RoleA: "Host", RoleB: "Guest", MinContentChars: 10, CoverageFraction: 0.5},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.validator.IsValid()
			if tc.expectedError == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.expectedError)
			}
		})
	}
}

func TestValidatorValidate(t *testing.T) {
	var v Validator
	v.SetDefaults()

	w := chunk.Window{Index: 1, Start: 0, End: 480}
	filler := strings.Repeat("words ", 20)

	tcs := []struct {
		name          string
		text          string
		expectedError string
	}{
		{
			name:          "empty",
			text:          " \n ",
			expectedError: "empty response",
		},
		{
			name:          "too short",
			text:          "Interviewer: [07:50] hi",
			expectedError: "invalid chunk transcript: content too short (23 < 100 characters)",
		},
		{
			name: "missing label",
			text: lines(
				"Interviewer: [00:10] "+filler,
				"[01:00] unlabeled words",
				"Interviewee: [07:50] end",
			),
			expectedError: `invalid chunk transcript: line 2 is missing a speaker label: "[01:00] unlabeled words"`,
		},
		{
			name:          "no timestamps",
			text:          lines("Interviewer: "+filler, "Interviewee: "+filler),
			expectedError: "invalid chunk transcript: no timestamps found",
		},
		{
			name:          "insufficient coverage",
			text:          lines("Interviewer: [00:10] "+filler, "Interviewee: [05:35] "+filler),
			expectedError: "invalid chunk transcript: last timestamp 05:35 does not reach 05:36",
		},
		{
			name: "blank lines allowed",
			text: lines("Interviewer: [00:10] "+filler, "", "Interviewee: [05:36] "+filler),
		},
		{
			name: "only last timestamp counts",
			text: lines("Interviewer: [07:59] "+filler, "Interviewee: [05:40] "+filler),
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out, err := v.Validate(w, tc.text)
			if tc.expectedError != "" {
				require.EqualError(t, err, tc.expectedError)
				return
			}
			require.NoError(t, err)
			require.Equal(t, strings.TrimSpace(tc.text), out)
		})
	}
}

func TestValidatorCoverageOffset(t *testing.T) {
	var v Validator
	v.SetDefaults()
	v.MinContentChars = 0

	// 450 + 0.7 * 480 = 786 = 13:06
	w := chunk.Window{Index: 2, Start: 450, End: 930}

	_, err := v.Validate(w, "Interviewer: [13:05] almost")
	require.ErrorIs(t, err, ErrInvalidTranscript)

	_, err = v.Validate(w, "Interviewer: [13:06] there")
	require.NoError(t, err)
}
