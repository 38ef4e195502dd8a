package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// instantTimer fires right away and keeps the requested waits.
type instantTimer struct {
	waits []time.Duration
	c     chan time.Time
}

func (t *instantTimer) Start(d time.Duration) {
	t.waits = append(t.waits, d)
	t.c = make(chan time.Time, 1)
	t.c <- time.Now()
}

func (t *instantTimer) Stop() {}

func (t *instantTimer) C() <-chan time.Time {
	return t.c
}

func recordSleeps(p *Policy) *[]time.Duration {
	timer := &instantTimer{}
	p.timer = timer
	return &timer.waits
}

func TestPolicyIsValid(t *testing.T) {
	tcs := []struct {
		name          string
		policy        Policy
		expectedError string
	}{
		{
			name:          "no attempts",
			policy:        Policy{},
			expectedError: "MaxAttempts should be at least 1",
		},
		{
			name:          "negative delay",
			policy:        Policy{MaxAttempts: 1, BaseDelay: -time.Second},
			expectedError: "BaseDelay should not be negative",
		},
		{
			name:   "valid",
			policy: Policy{MaxAttempts: 3, BaseDelay: time.Second},
		},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.policy.IsValid()
			if tc.expectedError == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.expectedError)
			}
		})
	}
}

func TestDo(t *testing.T) {
	t.Run("success at first attempt", func(t *testing.T) {
		p := Policy{MaxAttempts: 3, BaseDelay: time.Second}
		waits := recordSleeps(&p)

		var calls int
		err := Do(context.Background(), p, func(_ context.Context, _ int) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, 1, calls)
		require.Empty(t, *waits)
	})

	t.Run("success after failures", func(t *testing.T) {
		p := Policy{MaxAttempts: 3, BaseDelay: time.Second}
		waits := recordSleeps(&p)

		var attempts []int
		err := Do(context.Background(), p, func(_ context.Context, attempt int) error {
			attempts = append(attempts, attempt)
			if attempt < 2 {
				return errors.New("flaky")
			}
			return nil
		})
		require.NoError(t, err)
		require.Equal(t, []int{0, 1, 2}, attempts)
		require.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *waits)
	})

	t.Run("constant delay", func(t *testing.T) {
		p := Policy{MaxAttempts: 5, BaseDelay: 5 * time.Second, Constant: true}
		waits := recordSleeps(&p)

		var calls int
		err := Do(context.Background(), p, func(_ context.Context, _ int) error {
			calls++
			return errors.New("upload failed")
		})
		require.ErrorIs(t, err, ErrMaxAttempts)
		require.Equal(t, 5, calls)
		require.Equal(t, []time.Duration{5 * time.Second, 5 * time.Second, 5 * time.Second, 5 * time.Second}, *waits)
	})

	t.Run("single attempt", func(t *testing.T) {
		p := Policy{MaxAttempts: 1, BaseDelay: time.Second}
		waits := recordSleeps(&p)

		cause := errors.New("flaky")
		err := Do(context.Background(), p, func(_ context.Context, _ int) error {
			return cause
		})
		require.EqualError(t, err, "maximum attempts reached after 1 attempt(s): flaky")
		require.Empty(t, *waits)
	})

	t.Run("exhausted", func(t *testing.T) {
		p := Policy{MaxAttempts: 3, BaseDelay: time.Second}
		waits := recordSleeps(&p)

		cause := errors.New("empty response")
		err := Do(context.Background(), p, func(_ context.Context, _ int) error {
			return cause
		})
		require.ErrorIs(t, err, ErrMaxAttempts)
		require.ErrorIs(t, err, cause)
		require.EqualError(t, err, "maximum attempts reached after 3 attempt(s): empty response")

		var retryErr *Error
		require.ErrorAs(t, err, &retryErr)
		require.Equal(t, 3, retryErr.Attempts)
		require.Len(t, *waits, 2)
	})

	t.Run("non retryable", func(t *testing.T) {
		fatal := errors.New("fatal")
		p := Policy{MaxAttempts: 3, Retryable: func(err error) bool {
			return !errors.Is(err, fatal)
		}}
		recordSleeps(&p)

		var calls int
		err := Do(context.Background(), p, func(_ context.Context, _ int) error {
			calls++
			return fatal
		})
		require.Equal(t, fatal, err)
		require.Equal(t, 1, calls)
	})

	t.Run("context canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := Policy{MaxAttempts: 5, BaseDelay: time.Millisecond}

		var calls int
		err := Do(ctx, p, func(_ context.Context, _ int) error {
			calls++
			cancel()
			return errors.New("flaky")
		})
		require.ErrorIs(t, err, context.Canceled)
		require.NotErrorIs(t, err, ErrMaxAttempts)
		require.Equal(t, 1, calls)
	})

	t.Run("already canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		var calls int
		err := Do(ctx, Policy{MaxAttempts: 3}, func(_ context.Context, _ int) error {
			calls++
			return nil
		})
		require.ErrorIs(t, err, context.Canceled)
		require.Zero(t, calls)
	})

	t.Run("invalid policy", func(t *testing.T) {
		err := Do(context.Background(), Policy{}, func(_ context.Context, _ int) error {
			return nil
		})
		require.EqualError(t, err, "invalid retry policy: MaxAttempts should be at least 1")
	})
}

func TestBackoff(t *testing.T) {
	p := Policy{BaseDelay: time.Second}
	require.Equal(t, time.Second, p.Backoff(0))
	require.Equal(t, 2*time.Second, p.Backoff(1))
	require.Equal(t, 4*time.Second, p.Backoff(2))

	p.Constant = true
	require.Equal(t, time.Second, p.Backoff(0))
	require.Equal(t, time.Second, p.Backoff(3))
}
