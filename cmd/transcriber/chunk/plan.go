package chunk

import (
	"fmt"
)

// Plan splits [0, total) into windows of chunkDuration seconds, each one starting
// overlap seconds before the end of the previous one.
func Plan(total, chunkDuration, overlap int) ([]Window, error) {
	if total <= 0 {
		return nil, fmt.Errorf("%w: total duration must be positive, got %d", ErrInvalidParameters, total)
	}
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("%w: chunk duration must be positive, got %d", ErrInvalidParameters, chunkDuration)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap cannot be negative, got %d", ErrInvalidParameters, overlap)
	}
	if overlap >= chunkDuration {
		return nil, fmt.Errorf("%w: chunk duration %d must be greater than overlap %d",
			ErrInvalidParameters, chunkDuration, overlap)
	}

	step := chunkDuration - overlap
	windows := make([]Window, 0, (total+step-1)/step)
	for start, idx := 0, 1; ; idx++ {
		end := min(start+chunkDuration, total)
		windows = append(windows, Window{Start: start, End: end, Index: idx})
		if end == total {
			break
		}
		start += step
	}

	return windows, nil
}

// Covers reports whether windows leave no gap in [0, total).
func Covers(windows []Window, total int) bool {
	if len(windows) == 0 {
		return total <= 0
	}
	reached := 0
	for _, w := range windows {
		if w.Start > reached {
			return false
		}
		reached = max(reached, w.End)
	}
	return reached >= total
}
