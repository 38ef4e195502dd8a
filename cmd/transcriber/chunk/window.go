package chunk

import (
	"errors"
	"fmt"
)

var ErrInvalidParameters = errors.New("invalid chunking parameters")

// Window is a time slice of the source audio, in whole seconds.
// Start is inclusive and End exclusive. Index is 1-based.
type Window struct {
	Start int
	End   int
	Index int
}

func (w Window) Duration() int {
	return w.End - w.Start
}

func (w Window) String() string {
	return fmt.Sprintf("chunk %d (%s-%s)", w.Index, FormatTS(w.Start), FormatTS(w.End))
}

// FormatTS formats seconds as zero-padded MM:SS. Minutes do not roll over into hours.
func FormatTS(sec int) string {
	return fmt.Sprintf("%02d:%02d", sec/60, sec%60)
}
