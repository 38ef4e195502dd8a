package transcribe

import (
	"strings"
)

// lastCueMs is the length given to the final cue when the recording
// duration does not extend past its start.
const lastCueMs = 5000

type segment struct {
	Speaker string
	Text    string
	StartTS int64
	EndTS   int64
}

func (s *segment) sanitize(fns ...func(string) string) {
	s.Text = strings.TrimSpace(s.Text)
	for _, fn := range fns {
		s.Text = fn(s.Text)
	}
}

// segments turns the transcript lines into timed segments. Lines without a
// timestamp are folded into the preceding segment.
func (t MergedTranscript) segments() []segment {
	var segs []segment

	for _, l := range t.Lines() {
		if !l.HasTimestamp() {
			if l.Content == "" {
				continue
			}
			if len(segs) == 0 {
				segs = append(segs, segment{Speaker: l.Role, Text: l.Content})
				continue
			}
			segs[len(segs)-1].Text += " " + l.Content
			continue
		}

		segs = append(segs, segment{
			Speaker: l.Role,
			Text:    l.Content,
			StartTS: int64(l.Timestamp) * 1000,
		})
	}

	for i := range segs {
		if i < len(segs)-1 {
			segs[i].EndTS = max(segs[i+1].StartTS, segs[i].StartTS)
			continue
		}
		if end := int64(t.Duration) * 1000; end > segs[i].StartTS {
			segs[i].EndTS = end
		} else {
			segs[i].EndTS = segs[i].StartTS + lastCueMs
		}
	}

	return segs
}
