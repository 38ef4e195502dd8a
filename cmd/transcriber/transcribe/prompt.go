package transcribe

import (
	"fmt"

	"github.com/workflowcards/interview-transcriber/cmd/transcriber/chunk"
)

const promptTmpl = `Transcribe ALL spoken words in this audio chunk with speaker labels and timestamps.

Audio segment: %[1]s to %[2]s of the full recording.

MANDATORY REQUIREMENTS:
1. Transcribe EVERY SINGLE SPOKEN WORD until %[2]s, do NOT stop early
2. Transcribe ALL speech regardless of topic, including questions, answers and side comments
3. EVERY LINE must start with "%[3]s:" or "%[4]s:", NO EXCEPTIONS
4. Use absolute timestamps from the full recording (starting at %[1]s)
5. Continue transcribing past apparent endings like "thank you" or "goodbye"

CRITICAL FORMATTING, EVERY line must look exactly like this:
%[3]s: [MM:SS] exact words spoken
%[4]s: [MM:SS] exact words spoken
Never write a line such as "[MM:SS] words" without a speaker label.

The first person to speak is the %[3]s.
IGNORE ONLY: background sounds, music, non-speech audio.

CRITICAL: Your final timestamp must reach very close to %[2]s. The audio contains speech throughout the entire duration.`

// Instructions builds the request sent along with the audio of window w.
func Instructions(w chunk.Window, roleA, roleB string) string {
	return fmt.Sprintf(promptTmpl, chunk.FormatTS(w.Start), chunk.FormatTS(w.End), roleA, roleB)
}
