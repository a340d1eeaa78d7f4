package analysis

import (
	"fmt"
	"strings"

	"github.com/talkscope/talkscope/business/session"
)

// Input carries everything one analysis run may consume.
type Input struct {
	SessionID  string
	Speaker    string
	Transcript string

	// AudioPath points at the scratch recording; empty for text submissions.
	AudioPath string
	HasAudio  bool

	// Segments holds the current recording's diarization, when audio was
	// transcribed this request. Context carries what earlier requests left.
	Segments []session.SpeakerSegment
	Context  session.Context
}

// promptInput renders the model-facing view of the request: the transcript
// with its speaker label, plus whatever session context has accumulated.
func (in Input) promptInput() string {
	var b strings.Builder

	fmt.Fprintf(&b, "SPEAKER: %s\n", in.Speaker)
	fmt.Fprintf(&b, "TRANSCRIPT:\n%s\n", in.Transcript)

	if n := in.Context.AnalysisCount; n > 0 {
		fmt.Fprintf(&b, "\nSESSION CONTEXT: exchange %d of an ongoing session\n", n+1)
	}

	segments := in.Segments
	if len(segments) == 0 {
		segments = in.Context.Segments
	}
	if len(segments) > 0 {
		b.WriteString("\nSPEAKER SEGMENTS (diarized from the recording):\n")
		for _, s := range segments {
			fmt.Fprintf(&b, "- %s: %.1fs-%.1fs\n", s.SpeakerID, s.StartSeconds, s.EndSeconds)
		}
	}

	if len(in.Context.RecentActs) > 0 {
		b.WriteString("\nRECENT DIALOGUE ACTS:\n")
		acts := in.Context.RecentActs
		if len(acts) > 20 {
			acts = acts[len(acts)-20:]
		}
		for _, a := range acts {
			fmt.Fprintf(&b, "- [%s] %s: %s\n", a.Act, a.Speaker, truncate(a.Utterance, 120))
		}
	}

	return b.String()
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
