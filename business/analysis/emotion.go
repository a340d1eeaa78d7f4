package analysis

import (
	"context"
	"strings"

	"github.com/talkscope/talkscope/foundation/external/emotion"
)

// analyzeEmotion uses the voice endpoint when a recording is present and
// falls back to the text endpoint for transcript-only requests.
func (o *Orchestrator) analyzeEmotion(ctx context.Context, in Input) (EmotionAnalysis, error) {
	if in.HasAudio && in.AudioPath != "" {
		r, err := o.emotion.FromAudio(ctx, in.AudioPath)
		if err != nil {
			return EmotionAnalysis{}, err
		}
		return emotionAnalysisFrom(r, "voice"), nil
	}

	r, err := o.emotion.FromText(ctx, in.Transcript)
	if err != nil {
		return EmotionAnalysis{}, err
	}
	return emotionAnalysisFrom(r, "text"), nil
}

func emotionAnalysisFrom(r emotion.Result, source string) EmotionAnalysis {
	out := EmotionAnalysis{
		DominantEmotion: strings.ToLower(strings.TrimSpace(r.DominantEmotion)),
		Emotions:        r.Emotions,
		Confidence:      clamp01(r.Confidence, 0),
		Source:          source,
	}

	if out.DominantEmotion == "" {
		out.DominantEmotion = "neutral"
	}
	if out.Emotions == nil {
		out.Emotions = map[string]float64{}
	}

	return out
}
