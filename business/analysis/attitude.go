package analysis

import (
	"context"
	"fmt"

	"github.com/talkscope/talkscope/foundation/external/llm"
)

type attitudeResult struct {
	OverallSentiment string            `json:"overall_sentiment"`
	SentimentScore   float64           `json:"sentiment_score"`
	EmotionalTone    string            `json:"emotional_tone"`
	SpeakerAttitudes []speakerAttitude `json:"speaker_attitudes"`
	RespectLevel     string            `json:"respect_level"`
}

var attitudeSchema = llm.GenerateSchema[attitudeResult]()

func (o *Orchestrator) analyzeAttitude(ctx context.Context, in Input) (AttitudeAnalysis, error) {
	raw, err := o.completer.Complete(ctx, llm.Request{
		SchemaName:        "AttitudeAnalysis",
		SchemaDescription: "Sentiment and attitude JSON",
		Schema:            attitudeSchema,
		Instructions:      o.prompts.Attitude,
		Input:             in.promptInput(),
	})
	if err != nil {
		return AttitudeAnalysis{}, err
	}

	var out attitudeResult
	if err := llm.Decode(raw, &out); err != nil {
		return AttitudeAnalysis{}, fmt.Errorf("unmarshal attitude analysis: %w", err)
	}

	return attitudeFromResult(out), nil
}
