package analysis

import (
	"context"
	"fmt"

	"github.com/talkscope/talkscope/foundation/external/llm"
)

type flowResult struct {
	EngagementLevel      string         `json:"engagement_level"`
	TopicCoherence       float64        `json:"topic_coherence"`
	SpeakerDominance     []speakerShare `json:"speaker_dominance"`
	TurnTakingEfficiency string         `json:"turn_taking_efficiency"`
	ConversationPhase    string         `json:"conversation_phase"`
	FlowDisruptions      []string       `json:"flow_disruptions"`
}

var flowSchema = llm.GenerateSchema[flowResult]()

func (o *Orchestrator) analyzeFlow(ctx context.Context, in Input) (ConversationFlow, error) {
	raw, err := o.completer.Complete(ctx, llm.Request{
		SchemaName:        "ConversationFlow",
		SchemaDescription: "Conversation flow JSON",
		Schema:            flowSchema,
		Instructions:      o.prompts.Flow,
		Input:             in.promptInput(),
	})
	if err != nil {
		return ConversationFlow{}, err
	}

	var out flowResult
	if err := llm.Decode(raw, &out); err != nil {
		return ConversationFlow{}, fmt.Errorf("unmarshal conversation flow: %w", err)
	}

	return flowFromResult(out), nil
}
