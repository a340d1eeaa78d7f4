package analysis

import (
	"context"
	"fmt"

	"github.com/talkscope/talkscope/foundation/external/llm"
)

var psychologicalSchema = llm.GenerateSchema[PsychologicalAnalysis]()

func (o *Orchestrator) analyzePsychological(ctx context.Context, in Input) (PsychologicalAnalysis, error) {
	raw, err := o.completer.Complete(ctx, llm.Request{
		SchemaName:        "PsychologicalAnalysis",
		SchemaDescription: "Psychological signals JSON",
		Schema:            psychologicalSchema,
		Instructions:      o.prompts.Psychological,
		Input:             in.promptInput(),
	})
	if err != nil {
		return PsychologicalAnalysis{}, err
	}

	var out PsychologicalAnalysis
	if err := llm.Decode(raw, &out); err != nil {
		return PsychologicalAnalysis{}, fmt.Errorf("unmarshal psychological analysis: %w", err)
	}

	normalizePsychological(&out)
	return out, nil
}
