package analysis

import (
	"context"
	"fmt"

	"github.com/talkscope/talkscope/foundation/external/llm"
)

var manipulationSchema = llm.GenerateSchema[ManipulationAnalysis]()

func (o *Orchestrator) analyzeManipulation(ctx context.Context, in Input) (ManipulationAnalysis, error) {
	raw, err := o.completer.Complete(ctx, llm.Request{
		SchemaName:        "ManipulationAnalysis",
		SchemaDescription: "Manipulation screening JSON",
		Schema:            manipulationSchema,
		Instructions:      o.prompts.Manipulation,
		Input:             in.promptInput(),
	})
	if err != nil {
		return ManipulationAnalysis{}, err
	}

	var out ManipulationAnalysis
	if err := llm.Decode(raw, &out); err != nil {
		return ManipulationAnalysis{}, fmt.Errorf("unmarshal manipulation analysis: %w", err)
	}

	normalizeManipulation(&out)
	return out, nil
}
