package analysis

import (
	"context"
	"fmt"

	"github.com/talkscope/talkscope/foundation/external/llm"
)

var argumentSchema = llm.GenerateSchema[ArgumentAnalysis]()

func (o *Orchestrator) analyzeArgument(ctx context.Context, in Input) (ArgumentAnalysis, error) {
	raw, err := o.completer.Complete(ctx, llm.Request{
		SchemaName:        "ArgumentAnalysis",
		SchemaDescription: "Argument structure JSON",
		Schema:            argumentSchema,
		Instructions:      o.prompts.Argument,
		Input:             in.promptInput(),
	})
	if err != nil {
		return ArgumentAnalysis{}, err
	}

	var out ArgumentAnalysis
	if err := llm.Decode(raw, &out); err != nil {
		return ArgumentAnalysis{}, fmt.Errorf("unmarshal argument analysis: %w", err)
	}

	normalizeArgument(&out)
	return out, nil
}
