package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/talkscope/talkscope/business/session"
	"github.com/talkscope/talkscope/foundation/external/llm"
)

// Dialogue acts never reach the response schema: they accumulate in session
// context and sharpen the flow analyzer on later requests.

type taggedAct struct {
	Speaker   string `json:"speaker"`
	Utterance string `json:"utterance"`
	Act       string `json:"act"`
}

type dialogueActsResult struct {
	Acts []taggedAct `json:"acts"`
}

var dialogueActsSchema = llm.GenerateSchema[dialogueActsResult]()

var dialogueActLabels = []string{
	"greeting", "question", "answer", "statement", "agreement",
	"disagreement", "request", "apology", "closing", "other",
}

func (o *Orchestrator) tagDialogueActs(ctx context.Context, in Input) ([]session.DialogueAct, error) {
	raw, err := o.completer.Complete(ctx, llm.Request{
		SchemaName:        "DialogueActs",
		SchemaDescription: "Tagged utterances JSON",
		Schema:            dialogueActsSchema,
		Instructions:      o.prompts.DialogueActs,
		Input:             in.promptInput(),
	})
	if err != nil {
		return nil, err
	}

	var out dialogueActsResult
	if err := llm.Decode(raw, &out); err != nil {
		return nil, fmt.Errorf("unmarshal dialogue acts: %w", err)
	}

	acts := make([]session.DialogueAct, 0, len(out.Acts))
	for _, a := range out.Acts {
		utterance := strings.TrimSpace(a.Utterance)
		if utterance == "" {
			continue
		}

		speaker := strings.TrimSpace(a.Speaker)
		if speaker == "" {
			speaker = in.Speaker
		}

		acts = append(acts, session.DialogueAct{
			Speaker:   speaker,
			Utterance: utterance,
			Act:       labelOneOf(a.Act, dialogueActLabels, "other"),
		})
	}

	return acts, nil
}
