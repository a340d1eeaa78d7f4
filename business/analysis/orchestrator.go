package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/talkscope/talkscope/business/session"
	"github.com/talkscope/talkscope/foundation/external/emotion"
	"github.com/talkscope/talkscope/foundation/external/llm"
	"go.uber.org/zap"
)

// Task names, as reported in the outcome map.
const (
	TaskAudioQuality  = "audio_quality"
	TaskEmotion       = "emotion"
	TaskManipulation  = "manipulation"
	TaskArgument      = "argument"
	TaskAttitude      = "attitude"
	TaskPsychological = "psychological"
	TaskQuantitative  = "quantitative"
	TaskFlow          = "conversation_flow"
	TaskDialogueActs  = "dialogue_acts"
)

const DefaultTaskTimeout = 45 * time.Second

// Completer is the structured-output model client.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (string, error)
}

// EmotionRecognizer is the external emotion recognition service.
type EmotionRecognizer interface {
	FromAudio(ctx context.Context, audioPath string) (emotion.Result, error)
	FromText(ctx context.Context, text string) (emotion.Result, error)
}

// Outcome reports how one task finished.
type Outcome struct {
	Err     error
	Elapsed time.Duration
}

func (o Outcome) Failed() bool { return o.Err != nil }

// RunResult pairs the aggregate with the per-task outcome map. Dialogue
// acts ride alongside: they feed session context, not the response.
type RunResult struct {
	Response     *Response
	Outcomes     map[string]Outcome
	DialogueActs []session.DialogueAct
}

type Settings struct {
	Logger      *zap.SugaredLogger
	Completer   Completer
	Emotion     EmotionRecognizer
	Prompts     PromptSet
	TaskTimeout time.Duration
}

// Orchestrator fans the fixed analyzer roster out over the model and the
// external services. Tasks it has no client for are skipped and their
// fields keep the defaults.
type Orchestrator struct {
	log         *zap.SugaredLogger
	completer   Completer
	emotion     EmotionRecognizer
	prompts     PromptSet
	taskTimeout time.Duration
}

func NewOrchestrator(s Settings) *Orchestrator {
	if s.TaskTimeout <= 0 {
		s.TaskTimeout = DefaultTaskTimeout
	}
	if s.Prompts == (PromptSet{}) {
		s.Prompts = DefaultPrompts()
	}

	return &Orchestrator{
		log:         s.Logger,
		completer:   s.Completer,
		emotion:     s.Emotion,
		prompts:     s.Prompts,
		taskTimeout: s.TaskTimeout,
	}
}

// Run executes every applicable task concurrently and aggregates their
// results. Failures stay isolated: the outcome map records the error, the
// task's field keeps its default, and nothing is retried.
func (o *Orchestrator) Run(ctx context.Context, in Input) RunResult {
	started := time.Now()
	resp := NewResponse(in.SessionID, in.Speaker, in.Transcript)

	var acts []session.DialogueAct

	type task struct {
		name string
		run  func(context.Context) error
	}

	// Tasks write disjoint response fields, so resp needs no lock.
	tasks := []task{
		{TaskQuantitative, func(context.Context) error {
			resp.QuantitativeAnalysis = Quantify(in.Transcript)
			return nil
		}},
	}

	if in.HasAudio && in.AudioPath != "" {
		tasks = append(tasks, task{TaskAudioQuality, func(context.Context) error {
			m, err := analyzeAudioQuality(in.AudioPath)
			if err != nil {
				return err
			}
			resp.AudioQualityMetrics = m
			return nil
		}})
	}

	if o.emotion != nil {
		tasks = append(tasks, task{TaskEmotion, func(tctx context.Context) error {
			e, err := o.analyzeEmotion(tctx, in)
			if err != nil {
				return err
			}
			resp.EmotionAnalysis = e
			return nil
		}})
	}

	if o.completer != nil {
		tasks = append(tasks,
			task{TaskManipulation, func(tctx context.Context) error {
				m, err := o.analyzeManipulation(tctx, in)
				if err != nil {
					return err
				}
				resp.ManipulationAnalysis = m
				return nil
			}},
			task{TaskArgument, func(tctx context.Context) error {
				a, err := o.analyzeArgument(tctx, in)
				if err != nil {
					return err
				}
				resp.ArgumentAnalysis = a
				return nil
			}},
			task{TaskAttitude, func(tctx context.Context) error {
				a, err := o.analyzeAttitude(tctx, in)
				if err != nil {
					return err
				}
				resp.AttitudeAnalysis = a
				return nil
			}},
			task{TaskPsychological, func(tctx context.Context) error {
				p, err := o.analyzePsychological(tctx, in)
				if err != nil {
					return err
				}
				resp.PsychologicalAnalysis = p
				return nil
			}},
			task{TaskFlow, func(tctx context.Context) error {
				f, err := o.analyzeFlow(tctx, in)
				if err != nil {
					return err
				}
				resp.ConversationFlow = f
				return nil
			}},
			task{TaskDialogueActs, func(tctx context.Context) error {
				tagged, err := o.tagDialogueActs(tctx, in)
				if err != nil {
					return err
				}
				acts = tagged
				return nil
			}},
		)
	}

	outcomes := make(map[string]Outcome, len(tasks))

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(len(tasks))

	for _, t := range tasks {
		go func(t task) {
			defer wg.Done()

			taskStarted := time.Now()
			tctx, cancel := context.WithTimeout(ctx, o.taskTimeout)
			defer cancel()

			err := runRecovered(tctx, t.run)

			mu.Lock()
			outcomes[t.name] = Outcome{Err: err, Elapsed: time.Since(taskStarted)}
			mu.Unlock()

			if err != nil {
				o.log.Errorw("analysis: "+t.name+": task failed", "ERROR", err)
			}
		}(t)
	}

	wg.Wait()

	resp.ProcessingTimeMs = time.Since(started).Milliseconds()

	return RunResult{
		Response:     resp,
		Outcomes:     outcomes,
		DialogueActs: acts,
	}
}

func runRecovered(ctx context.Context, run func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()

	return run(ctx)
}
