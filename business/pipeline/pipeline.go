// Package pipeline drives one analysis request end to end: transcription
// for recordings, optional translation, the analyzer fan-out, and finally
// recording the aggregate into the session store. Progress is reported as
// events, delivered to the caller's emit callback and to the session's
// pubsub topic.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/talkscope/talkscope/business/analysis"
	"github.com/talkscope/talkscope/business/session"
	"github.com/talkscope/talkscope/foundation/audio"
	"github.com/talkscope/talkscope/foundation/external/google"
	"github.com/talkscope/talkscope/foundation/pubsub"
	"go.uber.org/zap"
)

// ErrNoSpeech reports a recording in which transcription found nothing to
// analyze.
var ErrNoSpeech = errors.New("no speech recognized in recording")

// Analyzer runs the analysis roster. Satisfied by *analysis.Orchestrator.
type Analyzer interface {
	Run(ctx context.Context, in analysis.Input) analysis.RunResult
}

// Transcriber converts a recording into a diarized transcript.
type Transcriber interface {
	Transcribe(ctx context.Context, content []byte, sampleRate, channels int) (google.Transcript, error)
}

// Translator rewrites a transcript into the configured analysis language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// AudioRequest is one uploaded recording to analyze.
type AudioRequest struct {
	SessionID string
	Speaker   string
	AudioPath string
}

// TextRequest is one transcript to analyze directly.
type TextRequest struct {
	SessionID string
	Speaker   string
	Text      string
}

type Settings struct {
	Logger       *zap.SugaredLogger
	Store        session.Store
	Orchestrator Analyzer
	Broker       *pubsub.Broker
	Transcriber  Transcriber
	Translator   Translator
}

type Pipeline struct {
	log         *zap.SugaredLogger
	store       session.Store
	orch        Analyzer
	broker      *pubsub.Broker
	transcriber Transcriber
	translator  Translator
}

func New(s Settings) *Pipeline {
	return &Pipeline{
		log:         s.Logger,
		store:       s.Store,
		orch:        s.Orchestrator,
		broker:      s.Broker,
		transcriber: s.Transcriber,
		translator:  s.Translator,
	}
}

// RunAudio analyzes a recording. The scratch file at req.AudioPath must
// outlive the call; cleanup stays with the caller.
func (p *Pipeline) RunAudio(ctx context.Context, req AudioRequest, emit EmitFunc) (*analysis.Response, error) {
	sessionID, err := p.store.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, p.fail(req.SessionID, emit, fmt.Errorf("open session: %w", err))
	}

	p.announce(sessionID, emit, progressEvent(StageAccepted, 5, "request accepted"))

	if p.transcriber == nil {
		return nil, p.fail(sessionID, emit, errors.New("transcription is not configured"))
	}

	p.announce(sessionID, emit, progressEvent(StageTranscription, 15, "transcribing recording"))

	// Container details are best-effort: non-WAV uploads are handed to the
	// speech API without a declared encoding and sniffed there.
	var sampleRate, channels int
	if info, err := audio.Inspect(req.AudioPath); err == nil {
		sampleRate, channels = info.SampleRate, info.Channels
	}

	content, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, p.fail(sessionID, emit, fmt.Errorf("read recording: %w", err))
	}

	transcript, err := p.transcriber.Transcribe(ctx, content, sampleRate, channels)
	if err != nil {
		return nil, p.fail(sessionID, emit, fmt.Errorf("transcribe recording: %w", err))
	}
	if transcript.Text == "" {
		return nil, p.fail(sessionID, emit, ErrNoSpeech)
	}

	p.announce(sessionID, emit, progressDataEvent(StageTranscription, 35, "transcription complete",
		map[string]string{"transcript": transcript.Text}))

	segments := make([]session.SpeakerSegment, 0, len(transcript.Segments))
	for _, s := range transcript.Segments {
		segments = append(segments, session.SpeakerSegment{
			SpeakerID:    s.SpeakerID,
			StartSeconds: s.StartSeconds,
			EndSeconds:   s.EndSeconds,
		})
	}

	return p.analyze(ctx, runInput{
		sessionID:  sessionID,
		speaker:    req.Speaker,
		transcript: transcript.Text,
		audioPath:  req.AudioPath,
		hasAudio:   true,
		segments:   segments,
	}, emit)
}

// RunText analyzes a transcript submitted directly. Input validation is the
// handler's concern; by the time a request reaches here it is analyzed
// as-is.
func (p *Pipeline) RunText(ctx context.Context, req TextRequest, emit EmitFunc) (*analysis.Response, error) {
	sessionID, err := p.store.GetOrCreate(ctx, req.SessionID)
	if err != nil {
		return nil, p.fail(req.SessionID, emit, fmt.Errorf("open session: %w", err))
	}

	p.announce(sessionID, emit, progressEvent(StageAccepted, 5, "request accepted"))

	return p.analyze(ctx, runInput{
		sessionID:  sessionID,
		speaker:    req.Speaker,
		transcript: req.Text,
	}, emit)
}

type runInput struct {
	sessionID  string
	speaker    string
	transcript string
	audioPath  string
	hasAudio   bool
	segments   []session.SpeakerSegment
}

func (p *Pipeline) analyze(ctx context.Context, in runInput, emit EmitFunc) (*analysis.Response, error) {
	transcript := in.transcript

	// Translation enriches the analyzers; a failure falls back to the
	// original text rather than failing the run.
	if p.translator != nil {
		p.announce(in.sessionID, emit, progressEvent(StageTranslation, 40, "translating transcript"))

		translated, err := p.translator.Translate(ctx, transcript)
		switch {
		case err != nil:
			p.log.Errorw("pipeline: translation failed", "ERROR", err, "session", in.sessionID)
		case translated != "":
			transcript = translated
		}
	}

	sessionCtx, err := p.store.GetContext(ctx, in.sessionID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			p.log.Errorw("pipeline: load session context failed", "ERROR", err, "session", in.sessionID)
		}
		sessionCtx = session.Context{SessionID: in.sessionID}
	}

	p.announce(in.sessionID, emit, progressEvent(StageAnalysis, 50, "running analyzers"))

	res := p.orch.Run(ctx, analysis.Input{
		SessionID:  in.sessionID,
		Speaker:    in.speaker,
		Transcript: transcript,
		AudioPath:  in.audioPath,
		HasAudio:   in.hasAudio,
		Segments:   in.segments,
		Context:    sessionCtx,
	})

	p.announce(in.sessionID, emit, progressEvent(StageAggregation, 90, "aggregating results"))

	p.record(ctx, in, res)

	p.announce(in.sessionID, emit, resultEvent(res.Response))

	return res.Response, nil
}

// record appends the finished aggregate to the session history. The
// aggregate already exists at this point, so a storage error is logged and
// the response still returned.
func (p *Pipeline) record(ctx context.Context, in runInput, res analysis.RunResult) {
	raw, err := json.Marshal(res.Response)
	if err != nil {
		p.log.Errorw("pipeline: encode analysis record failed", "ERROR", err, "session", in.sessionID)
		return
	}

	rec := session.Record{
		AnalyzedAt:   res.Response.AnalyzedAt,
		Speaker:      in.speaker,
		Transcript:   res.Response.Transcript,
		DialogueActs: res.DialogueActs,
		Segments:     in.segments,
		Response:     raw,
	}

	if err := p.store.AddAnalysis(ctx, in.sessionID, rec); err != nil {
		p.log.Errorw("pipeline: record analysis failed", "ERROR", err, "session", in.sessionID)
	}
}

func (p *Pipeline) announce(sessionID string, emit EmitFunc, ev Event) {
	if emit != nil {
		emit(ev)
	}
	if p.broker != nil {
		p.broker.Publish(sessionID, ev)
	}
}

func (p *Pipeline) fail(sessionID string, emit EmitFunc, err error) error {
	p.log.Errorw("pipeline: run failed", "ERROR", err, "session", sessionID)
	p.announce(sessionID, emit, errorEvent(err.Error()))
	return err
}
