// Package google wraps the Google Cloud clients used by the analysis
// pipeline: synchronous speech recognition with speaker diarization, and
// optional transcript translation.
package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "google.golang.org/genproto/googleapis/cloud/speech/v1"
)

const (
	domainModel      = "phone_call"
	recognizeTimeout = 120 * time.Second

	defaultMinSpeakers = 2
	defaultMaxSpeakers = 6
)

type SpeechConfig struct {
	CredentialsPath string
	LanguageCode    string
	SpeechContext   []string
	MinSpeakers     int
	MaxSpeakers     int
}

// Transcriber performs one-shot recognition over a complete recording.
type Transcriber struct {
	client        *speech.Client
	languageCode  string
	enhancedMode  bool
	speechContext []string
	minSpeakers   int
	maxSpeakers   int
}

// Segment is one diarized stretch of speech attributed to a single speaker.
type Segment struct {
	SpeakerID    string  `json:"speaker_id"`
	StartSeconds float64 `json:"start_seconds"`
	EndSeconds   float64 `json:"end_seconds"`
	Text         string  `json:"text"`
}

type Transcript struct {
	Text     string
	Segments []Segment
}

func NewTranscriber(cfg SpeechConfig) (*Transcriber, error) {
	if strings.TrimSpace(cfg.CredentialsPath) != "" {
		if err := os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", cfg.CredentialsPath); err != nil {
			return nil, fmt.Errorf("setting google credentials env: %w", err)
		}
	}

	client, err := speech.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("creating speech client: %w", err)
	}

	t := Transcriber{
		client:        client,
		languageCode:  cfg.LanguageCode,
		speechContext: cfg.SpeechContext,
		minSpeakers:   cfg.MinSpeakers,
		maxSpeakers:   cfg.MaxSpeakers,
	}

	if t.languageCode == "" {
		t.languageCode = "en-US"
	}
	if t.minSpeakers <= 0 {
		t.minSpeakers = defaultMinSpeakers
	}
	if t.maxSpeakers < t.minSpeakers {
		t.maxSpeakers = defaultMaxSpeakers
	}

	for _, v := range supportedEnhancedMode() {
		if v == t.languageCode {
			t.enhancedMode = true
			break
		}
	}

	return &t, nil
}

// Transcribe recognizes the complete recording in content. A sampleRate of
// zero leaves the encoding unspecified so the service reads it from the
// container header.
func (t *Transcriber) Transcribe(ctx context.Context, content []byte, sampleRate, channels int) (Transcript, error) {
	ctx, cancel := context.WithTimeout(ctx, recognizeTimeout)
	defer cancel()

	config := &speechpb.RecognitionConfig{
		LanguageCode:               t.languageCode,
		Model:                      domainModel,
		UseEnhanced:                t.enhancedMode,
		EnableAutomaticPunctuation: true,
		EnableWordTimeOffsets:      true,
		DiarizationConfig: &speechpb.SpeakerDiarizationConfig{
			EnableSpeakerDiarization: true,
			MinSpeakerCount:          int32(t.minSpeakers),
			MaxSpeakerCount:          int32(t.maxSpeakers),
		},
	}

	if sampleRate > 0 {
		config.Encoding = speechpb.RecognitionConfig_LINEAR16
		config.SampleRateHertz = int32(sampleRate)
	}
	if channels > 1 {
		config.AudioChannelCount = int32(channels)
	}
	if len(t.speechContext) > 0 {
		config.SpeechContexts = []*speechpb.SpeechContext{{Phrases: t.speechContext}}
	}

	resp, err := t.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: config,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: content},
		},
	})
	if err != nil {
		return Transcript{}, fmt.Errorf("recognizing audio: %w", err)
	}

	return assemble(resp), nil
}

func (t *Transcriber) Close() error {
	return t.client.Close()
}

// assemble joins the per-result transcripts and derives speaker segments
// from the word list of the final result, which carries the speaker tags
// for the whole recording.
func assemble(resp *speechpb.RecognizeResponse) Transcript {
	var out Transcript
	if len(resp.Results) == 0 {
		return out
	}

	var parts []string
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		if text := strings.TrimSpace(r.Alternatives[0].Transcript); text != "" {
			parts = append(parts, text)
		}
	}
	out.Text = strings.Join(parts, " ")

	last := resp.Results[len(resp.Results)-1]
	if len(last.Alternatives) == 0 {
		return out
	}

	var seg *Segment
	var words []string
	for _, w := range last.Alternatives[0].Words {
		speaker := fmt.Sprintf("speaker_%d", w.SpeakerTag)

		if seg == nil || seg.SpeakerID != speaker {
			if seg != nil {
				seg.Text = strings.Join(words, " ")
				out.Segments = append(out.Segments, *seg)
			}
			seg = &Segment{
				SpeakerID:    speaker,
				StartSeconds: w.StartTime.AsDuration().Seconds(),
			}
			words = words[:0]
		}

		seg.EndSeconds = w.EndTime.AsDuration().Seconds()
		words = append(words, w.Word)
	}
	if seg != nil {
		seg.Text = strings.Join(words, " ")
		out.Segments = append(out.Segments, *seg)
	}

	return out
}

func supportedEnhancedMode() []string {
	return []string{"en-US", "en-GB"}
}
