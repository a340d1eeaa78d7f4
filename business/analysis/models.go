// Package analysis runs the fixed roster of conversation analyzers and
// aggregates their results into one response of unchanging shape. Every
// field is always present: a failed task contributes its documented default
// instead of an error.
package analysis

import (
	"time"
)

// Response is the aggregate returned by every analysis endpoint.
type Response struct {
	SessionID             string                `json:"session_id"`
	Speaker               string                `json:"speaker"`
	Transcript            string                `json:"transcript"`
	AudioQualityMetrics   AudioQualityMetrics   `json:"audio_quality_metrics"`
	EmotionAnalysis       EmotionAnalysis       `json:"emotion_analysis"`
	ManipulationAnalysis  ManipulationAnalysis  `json:"manipulation_analysis"`
	ArgumentAnalysis      ArgumentAnalysis      `json:"argument_analysis"`
	AttitudeAnalysis      AttitudeAnalysis      `json:"attitude_analysis"`
	PsychologicalAnalysis PsychologicalAnalysis `json:"psychological_analysis"`
	QuantitativeAnalysis  QuantitativeAnalysis  `json:"quantitative_analysis"`
	ConversationFlow      ConversationFlow      `json:"conversation_flow"`
	AnalyzedAt            time.Time             `json:"analyzed_at"`
	ProcessingTimeMs      int64                 `json:"processing_time_ms"`
}

type AudioQualityMetrics struct {
	DurationSeconds float64 `json:"duration_seconds"`
	SampleRate      int     `json:"sample_rate"`
	Channels        int     `json:"channels"`
	MeanAmplitude   float64 `json:"mean_amplitude"`
	PeakAmplitude   float64 `json:"peak_amplitude"`
	ClippingRatio   float64 `json:"clipping_ratio"`
	SpeechRatio     float64 `json:"speech_ratio"`
	QualityLabel    string  `json:"quality_label"`
}

type EmotionAnalysis struct {
	DominantEmotion string             `json:"dominant_emotion"`
	Emotions        map[string]float64 `json:"emotions"`
	Confidence      float64            `json:"confidence"`
	Source          string             `json:"source"`
}

type ManipulationTechnique struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Evidence    string `json:"evidence"`
	Severity    string `json:"severity"`
}

type ManipulationAnalysis struct {
	ManipulationDetected bool                    `json:"manipulation_detected"`
	Techniques           []ManipulationTechnique `json:"techniques"`
	RiskLevel            string                  `json:"risk_level"`
	Confidence           float64                 `json:"confidence"`
}

type ArgumentAnalysis struct {
	MainClaims         []string `json:"main_claims"`
	SupportingEvidence []string `json:"supporting_evidence"`
	LogicalFallacies   []string `json:"logical_fallacies"`
	ArgumentCoherence  float64  `json:"argument_coherence"`
	Persuasiveness     string   `json:"persuasiveness"`
}

type AttitudeAnalysis struct {
	OverallSentiment string            `json:"overall_sentiment"`
	SentimentScore   float64           `json:"sentiment_score"`
	EmotionalTone    string            `json:"emotional_tone"`
	SpeakerAttitudes map[string]string `json:"speaker_attitudes"`
	RespectLevel     string            `json:"respect_level"`
}

type PsychologicalAnalysis struct {
	EmotionalState    string   `json:"emotional_state"`
	StressIndicators  []string `json:"stress_indicators"`
	CognitiveLoad     string   `json:"cognitive_load"`
	ConfidenceMarkers []string `json:"confidence_markers"`
	Observations      []string `json:"observations"`
}

type QuantitativeAnalysis struct {
	WordCount         int     `json:"word_count"`
	SentenceCount     int     `json:"sentence_count"`
	UniqueWordCount   int     `json:"unique_word_count"`
	AvgSentenceLength float64 `json:"avg_sentence_length"`
	FillerWordCount   int     `json:"filler_word_count"`
	QuestionCount     int     `json:"question_count"`
	TypeTokenRatio    float64 `json:"type_token_ratio"`
}

type ConversationFlow struct {
	EngagementLevel      string             `json:"engagement_level"`
	TopicCoherence       float64            `json:"topic_coherence"`
	SpeakerDominance     map[string]float64 `json:"speaker_dominance"`
	TurnTakingEfficiency string             `json:"turn_taking_efficiency"`
	ConversationPhase    string             `json:"conversation_phase"`
	FlowDisruptions      []string           `json:"flow_disruptions"`
}

// The documented defaults. A task that fails, times out, or is skipped
// leaves its field at exactly these values.

func DefaultAudioQualityMetrics() AudioQualityMetrics {
	return AudioQualityMetrics{QualityLabel: "unknown"}
}

func DefaultEmotionAnalysis() EmotionAnalysis {
	return EmotionAnalysis{
		DominantEmotion: "neutral",
		Emotions:        map[string]float64{},
		Source:          "none",
	}
}

func DefaultManipulationAnalysis() ManipulationAnalysis {
	return ManipulationAnalysis{
		Techniques: []ManipulationTechnique{},
		RiskLevel:  "none",
	}
}

func DefaultArgumentAnalysis() ArgumentAnalysis {
	return ArgumentAnalysis{
		MainClaims:         []string{},
		SupportingEvidence: []string{},
		LogicalFallacies:   []string{},
		ArgumentCoherence:  0.5,
		Persuasiveness:     "moderate",
	}
}

func DefaultAttitudeAnalysis() AttitudeAnalysis {
	return AttitudeAnalysis{
		OverallSentiment: "neutral",
		EmotionalTone:    "neutral",
		SpeakerAttitudes: map[string]string{},
		RespectLevel:     "neutral",
	}
}

func DefaultPsychologicalAnalysis() PsychologicalAnalysis {
	return PsychologicalAnalysis{
		EmotionalState:    "stable",
		StressIndicators:  []string{},
		CognitiveLoad:     "moderate",
		ConfidenceMarkers: []string{},
		Observations:      []string{},
	}
}

func DefaultQuantitativeAnalysis() QuantitativeAnalysis {
	return QuantitativeAnalysis{}
}

func DefaultConversationFlow() ConversationFlow {
	return ConversationFlow{
		EngagementLevel:      "moderate",
		TopicCoherence:       0.5,
		SpeakerDominance:     map[string]float64{},
		TurnTakingEfficiency: "balanced",
		ConversationPhase:    "development",
		FlowDisruptions:      []string{},
	}
}

// NewResponse returns a fully-defaulted aggregate for one request. Tasks
// overwrite their own field on success and nothing else.
func NewResponse(sessionID, speaker, transcript string) *Response {
	return &Response{
		SessionID:             sessionID,
		Speaker:               speaker,
		Transcript:            transcript,
		AudioQualityMetrics:   DefaultAudioQualityMetrics(),
		EmotionAnalysis:       DefaultEmotionAnalysis(),
		ManipulationAnalysis:  DefaultManipulationAnalysis(),
		ArgumentAnalysis:      DefaultArgumentAnalysis(),
		AttitudeAnalysis:      DefaultAttitudeAnalysis(),
		PsychologicalAnalysis: DefaultPsychologicalAnalysis(),
		QuantitativeAnalysis:  DefaultQuantitativeAnalysis(),
		ConversationFlow:      DefaultConversationFlow(),
		AnalyzedAt:            time.Now().UTC(),
	}
}
