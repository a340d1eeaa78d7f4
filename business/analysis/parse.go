package analysis

import (
	"math"
	"strings"
)

// Model output is normalized field by field: a malformed value falls back to
// its schema default without failing the rest of the sub-result.

var (
	engagementLevels = []string{"low", "moderate", "high", "very_high"}
	turnTakingLabels = []string{"poor", "unbalanced", "balanced", "efficient"}
	phaseLabels      = []string{"opening", "development", "climax", "resolution", "closing"}
	riskLevels       = []string{"none", "low", "medium", "high", "critical"}
	persuasionLabels = []string{"weak", "moderate", "strong", "very_strong"}
	sentimentLabels  = []string{"very_negative", "negative", "neutral", "positive", "very_positive"}
	loadLabels       = []string{"low", "moderate", "high", "overloaded"}
)

func labelOneOf(v string, allowed []string, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	v = strings.ReplaceAll(v, " ", "_")
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return fallback
}

func clamp(v, lo, hi, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v, fallback float64) float64 {
	return clamp(v, 0, 1, fallback)
}

func cleanStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeManipulation(m *ManipulationAnalysis) {
	m.RiskLevel = labelOneOf(m.RiskLevel, riskLevels, "none")
	m.Confidence = clamp01(m.Confidence, 0)

	techniques := make([]ManipulationTechnique, 0, len(m.Techniques))
	for _, t := range m.Techniques {
		t.Name = strings.TrimSpace(t.Name)
		if t.Name == "" {
			continue
		}
		t.Severity = labelOneOf(t.Severity, []string{"low", "medium", "high"}, "low")
		techniques = append(techniques, t)
	}
	m.Techniques = techniques

	// A populated technique list contradicts a negative detection flag.
	if len(m.Techniques) > 0 {
		m.ManipulationDetected = true
	}
}

func normalizeArgument(a *ArgumentAnalysis) {
	a.MainClaims = cleanStrings(a.MainClaims)
	a.SupportingEvidence = cleanStrings(a.SupportingEvidence)
	a.LogicalFallacies = cleanStrings(a.LogicalFallacies)
	a.ArgumentCoherence = clamp01(a.ArgumentCoherence, 0.5)
	a.Persuasiveness = labelOneOf(a.Persuasiveness, persuasionLabels, "moderate")
}

func normalizePsychological(p *PsychologicalAnalysis) {
	if p.EmotionalState = strings.TrimSpace(strings.ToLower(p.EmotionalState)); p.EmotionalState == "" {
		p.EmotionalState = "stable"
	}
	p.StressIndicators = cleanStrings(p.StressIndicators)
	p.CognitiveLoad = labelOneOf(p.CognitiveLoad, loadLabels, "moderate")
	p.ConfidenceMarkers = cleanStrings(p.ConfidenceMarkers)
	p.Observations = cleanStrings(p.Observations)
}

// speakerAttitude and speakerShare stand in for maps in the model output:
// strict structured output enumerates every property, so open-ended maps
// travel as pair lists and fold back here.

type speakerAttitude struct {
	Speaker  string `json:"speaker"`
	Attitude string `json:"attitude"`
}

type speakerShare struct {
	Speaker string  `json:"speaker"`
	Share   float64 `json:"share"`
}

func attitudeFromResult(r attitudeResult) AttitudeAnalysis {
	out := AttitudeAnalysis{
		OverallSentiment: labelOneOf(r.OverallSentiment, sentimentLabels, "neutral"),
		SentimentScore:   clamp(r.SentimentScore, -1, 1, 0),
		EmotionalTone:    strings.TrimSpace(strings.ToLower(r.EmotionalTone)),
		SpeakerAttitudes: map[string]string{},
		RespectLevel:     labelOneOf(r.RespectLevel, []string{"disrespectful", "neutral", "respectful"}, "neutral"),
	}
	if out.EmotionalTone == "" {
		out.EmotionalTone = "neutral"
	}

	for _, sa := range r.SpeakerAttitudes {
		speaker := strings.TrimSpace(sa.Speaker)
		attitude := strings.TrimSpace(sa.Attitude)
		if speaker == "" || attitude == "" {
			continue
		}
		out.SpeakerAttitudes[speaker] = attitude
	}

	return out
}

// flowFromResult enforces the flow sub-result contract: labels fall back to
// their defaults, coherence clamps to [0,1], and dominance shares clamp
// per speaker without renormalizing the distribution.
func flowFromResult(r flowResult) ConversationFlow {
	out := ConversationFlow{
		EngagementLevel:      labelOneOf(r.EngagementLevel, engagementLevels, "moderate"),
		TopicCoherence:       clamp01(r.TopicCoherence, 0.5),
		SpeakerDominance:     map[string]float64{},
		TurnTakingEfficiency: labelOneOf(r.TurnTakingEfficiency, turnTakingLabels, "balanced"),
		ConversationPhase:    labelOneOf(r.ConversationPhase, phaseLabels, "development"),
		FlowDisruptions:      cleanStrings(r.FlowDisruptions),
	}

	for _, ss := range r.SpeakerDominance {
		speaker := strings.TrimSpace(ss.Speaker)
		if speaker == "" {
			continue
		}
		out.SpeakerDominance[speaker] = clamp01(ss.Share, 0)
	}

	return out
}
