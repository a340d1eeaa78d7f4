package analysis

import (
	"github.com/talkscope/talkscope/foundation/audio"
)

func analyzeAudioQuality(path string) (AudioQualityMetrics, error) {
	m, err := audio.Analyze(path)
	if err != nil {
		return AudioQualityMetrics{}, err
	}

	return AudioQualityMetrics{
		DurationSeconds: m.DurationSeconds,
		SampleRate:      m.SampleRate,
		Channels:        m.Channels,
		MeanAmplitude:   m.MeanAmplitude,
		PeakAmplitude:   m.PeakAmplitude,
		ClippingRatio:   m.ClippingRatio,
		SpeechRatio:     m.SpeechRatio,
		QualityLabel:    m.QualityLabel,
	}, nil
}
