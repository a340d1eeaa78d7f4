package emotion

type voiceEmotion struct {
	Confidence float64 `json:"confidence"`
	Result     string  `json:"result"`
}

type errorDetail struct {
	Message string `json:"message"`
}

type voiceResult struct {
	Emotion     []voiceEmotion       `json:"emotion"`
	Percentage  []map[string]float64 `json:"percentage"`
	Error       errorDetail          `json:"detail"`
	AudioLength float64              `json:"audio_length_seconds"`
}

type textResult struct {
	Emotion    string             `json:"emotion"`
	Confidence float64            `json:"confidence"`
	Percentage map[string]float64 `json:"percentage"`
}
