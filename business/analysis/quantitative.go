package analysis

import (
	"strings"
	"unicode"
)

// Quantitative metrics are computed locally: they are deterministic counts,
// and a model round-trip would add latency and cost for strictly worse
// accuracy.

var fillerWords = []string{"um", "uh", "uhm", "er", "ah", "hmm"}

var fillerPhrases = []string{"you know", "i mean", "sort of", "kind of"}

// Quantify derives the text statistics sub-result from a transcript.
func Quantify(text string) QuantitativeAnalysis {
	var q QuantitativeAnalysis

	lower := strings.ToLower(text)
	tokens := tokenize(lower)

	q.WordCount = len(tokens)

	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		seen[t] = struct{}{}
	}
	q.UniqueWordCount = len(seen)

	if q.WordCount > 0 {
		q.TypeTokenRatio = float64(q.UniqueWordCount) / float64(q.WordCount)
	}

	q.SentenceCount, q.QuestionCount = countSentences(text)
	if q.SentenceCount > 0 {
		q.AvgSentenceLength = float64(q.WordCount) / float64(q.SentenceCount)
	}

	for _, t := range tokens {
		for _, f := range fillerWords {
			if t == f {
				q.FillerWordCount++
				break
			}
		}
	}
	for _, p := range fillerPhrases {
		q.FillerWordCount += strings.Count(lower, p)
	}

	return q
}

func tokenize(lower string) []string {
	return strings.FieldsFunc(lower, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// countSentences treats each run of terminator punctuation as one sentence
// boundary; a trailing fragment without a terminator still counts.
func countSentences(text string) (sentences, questions int) {
	inSentence := false

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			inSentence = true
			continue
		}

		if r == '.' || r == '!' || r == '?' {
			if inSentence {
				sentences++
				if r == '?' {
					questions++
				}
				inSentence = false
			}
		}
	}

	if inSentence {
		sentences++
	}

	return sentences, questions
}
