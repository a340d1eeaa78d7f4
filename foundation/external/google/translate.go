package google

import (
	"context"
	"fmt"
	"os"
	"time"

	"cloud.google.com/go/translate"
	"golang.org/x/text/language"
)

const translationTimeout = 10 * time.Second

// Translator converts transcripts into the configured target language
// before they reach the analyzers.
type Translator struct {
	targetTag language.Tag
	sourceTag language.Tag
	client    *translate.Client
}

func NewTranslator(credentialsPath, sourceLanguageCode, targetLanguageCode string) (*Translator, error) {
	if env := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); env == "" && credentialsPath != "" {
		os.Setenv("GOOGLE_APPLICATION_CREDENTIALS", credentialsPath)
	}

	targetTag, err := language.Parse(targetLanguageCode)
	if err != nil {
		return nil, fmt.Errorf("incorrect target language code: %w", err)
	}

	t := Translator{targetTag: targetTag}

	// An empty source leaves the tag unset and the service detects it.
	if sourceLanguageCode != "" {
		t.sourceTag, err = language.Parse(sourceLanguageCode)
		if err != nil {
			return nil, fmt.Errorf("incorrect source language code: %w", err)
		}
	}

	t.client, err = translate.NewClient(context.Background())
	if err != nil {
		return nil, fmt.Errorf("unable to create google translate client: %w", err)
	}

	return &t, nil
}

func (t *Translator) Translate(ctx context.Context, text string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, translationTimeout)
	defer cancel()

	option := translate.Options{
		Source: t.sourceTag,
		Format: "text",
	}

	resp, err := t.client.Translate(ctx, []string{text}, t.targetTag, &option)
	if err != nil {
		return "", fmt.Errorf("unable to translate text: %w", err)
	}
	if len(resp) == 0 {
		return "", fmt.Errorf("empty translation response")
	}

	return resp[0].Text, nil
}

func (t *Translator) Close() error {
	return t.client.Close()
}
