// Package emotion calls the external emotion recognition service. The
// service exposes a voice endpoint taking a recording and a text endpoint
// taking a transcript; both report the same result shape.
package emotion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const apiTimeout = 15 * time.Second

type Config struct {
	VoiceEndpoint string
	TextEndpoint  string
	APIKey        string
}

type Client struct {
	voiceEndpoint string
	textEndpoint  string
	apiKey        string
	client        http.Client
}

// Result is the provider-independent view the analyzers consume.
type Result struct {
	DominantEmotion string
	Emotions        map[string]float64
	Confidence      float64
}

func NewClient(cfg Config) *Client {
	return &Client{
		voiceEndpoint: cfg.VoiceEndpoint,
		textEndpoint:  cfg.TextEndpoint,
		apiKey:        cfg.APIKey,
		client:        http.Client{Timeout: apiTimeout},
	}
}

// FromAudio submits the recording at audioPath to the voice endpoint.
func (c *Client) FromAudio(ctx context.Context, audioPath string) (Result, error) {
	if c.voiceEndpoint == "" {
		return Result{}, errors.New("voice endpoint not configured")
	}

	payload := bytes.Buffer{}
	writer := multipart.NewWriter(&payload)

	file, err := os.Open(audioPath)
	if err != nil {
		return Result{}, err
	}
	defer file.Close()

	part, err := writer.CreateFormFile("voice", audioPath)
	if err != nil {
		return Result{}, err
	}

	if _, err = io.Copy(part, file); err != nil {
		return Result{}, err
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.voiceEndpoint, &payload)
	if err != nil {
		return Result{}, err
	}
	req.Header.Add("api-key", c.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var r voiceResult
	if err := c.do(req, &r); err != nil {
		return Result{}, err
	}

	if len(r.Emotion) == 0 {
		return Result{}, errors.New("empty emotion response")
	}

	out := Result{
		DominantEmotion: r.Emotion[0].Result,
		Confidence:      r.Emotion[0].Confidence,
	}
	if len(r.Percentage) > 0 {
		out.Emotions = r.Percentage[0]
	}

	return out, nil
}

// FromText submits a transcript to the text endpoint.
func (c *Client) FromText(ctx context.Context, text string) (Result, error) {
	if c.textEndpoint == "" {
		return Result{}, errors.New("text endpoint not configured")
	}

	params := url.Values{}
	params.Add("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.textEndpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return Result{}, err
	}
	req.Header.Add("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Add("api-key", c.apiKey)

	var r textResult
	if err := c.do(req, &r); err != nil {
		return Result{}, err
	}

	return Result{
		DominantEmotion: r.Emotion,
		Emotions:        r.Percentage,
		Confidence:      r.Confidence,
	}, nil
}

func (c *Client) do(req *http.Request, v any) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode == http.StatusInternalServerError {
		return fmt.Errorf("internal server error 500: %s", string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return errors.New(string(body))
	}

	return json.Unmarshal(body, v)
}
