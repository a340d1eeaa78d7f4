package emotion_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/talkscope/talkscope/foundation/external/emotion"
)

func TestFromText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("api-key"); got != "secret" {
			t.Errorf("api-key header = %q, want %q", got, "secret")
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		if got := r.PostForm.Get("text"); got != "hello there" {
			t.Errorf("text form value = %q, want %q", got, "hello there")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"emotion":"happy","confidence":0.92,"percentage":{"happy":0.92,"neutral":0.08}}`))
	}))
	defer srv.Close()

	c := emotion.NewClient(emotion.Config{TextEndpoint: srv.URL, APIKey: "secret"})

	r, err := c.FromText(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("FromText = %v, want nil", err)
	}

	if r.DominantEmotion != "happy" {
		t.Fatalf("DominantEmotion = %q, want %q", r.DominantEmotion, "happy")
	}
	if r.Confidence != 0.92 {
		t.Fatalf("Confidence = %v, want 0.92", r.Confidence)
	}
	if r.Emotions["neutral"] != 0.08 {
		t.Fatalf("Emotions[neutral] = %v, want 0.08", r.Emotions["neutral"])
	}
}

func TestFromAudio(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parsing multipart form: %v", err)
		}
		if _, _, err := r.FormFile("voice"); err != nil {
			t.Errorf("voice part missing: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"emotion":[{"confidence":0.7,"result":"calm"}],"percentage":[{"calm":0.7,"neutral":0.3}],"audio_length_seconds":2.5}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "clip.wav")
	if err := os.WriteFile(path, []byte("RIFFfake"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	c := emotion.NewClient(emotion.Config{VoiceEndpoint: srv.URL})

	r, err := c.FromAudio(context.Background(), path)
	if err != nil {
		t.Fatalf("FromAudio = %v, want nil", err)
	}

	if r.DominantEmotion != "calm" {
		t.Fatalf("DominantEmotion = %q, want %q", r.DominantEmotion, "calm")
	}
	if r.Emotions["calm"] != 0.7 {
		t.Fatalf("Emotions[calm] = %v, want 0.7", r.Emotions["calm"])
	}
}

func TestFromTextServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model offline", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := emotion.NewClient(emotion.Config{TextEndpoint: srv.URL})

	if _, err := c.FromText(context.Background(), "hello"); err == nil {
		t.Fatal("FromText on 500 = nil error, want error")
	}
}
