package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/talkscope/talkscope/app/talkscope-api/handlers"
	"github.com/talkscope/talkscope/business/analysis"
	"github.com/talkscope/talkscope/business/pipeline"
	"github.com/talkscope/talkscope/business/session"
	"github.com/talkscope/talkscope/foundation/external/google"
	"github.com/talkscope/talkscope/foundation/pubsub"
	"github.com/talkscope/talkscope/foundation/upload"
	"go.uber.org/zap"
)

type fakeAnalyzer struct {
	mu     sync.Mutex
	inputs []analysis.Input
}

func (f *fakeAnalyzer) Run(_ context.Context, in analysis.Input) analysis.RunResult {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	f.mu.Unlock()

	resp := analysis.NewResponse(in.SessionID, in.Speaker, in.Transcript)
	resp.QuantitativeAnalysis = analysis.Quantify(in.Transcript)

	return analysis.RunResult{
		Response: resp,
		Outcomes: map[string]analysis.Outcome{},
	}
}

func (f *fakeAnalyzer) invocations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inputs)
}

type fakeTranscriber struct {
	transcript google.Transcript
	err        error
}

func (f *fakeTranscriber) Transcribe(context.Context, []byte, int, int) (google.Transcript, error) {
	return f.transcript, f.err
}

type env struct {
	handler  http.Handler
	analyzer *fakeAnalyzer
	broker   *pubsub.Broker
	store    session.Store
	scratch  string
}

func newEnv(t *testing.T, transcriber pipeline.Transcriber, maxUpload int64) *env {
	t.Helper()

	log := zap.NewNop().Sugar()

	store := session.NewMemory(log, session.Config{})
	t.Cleanup(func() { store.Close() })

	broker := pubsub.NewBroker()
	analyzer := &fakeAnalyzer{}

	pipe := pipeline.New(pipeline.Settings{
		Logger:       log,
		Store:        store,
		Orchestrator: analyzer,
		Broker:       broker,
		Transcriber:  transcriber,
	})

	scratch := t.TempDir()

	handler := handlers.New(handlers.Config{
		Log:            log,
		Pipeline:       pipe,
		Store:          store,
		Broker:         broker,
		Uploads:        upload.NewStore(scratch),
		MaxUploadBytes: maxUpload,
	})

	return &env{
		handler:  handler,
		analyzer: analyzer,
		broker:   broker,
		store:    store,
		scratch:  scratch,
	}
}

func (e *env) assertScratchEmpty(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(e.scratch)
	if err != nil {
		t.Fatalf("reading scratch dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("scratch dir holds %d leftover files", len(entries))
	}
}

// multipartBody builds a form with one file part plus extra string fields.
func multipartBody(t *testing.T, filename, contentType string, payload []byte, fields map[string]string) (*bytes.Buffer, string) {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
	hdr.Set("Content-Type", contentType)

	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("creating file part: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("writing file part: %v", err)
	}

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("writing field %s: %v", k, err)
		}
	}

	if err := mw.Close(); err != nil {
		t.Fatalf("closing form: %v", err)
	}

	return &buf, mw.FormDataContentType()
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v: %s", err, rec.Body.String())
	}
	if body["error"] == "" {
		t.Fatalf("error body has no error field: %s", rec.Body.String())
	}
	return body["error"]
}

func TestAnalyzeText(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, 0)

	body := `{"text":"This is a sufficiently long test sentence."}`
	req := httptest.NewRequest(http.MethodPost, "/analyze_text", strings.NewReader(body))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp analysis.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	if resp.Transcript != "This is a sufficiently long test sentence." {
		t.Fatalf("transcript = %q", resp.Transcript)
	}
	if resp.SessionID == "" {
		t.Fatal("no session id allocated")
	}
	if resp.Speaker != "speaker" {
		t.Fatalf("speaker = %q, want default", resp.Speaker)
	}

	// Audio-only fields stay at their defaults for text requests.
	if resp.AudioQualityMetrics.QualityLabel != "unknown" || resp.AudioQualityMetrics.SampleRate != 0 {
		t.Fatalf("audio metrics = %+v, want defaults", resp.AudioQualityMetrics)
	}
	if resp.QuantitativeAnalysis.WordCount == 0 {
		t.Fatal("quantitative analysis missing")
	}
}

func TestAnalyzeTextTooShort(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, 0)

	req := httptest.NewRequest(http.MethodPost, "/analyze_text", strings.NewReader(`{"text":"   short    "}`))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	errorBody(t, rec)

	if n := e.analyzer.invocations(); n != 0 {
		t.Fatalf("analyzer invoked %d times for rejected text", n)
	}
}

func TestAnalyzeTextMalformedJSON(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, 0)

	req := httptest.NewRequest(http.MethodPost, "/analyze_text", strings.NewReader(`{"text": 12`))
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if n := e.analyzer.invocations(); n != 0 {
		t.Fatalf("analyzer invoked %d times for malformed body", n)
	}
}

func TestAnalyzeTextSessionAccumulates(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, 0)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/analyze_text", strings.NewReader(body))
		rec := httptest.NewRecorder()
		e.handler.ServeHTTP(rec, req)
		return rec
	}

	if rec := post(`{"text":"First exchange in the session.","session_id":"s-acc"}`); rec.Code != http.StatusOK {
		t.Fatalf("first post status = %d", rec.Code)
	}
	if rec := post(`{"text":"Second exchange in the session.","session_id":"s-acc"}`); rec.Code != http.StatusOK {
		t.Fatalf("second post status = %d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions/s-acc", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("session status = %d: %s", rec.Code, rec.Body.String())
	}

	var got struct {
		SessionID     string          `json:"session_id"`
		AnalysisCount int             `json:"analysis_count"`
		Context       session.Context `json:"context"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal session response: %v", err)
	}
	if got.SessionID != "s-acc" || got.AnalysisCount != 2 {
		t.Fatalf("session = %+v, want 2 analyses", got)
	}
	if got.Context.LastTranscript != "Second exchange in the session." {
		t.Fatalf("last transcript = %q", got.Context.LastTranscript)
	}
}

func TestSessionUnknown(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/sessions/never-seen", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestAnalyzeUpload(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{transcript: google.Transcript{
		Text: "Hello from the recording.",
		Segments: []google.Segment{
			{SpeakerID: "1", StartSeconds: 0, EndSeconds: 2, Text: "Hello from the recording."},
		},
	}}
	e := newEnv(t, transcriber, 0)

	body, contentType := multipartBody(t, "call.wav", "audio/wav", []byte("RIFF fake audio"), map[string]string{
		"session_id": "batch-1",
		"speaker":    "agent",
	})

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}

	var resp analysis.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.SessionID != "batch-1" || resp.Speaker != "agent" {
		t.Fatalf("identity = (%q, %q)", resp.SessionID, resp.Speaker)
	}
	if resp.Transcript != "Hello from the recording." {
		t.Fatalf("transcript = %q", resp.Transcript)
	}

	e.assertScratchEmpty(t)
}

func TestAnalyzeUploadInvalidMediaType(t *testing.T) {
	t.Parallel()

	e := newEnv(t, &fakeTranscriber{}, 0)

	body, contentType := multipartBody(t, "notes.txt", "text/plain", []byte("not audio"), nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	errorBody(t, rec)
	e.assertScratchEmpty(t)
}

func TestAnalyzeUploadTooLarge(t *testing.T) {
	t.Parallel()

	e := newEnv(t, &fakeTranscriber{}, 64)

	body, contentType := multipartBody(t, "call.wav", "audio/wav", bytes.Repeat([]byte("a"), 65), nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413", rec.Code)
	}
	e.assertScratchEmpty(t)

	if n := e.analyzer.invocations(); n != 0 {
		t.Fatalf("analyzer invoked %d times for oversized upload", n)
	}
}

func TestAnalyzeUploadMissingFile(t *testing.T) {
	t.Parallel()

	e := newEnv(t, &fakeTranscriber{}, 0)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("session_id", "s-1"); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/analyze", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestAnalyzeTranscriptionFailureIs500(t *testing.T) {
	t.Parallel()

	e := newEnv(t, &fakeTranscriber{err: fmt.Errorf("speech api unavailable")}, 0)

	body, contentType := multipartBody(t, "call.wav", "audio/wav", []byte("RIFF fake audio"), nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	errorBody(t, rec)
	e.assertScratchEmpty(t)
}

func decodeSSE(t *testing.T, body string) []pipeline.Event {
	t.Helper()

	var events []pipeline.Event
	for _, frame := range strings.Split(body, "\n\n") {
		frame = strings.TrimSpace(frame)
		if frame == "" {
			continue
		}
		if !strings.HasPrefix(frame, "data: ") {
			t.Fatalf("frame without data prefix: %q", frame)
		}
		var ev pipeline.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(frame, "data: ")), &ev); err != nil {
			t.Fatalf("unmarshal frame %q: %v", frame, err)
		}
		events = append(events, ev)
	}
	return events
}

func TestAnalyzeStream(t *testing.T) {
	t.Parallel()

	transcriber := &fakeTranscriber{transcript: google.Transcript{Text: "Hello from the recording."}}
	e := newEnv(t, transcriber, 0)

	body, contentType := multipartBody(t, "call.wav", "audio/wav", []byte("RIFF fake audio"), nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze/stream", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	events := decodeSSE(t, rec.Body.String())
	if len(events) < 4 {
		t.Fatalf("got %d events, want at least 4", len(events))
	}

	if events[0].Type != pipeline.EventProgress || events[0].Stage != pipeline.StageAccepted {
		t.Fatalf("first event = %+v", events[0])
	}

	last := events[len(events)-1]
	if last.Type != pipeline.EventResult || last.Percent != 100 {
		t.Fatalf("last event = %+v, want result at 100", last)
	}

	var resp analysis.Response
	if err := json.Unmarshal(last.Data, &resp); err != nil {
		t.Fatalf("unmarshal result data: %v", err)
	}
	if resp.Transcript != "Hello from the recording." {
		t.Fatalf("streamed transcript = %q", resp.Transcript)
	}

	e.assertScratchEmpty(t)
}

func TestAnalyzeStreamTerminalError(t *testing.T) {
	t.Parallel()

	e := newEnv(t, &fakeTranscriber{err: fmt.Errorf("speech api unavailable")}, 0)

	body, contentType := multipartBody(t, "call.wav", "audio/wav", []byte("RIFF fake audio"), nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze/stream", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 once streaming began", rec.Code)
	}

	events := decodeSSE(t, rec.Body.String())
	last := events[len(events)-1]
	if last.Type != pipeline.EventError || last.Message == "" {
		t.Fatalf("terminal event = %+v, want error", last)
	}

	e.assertScratchEmpty(t)
}

func TestAnalyzeStreamRejectsInvalidMediaType(t *testing.T) {
	t.Parallel()

	e := newEnv(t, &fakeTranscriber{}, 0)

	body, contentType := multipartBody(t, "notes.txt", "text/plain", []byte("not audio"), nil)

	req := httptest.NewRequest(http.MethodPost, "/analyze/stream", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, 0)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, 0)

	for _, path := range []string{"/analyze", "/analyze/stream", "/analyze_text"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		e.handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Fatalf("GET %s status = %d, want 405", path, rec.Code)
		}
	}
}

func TestWebSocketReceivesAndDisconnects(t *testing.T) {
	t.Parallel()

	e := newEnv(t, nil, 0)

	srv := httptest.NewServer(e.handler)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/live-1"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if resp != nil {
		resp.Body.Close()
	}

	// Registration is asynchronous from the client's point of view.
	waitFor(t, func() bool { return e.broker.Subscribers("live-1") == 1 })

	sent := pipeline.Event{Type: pipeline.EventProgress, Stage: pipeline.StageAccepted, Percent: 5, At: time.Now().UTC()}
	if n := e.broker.Publish("live-1", sent); n != 1 {
		t.Fatalf("publish delivered to %d subscribers, want 1", n)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got pipeline.Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if got.Type != sent.Type || got.Stage != sent.Stage || got.Percent != sent.Percent {
		t.Fatalf("received %+v, want %+v", got, sent)
	}

	conn.Close()

	// Teardown removes the registration; publishes after disconnect reach
	// nobody.
	waitFor(t, func() bool { return e.broker.Subscribers("live-1") == 0 })

	if n := e.broker.Publish("live-1", sent); n != 0 {
		t.Fatalf("publish after disconnect delivered to %d subscribers", n)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
