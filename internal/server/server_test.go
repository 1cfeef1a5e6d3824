package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noveltoon/backend/internal/analyzer"
	"github.com/noveltoon/backend/internal/compose"
	"github.com/noveltoon/backend/internal/events"
	"github.com/noveltoon/backend/internal/handlers"
	"github.com/noveltoon/backend/internal/jobs"
	"github.com/noveltoon/backend/internal/logger"
	"github.com/noveltoon/backend/internal/render"
	"github.com/noveltoon/backend/internal/scratch"
	"github.com/noveltoon/backend/internal/storyboard"
	"github.com/noveltoon/backend/internal/types"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

const sampleAnalysis = `{
  "characters": [{"name": "Mei", "appearance": {"gender": "female", "age_stage": "youth"}}],
  "chapters": [{"chapter_id": 1, "scenes": [
    {"scene_id": 1, "description": "dawn", "characters": ["Mei"], "narration": "Mei waited."}
  ]}]
}`

type fakeLLM struct{}

func (fakeLLM) AnalyzeJSON(ctx context.Context, system, user string) (json.RawMessage, error) {
	return json.RawMessage(sampleAnalysis), nil
}

type fakeImageGen struct{}

func (fakeImageGen) GenerateImage(ctx context.Context, prompt, size string, seed int64) ([]byte, error) {
	return []byte("png"), nil
}

type fakeSpeechGen struct{}

func (fakeSpeechGen) Synthesize(ctx context.Context, text, voiceID string, speedRatio float64) ([]byte, error) {
	return []byte("mp3"), nil
}

type fakeMedia struct{}

func (fakeMedia) ProbeDuration(ctx context.Context, path string) (float64, error) { return 3.0, nil }

func (fakeMedia) Concat(ctx context.Context, listPath, outPath string) error {
	return os.WriteFile(outPath, []byte("concat"), 0o644)
}

func (fakeMedia) SilentAudio(ctx context.Context, seconds float64, outPath string) error {
	return os.WriteFile(outPath, []byte("silence"), 0o644)
}

func (fakeMedia) MuxStill(ctx context.Context, imagePath, audioPath string, duration float64, outPath string) error {
	return os.WriteFile(outPath, []byte("clip"), 0o644)
}

func testRouter(t *testing.T) (*gin.Engine, *jobs.Engine) {
	t.Helper()
	log := logger.NewNop()
	engine := jobs.NewEngine(jobs.Deps{
		Store:    jobs.NewStore(),
		Hub:      events.NewHub(log),
		Scratch:  scratch.NewStore(t.TempDir(), t.TempDir(), log),
		Analyzer: analyzer.New(fakeLLM{}, log),
		Builder:  storyboard.New(log),
		Renderer: render.New(fakeImageGen{}, fakeSpeechGen{}, fakeMedia{}, log),
		Composer: compose.New(fakeMedia{}, log),
	}, log)
	t.Cleanup(engine.Shutdown)
	return New("test", handlers.NewJobHandler(engine, log), []string{"*"}, log), engine
}

func submitBody(text string) *bytes.Buffer {
	b, _ := json.Marshal(map[string]interface{}{"input_text": text})
	return bytes.NewBuffer(b)
}

func novelText() string {
	return strings.Repeat("The village slept under heavy snow while Mei walked home. ", 6)
}

func doRequest(r *gin.Engine, method, path string, body *bytes.Buffer) *httptest.ResponseRecorder {
	if body == nil {
		body = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func waitCompleted(t *testing.T, engine *jobs.Engine, id string) {
	t.Helper()
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := engine.Get(id); ok && job.Status.Terminal() {
			if job.Status != types.StatusCompleted {
				t.Fatalf("job finished as %s: %s", job.Status, job.ErrorDetail)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never finished", id)
}

func TestHealthz(t *testing.T) {
	r, _ := testRouter(t)
	w := doRequest(r, http.MethodGet, "/healthz", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
}

func TestSubmitAndGetJob(t *testing.T) {
	r, engine := testRouter(t)

	w := doRequest(r, http.MethodPost, "/api/jobs", submitBody(novelText()))
	if w.Code != http.StatusAccepted {
		t.Fatalf("submit status = %d, body %s", w.Code, w.Body.String())
	}
	var resp struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || resp.JobID == "" {
		t.Fatalf("submit response %q: %v", w.Body.String(), err)
	}

	w = doRequest(r, http.MethodGet, "/api/jobs/"+resp.JobID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d", w.Code)
	}
	var job types.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil || job.ID != resp.JobID {
		t.Fatalf("get body %q: %v", w.Body.String(), err)
	}
	if strings.Contains(w.Body.String(), novelText()[:40]) {
		t.Fatalf("job response leaks the input text")
	}

	w = doRequest(r, http.MethodGet, "/api/jobs", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), resp.JobID) {
		t.Fatalf("list status = %d, body %s", w.Code, w.Body.String())
	}
	waitCompleted(t, engine, resp.JobID)
}

func TestSubmitRejectsBadRequests(t *testing.T) {
	r, _ := testRouter(t)

	if w := doRequest(r, http.MethodPost, "/api/jobs", bytes.NewBufferString("{not json")); w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body status = %d, want 400", w.Code)
	}
	if w := doRequest(r, http.MethodPost, "/api/jobs", submitBody("")); w.Code != http.StatusBadRequest {
		t.Fatalf("empty input_text status = %d, want 400", w.Code)
	}
}

func TestUnknownJobRoutes(t *testing.T) {
	r, _ := testRouter(t)
	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/jobs/nope"},
		{http.MethodPost, "/api/jobs/nope/cancel"},
		{http.MethodGet, "/api/jobs/nope/events"},
	} {
		if w := doRequest(r, tc.method, tc.path, nil); w.Code != http.StatusNotFound {
			t.Fatalf("%s %s status = %d, want 404", tc.method, tc.path, w.Code)
		}
	}
}

func TestCancelFinishedJobConflicts(t *testing.T) {
	r, engine := testRouter(t)
	id := engine.Submit(novelText(), types.Options{})
	waitCompleted(t, engine, id)

	w := doRequest(r, http.MethodPost, "/api/jobs/"+id+"/cancel", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("cancel finished status = %d, want 409", w.Code)
	}
}

func TestEventsStreamReplaysCompletedJob(t *testing.T) {
	r, engine := testRouter(t)
	id := engine.Submit(novelText(), types.Options{})
	waitCompleted(t, engine, id)

	w := doRequest(r, http.MethodGet, "/api/jobs/"+id+"/events", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("events status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content type = %q", ct)
	}
	body := w.Body.String()
	if !strings.Contains(body, "data: ") || !strings.Contains(body, `"type":"completed"`) {
		t.Fatalf("stream body missing completed event: %q", body)
	}
}
