package server

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tmc/langchaingo/llms"

	"casevise/internal/compose"
	"casevise/internal/config"
	"casevise/internal/index"
	"casevise/internal/narrate"
	"casevise/internal/rag"
)

type fakeEmbedder struct{}

func letterVector(text string) []float32 {
	v := make([]float32, 26)
	for _, r := range text {
		if r >= 'a' && r <= 'z' {
			v[r-'a']++
		}
		if r >= 'A' && r <= 'Z' {
			v[r-'A']++
		}
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		v[0] = 1
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func (fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = letterVector(t)
	}
	return out, nil
}

func (fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return letterVector(text), nil
}

type mockModel struct {
	response string
}

func (m *mockModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: m.response}}}, nil
}

func (m *mockModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.response, nil
}

func testServer(t *testing.T) (*Server, *rag.Service) {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.UploadsDir = t.TempDir()
	cfg.Server.AudioDir = t.TempDir()

	narrator := narrate.NewNarrator(&config.SpeechConfig{Enabled: false}, cfg.Server.AudioDir)
	newIndex := func(sessionID string) (index.VectorIndex, error) {
		return index.NewChromemIndex("", "chunks")
	}
	svc := rag.NewService(cfg, fakeEmbedder{}, compose.NewComposer(&mockModel{response: "**Guilty**, per the witness testimony."}), narrator, newIndex)
	return NewServer(&cfg.Server, svc), svc
}

func multipartUpload(t *testing.T, session, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if session != "" {
		w.WriteField("session", session)
	}
	fw, err := w.CreateFormFile("files", filename)
	if err != nil {
		t.Fatal(err)
	}
	fw.Write([]byte(content))
	w.Close()
	return &body, w.FormDataContentType()
}

func TestUploadThenAsk(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.Handler()

	body, contentType := multipartUpload(t, "", "judgment.txt", "The defendant was found guilty based on witness testimony.")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("upload status %d: %s", rec.Code, rec.Body.String())
	}
	var up uploadResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &up); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	if up.Session == "" || len(up.Files) != 1 {
		t.Fatalf("unexpected upload response: %+v", up)
	}

	askBody, _ := json.Marshal(askRequest{Session: up.Session, Question: "What was the verdict?"})
	req = httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewReader(askBody))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("ask status %d: %s", rec.Code, rec.Body.String())
	}
	var ans answerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &ans); err != nil {
		t.Fatalf("decoding answer: %v", err)
	}
	if !strings.Contains(ans.Answer, "Guilty") {
		t.Errorf("answer %q", ans.Answer)
	}
	if !strings.Contains(ans.AnswerHTML, "<strong>Guilty</strong>") {
		t.Errorf("markdown answer should be rendered to HTML, got %q", ans.AnswerHTML)
	}
	if ans.AudioURL != "" {
		t.Error("no audio URL expected with synthesis disabled")
	}
}

func TestUploadWithoutFilesOpensNoSession(t *testing.T) {
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.UploadsDir = t.TempDir()
	cfg.Server.AudioDir = t.TempDir()

	opened := 0
	newIndex := func(sessionID string) (index.VectorIndex, error) {
		opened++
		return index.NewChromemIndex("", "chunks")
	}
	narrator := narrate.NewNarrator(&config.SpeechConfig{Enabled: false}, cfg.Server.AudioDir)
	svc := rag.NewService(cfg, fakeEmbedder{}, compose.NewComposer(&mockModel{response: "x"}), narrator, newIndex)
	srv := NewServer(&cfg.Server, svc)

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	w.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
	if opened != 0 {
		t.Error("an upload with no files must not open a session")
	}
}

func TestAskUnknownSession(t *testing.T) {
	srv, _ := testServer(t)
	body, _ := json.Marshal(askRequest{Session: "nope", Question: "q"})
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status %d, want 404", rec.Code)
	}
}

func TestAskBeforeUpload(t *testing.T) {
	srv, svc := testServer(t)
	if _, err := svc.OpenSession("empty"); err != nil {
		t.Fatal(err)
	}

	body, _ := json.Marshal(askRequest{Session: "empty", Question: "q"})
	req := httptest.NewRequest(http.MethodPost, "/api/ask", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "upload at least one") {
		t.Errorf("body %q should name the precondition", rec.Body.String())
	}
}

func TestSummarizeInvalidPerspective(t *testing.T) {
	srv, _ := testServer(t)
	handler := srv.Handler()

	body, contentType := multipartUpload(t, "", "judgment.txt", "Some case text.")
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	var up uploadResponse
	json.Unmarshal(rec.Body.Bytes(), &up)

	sumBody, _ := json.Marshal(summarizeRequest{Session: up.Session, Perspective: "professor"})
	req = httptest.NewRequest(http.MethodPost, "/api/summarize", bytes.NewReader(sumBody))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status %d, want 400", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("status %d", rec.Code)
	}
}
