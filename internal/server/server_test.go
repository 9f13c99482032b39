package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"studybuddy/internal/app"
	"studybuddy/internal/ingest"
	"studybuddy/pkg/ai"
	"studybuddy/pkg/auth"
	"studybuddy/pkg/crypt"
	"studybuddy/pkg/domain"
	"studybuddy/pkg/storage"
	"studybuddy/pkg/store"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) Generate(context.Context, string, []domain.Message, string) (string, error) {
	return f.response, f.err
}

func newTestServer(t *testing.T, gen ai.TextGenerator) (*Server, *app.App) {
	t.Helper()
	mem := store.NewMemoryStore()
	tokens, err := auth.NewTokenIssuer("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenIssuer: %v", err)
	}
	cipher, err := crypt.New("0123456789abcdef0123456789abcdef")
	if err != nil {
		t.Fatalf("crypt.New: %v", err)
	}
	files, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	a, err := app.New(app.Config{
		Store:     mem,
		Files:     files,
		Tokens:    tokens,
		Cipher:    cipher,
		Processor: ingest.NewProcessor(mem, files),
		Generator: func(string, string) (ai.TextGenerator, error) {
			return gen, nil
		},
		ValidateKey: func(context.Context, string) error { return nil },
		ListModels: func(context.Context, string) ([]string, error) {
			return []string{"gemini-2.0-flash"}, nil
		},
	})
	if err != nil {
		t.Fatalf("app.New: %v", err)
	}
	return New(Config{App: a, MaxUploadBytes: 1 << 20}), a
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, s *Server, method, path, token string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func registerViaAPI(t *testing.T, s *Server) string {
	t.Helper()
	rec, env := doJSON(t, s, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"password": "secret1",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register status = %d: %s", rec.Code, rec.Body.String())
	}
	var sess struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(env.Data, &sess); err != nil || sess.Token == "" {
		t.Fatalf("no token in register response: %s", rec.Body.String())
	}
	rec, _ = doJSON(t, s, http.MethodPut, "/api/account/gemini-key", sess.Token, map[string]string{"apiKey": "AIzaFake"})
	if rec.Code != http.StatusOK {
		t.Fatalf("set key status = %d: %s", rec.Code, rec.Body.String())
	}
	return sess.Token
}

func createNotebookViaAPI(t *testing.T, s *Server, token string) string {
	t.Helper()
	rec, env := doJSON(t, s, http.MethodPost, "/api/notebooks", token, map[string]string{"title": "Biology"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create notebook status = %d: %s", rec.Code, rec.Body.String())
	}
	var nb struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &nb); err != nil || nb.ID == "" {
		t.Fatalf("no notebook id: %s", rec.Body.String())
	}
	return nb.ID
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	for _, path := range []string{
		"/api/notebooks",
		"/api/account/status",
		"/api/models",
		"/api/documents/nb-1",
		"/api/quizzes/nb-1",
	} {
		rec, env := doJSON(t, s, http.MethodGet, path, "", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", path, rec.Code)
		}
		if env.Error != "unauthorized" {
			t.Errorf("%s: error = %q", path, env.Error)
		}
	}
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	rec, _ := doJSON(t, s, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestNotebookCRUDOverHTTP(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	token := registerViaAPI(t, s)
	id := createNotebookViaAPI(t, s, token)

	rec, env := doJSON(t, s, http.MethodGet, "/api/notebooks/"+id, token, nil)
	if rec.Code != http.StatusOK || !env.Success {
		t.Fatalf("get status = %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = doJSON(t, s, http.MethodPut, "/api/notebooks/"+id, token, map[string]string{"title": "Chemistry"})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodDelete, "/api/notebooks/"+id, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status = %d", rec.Code)
	}
	rec, _ = doJSON(t, s, http.MethodGet, "/api/notebooks/"+id, token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete status = %d, want 404", rec.Code)
	}
}

func uploadRequest(t *testing.T, path, token, field, filename, contentType string, payload []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(map[string][]string)
	hdr["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	hdr["Content-Type"] = []string{contentType}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		t.Fatalf("CreatePart: %v", err)
	}
	if _, err := part.Write(payload); err != nil {
		t.Fatalf("write part: %v", err)
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestUploadRejectsNonPDF(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	token := registerViaAPI(t, s)
	nbID := createNotebookViaAPI(t, s, token)

	req := uploadRequest(t, "/api/documents/"+nbID, token, "document", "notes.docx", "application/msword", []byte("hello"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "PDF") {
		t.Fatalf("error should mention PDF: %s", rec.Body.String())
	}
}

func TestUploadRejectsOversizeFile(t *testing.T) {
	s, a := newTestServer(t, &fakeGenerator{})
	defer a.Wait()
	token := registerViaAPI(t, s)
	nbID := createNotebookViaAPI(t, s, token)

	big := bytes.Repeat([]byte("a"), (1<<20)+1024)
	req := uploadRequest(t, "/api/documents/"+nbID, token, "document", "big.pdf", "application/pdf", big)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status = %d, want 413: %s", rec.Code, rec.Body.String())
	}
}

func TestUploadAcceptsPDFAndReturnsUnprocessed(t *testing.T) {
	s, a := newTestServer(t, &fakeGenerator{})
	token := registerViaAPI(t, s)
	nbID := createNotebookViaAPI(t, s, token)

	req := uploadRequest(t, "/api/documents/"+nbID, token, "document", "notes.pdf", "application/pdf", []byte("%PDF-1.4 not really"))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	var doc struct {
		ID        string `json:"id"`
		Processed bool   `json:"processed"`
	}
	if err := json.Unmarshal(env.Data, &doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if doc.Processed {
		t.Fatal("document must be returned before extraction runs")
	}
	a.Wait()

	// the garbage PDF fails extraction; the failure is stored, not surfaced
	rec, env = doJSON(t, s, http.MethodGet, "/api/documents/"+nbID+"/"+doc.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var got struct {
		Processed       bool   `json:"processed"`
		ProcessingError string `json:"processingError"`
	}
	if err := json.Unmarshal(env.Data, &got); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	if got.Processed || got.ProcessingError == "" {
		t.Fatalf("expected stored extraction failure, got %+v", got)
	}
}

func TestQuizGenerationReturns202AndPolls(t *testing.T) {
	gen := &fakeGenerator{response: `{"mcqs": [
		{"questionText": "q1", "options": ["a","b","c","d"], "correctAnswer": "a"},
		{"questionText": "q2", "options": ["a","b","c","d"], "correctAnswer": "b"},
		{"questionText": "q3", "options": ["a","b","c","d"], "correctAnswer": "c"},
		{"questionText": "q4", "options": ["a","b","c","d"], "correctAnswer": "d"},
		{"questionText": "q5", "options": ["a","b","c","d"], "correctAnswer": "a"}
	], "short_answers": []}`}
	s, a := newTestServer(t, gen)
	token := registerViaAPI(t, s)
	nbID := createNotebookViaAPI(t, s, token)

	rec, _ := doJSON(t, s, http.MethodPost, "/api/documents/"+nbID+"/text", token, map[string]string{
		"title": "Notes", "text": "Study material body.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("text doc status = %d: %s", rec.Code, rec.Body.String())
	}
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	var doc struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &doc)

	rec, env = doJSON(t, s, http.MethodPost, "/api/quizzes/"+nbID, token, map[string]any{
		"documentIds": []string{doc.ID},
		"numMCQs":     5,
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("generate status = %d, want 202: %s", rec.Code, rec.Body.String())
	}
	var quiz struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(env.Data, &quiz); err != nil {
		t.Fatalf("decode quiz: %v", err)
	}
	if quiz.Status != "generating" {
		t.Fatalf("status = %q, want generating", quiz.Status)
	}
	a.Wait()

	rec, env = doJSON(t, s, http.MethodGet, "/api/quizzes/quiz/"+quiz.ID, token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("poll status = %d", rec.Code)
	}
	var polled struct {
		Status    string `json:"status"`
		Questions []any  `json:"questions"`
	}
	if err := json.Unmarshal(env.Data, &polled); err != nil {
		t.Fatalf("decode quiz: %v", err)
	}
	if polled.Status != "ongoing" || len(polled.Questions) != 5 {
		t.Fatalf("polled quiz = %+v", polled)
	}
}

func TestLoginRejectsBadCredentialsOverHTTP(t *testing.T) {
	s, _ := newTestServer(t, &fakeGenerator{})
	registerViaAPI(t, s)
	rec, _ := doJSON(t, s, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "alice", "password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}
