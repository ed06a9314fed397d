package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/neuroleaf/neuroleaf/detection"
	"github.com/neuroleaf/neuroleaf/message"
	"github.com/neuroleaf/neuroleaf/orchestrator"
	"github.com/neuroleaf/neuroleaf/session"
	sessionstore "github.com/neuroleaf/neuroleaf/session/store"
)

type stubTurns struct {
	answer     string
	seenSystem string
	err        error
}

func (s *stubTurns) RunTurn(ctx context.Context, userInput string, history []*message.Message, systemContext string) (*orchestrator.TurnResult, error) {
	s.seenSystem = systemContext
	if s.err != nil {
		return nil, s.err
	}
	msgs := message.CloneMessages(history)
	if systemContext != "" && !message.HasSystem(msgs) {
		msgs = append([]*message.Message{message.NewMessage(message.RoleSystem, systemContext)}, msgs...)
	}
	msgs = append(msgs,
		message.NewMessage(message.RoleUser, userInput),
		message.NewMessage(message.RoleAssistant, s.answer))
	return &orchestrator.TurnResult{
		Answer:  s.answer,
		History: msgs,
		Route:   orchestrator.RouteChat,
	}, nil
}

type stubDetector struct {
	report *detection.Report
	err    error
}

func (s *stubDetector) Detect(ctx context.Context, image []byte) (*detection.Report, error) {
	return s.report, s.err
}

type charCounter struct{}

func (charCounter) Count(text string) int { return len(text) }

func newTestServer(t *testing.T, turns TurnRunner, detector detection.Detector) *Server {
	t.Helper()
	mgr := session.NewManager(sessionstore.NewMemoryStore(),
		session.WithTokenCounter(charCounter{}),
		session.WithMaxHistoryTokens(100000))
	srv, err := New(Config{
		Turns:    turns,
		Sessions: mgr,
		Detector: detector,
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return srv
}

func postJSON(t *testing.T, srv *Server, path string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &stubTurns{answer: "ok"}, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}
}

func TestChatTurnPersistsHistory(t *testing.T) {
	turns := &stubTurns{answer: "Hello!"}
	srv := newTestServer(t, turns, nil)

	resp := postJSON(t, srv, "/chat", chatRequest{SessionID: "s1", Message: "Hi"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Answer != "Hello!" {
		t.Errorf("unexpected answer %q", decoded.Answer)
	}

	// A second turn must see the stored history.
	resp = postJSON(t, srv, "/chat", chatRequest{SessionID: "s1", Message: "again"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	record, err := srv.sessions.Get(context.Background(), "s1")
	if err != nil {
		t.Fatalf("session not stored: %v", err)
	}
	if len(record.History) != 4 {
		t.Errorf("expected 4 history entries after two turns, got %d", len(record.History))
	}
}

func TestChatValidation(t *testing.T) {
	srv := newTestServer(t, &stubTurns{answer: "x"}, nil)
	resp := postJSON(t, srv, "/chat", chatRequest{SessionID: "", Message: "hi"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("expected 400 for missing session_id, got %d", resp.StatusCode)
	}
}

func TestChatTurnFailure(t *testing.T) {
	srv := newTestServer(t, &stubTurns{err: errors.New("provider down")}, nil)
	resp := postJSON(t, srv, "/chat", chatRequest{SessionID: "s1", Message: "hi"})
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", resp.StatusCode)
	}
}

func multipartImage(t *testing.T, sessionID string) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	if err := writer.WriteField("session_id", sessionID); err != nil {
		t.Fatalf("write field: %v", err)
	}
	part, err := writer.CreateFormFile("image", "leaf.jpg")
	if err != nil {
		t.Fatalf("create file part: %v", err)
	}
	if _, err := part.Write([]byte("fake-image-bytes")); err != nil {
		t.Fatalf("write image: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &body, writer.FormDataContentType()
}

func TestDetectSeedsSessionContext(t *testing.T) {
	report := detection.Aggregate([]detection.Box{{Label: "Early Blight", Confidence: 0.9}})
	turns := &stubTurns{answer: "It is early blight."}
	srv := newTestServer(t, turns, &stubDetector{report: report})

	body, contentType := multipartImage(t, "s1")
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var decoded detectResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if decoded.Diagnosis != "Early Blight" {
		t.Errorf("unexpected diagnosis %q", decoded.Diagnosis)
	}

	// The next chat turn must receive the detection system context.
	postJSON(t, srv, "/chat", chatRequest{SessionID: "s1", Message: "what is wrong with my plant?"})
	if !strings.Contains(turns.seenSystem, "Early Blight") {
		t.Errorf("expected detection context handed to the turn, got %q", turns.seenSystem)
	}
}

func TestDetectWithoutDetector(t *testing.T) {
	srv := newTestServer(t, &stubTurns{answer: "x"}, nil)
	body, contentType := multipartImage(t, "s1")
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", resp.StatusCode)
	}
}

func TestReportsEndpoint(t *testing.T) {
	report := detection.Aggregate([]detection.Box{{Label: "Leaf Mold"}})
	srv := newTestServer(t, &stubTurns{answer: "x"}, &stubDetector{report: report})

	body, contentType := multipartImage(t, "s9")
	req := httptest.NewRequest(http.MethodPost, "/detect", body)
	req.Header.Set("Content-Type", contentType)
	if _, err := srv.App().Test(req, -1); err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	req = httptest.NewRequest(http.MethodGet, "/sessions/s9/reports", nil)
	resp, err := srv.App().Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	var decoded struct {
		Reports []*detection.Report `json:"reports"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(decoded.Reports) != 1 || decoded.Reports[0].Diagnosis != "Leaf Mold" {
		t.Errorf("unexpected archived reports %+v", decoded.Reports)
	}
}
