package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"proctored-quiz-service/internal/app"
	"proctored-quiz-service/internal/domain"
	"proctored-quiz-service/internal/infra/memory"
	"github.com/gorilla/websocket"
)

func TestSessionFlowOverWebSocket(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "tab-1", "client-1")
	defer conn.Close()

	// A fresh tab gets an empty snapshot first.
	payload := readNext(t, conn, "session")
	if payload["state"] != string(domain.StateNotStarted) {
		t.Fatalf("expected not_started, got %v", payload["state"])
	}

	writeMsg(t, conn, "start", map[string]any{"teamName": "Team Alpha"})
	payload = readNext(t, conn, "session")
	if payload["state"] != string(domain.StateInProgress) {
		t.Fatalf("expected in_progress, got %v", payload["state"])
	}
	questions := payload["questions"].([]any)
	if len(questions) == 0 {
		t.Fatalf("expected questions in snapshot")
	}
	correct := questions[0].(map[string]any)["correctAnswer"].(string)

	writeMsg(t, conn, "select", map[string]any{"answer": correct})
	writeMsg(t, conn, "advance", nil)
	payload = readNext(t, conn, "session")
	if payload["currentQuestion"].(float64) != 1 || payload["score"].(float64) != 1 {
		t.Fatalf("expected index 1 score 1, got %+v", payload)
	}

	// A context menu is neutralized without scoring a warning.
	writeMsg(t, conn, "monitor", map[string]any{"kind": "context_menu"})
	reaction := readNext(t, conn, "reaction")
	if reaction["suppressDefault"] != true {
		t.Fatalf("expected suppressed context menu, got %+v", reaction)
	}

	writeMsg(t, conn, "monitor", map[string]any{"kind": "window_blur"})
	warning := readNext(t, conn, "warning")
	if warning["warnings"].(float64) != 1 || warning["dialogOwed"] != true {
		t.Fatalf("expected first warning with dialog, got %+v", warning)
	}
}

func TestDuplicateTeamNameIsTransientError(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	first := dial(t, server, "tab-1", "client-1")
	defer first.Close()
	readNext(t, first, "session")
	writeMsg(t, first, "start", map[string]any{"teamName": "Team A"})
	readNext(t, first, "session")

	second := dial(t, server, "tab-2", "client-2")
	defer second.Close()
	readNext(t, second, "session")
	writeMsg(t, second, "start", map[string]any{"teamName": "Team A"})
	errPayload := readNext(t, second, "error")
	if errPayload["message"] == "" {
		t.Fatalf("expected error message")
	}

	// The connection stays usable: a different name succeeds.
	writeMsg(t, second, "start", map[string]any{"teamName": "Team B"})
	payload := readNext(t, second, "session")
	if payload["state"] != string(domain.StateInProgress) {
		t.Fatalf("retry with new name should start, got %v", payload["state"])
	}
}

func TestFourWarningsDisqualifyOverWebSocket(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "tab-1", "client-1")
	defer conn.Close()
	readNext(t, conn, "session")
	writeMsg(t, conn, "start", map[string]any{"teamName": "Team A"})
	readNext(t, conn, "session")

	for i := 1; i <= 3; i++ {
		writeMsg(t, conn, "monitor", map[string]any{"kind": "window_blur"})
		warning := readNext(t, conn, "warning")
		if warning["warnings"].(float64) != float64(i) {
			t.Fatalf("expected warning %d, got %+v", i, warning)
		}
		// Dismissing the dialog reactivates the monitor.
		writeMsg(t, conn, "ack", nil)
	}

	writeMsg(t, conn, "monitor", map[string]any{"kind": "visibility_hidden"})
	payload := readNext(t, conn, "disqualified")
	if payload["state"] != string(domain.StateDisqualified) {
		t.Fatalf("expected disqualified snapshot, got %+v", payload)
	}

	// Terminal state: further intents are rejected, nothing crashes.
	writeMsg(t, conn, "advance", nil)
	errPayload := readNext(t, conn, "error")
	if errPayload["message"] == "" {
		t.Fatalf("expected terminal error message")
	}
}

func TestReloadRestoresSession(t *testing.T) {
	server, _ := newTestServer(t)
	defer server.Close()

	conn := dial(t, server, "tab-1", "client-1")
	readNext(t, conn, "session")
	writeMsg(t, conn, "start", map[string]any{"teamName": "Team A"})
	payload := readNext(t, conn, "session")
	questions := payload["questions"].([]any)
	correct := questions[0].(map[string]any)["correctAnswer"].(string)
	writeMsg(t, conn, "select", map[string]any{"answer": correct})
	writeMsg(t, conn, "advance", nil)
	readNext(t, conn, "session")
	conn.Close()
	// Give the handler time to drain the session's write queue.
	time.Sleep(50 * time.Millisecond)

	// Same tab token after a reload: the session resumes mid-question.
	reloaded := dial(t, server, "tab-1", "client-1")
	defer reloaded.Close()
	payload = readNext(t, reloaded, "session")
	if payload["state"] != string(domain.StateInProgress) {
		t.Fatalf("expected restored in_progress, got %v", payload["state"])
	}
	if payload["currentQuestion"].(float64) != 1 || payload["score"].(float64) != 1 {
		t.Fatalf("expected restored progress, got %+v", payload)
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *app.Service) {
	t.Helper()

	pool := []domain.Question{
		{ID: "q1", Text: "What is 2 + 2?", OptionA: "3", OptionB: "4", OptionC: "5", OptionD: "6", CorrectAnswer: "B"},
		{ID: "q2", Text: "Capital of France?", OptionA: "Paris", OptionB: "Lyon", OptionC: "Nice", OptionD: "Lille", CorrectAnswer: "A"},
		{ID: "q3", Text: "Largest planet?", OptionA: "Mars", OptionB: "Venus", OptionC: "Jupiter", OptionD: "Saturn", CorrectAnswer: "C"},
	}
	service := app.NewService(
		memory.NewTeamStore(),
		memory.NewStaticQuestionSource(pool),
		memory.NewIdentityStore(),
		memory.NewIdentityStore(),
	)
	wsHandler := NewWSHandler(service, 5*time.Millisecond)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	return httptest.NewServer(mux), service
}

func dial(t *testing.T, server *httptest.Server, tab, client string) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws?tab=" + tab + "&client=" + client
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func writeMsg(t *testing.T, conn *websocket.Conn, msgType string, payload map[string]any) {
	t.Helper()
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", msgType, err)
	}
}

func readNext(t *testing.T, conn *websocket.Conn, expect string) map[string]any {
	t.Helper()
	var msg struct {
		Type    string          `json:"type"`
		Payload json.RawMessage `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s (%s)", expect, msg.Type, string(msg.Payload))
	}
	var payload map[string]any
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
	}
	return payload
}
