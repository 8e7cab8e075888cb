package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"proctored-quiz-service/internal/app"
	"proctored-quiz-service/internal/domain"
	"proctored-quiz-service/internal/monitor"
	"github.com/gorilla/websocket"
)

// WSHandler owns one quiz session per connection. The browser forwards user
// intents and raw environment events; everything stateful happens here.
type WSHandler struct {
	service  *app.Service
	cooldown time.Duration
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.Service, cooldown time.Duration) *WSHandler {
	return &WSHandler{
		service:  service,
		cooldown: cooldown,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type startPayload struct {
	TeamName string `json:"teamName"`
}

type selectPayload struct {
	Answer string `json:"answer"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and runs the session event loop. Messages are
// processed one at a time on this goroutine, so every transition runs to
// completion before the next event is seen.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	tabToken := r.URL.Query().Get("tab")
	if tabToken == "" {
		http.Error(w, "missing tab token", http.StatusBadRequest)
		return
	}
	clientToken := r.URL.Query().Get("client")
	if clientToken == "" {
		clientToken = tabToken
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	sess := h.service.NewSession(tabToken, clientToken)
	defer sess.Close()

	send := make(chan outboundMessage[any], 16)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	var mon *monitor.Monitor
	mon = monitor.New(h.cooldown, func() {
		outcome := sess.RecordWarning(r.Context())
		if !outcome.Accepted {
			return
		}
		// Paused while the dialog is up; the client reactivates with "ack".
		// Disqualification never reactivates.
		mon.Deactivate()
		if outcome.Disqualified {
			send <- outboundMessage[any]{Type: "disqualified", Payload: sess.View()}
			return
		}
		send <- outboundMessage[any]{Type: "warning", Payload: outcome}
	})

	view, err := sess.Restore(r.Context())
	if err != nil {
		send <- errorMessage(err)
	}
	send <- outboundMessage[any]{Type: "session", Payload: view}
	if view.State == domain.StateInProgress {
		mon.Activate()
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "start":
			var payload startPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid start payload"}}
				continue
			}
			view, err := sess.Start(r.Context(), payload.TeamName)
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "session", Payload: view}
			mon.Activate()
		case "select":
			var payload selectPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid select payload"}}
				continue
			}
			if err := sess.SelectAnswer(payload.Answer); err != nil {
				send <- errorMessage(err)
			}
		case "advance":
			view, err := sess.Advance(r.Context())
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			send <- outboundMessage[any]{Type: "session", Payload: view}
		case "submit":
			view, err := sess.Submit(r.Context())
			if err != nil {
				send <- errorMessage(err)
				continue
			}
			mon.Deactivate()
			send <- outboundMessage[any]{Type: "completed", Payload: view}
		case "monitor":
			var ev monitor.Event
			if err := json.Unmarshal(inbound.Payload, &ev); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid monitor payload"}}
				continue
			}
			reaction := mon.HandleEvent(ev)
			if reaction != (monitor.Reaction{}) {
				send <- outboundMessage[any]{Type: "reaction", Payload: reaction}
			}
		case "ack":
			if sess.State() == domain.StateInProgress {
				mon.Activate()
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(send)
	<-writerDone
}

// errorMessage maps domain errors to transient, non-fatal notifications.
// Persistence faults reach the user as a generic message; details stay in
// the server log.
func errorMessage(err error) outboundMessage[any] {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		log.Printf("session persistence: %v", perr)
		return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "temporary storage problem, try again"}}
	}
	return outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
}
