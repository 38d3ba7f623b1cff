package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/medicman/assist/internal/connections"
	"github.com/medicman/assist/internal/domain/chat"
	"github.com/medicman/assist/internal/domain/diagnosis"
	"github.com/medicman/assist/internal/services/auth"
	"github.com/medicman/assist/internal/services/history"
	"github.com/medicman/assist/internal/services/intake"
	"github.com/medicman/assist/internal/services/transcript"
	"github.com/medicman/assist/pkg/httpext"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: Implement proper origin checking based on configuration
		return true
	},
}

// doneSentinel terminates a stream_chunk sequence.
const doneSentinel = "[DONE]"

// Streamer produces an incremental assistant reply for a chat message.
type Streamer interface {
	StreamAnswer(ctx context.Context, history []chat.Message, message string, emit func(fragment string) error) error
}

type startDiagnosisPayload struct {
	SessionID   string `json:"sessionId"`
	FinalPrompt string `json:"finalPrompt"`
}

type startStreamAnswerPayload struct {
	ThreadID string `json:"threadId"`
	Message  string `json:"message"`
}

type chunkPayload struct {
	Content string `json:"content"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Handler serves the event channel: diagnosis streaming and two-way chat.
type Handler struct {
	manager        *connections.Manager
	authService    *auth.Service
	intakeService  *intake.Service
	historyService *history.Service
	streamer       Streamer
}

func NewHandler(manager *connections.Manager, authService *auth.Service, intakeService *intake.Service, historyService *history.Service, streamer Streamer) *Handler {
	return &Handler{
		manager:        manager,
		authService:    authService,
		intakeService:  intakeService,
		historyService: historyService,
		streamer:       streamer,
	}
}

// HandleWebSocket authenticates the channel token, upgrades the connection
// and runs the event loop until the client disconnects.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenString := auth.ExtractToken(r)
	if tokenString == "" {
		httpext.JsonError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	validation := h.authService.ValidateToken(tokenString)
	if !validation.Valid {
		httpext.JsonError(w, "Invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := h.manager.AddConnection(conn, validation.Subject)
	defer func() {
		h.manager.RemoveConnection(conn)
		conn.Close()
	}()

	timeouts := h.manager.GetTimeouts()
	conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(timeouts.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go h.pingLoop(client, timeouts.PingPeriod, done)

	for {
		var event connections.Event
		if err := conn.ReadJSON(&event); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Msg("Unexpected WebSocket closure")
			}
			return
		}
		h.dispatch(r.Context(), client, event)
	}
}

func (h *Handler) pingLoop(client *connections.Client, period time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := client.Ping(); err != nil {
				return
			}
		}
	}
}

func (h *Handler) dispatch(ctx context.Context, client *connections.Client, event connections.Event) {
	switch event.Type {
	case "start_diagnosis":
		var payload startDiagnosisPayload
		// Malformed payloads degrade to empty fields, they never kill the
		// connection.
		json.Unmarshal(event.Payload, &payload)
		h.streamDiagnosis(ctx, client, payload)
	case "start_stream_answer":
		var payload startStreamAnswerPayload
		json.Unmarshal(event.Payload, &payload)
		h.streamAnswer(ctx, client, payload)
	default:
		log.Warn().Str("type", event.Type).Msg("Unknown event type")
		client.SendEvent("error", errorPayload{Error: "unknown event type: " + event.Type})
	}
}

func (h *Handler) streamDiagnosis(ctx context.Context, client *connections.Client, payload startDiagnosisPayload) {
	if payload.SessionID == "" {
		client.SendEvent("diagnosis_error", errorPayload{Error: "sessionId is missing"})
		return
	}

	err := h.intakeService.StreamDiagnosis(ctx, payload.SessionID, payload.FinalPrompt, func(chunk diagnosis.Chunk) error {
		return client.SendEvent("diagnosis_chunk", chunk)
	})
	if err != nil {
		log.Error().Err(err).Str("session_id", payload.SessionID).Msg("Diagnosis stream failed")
		client.SendEvent("diagnosis_error", errorPayload{Error: err.Error()})
		return
	}

	client.SendEvent("diagnosis_done", map[string]string{"message": "complete"})
}

func (h *Handler) streamAnswer(ctx context.Context, client *connections.Client, payload startStreamAnswerPayload) {
	if payload.ThreadID == "" || payload.Message == "" {
		client.SendEvent("stream_chunk", chunkPayload{Content: "Please send both threadId and message."})
		client.SendEvent("stream_chunk", chunkPayload{Content: doneSentinel})
		return
	}

	// Prior turns are captured before the new message is saved; the streamer
	// appends the message itself.
	stored, err := h.historyService.Transcript(ctx, payload.ThreadID)
	if err != nil {
		client.SendEvent("stream_error", errorPayload{Error: err.Error()})
		return
	}

	if _, err := h.historyService.SaveMessage(ctx, payload.ThreadID, chat.RoleUser, payload.Message); err != nil {
		client.SendEvent("stream_error", errorPayload{Error: err.Error()})
		return
	}
	priorTurns := make([]chat.Message, 0, len(stored))
	for _, m := range stored {
		priorTurns = append(priorTurns, chat.Message{
			ID:        m.ID,
			Role:      m.Sender,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		})
	}

	assembler := transcript.NewAssembler()
	err = h.streamer.StreamAnswer(ctx, priorTurns, payload.Message, func(fragment string) error {
		assembler.Append(chat.RoleAssistant, fragment)
		return client.SendEvent("stream_chunk", chunkPayload{Content: fragment})
	})
	if err != nil {
		assembler.Fail(err)
		log.Error().Err(err).Str("thread_id", payload.ThreadID).Msg("Answer stream failed")
		client.SendEvent("stream_error", errorPayload{Error: err.Error()})
		return
	}

	assembler.CloseReply()
	messages := assembler.Messages()
	if len(messages) > 0 {
		reply := messages[len(messages)-1].Content
		if _, err := h.historyService.SaveMessage(ctx, payload.ThreadID, chat.RoleAssistant, reply); err != nil {
			log.Error().Err(err).Str("thread_id", payload.ThreadID).Msg("Failed to persist assistant reply")
		}
	}

	client.SendEvent("stream_chunk", chunkPayload{Content: doneSentinel})
}
