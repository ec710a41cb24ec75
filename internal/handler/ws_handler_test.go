package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classpoll/internal/domain"
	"classpoll/internal/hub"
	"classpoll/internal/service"
	"classpoll/pkg/logger"
)

func setupWSServer(t *testing.T, grace time.Duration) *httptest.Server {
	t.Helper()

	log, err := logger.New("error")
	require.NoError(t, err)

	eventHub := hub.New(log.Logger)
	coordinator := service.NewCoordinator(eventHub, grace, log.Logger)
	wsHandler := NewWSHandler(eventHub, coordinator, nil, log)

	r := chi.NewRouter()
	r.Get("/ws", wsHandler.Serve)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server
}

func dialWS(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendEvent(t *testing.T, conn *websocket.Conn, event string, data interface{}) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": event,
		"data":  data,
	}))
}

// waitForEvent reads envelopes until the named event arrives, skipping
// everything else delivered in between
func waitForEvent(t *testing.T, conn *websocket.Conn, event string) json.RawMessage {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env struct {
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
		}
		require.NoError(t, conn.ReadJSON(&env), "waiting for %q", event)
		if env.Event == event {
			return env.Data
		}
	}
}

func TestWebSocket_FullPollRound(t *testing.T) {
	server := setupWSServer(t, 50*time.Millisecond)

	teacher := dialWS(t, server)
	sendEvent(t, teacher, domain.EventTeacherJoin, nil)
	waitForEvent(t, teacher, domain.EventParticipantsUpdate)
	waitForEvent(t, teacher, domain.EventPollHistory)

	student := dialWS(t, server)
	sendEvent(t, student, domain.EventStudentJoin, map[string]string{"name": "Alice"})

	// The teacher sees the new roster
	roster := waitForEvent(t, teacher, domain.EventParticipantsUpdate)
	var views []domain.ParticipantView
	require.NoError(t, json.Unmarshal(roster, &views))
	require.Len(t, views, 1)
	assert.Equal(t, "Alice", views[0].Name)

	sendEvent(t, teacher, domain.EventCreatePoll, map[string]interface{}{
		"question": "What is 2+2?",
		"options": []map[string]interface{}{
			{"text": "3"},
			{"text": "4", "is_correct": true},
		},
		"duration_seconds": 60,
	})

	// Both sides receive the poll
	var started domain.PollStartedEvent
	require.NoError(t, json.Unmarshal(waitForEvent(t, student, domain.EventPollStarted), &started))
	assert.Equal(t, "What is 2+2?", started.Question)
	assert.False(t, started.HasAnswered)
	waitForEvent(t, teacher, domain.EventPollStarted)

	sendEvent(t, student, domain.EventSubmitResponse, map[string]string{"option": "4"})

	var tally domain.Tally
	require.NoError(t, json.Unmarshal(waitForEvent(t, teacher, domain.EventPollResults), &tally))
	assert.Equal(t, 1, tally.TotalResponses)
	assert.Equal(t, 1, tally.TotalEligible)

	var count domain.ResponseCountEvent
	require.NoError(t, json.Unmarshal(waitForEvent(t, teacher, domain.EventResponseCountUpdate), &count))
	assert.Equal(t, 1, count.Responded)

	// Everyone answered: the poll closes after the grace delay
	var ended domain.Tally
	require.NoError(t, json.Unmarshal(waitForEvent(t, student, domain.EventPollEnded), &ended))
	assert.Equal(t, 1, ended.TotalResponses)
	waitForEvent(t, teacher, domain.EventPollEnded)

	// History is a teacher-only request
	sendEvent(t, student, domain.EventGetPollHistory, nil)
	var rejection domain.RejectionEvent
	require.NoError(t, json.Unmarshal(waitForEvent(t, student, domain.EventOperationRejected), &rejection))
	assert.Equal(t, "unauthorized", string(rejection.Kind))

	sendEvent(t, teacher, domain.EventGetPollHistory, nil)
	var history []domain.HistoryEntry
	require.NoError(t, json.Unmarshal(waitForEvent(t, teacher, domain.EventPollHistory), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "What is 2+2?", history[0].Question)
}

func TestWebSocket_ChatRelay(t *testing.T) {
	server := setupWSServer(t, time.Minute)

	teacher := dialWS(t, server)
	sendEvent(t, teacher, domain.EventTeacherJoin, nil)
	waitForEvent(t, teacher, domain.EventParticipantsUpdate)

	student := dialWS(t, server)
	sendEvent(t, student, domain.EventStudentJoin, map[string]string{"name": "Alice"})
	waitForEvent(t, teacher, domain.EventParticipantsUpdate)

	sendEvent(t, student, domain.EventChatMessage, map[string]string{"message": "hello"})

	var msg domain.ChatMessageEvent
	require.NoError(t, json.Unmarshal(waitForEvent(t, teacher, domain.EventChatBroadcast), &msg))
	assert.Equal(t, "Alice", msg.Sender)
	assert.Equal(t, "hello", msg.Text)
	assert.False(t, msg.IsTeacher)

	sendEvent(t, teacher, domain.EventChatMessage, map[string]string{"message": "welcome"})

	require.NoError(t, json.Unmarshal(waitForEvent(t, student, domain.EventChatBroadcast), &msg))
	assert.Equal(t, "Teacher", msg.Sender)
	assert.True(t, msg.IsTeacher)
}

func TestWebSocket_RemoveStudent(t *testing.T) {
	server := setupWSServer(t, time.Minute)

	teacher := dialWS(t, server)
	sendEvent(t, teacher, domain.EventTeacherJoin, nil)
	waitForEvent(t, teacher, domain.EventParticipantsUpdate)

	student := dialWS(t, server)
	sendEvent(t, student, domain.EventStudentJoin, map[string]string{"name": "Alice"})

	roster := waitForEvent(t, teacher, domain.EventParticipantsUpdate)
	var views []domain.ParticipantView
	require.NoError(t, json.Unmarshal(roster, &views))
	require.Len(t, views, 1)

	sendEvent(t, teacher, domain.EventRemoveStudent, map[string]string{"target_id": views[0].ID})

	// The student is notified before the server closes its connection
	waitForEvent(t, student, domain.EventStudentRemoved)

	student.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var env domain.Envelope
		if err := student.ReadJSON(&env); err != nil {
			break
		}
	}

	// The teacher sees the emptied roster
	emptied := waitForEvent(t, teacher, domain.EventParticipantsUpdate)
	var after []domain.ParticipantView
	require.NoError(t, json.Unmarshal(emptied, &after))
	assert.Empty(t, after)
}

func TestWebSocket_MalformedAndUnknownEvents(t *testing.T) {
	server := setupWSServer(t, time.Minute)

	conn := dialWS(t, server)

	sendEvent(t, conn, "no-such-event", nil)
	var rejection domain.RejectionEvent
	require.NoError(t, json.Unmarshal(waitForEvent(t, conn, domain.EventOperationRejected), &rejection))
	assert.Equal(t, "validation", string(rejection.Kind))

	// Missing payload on an event that requires one
	sendEvent(t, conn, domain.EventStudentJoin, nil)
	require.NoError(t, json.Unmarshal(waitForEvent(t, conn, domain.EventOperationRejected), &rejection))
	assert.Equal(t, "validation", string(rejection.Kind))

	// The connection survives rejected operations
	sendEvent(t, conn, domain.EventStudentJoin, map[string]string{"name": "Bob"})
	sendEvent(t, conn, domain.EventChatMessage, map[string]string{"message": "still here"})
	var msg domain.ChatMessageEvent
	require.NoError(t, json.Unmarshal(waitForEvent(t, conn, domain.EventChatBroadcast), &msg))
	assert.Equal(t, "Bob", msg.Sender)
}

func TestWebSocket_DisconnectShrinksRoster(t *testing.T) {
	server := setupWSServer(t, time.Minute)

	teacher := dialWS(t, server)
	sendEvent(t, teacher, domain.EventTeacherJoin, nil)
	waitForEvent(t, teacher, domain.EventParticipantsUpdate)

	student := dialWS(t, server)
	sendEvent(t, student, domain.EventStudentJoin, map[string]string{"name": "Alice"})
	waitForEvent(t, teacher, domain.EventParticipantsUpdate)

	require.NoError(t, student.Close())

	data := waitForEvent(t, teacher, domain.EventParticipantsUpdate)
	var views []domain.ParticipantView
	require.NoError(t, json.Unmarshal(data, &views))
	assert.Empty(t, views)
}
