package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"classpoll/internal/domain"
	"classpoll/internal/service"
	"classpoll/pkg/logger"
)

type nullDispatcher struct{}

func (nullDispatcher) Broadcast(event string, data interface{}) {}
func (nullDispatcher) Send(id, event string, data interface{})  {}
func (nullDispatcher) Disconnect(id string)                     {}

func setupMirrorServer(t *testing.T) (*service.Coordinator, *httptest.Server) {
	t.Helper()

	log, err := logger.New("error")
	require.NoError(t, err)

	coordinator := service.NewCoordinator(nullDispatcher{}, time.Minute, log.Logger)
	cache := service.NewSnapshotCache(nil, log.Logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewPollHandler(coordinator, cache, log).RegisterRoutes(r)
	})

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return coordinator, server
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestGetCurrentPoll_Idle(t *testing.T) {
	_, server := setupMirrorServer(t)

	var body CurrentPollResponse
	getJSON(t, server.URL+"/api/poll/current", &body)

	assert.True(t, body.Success)
	assert.Nil(t, body.Poll)
	assert.Equal(t, 0, body.Responses)
	assert.Equal(t, 0, body.TotalStudents)
}

func TestGetCurrentPoll_Active(t *testing.T) {
	coordinator, server := setupMirrorServer(t)

	coordinator.JoinModerator("mod")
	coordinator.JoinStudent("s1", "Alice")
	require.NoError(t, coordinator.CreatePoll("mod", domain.CreatePollRequest{
		Question: "Which planet is closest to the sun?",
		Options: []domain.Option{
			{Text: "Mercury", IsCorrect: true},
			{Text: "Venus"},
		},
		DurationSeconds: 60,
	}))
	require.NoError(t, coordinator.SubmitResponse("s1", "Mercury"))

	var body CurrentPollResponse
	getJSON(t, server.URL+"/api/poll/current", &body)

	require.NotNil(t, body.Poll)
	assert.Equal(t, "Which planet is closest to the sun?", body.Poll.Question)
	assert.Equal(t, 1, body.Responses)
	assert.Equal(t, 1, body.TotalStudents)
}

func TestGetCurrentPoll_ETag(t *testing.T) {
	_, server := setupMirrorServer(t)

	resp, err := http.Get(server.URL + "/api/poll/current")
	require.NoError(t, err)
	resp.Body.Close()

	etag := resp.Header.Get("ETag")
	require.NotEmpty(t, etag)
	assert.Contains(t, resp.Header.Get("Cache-Control"), "max-age=2")

	req, err := http.NewRequest(http.MethodGet, server.URL+"/api/poll/current", nil)
	require.NoError(t, err)
	req.Header.Set("If-None-Match", etag)

	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusNotModified, resp2.StatusCode)
}

func TestGetParticipants(t *testing.T) {
	coordinator, server := setupMirrorServer(t)

	coordinator.JoinStudent("s1", "Alice")
	coordinator.JoinStudent("s2", "Bob")

	var body ParticipantsResponse
	getJSON(t, server.URL+"/api/participants", &body)

	assert.True(t, body.Success)
	require.Len(t, body.Participants, 2)
	assert.Equal(t, "Alice", body.Participants[0].Name)
	assert.Equal(t, "Bob", body.Participants[1].Name)
}

func TestGetHistory(t *testing.T) {
	coordinator, server := setupMirrorServer(t)

	var body HistoryResponse
	getJSON(t, server.URL+"/api/history", &body)
	assert.True(t, body.Success)
	assert.Empty(t, body.History)

	// Archive one poll by superseding a fully answered one
	coordinator.JoinModerator("mod")
	coordinator.JoinStudent("s1", "Alice")
	req := domain.CreatePollRequest{
		Question: "Ready?",
		Options: []domain.Option{
			{Text: "Yes", IsCorrect: true},
			{Text: "No"},
		},
		DurationSeconds: 60,
	}
	require.NoError(t, coordinator.CreatePoll("mod", req))
	require.NoError(t, coordinator.SubmitResponse("s1", "Yes"))
	req2 := req
	req2.Options = []domain.Option{
		{Text: "Yes", IsCorrect: true},
		{Text: "No"},
	}
	require.NoError(t, coordinator.CreatePoll("mod", req2))

	var after HistoryResponse
	getJSON(t, server.URL+"/api/history", &after)
	require.Len(t, after.History, 1)
	assert.Equal(t, "Ready?", after.History[0].Question)
	assert.Equal(t, 1, after.History[0].Results.TotalResponses)
}
