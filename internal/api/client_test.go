package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parsaabbasian/unispot-sync/internal/models"
	appErrors "github.com/parsaabbasian/unispot-sync/pkg/errors"
)

func TestFetchEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/events", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("lat"))
		assert.NotEmpty(t, r.URL.Query().Get("lng"))
		assert.Equal(t, "5000", r.URL.Query().Get("radius"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode([]models.Event{
			{ID: 1, Title: "free pizza", Category: "food"},
			{ID: 2, Title: "study group", Category: "academic"},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "/ws", time.Second, nil)
	events, err := c.FetchEvents(context.Background(), 43.7735, -79.5019, 5000)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "free pizza", events[0].Title)
}

func TestCreateEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/events", r.URL.Path)

		var submit SubmitRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&submit))
		assert.Equal(t, "free pizza", submit.Title)
		assert.Equal(t, 2.0, submit.DurationHours)

		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(models.Event{ID: 10, Title: submit.Title})
	}))
	defer srv.Close()

	c := New(srv.URL, "/ws", time.Second, nil)
	created, err := c.CreateEvent(context.Background(), SubmitRequest{
		Title:         "free pizza",
		Category:      "food",
		Latitude:      43.7735,
		Longitude:     -79.5019,
		DurationHours: 2,
	})

	require.NoError(t, err)
	assert.Equal(t, uint(10), created.ID)
}

func TestVerifyEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/events/7/verify", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "amir", body["user_name"])

		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "/ws", time.Second, nil)
	require.NoError(t, c.VerifyEvent(context.Background(), 7, "amir", "amir@campus.test"))
}

func TestRejectionCarriesServerMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"event has ended"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "/ws", time.Second, nil)
	err := c.VerifyEvent(context.Background(), 7, "amir", "")

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrRejected))
	assert.Contains(t, err.Error(), "event has ended")

	typed := appErrors.FromError(err)
	assert.Equal(t, http.StatusBadRequest, typed.Status)
}

func TestRejectionMapsNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"event not found"}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "/ws", time.Second, nil)
	err := c.VerifyEvent(context.Background(), 99, "amir", "")

	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestStreamURL(t *testing.T) {
	tests := []struct {
		base string
		want string
	}{
		{base: "http://board.campus.test", want: "ws://board.campus.test/ws"},
		{base: "https://board.campus.test", want: "wss://board.campus.test/ws"},
		{base: "http://board.campus.test/", want: "ws://board.campus.test/ws"},
	}
	for _, tt := range tests {
		c := New(tt.base, "/ws", time.Second, nil)
		assert.Equal(t, tt.want, c.StreamURL())
	}
}
