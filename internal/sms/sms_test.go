package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkutano/hotspot/internal/api"
	"github.com/mkutano/hotspot/internal/auth"
	"github.com/mkutano/hotspot/internal/logging"
	"github.com/mkutano/hotspot/internal/msisdn"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	apiClient := api.New(srv.URL, auth.NewMemoryStore(), api.WithLogger(logging.Nop()))
	return NewClient(apiClient, logging.Nop())
}

func TestSend_NormalizesNumber(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sms/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(Message{ID: "sms-1", Status: "queued"})
	}))

	msg, err := c.Send(context.Background(), "0712 345 678", "Your WiFi password: abc123")
	require.NoError(t, err)
	assert.Equal(t, "sms-1", msg.ID)
	assert.Equal(t, "254712345678", got["phone_number"])
}

func TestSend_RejectsBadNumberLocally(t *testing.T) {
	called := false
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	_, err := c.Send(context.Background(), "12345", "hi")
	assert.ErrorIs(t, err, msisdn.ErrInvalid)
	assert.False(t, called)
}

func TestSend_RejectsEmptyMessage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	_, err := c.Send(context.Background(), "0712345678", "")
	assert.ErrorIs(t, err, ErrEmptyMessage)
}

func TestList_BuildsQuery(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/sms/logs", r.URL.Path)
		assert.Equal(t, "254712345678", r.URL.Query().Get("phone"))
		assert.Equal(t, "delivered", r.URL.Query().Get("status"))
		assert.Equal(t, "20", r.URL.Query().Get("limit"))
		json.NewEncoder(w).Encode([]Message{{ID: "sms-1"}, {ID: "sms-2"}})
	}))

	msgs, err := c.List(context.Background(), ListFilter{
		PhoneNumber: "0712345678",
		Status:      "delivered",
		Limit:       20,
	})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
}

func TestList_NoFilter(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.URL.RawQuery)
		json.NewEncoder(w).Encode([]Message{})
	}))

	msgs, err := c.List(context.Background(), ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}
