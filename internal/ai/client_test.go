package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondSendsOrderedContext(t *testing.T) {
	var got []Turn
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "Bearer sekrit", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`"hello there"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sekrit")
	reply, err := c.Respond(context.Background(), []Turn{
		{Sender: "customer@example.com", Text: "hi"},
		{Sender: "AI", Text: "hello"},
	})
	require.NoError(t, err)
	assert.Equal(t, "hello there", reply)
	require.Len(t, got, 2)
	assert.Equal(t, "customer@example.com", got[0].Sender)
	assert.Equal(t, "hi", got[0].Text)
}

func TestRespondWrappedReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reply":"wrapped answer"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	reply, err := c.Respond(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "wrapped answer", reply)
}

func TestRespondAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Respond(context.Background(), nil)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
	assert.True(t, apiErr.IsRateLimit())
}

func TestRespondUnusableBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.Respond(context.Background(), nil)
	assert.Error(t, err)
}
