package endpoint

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datachat-ai/datachat/internal/chat"
)

func TestConverse_PostsTranscript(t *testing.T) {
	var capturedBody []byte
	var capturedContentType string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedContentType = r.Header.Get("Content-Type")
		capturedBody, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"choices":[{"messages":[{"role":"assistant","content":"hi"}]}]}` + "\n"))
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, 5*time.Second)
	body, err := client.Converse(context.Background(), chat.ConversationRequest{
		Messages:       []chat.Message{{Role: chat.RoleUser, Content: "hello"}},
		ConversationID: "conv-1",
	})
	require.NoError(t, err)
	defer body.Close()

	streamed, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Contains(t, string(streamed), "assistant")
	assert.Equal(t, "application/json", capturedContentType)

	var req chat.ConversationRequest
	require.NoError(t, json.Unmarshal(capturedBody, &req))
	assert.Equal(t, "conv-1", req.ConversationID)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "hello", req.Messages[0].Content)
}

func TestConverse_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"backend down"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, 5*time.Second)
	_, err := client.Converse(context.Background(), chat.ConversationRequest{ConversationID: "conv-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestConverse_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(nil, url, time.Second)
	_, err := client.Converse(context.Background(), chat.ConversationRequest{ConversationID: "conv-1"})
	require.Error(t, err)
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusMethodNotAllowed)
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, time.Second)
	assert.NoError(t, client.Ping(context.Background()))
}

func TestPing_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	client := NewClient(nil, srv.URL, time.Second)
	require.Error(t, client.Ping(context.Background()))
}
