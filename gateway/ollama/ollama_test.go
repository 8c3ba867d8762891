package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlip-soln/nlipmesh/gateway"
)

func newTestGateway(url string) *Gateway {
	return New(func(o *Options) {
		o.BaseURL = url
		o.Model = "test-model"
		o.Timeout = 2 * time.Second
	})
}

func TestCompleteSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)

		var req generateRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "test-model", req.Model)
		assert.Equal(t, "what is 2+2?", req.Prompt)
		assert.False(t, req.Stream)

		_ = json.NewEncoder(w).Encode(generateResponse{Response: "4", Done: true})
	}))
	defer srv.Close()

	got, err := newTestGateway(srv.URL).Complete(context.Background(), "what is 2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", got)
}

func TestCompleteBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestGateway(srv.URL).Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, gateway.ErrBackendError)
	assert.Contains(t, err.Error(), "404")
}

func TestCompleteUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // refuse connections

	_, err := newTestGateway(srv.URL).Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, gateway.ErrBackendUnavailable)
}

func TestCompleteTimeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	gw := New(func(o *Options) {
		o.BaseURL = srv.URL
		o.Timeout = 50 * time.Millisecond
	})
	_, err := gw.Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, gateway.ErrTimeout)
}

func TestCompleteMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := newTestGateway(srv.URL).Complete(context.Background(), "hi")
	assert.ErrorIs(t, err, gateway.ErrBackendError)
}

func TestInfo(t *testing.T) {
	gw := newTestGateway("http://localhost:11434")
	assert.Equal(t, gateway.Info{Provider: "ollama", Model: "test-model"}, gw.Info())
}
