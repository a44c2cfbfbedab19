package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trial-match-server/internal/domain"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func TestOllamaBackend_Complete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "llama3.1:8b", body["model"])
		assert.Equal(t, "judge this", body["prompt"])
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, "json", body["format"])
		options := body["options"].(map[string]interface{})
		assert.Equal(t, float64(0), options["temperature"])
		assert.Equal(t, float64(2000), options["num_predict"])

		w.Write([]byte(`{"model":"llama3.1:8b","response":"{\"match_score\": 0.8}","done":true}`))
	}))
	defer server.Close()

	backend, err := NewOllamaBackend(domain.OllamaConfig{BaseURL: server.URL + "/", Model: "llama3.1:8b"}, quietLogger())
	require.NoError(t, err)

	text, err := backend.Complete(context.Background(), "judge this")
	require.NoError(t, err)
	assert.Equal(t, `{"match_score": 0.8}`, text)
	assert.Equal(t, "ollama", backend.Name())
}

func TestOllamaBackend_OversizedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"model":"m","response":"` + strings.Repeat("x", 4096) + `","done":true}`))
	}))
	defer server.Close()

	backend, err := NewOllamaBackend(domain.OllamaConfig{BaseURL: server.URL, Model: "m"}, quietLogger())
	require.NoError(t, err)
	backend.maxBody = 1024

	_, err = backend.Complete(context.Background(), "p")
	var unavailable *domain.BackendUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, "undecodable response envelope", unavailable.Details)
}

func TestOllamaBackend_Failures(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantStatus int
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte("model not loaded"))
			},
			wantStatus: http.StatusInternalServerError,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
			wantStatus: http.StatusNotFound,
		},
		{
			name: "garbage envelope",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>proxy error</html>"))
			},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			backend, err := NewOllamaBackend(domain.OllamaConfig{BaseURL: server.URL, Model: "m"}, quietLogger())
			require.NoError(t, err)

			_, err = backend.Complete(context.Background(), "p")
			var unavailable *domain.BackendUnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, tt.wantStatus, unavailable.StatusCode)
		})
	}
}

func TestOllamaBackend_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	backend, err := NewOllamaBackend(domain.OllamaConfig{BaseURL: url, Model: "m"}, quietLogger())
	require.NoError(t, err)

	_, err = backend.Complete(context.Background(), "p")
	assert.True(t, domain.IsBackendUnavailable(err))
}

func TestOllamaBackend_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	backend, err := NewOllamaBackend(domain.OllamaConfig{BaseURL: server.URL, Model: "m", Timeout: 50 * time.Millisecond}, quietLogger())
	require.NoError(t, err)

	_, err = backend.Complete(context.Background(), "p")
	assert.True(t, domain.IsBackendUnavailable(err))
}

func TestNewOllamaBackend_RequiresEndpointAndModel(t *testing.T) {
	_, err := NewOllamaBackend(domain.OllamaConfig{Model: "m"}, quietLogger())
	assert.True(t, domain.IsConfiguration(err))

	_, err = NewOllamaBackend(domain.OllamaConfig{BaseURL: "http://localhost:11434"}, quietLogger())
	assert.True(t, domain.IsConfiguration(err))
}
