package gliner_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vietnamexplorer/explorer/internal/assistant/gliner"
)

func TestClient_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer hf_test", r.Header.Get("Authorization"))

		var body struct {
			Inputs     string `json:"inputs"`
			Parameters struct {
				Labels []string `json:"labels"`
			} `json:"parameters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tìm phở gần Hồ Gươm", body.Inputs)
		assert.Contains(t, body.Parameters.Labels, "food")

		w.Write([]byte(`[{"entity_group":"food","word":"phở","score":0.91},{"label":"location","word":"Hồ Gươm","score":0.88}]`))
	}))
	defer server.Close()

	client := gliner.NewClient(gliner.ClientConfig{URL: server.URL, Token: "hf_test"})
	entities, err := client.Extract(context.Background(), "tìm phở gần Hồ Gươm")
	require.NoError(t, err)
	require.Len(t, entities, 2)
	assert.Equal(t, "food", entities[0].Label)
	assert.Equal(t, "location", entities[1].Label)
	assert.Equal(t, "Hồ Gươm", entities[1].Word)
}

func TestClient_Extract_RetriesOnceWhileLoading(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := gliner.NewClient(gliner.ClientConfig{URL: server.URL, LoadingWait: 10 * time.Millisecond})
	entities, err := client.Extract(context.Background(), "xin chào")
	require.NoError(t, err)
	assert.Empty(t, entities)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Extract_GivesUpAfterSecondLoadingResponse(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := gliner.NewClient(gliner.ClientConfig{URL: server.URL, LoadingWait: 10 * time.Millisecond})
	_, err := client.Extract(context.Background(), "xin chào")
	require.Error(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_Extract_Unauthorized(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := gliner.NewClient(gliner.ClientConfig{URL: server.URL})
	_, err := client.Extract(context.Background(), "xin chào")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
