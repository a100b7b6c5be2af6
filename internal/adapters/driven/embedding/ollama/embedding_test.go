package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeEmbedServer serves /api/embed with vectors derived from each input
// text, so identical texts embed identically across requests.
func fakeEmbedServer(t *testing.T) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model string   `json:"model"`
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		embeddings := make([][]float64, len(req.Input))
		for i, text := range req.Input {
			vec := make([]float64, 4)
			for j, c := range text {
				vec[j%4] += float64(c)
			}
			embeddings[i] = vec
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"embeddings": embeddings})
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEmbeddingService_Embed_MatchesBatch(t *testing.T) {
	server := fakeEmbedServer(t)
	service := NewEmbeddingService(Config{BaseURL: server.URL, Dimensions: 4})
	ctx := context.Background()

	single, err := service.Embed(ctx, "inertia")
	require.NoError(t, err)
	batch, err := service.EmbedBatch(ctx, []string{"inertia", "friction"})
	require.NoError(t, err)

	require.Len(t, batch, 2)
	assert.Equal(t, single, batch[0],
		"single and batch entry points produce one vector space")
	assert.NotEqual(t, batch[0], batch[1])
}

func TestEmbeddingService_EmbedBatch_EmptyInput(t *testing.T) {
	server := fakeEmbedServer(t)
	service := NewEmbeddingService(Config{BaseURL: server.URL})

	vectors, err := service.EmbedBatch(context.Background(), nil)

	require.NoError(t, err)
	assert.Nil(t, vectors)
}
