package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewOllamaProvider_Defaults(t *testing.T) {
	provider := NewOllamaProvider()

	if provider.baseURL != DefaultOllamaURL {
		t.Errorf("baseURL = %s, want %s", provider.baseURL, DefaultOllamaURL)
	}
	if provider.ModelName() != DefaultModel {
		t.Errorf("model = %s, want %s", provider.ModelName(), DefaultModel)
	}
	if provider.Dimensions() != DefaultDimensions {
		t.Errorf("dimensions = %d, want %d", provider.Dimensions(), DefaultDimensions)
	}
	if provider.client.Timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want %v", provider.client.Timeout, DefaultTimeout)
	}
}

func TestNewOllamaProvider_WithOptions(t *testing.T) {
	provider := NewOllamaProvider(
		WithBaseURL("http://custom:8080"),
		WithModel("nomic-embed-text"),
		WithDimensions(768),
		WithTimeout(5*time.Second),
	)

	if provider.baseURL != "http://custom:8080" {
		t.Errorf("baseURL = %s", provider.baseURL)
	}
	if provider.ModelName() != "nomic-embed-text" {
		t.Errorf("model = %s", provider.ModelName())
	}
	if provider.Dimensions() != 768 {
		t.Errorf("dimensions = %d", provider.Dimensions())
	}
	if provider.client.Timeout != 5*time.Second {
		t.Errorf("timeout = %v", provider.client.Timeout)
	}
}

// fakeOllama answers /api/embed with vectors whose first component is the
// input length, and /api/tags with one model.
func fakeOllama(t *testing.T, dims int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case apiPathEmbed:
			var req ollamaEmbedRequest
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			resp := ollamaEmbedResponse{}
			for _, in := range req.Input {
				vec := make([]float32, dims)
				vec[0] = float32(len(in))
				resp.Embeddings = append(resp.Embeddings, vec)
			}
			json.NewEncoder(w).Encode(resp)
		case apiPathTags:
			w.Write([]byte(`{"models":[{"name":"all-minilm:l6-v2"}]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOllamaProvider_EmbedBatch(t *testing.T) {
	srv := fakeOllama(t, 4)
	p := NewOllamaProvider(WithBaseURL(srv.URL), WithDimensions(4))

	embs, err := p.EmbedBatch(context.Background(), []string{"a", "abc"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(embs) != 2 {
		t.Fatalf("got %d embeddings, want 2", len(embs))
	}
	if embs[0].Vector[0] != 1 || embs[1].Vector[0] != 3 {
		t.Errorf("embeddings out of order: %v", embs)
	}
	if embs[1].Dimensions() != 4 {
		t.Errorf("Dimensions() = %d, want 4", embs[1].Dimensions())
	}

	single, err := p.Embed(context.Background(), "abcd")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if single.Vector[0] != 4 {
		t.Errorf("single embedding = %v", single.Vector)
	}
}

func TestOllamaProvider_DimensionMismatch(t *testing.T) {
	srv := fakeOllama(t, 3)
	p := NewOllamaProvider(WithBaseURL(srv.URL), WithDimensions(384))

	_, err := p.Embed(context.Background(), "text")
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestOllamaProvider_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"model not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	p := NewOllamaProvider(WithBaseURL(srv.URL))
	_, err := p.Embed(context.Background(), "text")
	if err == nil || !strings.Contains(err.Error(), "model not found") {
		t.Errorf("expected error carrying response body, got %v", err)
	}
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected ErrUpstream, got %v", err)
	}
}

func TestOllamaProvider_AvailabilityProbes(t *testing.T) {
	srv := fakeOllama(t, 4)

	p := NewOllamaProvider(WithBaseURL(srv.URL))
	if err := p.IsAvailable(context.Background()); err != nil {
		t.Errorf("IsAvailable failed: %v", err)
	}
	has, err := p.HasModel(context.Background())
	if err != nil || !has {
		t.Errorf("HasModel = %v, %v; want true, nil", has, err)
	}

	other := NewOllamaProvider(WithBaseURL(srv.URL), WithModel("missing"))
	has, err = other.HasModel(context.Background())
	if err != nil || has {
		t.Errorf("HasModel = %v, %v; want false, nil", has, err)
	}

	down := NewOllamaProvider(WithBaseURL("http://127.0.0.1:1"), WithTimeout(time.Second))
	if err := down.IsAvailable(context.Background()); !errors.Is(err, ErrUpstream) {
		t.Errorf("IsAvailable = %v, want ErrUpstream when nothing listens", err)
	}
}

func TestErrorBody(t *testing.T) {
	if got := errorBody(strings.NewReader("  {\"error\": \"x\"}\n")); got != `{"error": "x"}` {
		t.Errorf("errorBody() = %q", got)
	}
	long := strings.Repeat("a", 4096)
	if got := errorBody(strings.NewReader(long)); len(got) != 1024 {
		t.Errorf("errorBody() kept %d bytes, want 1024", len(got))
	}
}

func TestWithTag(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"all-minilm", "all-minilm:latest"},
		{"all-minilm:l6-v2", "all-minilm:l6-v2"},
		{"nomic-embed-text:latest", "nomic-embed-text:latest"},
	}
	for _, tt := range tests {
		if got := withTag(tt.in); got != tt.want {
			t.Errorf("withTag(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestOllamaProvider_ImplementsBatchProvider(t *testing.T) {
	var _ BatchProvider = (*OllamaProvider)(nil)
}
