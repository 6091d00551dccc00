package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// DefaultOllamaURL is the default Ollama API endpoint.
	DefaultOllamaURL = "http://localhost:11434"

	// DefaultModel is the default embedding model (MiniLM-L6, as used for
	// sentence embeddings of abstracts).
	DefaultModel = "all-minilm:l6-v2"

	// DefaultDimensions is the output dimensionality of DefaultModel.
	DefaultDimensions = 384

	// DefaultTimeout is the timeout for embedding requests.
	DefaultTimeout = 60 * time.Second

	apiPathTags  = "/api/tags"
	apiPathEmbed = "/api/embed"
)

// OllamaProvider generates embeddings using a local Ollama server.
type OllamaProvider struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithBaseURL sets the Ollama API base URL.
func WithBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) {
		p.baseURL = url
	}
}

// WithModel sets the embedding model.
func WithModel(model string) OllamaOption {
	return func(p *OllamaProvider) {
		p.model = model
	}
}

// WithDimensions sets the expected vector dimensions.
func WithDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) {
		p.dimensions = dims
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(timeout time.Duration) OllamaOption {
	return func(p *OllamaProvider) {
		p.client.Timeout = timeout
	}
}

// NewOllamaProvider creates a new Ollama embedding provider.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		baseURL:    DefaultOllamaURL,
		model:      DefaultModel,
		dimensions: DefaultDimensions,
		client:     &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Embed generates an embedding for a single text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	embs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return embs[0], nil
}

// EmbedBatch embeds texts in one /api/embed request.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	var result ollamaEmbedResponse
	if err := p.call(ctx, http.MethodPost, apiPathEmbed, ollamaEmbedRequest{Model: p.model, Input: texts}, &result); err != nil {
		return nil, err
	}
	if len(result.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: %d embeddings for %d inputs", ErrUpstream, len(result.Embeddings), len(texts))
	}

	out := make([]Embedding, len(texts))
	for i, vec := range result.Embeddings {
		if len(vec) != p.dimensions {
			return nil, fmt.Errorf("%w: input %d: got %d, want %d", ErrDimensionMismatch, i, len(vec), p.dimensions)
		}
		out[i] = Embedding{Vector: vec}
	}
	return out, nil
}

// ModelName returns the name of the embedding model.
func (p *OllamaProvider) ModelName() string {
	return p.model
}

// Dimensions returns the expected vector dimensions.
func (p *OllamaProvider) Dimensions() int {
	return p.dimensions
}

// IsAvailable checks if Ollama is running and accessible.
func (p *OllamaProvider) IsAvailable(ctx context.Context) error {
	var tags ollamaTagsResponse
	return p.call(ctx, http.MethodGet, apiPathTags, nil, &tags)
}

// HasModel checks if the configured model has been pulled. A model named
// without a tag matches its ":latest" pull.
func (p *OllamaProvider) HasModel(ctx context.Context) (bool, error) {
	var tags ollamaTagsResponse
	if err := p.call(ctx, http.MethodGet, apiPathTags, nil, &tags); err != nil {
		return false, fmt.Errorf("checking models: %w", err)
	}
	want := withTag(p.model)
	for _, m := range tags.Models {
		if withTag(m.Name) == want {
			return true, nil
		}
	}
	return false, nil
}

func withTag(model string) string {
	if strings.Contains(model, ":") {
		return model
	}
	return model + ":latest"
}

// call sends in as JSON (when non-nil) and decodes the response into out.
// Transport failures and non-200 answers wrap ErrUpstream.
func (p *OllamaProvider) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrUpstream, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned status %d: %s", ErrUpstream, path, resp.StatusCode, errorBody(resp.Body))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s response: %v", ErrUpstream, path, err)
	}
	return nil
}

// errorBody returns at most the first KiB of an error response.
func errorBody(r io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(r, 1<<10))
	if err != nil {
		return fmt.Sprintf("(unreadable body: %v)", err)
	}
	return strings.TrimSpace(string(data))
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type ollamaTagsResponse struct {
	Models []ollamaModel `json:"models"`
}

type ollamaModel struct {
	Name string `json:"name"`
}
