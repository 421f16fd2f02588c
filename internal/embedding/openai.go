package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/envutil"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
	"github.com/quillfeed/quillfeed-backend/internal/platform/retry"
)

// openAIProvider calls the OpenAI embeddings endpoint. Transient HTTP
// failures are retried with backoff; the dimensionality is fixed by the
// embedding model.
type openAIProvider struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	model      string
	dims       int
	httpClient *http.Client
	retryCfg   retry.Config
}

func newOpenAIProvider(log *logger.Logger) (*openAIProvider, error) {
	apiKey := envutil.GetEnv("OPENAI_API_KEY", "", log)
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := envutil.GetEnv("OPENAI_BASE_URL", "https://api.openai.com", log)
	model := envutil.GetEnv("OPENAI_EMBED_MODEL", "text-embedding-3-small", log)
	dims := envutil.GetEnvAsInt("OPENAI_EMBED_DIMENSIONS", 1536, log)
	timeout := envutil.GetEnvAsDuration("OPENAI_TIMEOUT", 60*time.Second, log)

	return &openAIProvider{
		log:        log.With("provider", ProviderOpenAI),
		baseURL:    baseURL,
		apiKey:     apiKey,
		model:      model,
		dims:       dims,
		httpClient: &http.Client{Timeout: timeout},
		retryCfg: retry.Config{
			MaxRetries:   envutil.GetEnvAsInt("OPENAI_MAX_RETRIES", 4, log),
			InitialDelay: 1 * time.Second,
			MaxDelay:     10 * time.Second,
			Multiplier:   2.0,
			Retryable:    isRetryableProviderErr,
		},
	}, nil
}

func (p *openAIProvider) Name() string    { return ProviderOpenAI }
func (p *openAIProvider) Dimensions() int { return p.dims }

func (p *openAIProvider) Embed(ctx context.Context, text string) (content.Vector, error) {
	vecs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

type embeddingsRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

func (p *openAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]content.Vector, error) {
	if len(texts) == 0 {
		return []content.Vector{}, nil
	}
	prepared := make([]string, len(texts))
	for i, t := range texts {
		prepared[i] = PrepareText(t, defaultTokenBudget)
	}

	resp, err := retry.Do(ctx, p.retryCfg, func(ctx context.Context) (*embeddingsResponse, error) {
		return p.doEmbeddings(ctx, embeddingsRequest{Model: p.model, Input: prepared})
	})
	if err != nil {
		return nil, err
	}

	out := make([]content.Vector, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		vec := make(content.Vector, len(d.Embedding))
		for i, f := range d.Embedding {
			vec[i] = float32(f)
		}
		out[d.Index] = vec
	}
	for i := range out {
		if out[i] == nil {
			return nil, fmt.Errorf("missing embedding for input %d", i)
		}
		if len(out[i]) != p.dims {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d got %d", p.dims, len(out[i]))
		}
	}
	return out, nil
}

func (p *openAIProvider) doEmbeddings(ctx context.Context, reqBody embeddingsRequest) (*embeddingsResponse, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/embeddings", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+p.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &providerHTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	var out embeddingsResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	return &out, nil
}

// Validate issues a one-token embedding call to confirm credentials and
// dimensionality before a worker starts draining the queue.
func (p *openAIProvider) Validate(ctx context.Context) error {
	vec, err := p.Embed(ctx, "ping")
	if err != nil {
		return fmt.Errorf("embedding provider validation failed: %w", err)
	}
	if len(vec) != p.dims {
		return fmt.Errorf("provider returned %d dimensions, expected %d", len(vec), p.dims)
	}
	return nil
}

type providerHTTPError struct {
	StatusCode int
	Body       string
}

func (e *providerHTTPError) Error() string {
	body := e.Body
	if len(body) > 256 {
		body = body[:256]
	}
	return fmt.Sprintf("embeddings http %d: %s", e.StatusCode, body)
}

func isRetryableProviderErr(err error) bool {
	var httpErr *providerHTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode == http.StatusRequestTimeout ||
			httpErr.StatusCode == http.StatusTooManyRequests ||
			httpErr.StatusCode >= 500
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	// transport-level failures wrap url.Error
	return err != nil && !errors.Is(err, context.Canceled)
}
