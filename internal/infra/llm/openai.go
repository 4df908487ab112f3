// Package llm — OpenAI-compatible HTTP adapter.
// OpenAIProvider targets any /v1-style API (OpenAI, OpenRouter, vLLM):
//   - POST /embeddings        — batch embeddings (up to embedBatchSize inputs)
//   - POST /chat/completions  — non-streaming chat completion
//   - GET  /models            — health check
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"
)

// embedBatchSize is the max inputs per /embeddings call. Larger Embed
// requests are split into batches of this size and issued concurrently.
const embedBatchSize = 100

// OpenAIProvider implements Provider against an OpenAI-compatible API.
type OpenAIProvider struct {
	baseURL    string
	apiKey     string
	embedModel string
	chatModel  string
	httpClient *http.Client
}

// NewOpenAIProvider creates an OpenAIProvider with the given client timeout.
// A non-positive timeout falls back to 30s.
func NewOpenAIProvider(baseURL, apiKey, embedModel, chatModel string, timeout time.Duration) *OpenAIProvider {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenAIProvider{
		baseURL:    baseURL,
		apiKey:     apiKey,
		embedModel: embedModel,
		chatModel:  chatModel,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type openAIUsage struct {
	TotalTokens int `json:"total_tokens"`
}

type openAIEmbedResponse struct {
	Data  []openAIEmbedData `json:"data"`
	Usage openAIUsage       `json:"usage"`
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model       string              `json:"model"`
	Messages    []openAIChatMessage `json:"messages"`
	Temperature float32             `json:"temperature,omitempty"`
	MaxTokens   int                 `json:"max_tokens,omitempty"`
}

type openAIChatChoice struct {
	Message      openAIChatMessage `json:"message"`
	FinishReason string            `json:"finish_reason"`
}

type openAIChatResponse struct {
	Choices []openAIChatChoice `json:"choices"`
	Usage   openAIUsage        `json:"usage"`
}

// Embed computes embeddings for all texts. Inputs are split into batches of
// embedBatchSize, all batches are issued concurrently, and the results are
// flattened back into input order. If any batch fails, the whole call fails —
// partial success is never returned.
func (p *OpenAIProvider) Embed(ctx context.Context, req EmbedRequest) (*EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return &EmbedResponse{Embeddings: [][]float32{}}, nil
	}

	model := req.Model
	if model == "" {
		model = p.embedModel
	}

	type batch struct {
		offset int
		texts  []string
	}

	var batches []batch
	for start := 0; start < len(req.Texts); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(req.Texts) {
			end = len(req.Texts)
		}
		batches = append(batches, batch{offset: start, texts: req.Texts[start:end]})
	}

	embeddings := make([][]float32, len(req.Texts))
	errs := make([]error, len(batches))
	tokens := make([]int, len(batches))

	var wg sync.WaitGroup
	wg.Add(len(batches))
	for i, b := range batches {
		go func(i int, b batch) {
			defer wg.Done()
			vecs, used, err := p.embedBatch(ctx, model, b.texts)
			if err != nil {
				errs[i] = err
				return
			}
			tokens[i] = used
			copy(embeddings[b.offset:], vecs)
		}(i, b)
	}
	wg.Wait()

	total := 0
	for i := range batches {
		if errs[i] != nil {
			return nil, fmt.Errorf("openai embed batch %d: %w", i, errs[i])
		}
		total += tokens[i]
	}

	return &EmbedResponse{Embeddings: embeddings, Tokens: total}, nil
}

// embedBatch issues a single /embeddings call for up to embedBatchSize texts.
// The API may return data out of order; results are re-sorted by index.
func (p *OpenAIProvider) embedBatch(ctx context.Context, model string, texts []string) ([][]float32, int, error) {
	body, err := json.Marshal(openAIEmbedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, 0, err
	}

	respBody, postErr := p.doPost(ctx, "/embeddings", body)
	if postErr != nil {
		return nil, 0, postErr
	}
	defer respBody.Close()

	var resp openAIEmbedResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return nil, 0, fmt.Errorf("decode embed response: %w", decodeErr)
	}
	if len(resp.Data) != len(texts) {
		return nil, 0, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(resp.Data))
	}

	sort.Slice(resp.Data, func(i, j int) bool { return resp.Data[i].Index < resp.Data[j].Index })

	vecs := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vecs[i] = d.Embedding
	}
	return vecs, resp.Usage.TotalTokens, nil
}

// ChatCompletion performs a non-streaming chat via POST /chat/completions.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	model := req.Model
	if model == "" {
		model = p.chatModel
	}

	msgs := make([]openAIChatMessage, len(req.Messages))
	for i, m := range req.Messages {
		msgs[i] = openAIChatMessage(m)
	}

	body, err := json.Marshal(openAIChatRequest{
		Model:       model,
		Messages:    msgs,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return nil, err
	}

	respBody, postErr := p.doPost(ctx, "/chat/completions", body)
	if postErr != nil {
		return nil, postErr
	}
	defer respBody.Close()

	var resp openAIChatResponse
	if decodeErr := json.NewDecoder(respBody).Decode(&resp); decodeErr != nil {
		return nil, fmt.Errorf("decode chat response: %w", decodeErr)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: empty choices")
	}
	return &ChatResponse{
		Content:    resp.Choices[0].Message.Content,
		StopReason: resp.Choices[0].FinishReason,
		Tokens:     resp.Usage.TotalTokens,
	}, nil
}

// ModelInfo returns static metadata for this provider/model.
func (p *OpenAIProvider) ModelInfo() ModelMeta {
	return ModelMeta{
		ID:        p.chatModel,
		Provider:  "openai",
		Version:   "v1",
		MaxTokens: 128000,
	}
}

// HealthCheck calls GET /models — returns nil if the API is reachable.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/models", nil)
	if err != nil {
		return fmt.Errorf("openai healthcheck: build request: %w", err)
	}
	p.setHeaders(req)
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("openai healthcheck: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("openai healthcheck: status %d", resp.StatusCode)
	}
	return nil
}

// doPost sends a POST request to baseURL+path and returns the response body.
// Caller is responsible for closing the returned ReadCloser.
func (p *OpenAIProvider) doPost(ctx context.Context, path string, body []byte) (io.ReadCloser, error) {
	url := p.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("openai post %s: build request: %w", path, err)
	}
	p.setHeaders(req)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai post %s: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close() //nolint:errcheck
		return nil, fmt.Errorf("openai post %s: status %d", path, resp.StatusCode)
	}
	return resp.Body, nil
}

func (p *OpenAIProvider) setHeaders(req *http.Request) {
	req.Header.Set(headerContentType, mimeJSON)
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}
