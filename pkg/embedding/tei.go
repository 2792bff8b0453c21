package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TEIClient talks to a text-embeddings-inference server.
type TEIClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewTEIClient(baseURL string, timeout time.Duration) *TEIClient {
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &TEIClient{
		BaseURL: baseURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *TEIClient) GetEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := EmbeddingRequest{
		Inputs: texts,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/embed", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embeddings EmbeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddings); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("service returned %d embeddings for %d inputs", len(embeddings), len(texts))
	}

	return embeddings, nil
}
