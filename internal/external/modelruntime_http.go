package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"cinecut/internal/cinerr"
)

// HTTPModelRuntime posts completion requests to a local model server
// (spec.md §6: two instances, vision on 8089, text on 8090). Grounded on
// the teacher's plain net/http usage throughout downloader.go/analyzer.go
// — no HTTP framework is reached for here either, matching that restraint
// for a one-shot completion client.
type HTTPModelRuntime struct {
	BaseURL string
	Client  *http.Client
}

// NewHTTPModelRuntime builds a runtime client against baseURL (e.g.
// "http://127.0.0.1:8089").
func NewHTTPModelRuntime(baseURL string) *HTTPModelRuntime {
	return &HTTPModelRuntime{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type completionWireRequest struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	JSONSchema  string  `json:"json_schema,omitempty"`
	ImagePath   string  `json:"image_path,omitempty"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
	TimeoutS    int     `json:"timeout"`
}

type completionWireResponse struct {
	Text       string `json:"text"`
	TokensUsed int    `json:"tokens_used"`
}

// Complete issues one completion call and retries it once when the first
// attempt fails for any reason (transport error, non-200 status, or a
// malformed JSON response), per spec.md §7's recoverable-error policy.
func (r *HTTPModelRuntime) Complete(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	result, err := r.completeOnce(ctx, req)
	if err == nil {
		return result, nil
	}
	result, err2 := r.completeOnce(ctx, req)
	if err2 != nil {
		return CompletionResult{}, cinerr.Inference("model runtime call failed after one retry", err2)
	}
	return result, nil
}

func (r *HTTPModelRuntime) completeOnce(ctx context.Context, req CompletionRequest) (CompletionResult, error) {
	wire := completionWireRequest{
		Model: req.Model, Prompt: req.Prompt, JSONSchema: req.JSONSchema,
		ImagePath: req.ImagePath, Temperature: req.Temperature,
		MaxTokens: req.MaxTokens, TimeoutS: req.TimeoutS,
	}
	body, err := json.Marshal(wire)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.BaseURL+"/complete", bytes.NewReader(body))
	if err != nil {
		return CompletionResult{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.Client.Do(httpReq)
	if err != nil {
		return CompletionResult{}, fmt.Errorf("model runtime unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return CompletionResult{}, fmt.Errorf("model runtime returned HTTP %d", resp.StatusCode)
	}

	var wireResp completionWireResponse
	if err := json.NewDecoder(resp.Body).Decode(&wireResp); err != nil {
		return CompletionResult{}, fmt.Errorf("malformed completion response: %w", err)
	}
	return CompletionResult{Text: wireResp.Text, TokensUsed: wireResp.TokensUsed}, nil
}
