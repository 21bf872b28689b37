package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/yourorg/imageforge/internal/domain"
)

// newHTTPClient builds the one *http.Client each HTTP-backed adapter keeps
// for all its calls, so connections are pooled rather than redialed per
// call, matching how the rest of the pack's API-wrapper code reuses one
// *http.Client per provider.
func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// HTTPGenerationAdapter calls a synchronous HTTP generation provider: POST
// prompt+style+dimensions, receive raw image bytes back. §5 default
// timeout for generation is 120s.
type HTTPGenerationAdapter struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPGenerationAdapter(baseURL, apiKey string) *HTTPGenerationAdapter {
	return &HTTPGenerationAdapter{BaseURL: baseURL, APIKey: apiKey, Client: newHTTPClient(120 * time.Second)}
}

func (a *HTTPGenerationAdapter) IsAsync() bool { return false }

type generateRequest struct {
	Prompt string `json:"prompt"`
	Style  string `json:"style"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

func (a *HTTPGenerationAdapter) Generate(ctx context.Context, prompt string, style domain.Style, width, height int) (GenerateResult, AsyncHandle, error) {
	body, err := json.Marshal(generateRequest{Prompt: prompt, Style: string(style), Width: width, Height: height})
	if err != nil {
		return GenerateResult{}, "", fmt.Errorf("encode generate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return GenerateResult{}, "", fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	resp, err := a.Client.Do(req)
	if err != nil {
		return GenerateResult{}, "", fmt.Errorf("generate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GenerateResult{}, "", httpStatusError(resp)
	}

	imgBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return GenerateResult{}, "", fmt.Errorf("read generate response: %w", err)
	}
	if len(imgBytes) == 0 {
		return GenerateResult{}, "", &terminalError{msg: "provider returned empty image bytes"}
	}

	cost := 0.0
	if v := resp.Header.Get("X-Generation-Cost"); v != "" {
		_, _ = fmt.Sscanf(v, "%f", &cost)
	}
	return GenerateResult{Bytes: imgBytes, Cost: cost}, "", nil
}

func (a *HTTPGenerationAdapter) Poll(ctx context.Context, handle AsyncHandle) (PollResult, error) {
	return PollResult{Status: PollFailed, Kind: domain.FailureProviderTerminal, Message: "adapter is synchronous"}, nil
}

func (a *HTTPGenerationAdapter) ClassifyError(err error) domain.FailureKind {
	return classifyHTTPError(err)
}

// HTTPVisionAdapter calls a synchronous HTTP vision/tagging provider. §5
// default timeout is 60s.
type HTTPVisionAdapter struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPVisionAdapter(baseURL, apiKey string) *HTTPVisionAdapter {
	return &HTTPVisionAdapter{BaseURL: baseURL, APIKey: apiKey, Client: newHTTPClient(60 * time.Second)}
}

type visionResponse struct {
	Tags []struct {
		Tag        string  `json:"tag"`
		Confidence float64 `json:"confidence"`
	} `json:"tags"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Confidence  float64 `json:"confidence"`
	Colors      []struct {
		Hex        string  `json:"hex"`
		Percentage float64 `json:"percentage"`
		IsDominant bool    `json:"is_dominant"`
	} `json:"colors"`
	Cost float64 `json:"cost"`
}

func (a *HTTPVisionAdapter) Tag(ctx context.Context, imageBytes []byte, prompt string) (VisionResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/tag", bytes.NewReader(imageBytes))
	if err != nil {
		return VisionResult{}, fmt.Errorf("build tag request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)
	req.Header.Set("X-Prompt", prompt)

	resp, err := a.Client.Do(req)
	if err != nil {
		return VisionResult{}, fmt.Errorf("tag request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VisionResult{}, httpStatusError(resp)
	}

	var parsed visionResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return VisionResult{}, &terminalError{msg: fmt.Sprintf("malformed vision response: %v", err)}
	}

	tags := make([]RawTag, len(parsed.Tags))
	for i, t := range parsed.Tags {
		tags[i] = RawTag{Tag: t.Tag, Confidence: t.Confidence}
	}
	colors := make([]domain.Color, len(parsed.Colors))
	for i, c := range parsed.Colors {
		colors[i] = domain.Color{Hex: c.Hex, Percentage: c.Percentage, IsDominant: c.IsDominant}
	}

	return VisionResult{
		Tags:        tags,
		Description: parsed.Description,
		Category:    parsed.Category,
		Confidence:  parsed.Confidence,
		Colors:      colors,
		Cost:        parsed.Cost,
	}, nil
}

func (a *HTTPVisionAdapter) ClassifyError(err error) domain.FailureKind {
	return classifyHTTPError(err)
}

// HTTPEmbeddingAdapter calls a synchronous HTTP embedding provider. §5
// default timeout is 30s.
type HTTPEmbeddingAdapter struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

func NewHTTPEmbeddingAdapter(baseURL, apiKey string) *HTTPEmbeddingAdapter {
	return &HTTPEmbeddingAdapter{BaseURL: baseURL, APIKey: apiKey, Client: newHTTPClient(30 * time.Second)}
}

type embedRequest struct {
	Input string `json:"input"`
}

type embedResponse struct {
	Vector []float32 `json:"vector"`
}

func (a *HTTPEmbeddingAdapter) Embed(ctx context.Context, input string) ([]float32, error) {
	body, err := json.Marshal(embedRequest{Input: input})
	if err != nil {
		return nil, fmt.Errorf("encode embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/v1/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+a.APIKey)

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, httpStatusError(resp)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &terminalError{msg: fmt.Sprintf("malformed embed response: %v", err)}
	}
	return parsed.Vector, nil
}

func (a *HTTPEmbeddingAdapter) ClassifyError(err error) domain.FailureKind {
	return classifyHTTPError(err)
}

// terminalError marks an error as provider_terminal regardless of the
// generic HTTP-status classification below (content that is malformed or
// intentionally empty is never worth retrying).
type terminalError struct{ msg string }

func (e *terminalError) Error() string { return e.msg }

// httpStatusError classifies a non-200 response by status code.
func httpStatusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &statusError{code: resp.StatusCode, body: string(body)}
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.code, e.body)
}

// classifyHTTPError implements §4.6/§7's classification: rate-limit and
// transient network errors are retryable; authentication and validation
// errors are terminal.
func classifyHTTPError(err error) domain.FailureKind {
	var term *terminalError
	if errors.As(err, &term) {
		return domain.FailureProviderTerminal
	}
	var se *statusError
	if errors.As(err, &se) {
		switch {
		case se.code == http.StatusTooManyRequests:
			return domain.FailureProviderTransient
		case se.code == http.StatusUnauthorized || se.code == http.StatusForbidden || se.code == http.StatusBadRequest:
			return domain.FailureProviderTerminal
		case se.code >= 500:
			return domain.FailureProviderTransient
		default:
			return domain.FailureProviderTerminal
		}
	}
	// Network-level errors (timeouts, connection resets) are transient.
	return domain.FailureProviderTransient
}
