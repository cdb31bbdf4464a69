package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OpenAIImageGenerator calls an OpenAI-compatible /v1/images/generations
// endpoint (DALL-E style) and returns the URL of the generated image.
type OpenAIImageGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAIImageGenerator builds an ImageGenerator against an
// OpenAI-compatible images API. baseURL should include the /v1 prefix.
func NewOpenAIImageGenerator(baseURL, apiKey, model string) *OpenAIImageGenerator {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	model = strings.TrimSpace(model)
	if model == "" {
		model = "dall-e-3"
	}
	return &OpenAIImageGenerator{
		baseURL: baseURL,
		apiKey:  strings.TrimSpace(apiKey),
		model:   model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// GenerateImage implements ImageGenerator using the images generations API.
// Size and style follow the letter cover format: wide, vivid.
func (g *OpenAIImageGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	reqBody := imageRequest{
		Model:   g.model,
		Prompt:  prompt,
		N:       1,
		Size:    "1792x1024",
		Quality: "standard",
		Style:   "vivid",
	}
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	url := g.baseURL + "/images/generations"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("image request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("image api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("image api error: %s", resp.Status)
	}

	var imgResp imageResponse
	if err := json.NewDecoder(resp.Body).Decode(&imgResp); err != nil {
		return "", fmt.Errorf("image decode: %w", err)
	}
	if len(imgResp.Data) == 0 || strings.TrimSpace(imgResp.Data[0].URL) == "" {
		return "", fmt.Errorf("no image generated")
	}
	return imgResp.Data[0].URL, nil
}

type imageRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	N       int    `json:"n"`
	Size    string `json:"size,omitempty"`
	Quality string `json:"quality,omitempty"`
	Style   string `json:"style,omitempty"`
}

type imageResponse struct {
	Data []struct {
		URL string `json:"url"`
	} `json:"data"`
}
