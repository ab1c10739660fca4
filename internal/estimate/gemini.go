package estimate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/runger/bocado/internal/journal"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// GeminiProvider implements the Provider interface against the Gemini
// generateContent HTTP API.
type GeminiProvider struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// GeminiOptions configures a Gemini provider. Zero-value fields fall
// back to environment variables and defaults.
type GeminiOptions struct {
	APIKey  string // Falls back to GEMINI_API_KEY, then GOOGLE_API_KEY
	Model   string
	BaseURL string // Tests point this at a local server
	Timeout time.Duration
}

// NewGeminiProvider creates a Gemini provider.
func NewGeminiProvider(opts GeminiOptions) *GeminiProvider {
	apiKey := opts.APIKey
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}

	model := opts.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &GeminiProvider{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Name returns the provider name.
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Available checks if an API key is configured.
func (p *GeminiProvider) Available() bool {
	return p.apiKey != ""
}

// Estimate asks Gemini for the macros of one serving.
func (p *GeminiProvider) Estimate(ctx context.Context, req *Request) (*Response, error) {
	if req == nil || req.FoodName == "" {
		return nil, errors.New("food name is required")
	}
	if req.Grams <= 0 {
		return nil, fmt.Errorf("grams must be positive, got %v", req.Grams)
	}
	if !p.Available() {
		return nil, fmt.Errorf("%w: gemini API key not set", ErrUnavailable)
	}

	start := time.Now()

	raw, err := p.prompt(ctx, p.buildPrompt(req))
	if err != nil {
		return nil, err
	}

	parsed, err := parseMacrosResponse(raw)
	if err != nil {
		return nil, err
	}

	return &Response{
		ProviderName: p.Name(),
		Macros: journal.Macros{
			Calories: parsed.Calories,
			Protein:  parsed.Protein,
			Carbs:    parsed.Carbs,
			Fat:      parsed.Fat,
		},
		Confidence: parsed.Confidence,
		LatencyMs:  time.Since(start).Milliseconds(),
	}, nil
}

// Wire types for the generateContent endpoint.
type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiCandidate struct {
	Content geminiContent `json:"content"`
}

// buildPrompt asks for a strict-JSON macro estimate for the serving.
func (p *GeminiProvider) buildPrompt(req *Request) string {
	prompt := "You are a nutrition database expert. Estimate the macros for one food serving.\n\n"

	prompt += "SERVING:\n"
	prompt += fmt.Sprintf("- Food: %s\n", req.FoodName)
	prompt += fmt.Sprintf("- Amount: %.0f g\n\n", req.Grams)

	prompt += "RESPONSE FORMAT:\n"
	prompt += "Return ONLY a valid JSON object in this exact structure:\n"
	prompt += "{\n"
	prompt += "  \"calories\": 123.4,\n"
	prompt += "  \"protein\": 10.0,\n"
	prompt += "  \"carbs\": 20.0,\n"
	prompt += "  \"fat\": 5.0,\n"
	prompt += "  \"confidence\": \"high\"\n"
	prompt += "}\n\n"

	prompt += "IMPORTANT:\n"
	prompt += "- Return ONLY the JSON object, no additional text\n"
	prompt += "- All values are for the full serving, NOT per 100 g\n"
	prompt += "- calories in kcal; protein, carbs, fat in grams\n"
	prompt += "- confidence is one of: high, medium, low\n"

	return prompt
}

// prompt sends a prompt to Gemini and returns the first candidate text.
func (p *GeminiProvider) prompt(ctx context.Context, prompt string) (string, error) {
	requestBody := geminiRequest{
		Contents: []geminiContent{
			{
				Parts: []geminiPart{
					{Text: prompt},
				},
			},
		},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return "", fmt.Errorf("error marshaling request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", p.baseURL, p.model, p.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var response geminiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("error unmarshaling response: %w", err)
	}
	if len(response.Candidates) == 0 || len(response.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no candidates in response")
	}

	return response.Candidates[0].Content.Parts[0].Text, nil
}

// macrosPayload is the strict-JSON shape the prompt asks for.
type macrosPayload struct {
	Calories   float64 `json:"calories"`
	Protein    float64 `json:"protein"`
	Carbs      float64 `json:"carbs"`
	Fat        float64 `json:"fat"`
	Confidence string  `json:"confidence"`
}

func parseMacrosResponse(raw string) (*macrosPayload, error) {
	cleaned := cleanLLMResponse(raw)

	var payload macrosPayload
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return nil, fmt.Errorf("failed to parse estimation response: %w", err)
	}
	if payload.Calories < 0 || payload.Protein < 0 || payload.Carbs < 0 || payload.Fat < 0 {
		return nil, errors.New("estimation response contains negative macros")
	}
	return &payload, nil
}

// cleanLLMResponse strips markdown fences and extracts the outermost
// JSON object. Models wrap JSON in ```json fences despite instructions.
func cleanLLMResponse(response string) string {
	response = strings.ReplaceAll(response, "```json", "")
	response = strings.ReplaceAll(response, "```", "")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end != -1 && end > start {
		response = response[start : end+1]
	}

	return response
}
