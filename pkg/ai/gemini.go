package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"studybuddy/pkg/domain"
)

const (
	defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is used when the caller does not pick one.
	DefaultModel = "gemini-2.0-flash"
)

// GeminiClient calls the Google AI Studio (Gemini) API.
type GeminiClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// NewGeminiClient constructs a client bound to the provided API key and model.
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key required")
	}
	model = normalizeModel(model)
	if model == "" {
		model = DefaultModel
	}
	return &GeminiClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultGeminiBaseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}, nil
}

// Generate returns the model response for a prompt. History turns are
// replayed as alternating user/model contents before the prompt itself.
func (c *GeminiClient) Generate(ctx context.Context, systemPrompt string, history []domain.Message, prompt string) (string, error) {
	reqBody := generateRequest{}
	for _, m := range history {
		role := "user"
		if m.Role == domain.RoleModel {
			role = "model"
		}
		reqBody.Contents = append(reqBody.Contents, content{
			Role:  role,
			Parts: []part{{Text: m.Content}},
		})
	}
	reqBody.Contents = append(reqBody.Contents, content{
		Role:  "user",
		Parts: []part{{Text: prompt}},
	})
	if strings.TrimSpace(systemPrompt) != "" {
		reqBody.SystemInstruction = &content{
			Parts: []part{{Text: systemPrompt}},
		}
	}
	var resp generateResponse
	if err := c.doJSON(ctx, fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey), reqBody, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from gemini")
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

// ValidateKey issues a minimal countTokens call to verify the key works.
func (c *GeminiClient) ValidateKey(ctx context.Context) error {
	reqBody := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []part{{Text: "ping"}}},
		},
	}
	return c.doJSON(ctx, fmt.Sprintf("%s/models/%s:countTokens?key=%s", c.baseURL, c.model, c.apiKey), reqBody, nil)
}

// ListModels returns the names of models that support text generation,
// without the "models/" prefix.
func (c *GeminiClient) ListModels(ctx context.Context) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/models?key=%s", c.baseURL, c.apiKey), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("gemini api error: %s", resp.Status)
	}
	var body listModelsResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, err
	}
	var names []string
	for _, m := range body.Models {
		for _, method := range m.SupportedGenerationMethods {
			if method == "generateContent" {
				names = append(names, normalizeModel(m.Name))
				break
			}
		}
	}
	return names, nil
}

func normalizeModel(model string) string {
	model = strings.TrimSpace(model)
	model = strings.TrimPrefix(model, "models/")
	return model
}

func (c *GeminiClient) doJSON(ctx context.Context, url string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return fmt.Errorf("gemini api error: %s", errResp.Error.Message)
		}
		return fmt.Errorf("gemini api error: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return err
	}
	return nil
}

type part struct {
	Text string `json:"text"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents          []content `json:"contents"`
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

type listModelsResponse struct {
	Models []struct {
		Name                       string   `json:"name"`
		SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
	} `json:"models"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}
