package structurer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"taskcam/internal/httpc"
	"taskcam/internal/log"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Catalog supplies the project list appended to the structuring prompt.
// The Firestore client implements this; a nil catalog is allowed.
type Catalog interface {
	ListProjects(ctx context.Context) ([]Project, error)
}

// Gemini structures page images via the Gemini generateContent API.
// Note: Gemini uses its own wire format, so we call the REST API directly.
type Gemini struct {
	apiKey  string
	model   string
	baseURL string
	catalog Catalog
	http    *http.Client
	logger  *slog.Logger
}

// GeminiConfig configures the Gemini structuring client.
type GeminiConfig struct {
	APIKey  string
	Model   string        // default gemini-2.0-flash
	BaseURL string        // override for tests
	Timeout time.Duration // default 60s
	Catalog Catalog
}

// NewGemini creates a Gemini structuring engine.
func NewGemini(cfg GeminiConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY not set")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}

	client := httpc.Client
	if cfg.Timeout > 0 {
		client = httpc.NewClient(cfg.Timeout)
	}

	return &Gemini{
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		baseURL: cfg.BaseURL,
		catalog: cfg.Catalog,
		http:    client,
		logger:  log.With("component", "structurer.gemini"),
	}, nil
}

// Structure sends the page image for OCR and returns the structured tasks.
func (g *Gemini) Structure(ctx context.Context, jpeg []byte) (*Page, error) {
	start := time.Now()

	var projects []Project
	if g.catalog != nil {
		var err error
		projects, err = g.catalog.ListProjects(ctx)
		if err != nil {
			// Structuring still works without the catalog, projectRef just
			// comes back null more often.
			g.logger.Warn("project catalog unavailable", "error", err)
		}
	}

	payload := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"parts": []map[string]interface{}{
					{"text": buildPrompt(projects)},
					{"inline_data": map[string]string{
						"mime_type": "image/jpeg",
						"data":      base64.StdEncoding.EncodeToString(jpeg),
					}},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature": 0.1,
			"topP":        1,
			"topK":        1,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("Gemini API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 200))
	}

	var result geminiResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if result.Error.Message != "" {
		return nil, fmt.Errorf("Gemini error: %s", result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from Gemini (raw: %s)", truncate(string(respBody), 300))
	}

	raw := result.Candidates[0].Content.Parts[0].Text
	data, err := ExtractJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("response is not structured JSON: %w", err)
	}

	page, err := ParsePage(data)
	if err != nil {
		return nil, err
	}

	g.logger.Info("page structured",
		"tasks", len(page.Tasks),
		"model", g.model,
		"latency_ms", time.Since(start).Milliseconds())

	return page, nil
}

// geminiResponse is the response structure from the Gemini API.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// truncate shortens a string to maxLen characters.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}
