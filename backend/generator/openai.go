package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"learnplan/backend/models"
	"learnplan/backend/utils"
)

var ErrMissingAPIKey = errors.New("missing OPENAI_API_KEY")

const systemPrompt = "You are a personal learning assistant. Reply with a single JSON object only. " +
	"Each key is a day or topic label, each value is an array of short activity descriptions in the order they should be done."

// OpenAIConfig configures the chat completions client.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// OpenAI generates plans through an OpenAI compatible chat completions endpoint.
type OpenAI struct {
	log        *utils.Logger
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

func NewOpenAI(cfg OpenAIConfig, log *utils.Logger) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gpt-4o-mini"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAI{
		log:        log.With("client", "OpenAI"),
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float64        `json:"temperature"`
	ResponseFormat responseFormat `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (o *OpenAI) Generate(ctx context.Context, req Request) (models.PlanContent, error) {
	body, err := json.Marshal(chatRequest{
		Model: o.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req)},
		},
		Temperature:    0.7,
		ResponseFormat: responseFormat{Type: "json_object"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+o.apiKey)

	start := time.Now()
	resp, err := o.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("chat completions: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	o.log.Debug("chat completion finished", "status", resp.StatusCode, "latency", time.Since(start))

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return nil, fmt.Errorf("chat completions status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return nil, ErrEmptyPlan
	}

	content, err := parsePlanJSON(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}
	return Normalize(content)
}

func userPrompt(req Request) string {
	days := req.DurationDays
	if days <= 0 {
		days = 30
	}
	difficulty := req.Difficulty
	if difficulty == "" {
		difficulty = models.DifficultyIntermediate
	}
	return fmt.Sprintf(
		"Generate a %d-day learning plan at %s level for the following goal:\nGoal: %s\n"+
			"Provide a day-by-day breakdown with topics, resources, and activities.",
		days, difficulty, req.Goal,
	)
}

// parsePlanJSON accepts {"Day 1": ["..."]} and the wrapped form {"plan": {"Day 1": ["..."]}}.
func parsePlanJSON(text string) (models.PlanContent, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return nil, fmt.Errorf("plan is not a JSON object: %w", err)
	}
	if len(top) == 1 {
		for _, v := range top {
			var nested map[string]json.RawMessage
			if json.Unmarshal(v, &nested) == nil {
				top = nested
			}
		}
	}

	content := make(models.PlanContent, len(top))
	for label, v := range top {
		var activities []string
		if err := json.Unmarshal(v, &activities); err != nil {
			var single string
			if json.Unmarshal(v, &single) != nil {
				return nil, fmt.Errorf("plan entry %q is not a list of activities", label)
			}
			activities = []string{single}
		}
		content[label] = activities
	}
	return content, nil
}
