package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"learnplan/backend/models"
	"learnplan/backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *OpenAI {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: srv.URL, Model: "test-model"}, utils.NopLogger())
	require.NoError(t, err)
	return client
}

func completion(content string) map[string]interface{} {
	return map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
}

func TestOpenAIGenerate(t *testing.T) {
	var got chatRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(completion(`{"Day 1": ["Read chapter 1", " "], "Day 2": ["Quiz"]}`))
	})

	content, err := client.Generate(context.Background(), Request{Goal: "Learn Go", DurationDays: 14, Difficulty: "beginner"})
	require.NoError(t, err)

	assert.Equal(t, models.PlanContent{"Day 1": {"Read chapter 1"}, "Day 2": {"Quiz"}}, content)
	assert.Equal(t, "test-model", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Contains(t, got.Messages[1].Content, "14-day")
	assert.Contains(t, got.Messages[1].Content, "beginner")
	assert.Contains(t, got.Messages[1].Content, "Learn Go")
}

func TestOpenAIGenerateUnwrapsPlanKey(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(completion("```json\n{\"plan\": {\"Week 1\": [\"Setup\", \"Hello world\"]}}\n```"))
	})

	content, err := client.Generate(context.Background(), Request{Goal: "Learn Go"})
	require.NoError(t, err)
	assert.Equal(t, models.PlanContent{"Week 1": {"Setup", "Hello world"}}, content)
}

func TestOpenAIGenerateErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{name: "api error", status: http.StatusTooManyRequests, body: `{"error": {"message": "rate limited"}}`, wantErr: "rate limited"},
		{name: "no choices", status: http.StatusOK, body: `{"choices": []}`, wantErr: ErrEmptyPlan.Error()},
		{name: "not json", status: http.StatusOK, body: mustJSON(completion("here is your plan")), wantErr: "not a JSON object"},
		{name: "empty plan", status: http.StatusOK, body: mustJSON(completion(`{"Day 1": []}`)), wantErr: ErrEmptyPlan.Error()},
		{name: "bad entry", status: http.StatusOK, body: mustJSON(completion(`{"Day 1": 42, "Day 2": ["x"]}`)), wantErr: "not a list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Generate(context.Background(), Request{Goal: "x"})
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.wantErr), "error %q should contain %q", err, tt.wantErr)
		})
	}
}

func TestNewOpenAIRequiresKey(t *testing.T) {
	_, err := NewOpenAI(OpenAIConfig{}, utils.NopLogger())
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func mustJSON(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
