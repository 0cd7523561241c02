package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"tasktalk/internal/domain"
)

// OpenAIProvider implements Classifier and Extractor against any
// OpenAI-compatible chat-completions endpoint.
type OpenAIProvider struct {
	client *openai.Client
	model  string
}

// OpenAIConfig configures the provider.
type OpenAIConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	TimeoutMS int
}

// NewOpenAIProvider creates a provider from config.
func NewOpenAIProvider(cfg OpenAIConfig) *OpenAIProvider {
	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	httpClient := &http.Client{}
	if cfg.TimeoutMS > 0 {
		httpClient.Timeout = time.Duration(cfg.TimeoutMS) * time.Millisecond
	}
	config.HTTPClient = httpClient
	return &OpenAIProvider{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
	}
}

const classifyPrompt = `Classify the user's message into exactly one of these intents:
- add: the user wants to create a new task
- list: the user wants to see their tasks
- update: the user wants to change a task's title or description
- complete: the user wants to mark a task as completed or not completed
- delete: the user wants to remove a task
- unknown: anything else

Examples:
"Add a task to buy groceries" -> add
"Show me my tasks" -> list
"What's on my list?" -> list
"Change task 3f2a to say call mom" -> update
"Mark the report task as done" -> complete
"I finished the laundry task" -> complete
"Delete the old meeting task" -> delete
"What's the weather like?" -> unknown

Respond with only the intent label, nothing else.`

// Classify asks the model for one label from the closed intent set. Any
// label outside the set is treated as unknown, not as an error.
func (p *OpenAIProvider) Classify(ctx context.Context, message string) (domain.Intent, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifyPrompt},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return domain.IntentUnknown, fmt.Errorf("classify: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.IntentUnknown, fmt.Errorf("classify: empty response")
	}
	label := strings.ToLower(strings.TrimSpace(resp.Choices[0].Message.Content))
	return domain.ParseIntent(label), nil
}

const extractPrompt = `Extract entities from the user's message for a task-management request with intent %q.

Return a single JSON object with these optional keys (omit a key when the
message does not mention it):
- "task_id": the task identifier the user referenced, as a string
- "title": the task title or new title
- "description": the task description or new description
- "completed": true or false when the user states a completion status

Respond with only the JSON object, no prose, no code fences.`

// Extract asks the model for a strict JSON entity object. Malformed JSON is
// an error for the caller to absorb.
func (p *OpenAIProvider) Extract(ctx context.Context, message string, intent domain.Intent) (domain.Entities, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(extractPrompt, string(intent))},
			{Role: openai.ChatMessageRoleUser, Content: message},
		},
	})
	if err != nil {
		return domain.Entities{}, fmt.Errorf("extract: %w", err)
	}
	if len(resp.Choices) == 0 {
		return domain.Entities{}, fmt.Errorf("extract: empty response")
	}
	return parseEntities(resp.Choices[0].Message.Content)
}

// parseEntities decodes the model's JSON, tolerating code fences and numeric
// task ids. Explicit nulls and absent keys both leave fields nil.
func parseEntities(raw string) (domain.Entities, error) {
	raw = stripFences(raw)
	var fields struct {
		TaskID      json.RawMessage `json:"task_id"`
		Title       *string         `json:"title"`
		Description *string         `json:"description"`
		Completed   *bool           `json:"completed"`
	}
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return domain.Entities{}, fmt.Errorf("extract: invalid JSON: %w", err)
	}
	ents := domain.Entities{
		Title:       fields.Title,
		Description: fields.Description,
		Completed:   fields.Completed,
	}
	if len(fields.TaskID) > 0 && string(fields.TaskID) != "null" {
		var s string
		if err := json.Unmarshal(fields.TaskID, &s); err != nil {
			// Models sometimes emit the id as a bare number.
			var n json.Number
			if err := json.Unmarshal(fields.TaskID, &n); err != nil {
				return domain.Entities{}, fmt.Errorf("extract: task_id is neither string nor number")
			}
			s = n.String()
		}
		if s != "" {
			ents.TaskID = &s
		}
	}
	return ents, nil
}

func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	raw = strings.TrimPrefix(raw, "```")
	if i := strings.Index(raw, "\n"); i >= 0 {
		raw = raw[i+1:]
	}
	raw = strings.TrimSuffix(strings.TrimSpace(raw), "```")
	return strings.TrimSpace(raw)
}
