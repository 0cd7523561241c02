package tasktalksdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal TaskTalk HTTP API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents the API user model.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

// AuthResult carries a bearer token and the account it belongs to.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Task represents the API task model.
type Task struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

// ToolCall records one task operation executed for a chat message.
type ToolCall struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     any            `json:"result"`
}

// ChatResult is the assistant's reply to one message.
type ChatResult struct {
	ConversationID string     `json:"conversation_id"`
	Message        string     `json:"message"`
	ToolCalls      []ToolCall `json:"tool_calls"`
	Timestamp      string     `json:"timestamp"`
}

// Message is one entry of a conversation history.
type Message struct {
	ID        string     `json:"id"`
	Role      string     `json:"role"`
	Content   string     `json:"content"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	CreatedAt string     `json:"created_at"`
}

// History is a conversation's recent messages, oldest first.
type History struct {
	ConversationID string    `json:"conversation_id"`
	Messages       []Message `json:"messages"`
}

// Conversation is one chat thread of the authenticated user.
type Conversation struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Signup creates an account and stores its token on the client.
func (c *Client) Signup(ctx context.Context, email, password string) (AuthResult, error) {
	var resp AuthResult
	err := c.do(ctx, http.MethodPost, "api/auth/signup", map[string]any{"email": email, "password": password}, &resp)
	if err == nil {
		c.Token = resp.Token
	}
	return resp, err
}

// Login authenticates and stores the token on the client.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var resp AuthResult
	err := c.do(ctx, http.MethodPost, "api/auth/login", map[string]any{"email": email, "password": password}, &resp)
	if err == nil {
		c.Token = resp.Token
	}
	return resp, err
}

// CreateTask creates a task.
func (c *Client) CreateTask(ctx context.Context, title string, description *string) (Task, error) {
	body := map[string]any{"title": title}
	if description != nil {
		body["description"] = *description
	}
	var resp Task
	err := c.do(ctx, http.MethodPost, "api/tasks", body, &resp)
	return resp, err
}

// ListTasks returns the caller's tasks. completed is three-valued: nil for
// all, true/false to narrow.
func (c *Client) ListTasks(ctx context.Context, completed *bool) ([]Task, error) {
	endpoint := "api/tasks"
	if completed != nil {
		endpoint = fmt.Sprintf("%s?completed=%v", endpoint, *completed)
	}
	var resp struct {
		Tasks []Task `json:"tasks"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Tasks, err
}

// GetTask fetches one task by id.
func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "api/tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// UpdateTask applies a partial update; nil fields are left alone.
func (c *Client) UpdateTask(ctx context.Context, id string, title, description *string, completed *bool) (Task, error) {
	body := map[string]any{}
	if title != nil {
		body["title"] = *title
	}
	if description != nil {
		body["description"] = *description
	}
	if completed != nil {
		body["completed"] = *completed
	}
	var resp Task
	err := c.do(ctx, http.MethodPut, "api/tasks/"+url.PathEscape(id), body, &resp)
	return resp, err
}

// DeleteTask removes a task.
func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "api/tasks/"+url.PathEscape(id), nil, nil)
}

// Chat sends one message; pass an empty conversationID to start a new
// conversation.
func (c *Client) Chat(ctx context.Context, conversationID, message string) (ChatResult, error) {
	body := map[string]any{"message": message}
	if conversationID != "" {
		body["conversation_id"] = conversationID
	}
	var resp ChatResult
	err := c.do(ctx, http.MethodPost, "api/chat", body, &resp)
	return resp, err
}

// Conversations lists the caller's conversations, most recently active
// first.
func (c *Client) Conversations(ctx context.Context) ([]Conversation, error) {
	var resp struct {
		Conversations []Conversation `json:"conversations"`
	}
	err := c.do(ctx, http.MethodGet, "api/chat/conversations", nil, &resp)
	return resp.Conversations, err
}

// History returns a conversation's recent messages, oldest first.
func (c *Client) History(ctx context.Context, conversationID string, limit int) (History, error) {
	endpoint := "api/chat/conversations/" + url.PathEscape(conversationID)
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp History
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
