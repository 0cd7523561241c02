package server

import (
	"encoding/json"

	"tasktalk/internal/domain"
)

// Request payloads

type SignupRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password" minLength:"8"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type CreateTaskRequest struct {
	Title       string  `json:"title" maxLength:"255"`
	Description *string `json:"description,omitempty" maxLength:"1000"`
	Completed   *bool   `json:"completed,omitempty"`
}

type UpdateTaskRequest struct {
	Title       *string `json:"title,omitempty" maxLength:"255"`
	Description *string `json:"description,omitempty" maxLength:"1000"`
	Completed   *bool   `json:"completed,omitempty"`
}

type ChatRequest struct {
	ConversationID *string `json:"conversation_id,omitempty"`
	Message        string  `json:"message" maxLength:"2000"`
}

// Response payloads

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	CreatedAt string `json:"created_at"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type TaskResponse struct {
	ID          string  `json:"id"`
	UserID      string  `json:"user_id"`
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	Completed   bool    `json:"completed"`
	CreatedAt   string  `json:"created_at"`
	UpdatedAt   string  `json:"updated_at"`
}

type TaskListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
}

type ToolCallResponse struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters"`
	Result     any            `json:"result"`
}

type ChatResponse struct {
	ConversationID string             `json:"conversation_id"`
	Message        string             `json:"message"`
	ToolCalls      []ToolCallResponse `json:"tool_calls"`
	Timestamp      string             `json:"timestamp"`
}

type MessageResponse struct {
	ID        string            `json:"id"`
	Role      string            `json:"role"`
	Content   string            `json:"content"`
	ToolCalls []domain.ToolCall `json:"tool_calls,omitempty"`
	CreatedAt string            `json:"created_at"`
}

type ConversationHistoryResponse struct {
	ConversationID string            `json:"conversation_id"`
	Messages       []MessageResponse `json:"messages"`
}

type ConversationResponse struct {
	ID        string `json:"id"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ConversationListResponse struct {
	Conversations []ConversationResponse `json:"conversations"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, CreatedAt: u.CreatedAt}
}

func taskResponse(t domain.Task) TaskResponse {
	resp := TaskResponse{
		ID:        t.ID,
		UserID:    t.UserID,
		Title:     t.Title,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
	if t.Description != "" {
		desc := t.Description
		resp.Description = &desc
	}
	return resp
}

func mapTasks(tasks []domain.Task) []TaskResponse {
	res := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		res = append(res, taskResponse(t))
	}
	return res
}

func mapToolCalls(calls []domain.ToolCall) []ToolCallResponse {
	res := make([]ToolCallResponse, 0, len(calls))
	for _, c := range calls {
		res = append(res, ToolCallResponse{Tool: c.Tool, Parameters: c.Parameters, Result: c.Result})
	}
	return res
}

func messageResponse(m domain.Message) MessageResponse {
	resp := MessageResponse{
		ID:        m.ID,
		Role:      m.Role,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
	if m.ToolCallsJSON != nil {
		// Stored verbatim at append time; decode failures would mean the
		// row was tampered with, so they surface as an empty list.
		_ = json.Unmarshal([]byte(*m.ToolCallsJSON), &resp.ToolCalls)
	}
	return resp
}

func mapConversations(conversations []domain.Conversation) []ConversationResponse {
	res := make([]ConversationResponse, 0, len(conversations))
	for _, c := range conversations {
		res = append(res, ConversationResponse{ID: c.ID, CreatedAt: c.CreatedAt, UpdatedAt: c.UpdatedAt})
	}
	return res
}

func mapMessages(messages []domain.Message) []MessageResponse {
	res := make([]MessageResponse, 0, len(messages))
	for _, m := range messages {
		res = append(res, messageResponse(m))
	}
	return res
}
