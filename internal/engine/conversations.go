package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"tasktalk/internal/domain"
	"tasktalk/internal/events"
	"tasktalk/internal/repo"
)

const maxMessageLen = 2000

// ErrConversationForbidden is the ownership failure for conversations.
// Unlike tasks, the chat surface reports this as an authorization error.
var errConversationForbidden = ForbiddenError{Msg: "You don't have permission to access this conversation."}

// CreateConversation starts an empty conversation for the owner.
func (e Engine) CreateConversation(ctx context.Context, ownerID string) (domain.Conversation, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Conversation{}, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	c := domain.Conversation{
		ID:        uuid.NewString(),
		UserID:    ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := e.Repo.InsertConversation(ctx, tx, c); err != nil {
		return domain.Conversation{}, fmt.Errorf("insert conversation: %w", err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.TypeConversationCreated, ownerID, "conversation", c.ID, nil); err != nil {
		return domain.Conversation{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Conversation{}, err
	}
	return c, nil
}

// ListConversations returns the owner's conversations, most recently
// updated first.
func (e Engine) ListConversations(ctx context.Context, ownerID string) ([]domain.Conversation, error) {
	return e.Repo.ListConversations(ctx, ownerID)
}

// GetConversation returns the owner's conversation. A conversation that
// exists under another owner yields a ForbiddenError rather than not-found.
func (e Engine) GetConversation(ctx context.Context, ownerID, id string) (domain.Conversation, error) {
	c, err := e.Repo.GetConversation(ctx, ownerID, id)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.Conversation{}, errConversationForbidden
	}
	return c, err
}

// ValidateMessage applies the chat input rules shared by REST and CLI.
func ValidateMessage(content string) (string, error) {
	if strings.TrimSpace(content) == "" {
		return "", ValidationError{Msg: "Message cannot be empty."}
	}
	if len(content) > maxMessageLen {
		return "", ValidationError{Msg: fmt.Sprintf("Message cannot exceed %d characters.", maxMessageLen)}
	}
	return content, nil
}

// AppendMessage persists one message and bumps the conversation's updated_at
// in the same transaction.
func (e Engine) AppendMessage(ctx context.Context, conversationID, ownerID, role, content string, toolCalls []domain.ToolCall) (domain.Message, error) {
	if role != domain.RoleUser && role != domain.RoleAssistant {
		return domain.Message{}, ValidationError{Msg: fmt.Sprintf("invalid message role %q", role)}
	}

	var toolCallsJSON *string
	if len(toolCalls) > 0 {
		data, err := json.Marshal(toolCalls)
		if err != nil {
			return domain.Message{}, fmt.Errorf("marshal tool calls: %w", err)
		}
		s := string(data)
		toolCallsJSON = &s
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Message{}, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	m := domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		UserID:         ownerID,
		Role:           role,
		Content:        content,
		ToolCallsJSON:  toolCallsJSON,
		CreatedAt:      now,
	}
	if err := e.Repo.InsertMessage(ctx, tx, m); err != nil {
		return domain.Message{}, fmt.Errorf("insert message: %w", err)
	}
	if err := e.Repo.TouchConversation(ctx, tx, conversationID, now); err != nil {
		return domain.Message{}, err
	}
	// The assistant reply closes a chat turn.
	if role == domain.RoleAssistant {
		payload := events.EventPayload{"tool_calls": len(toolCalls)}
		if err := e.eventWriter().Append(ctx, tx, events.TypeChatProcessed, ownerID, "conversation", conversationID, payload); err != nil {
			return domain.Message{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Message{}, err
	}
	return m, nil
}

// RecentMessages returns the conversation's newest messages oldest-first,
// after verifying ownership.
func (e Engine) RecentMessages(ctx context.Context, ownerID, conversationID string, limit int) ([]domain.Message, error) {
	if _, err := e.GetConversation(ctx, ownerID, conversationID); err != nil {
		return nil, err
	}
	return e.Repo.RecentMessages(ctx, conversationID, limit)
}
