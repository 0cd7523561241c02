package agent

import (
	"context"

	"tasktalk/internal/domain"
	"tasktalk/internal/engine"
)

// ChatService is the chat operation: one user message in, one assistant
// reply out, with both persisted to the conversation log.
type ChatService struct {
	Engine       engine.Engine
	Orchestrator *Orchestrator
}

// ChatResult is what one processed chat message resolves to.
type ChatResult struct {
	ConversationID string
	Reply          string
	ToolCalls      []domain.ToolCall
	Timestamp      string
}

// ProcessChat verifies conversation ownership, persists the user message,
// runs the orchestration pipeline, and persists the assistant reply. The two
// message writes are deliberately separate transactions: a crash after the
// first leaves a conversation ending in a user message, which a later
// request can tolerate.
func (s ChatService) ProcessChat(ctx context.Context, ownerID string, conversationID *string, message string) (ChatResult, error) {
	message, err := engine.ValidateMessage(message)
	if err != nil {
		return ChatResult{}, err
	}

	var conv domain.Conversation
	if conversationID != nil && *conversationID != "" {
		conv, err = s.Engine.GetConversation(ctx, ownerID, *conversationID)
	} else {
		conv, err = s.Engine.CreateConversation(ctx, ownerID)
	}
	if err != nil {
		return ChatResult{}, err
	}

	if _, err := s.Engine.AppendMessage(ctx, conv.ID, ownerID, domain.RoleUser, message, nil); err != nil {
		return ChatResult{}, err
	}

	out := s.Orchestrator.ProcessMessage(ctx, ownerID, message)

	assistant, err := s.Engine.AppendMessage(ctx, conv.ID, ownerID, domain.RoleAssistant, out.Reply, out.ToolCalls)
	if err != nil {
		return ChatResult{}, err
	}

	return ChatResult{
		ConversationID: conv.ID,
		Reply:          out.Reply,
		ToolCalls:      out.ToolCalls,
		Timestamp:      assistant.CreatedAt,
	}, nil
}
