package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"tasktalk/internal/agent"
	"tasktalk/internal/engine"
)

func registerChat(api huma.API, e engine.Engine, chat agent.ChatService) {
	huma.Register(api, huma.Operation{
		OperationID: "chat",
		Method:      http.MethodPost,
		Path:        "/chat",
		Summary:     "Send a chat message",
		Description: "Runs the message through the task assistant and returns its reply.",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Body ChatRequest `json:"body"`
	}) (*struct {
		Body ChatResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		res, err := chat.ProcessChat(ctx, ownerID, input.Body.ConversationID, input.Body.Message)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ChatResponse `json:"body"`
		}{Body: ChatResponse{
			ConversationID: res.ConversationID,
			Message:        res.Reply,
			ToolCalls:      mapToolCalls(res.ToolCalls),
			Timestamp:      res.Timestamp,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-conversations",
		Method:      http.MethodGet,
		Path:        "/chat/conversations",
		Summary:     "List conversations",
		Description: "Returns the caller's conversations, most recently active first.",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ConversationListResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		conversations, err := e.ListConversations(ctx, ownerID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConversationListResponse `json:"body"`
		}{Body: ConversationListResponse{Conversations: mapConversations(conversations)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "conversation-history",
		Method:      http.MethodGet,
		Path:        "/chat/conversations/{conversation_id}",
		Summary:     "Conversation history",
		Description: "Returns the conversation's recent messages, oldest first.",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ConversationID string `path:"conversation_id"`
		Limit          int    `query:"limit" minimum:"1" maximum:"200" doc:"Maximum number of messages to return"`
	}) (*struct {
		Body ConversationHistoryResponse `json:"body"`
	}, error) {
		ownerID, authErr := ownerFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		messages, err := e.RecentMessages(ctx, ownerID, input.ConversationID, input.Limit)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ConversationHistoryResponse `json:"body"`
		}{Body: ConversationHistoryResponse{
			ConversationID: input.ConversationID,
			Messages:       mapMessages(messages),
		}}, nil
	})
}
