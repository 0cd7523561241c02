package agent

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"tasktalk/internal/domain"
	"tasktalk/internal/nlp"
)

// Outcome is what a processed message resolves to: the reply shown to the
// user and the tool calls that produced it, in execution order.
type Outcome struct {
	Reply     string
	ToolCalls []domain.ToolCall
	Success   bool
}

// Orchestrator drives one message through classify, extract, route, execute,
// respond. It holds no per-conversation state; every call stands alone.
type Orchestrator struct {
	Classifier nlp.Classifier
	Extractor  nlp.Extractor
	Executor   Executor
	Logger     *log.Logger
}

const (
	helpReply = "I'm not sure what you'd like me to do. " +
		"I can help you add, view, update, complete, or delete tasks. " +
		"Try saying something like 'Add a task to buy groceries' or 'Show me my tasks'."
	troubleReply  = "I'm having trouble right now. Please try again in a moment."
	badTaskIDText = "Invalid task ID format. Please check the task ID."
)

// ProcessMessage runs the pipeline for one message. It never returns an
// error and never panics outward; anything unexpected becomes the generic
// trouble reply.
func (o *Orchestrator) ProcessMessage(ctx context.Context, ownerID, message string) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			o.logf("panic processing message: %v", r)
			out = Outcome{Reply: troubleReply, Success: false}
		}
	}()

	intent, err := o.Classifier.Classify(ctx, message)
	if err != nil {
		o.logf("classify failed, degrading to unknown: %v", err)
		intent = domain.IntentUnknown
	}
	o.logf("classified intent: %s", intent)

	if intent == domain.IntentUnknown {
		return Outcome{Reply: helpReply, Success: true}
	}

	entities, err := o.Extractor.Extract(ctx, message, intent)
	if err != nil {
		o.logf("extract failed, degrading to empty entities: %v", err)
		entities = domain.Entities{}
	}

	switch intent {
	case domain.IntentAdd:
		return o.handleAdd(ctx, ownerID, entities)
	case domain.IntentList:
		return o.handleList(ctx, ownerID, entities)
	case domain.IntentUpdate:
		return o.handleUpdate(ctx, ownerID, entities)
	case domain.IntentComplete:
		return o.handleComplete(ctx, ownerID, entities)
	case domain.IntentDelete:
		return o.handleDelete(ctx, ownerID, entities)
	default:
		return Outcome{Reply: "I encountered an unexpected intent. Please try again.", Success: false}
	}
}

func (o *Orchestrator) handleAdd(ctx context.Context, ownerID string, ents domain.Entities) Outcome {
	if ents.Title == nil || strings.TrimSpace(*ents.Title) == "" {
		return Outcome{
			Reply: "I'd be happy to add a task! What would you like the task to be? " +
				"For example: 'Add a task to buy groceries'",
			Success: false,
		}
	}
	title := *ents.Title
	description := ""
	if ents.Description != nil {
		description = *ents.Description
	}

	result := o.Executor.AddTask(ctx, ownerID, title, description, false)
	if !result.Success {
		return Outcome{Reply: fmt.Sprintf("I couldn't add that task. %s", result.Error), Success: false}
	}

	reply := fmt.Sprintf("I've added '%s' to your task list.", title)
	if description != "" {
		reply += fmt.Sprintf(" (%s)", description)
	}
	return Outcome{
		Reply: reply,
		ToolCalls: []domain.ToolCall{{
			Tool: "add_task",
			Parameters: map[string]any{
				"user_id":     ownerID,
				"title":       title,
				"description": description,
				"completed":   false,
			},
			Result: result.Data,
		}},
		Success: true,
	}
}

func (o *Orchestrator) handleList(ctx context.Context, ownerID string, ents domain.Entities) Outcome {
	result := o.Executor.ListTasks(ctx, ownerID, ents.Completed)
	if !result.Success {
		return Outcome{Reply: fmt.Sprintf("I couldn't retrieve your tasks. %s", result.Error), Success: false}
	}

	tasks, _ := result.Data.([]domain.Task)
	call := domain.ToolCall{
		Tool: "list_tasks",
		Parameters: map[string]any{
			"user_id":   ownerID,
			"completed": ents.Completed,
		},
		Result: result.Data,
	}

	if len(tasks) == 0 {
		var reply string
		switch {
		case ents.Completed != nil && *ents.Completed:
			reply = "You don't have any completed tasks."
		case ents.Completed != nil && !*ents.Completed:
			reply = "You don't have any pending tasks. Great job!"
		default:
			reply = "You don't have any tasks yet. Add one to get started!"
		}
		return Outcome{Reply: reply, ToolCalls: []domain.ToolCall{call}, Success: true}
	}

	return Outcome{Reply: formatTaskList(tasks), ToolCalls: []domain.ToolCall{call}, Success: true}
}

func (o *Orchestrator) handleUpdate(ctx context.Context, ownerID string, ents domain.Entities) Outcome {
	if ents.TaskID == nil {
		return Outcome{
			Reply: "Which task would you like to update? " +
				"Please provide the task ID or use 'Show me my tasks' first.",
			Success: false,
		}
	}
	if ents.Title == nil && ents.Description == nil {
		return Outcome{
			Reply:   "What would you like to update? Please provide a new title or description.",
			Success: false,
		}
	}
	taskID, valid := parseTaskID(*ents.TaskID)
	if !valid {
		return Outcome{Reply: badTaskIDText, Success: false}
	}

	result := o.Executor.UpdateTask(ctx, ownerID, taskID, ents.Title, ents.Description)
	if !result.Success {
		return Outcome{Reply: fmt.Sprintf("I couldn't update that task. %s", result.Error), Success: false}
	}

	return Outcome{
		Reply: fmt.Sprintf("I've updated task #%s.", shortID(taskID)),
		ToolCalls: []domain.ToolCall{{
			Tool: "update_task",
			Parameters: map[string]any{
				"user_id":     ownerID,
				"task_id":     taskID,
				"title":       ents.Title,
				"description": ents.Description,
			},
			Result: result.Data,
		}},
		Success: true,
	}
}

func (o *Orchestrator) handleComplete(ctx context.Context, ownerID string, ents domain.Entities) Outcome {
	if ents.TaskID == nil {
		return Outcome{
			Reply: "Which task would you like to complete? " +
				"Please provide the task ID or use 'Show me my tasks' first.",
			Success: false,
		}
	}
	// Absent flag means the user is marking the task done.
	completed := true
	if ents.Completed != nil {
		completed = *ents.Completed
	}
	taskID, valid := parseTaskID(*ents.TaskID)
	if !valid {
		return Outcome{Reply: badTaskIDText, Success: false}
	}

	result := o.Executor.CompleteTask(ctx, ownerID, taskID, completed)
	if !result.Success {
		return Outcome{Reply: fmt.Sprintf("I couldn't update that task's status. %s", result.Error), Success: false}
	}

	statusWord := "completed"
	if !completed {
		statusWord = "reopened"
	}
	return Outcome{
		Reply: fmt.Sprintf("I've marked task #%s as %s.", shortID(taskID), statusWord),
		ToolCalls: []domain.ToolCall{{
			Tool: "complete_task",
			Parameters: map[string]any{
				"user_id":   ownerID,
				"task_id":   taskID,
				"completed": completed,
			},
			Result: result.Data,
		}},
		Success: true,
	}
}

func (o *Orchestrator) handleDelete(ctx context.Context, ownerID string, ents domain.Entities) Outcome {
	if ents.TaskID == nil {
		return Outcome{
			Reply: "Which task would you like to delete? " +
				"Please provide the task ID or use 'Show me my tasks' first.",
			Success: false,
		}
	}
	taskID, valid := parseTaskID(*ents.TaskID)
	if !valid {
		return Outcome{Reply: badTaskIDText, Success: false}
	}

	result := o.Executor.DeleteTask(ctx, ownerID, taskID)
	if !result.Success {
		return Outcome{Reply: fmt.Sprintf("I couldn't delete that task. %s", result.Error), Success: false}
	}

	reply := ""
	if deletion, ok := result.Data.(DeleteResult); ok {
		reply = deletion.Message
	}
	return Outcome{
		Reply: reply,
		ToolCalls: []domain.ToolCall{{
			Tool: "delete_task",
			Parameters: map[string]any{
				"user_id": ownerID,
				"task_id": taskID,
			},
			Result: result.Data,
		}},
		Success: true,
	}
}

// parseTaskID validates a task reference before any store access; a
// malformed id never reaches the executor.
func parseTaskID(raw string) (string, bool) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	return id.String(), true
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatTaskList(tasks []domain.Task) string {
	var pending, completed []domain.Task
	for _, t := range tasks {
		if t.Completed {
			completed = append(completed, t)
		} else {
			pending = append(pending, t)
		}
	}

	parts := []string{"Here are your tasks:\n"}
	if len(pending) > 0 {
		parts = append(parts, "\n**Pending:**")
		for i, t := range pending {
			parts = append(parts, fmt.Sprintf("%d. Task #%s: %s", i+1, shortID(t.ID), t.Title))
		}
	}
	if len(completed) > 0 {
		parts = append(parts, "\n**Completed:**")
		for i, t := range completed {
			parts = append(parts, fmt.Sprintf("%d. Task #%s: %s", i+1, shortID(t.ID), t.Title))
		}
	}
	return strings.Join(parts, "\n")
}

func (o *Orchestrator) logf(format string, args ...any) {
	if o.Logger != nil {
		o.Logger.Printf(format, args...)
	}
}
