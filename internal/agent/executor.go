package agent

import (
	"context"
	"errors"
	"fmt"
	"log"

	"tasktalk/internal/domain"
	"tasktalk/internal/engine"
	"tasktalk/internal/repo"
)

// Result is the uniform envelope every task operation resolves to. The
// orchestrator branches on Success and never sees a raw error.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	Error   string `json:"error,omitempty"`
}

func ok(data any) Result {
	return Result{Success: true, Data: data}
}

func fail(msg string) Result {
	return Result{Success: false, Error: msg}
}

// Executor validates and runs one task operation at a time through the
// engine, normalizing every outcome into a Result.
type Executor struct {
	Engine engine.Engine
	Logger *log.Logger
}

// DeleteResult confirms a removal.
type DeleteResult struct {
	DeletedTaskID string `json:"deleted_task_id"`
	Message       string `json:"message"`
}

func (x Executor) AddTask(ctx context.Context, ownerID, title, description string, completed bool) Result {
	t, err := x.Engine.CreateTask(ctx, ownerID, title, description, completed)
	if err != nil {
		var vErr engine.ValidationError
		if errors.As(err, &vErr) {
			return fail(fmt.Sprintf("Validation error: %s", vErr.Msg))
		}
		x.logf("add_task failed: %v", err)
		return fail(fmt.Sprintf("Failed to create task: %s", err))
	}
	x.logf("add_task executed: task_id=%s", t.ID)
	return ok(t)
}

func (x Executor) ListTasks(ctx context.Context, ownerID string, completed *bool) Result {
	tasks, err := x.Engine.ListTasks(ctx, ownerID, completed)
	if err != nil {
		x.logf("list_tasks failed: %v", err)
		return fail(fmt.Sprintf("Failed to retrieve tasks: %s", err))
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	x.logf("list_tasks executed: %d tasks", len(tasks))
	return ok(tasks)
}

func (x Executor) UpdateTask(ctx context.Context, ownerID, taskID string, title, description *string) Result {
	t, err := x.Engine.UpdateTask(ctx, ownerID, taskID, engine.TaskPatch{Title: title, Description: description})
	if err != nil {
		return x.taskOpFailure("update_task", taskID, "Failed to update task", err)
	}
	x.logf("update_task executed: task_id=%s", t.ID)
	return ok(t)
}

func (x Executor) CompleteTask(ctx context.Context, ownerID, taskID string, completed bool) Result {
	t, err := x.Engine.UpdateTask(ctx, ownerID, taskID, engine.TaskPatch{Completed: &completed})
	if err != nil {
		return x.taskOpFailure("complete_task", taskID, "Failed to update task completion", err)
	}
	x.logf("complete_task executed: task_id=%s completed=%v", t.ID, completed)
	return ok(t)
}

func (x Executor) DeleteTask(ctx context.Context, ownerID, taskID string) Result {
	deleted, err := x.Engine.DeleteTask(ctx, ownerID, taskID)
	if err != nil {
		return x.taskOpFailure("delete_task", taskID, "Failed to delete task", err)
	}
	x.logf("delete_task executed: task_id=%s", deleted.ID)
	return ok(DeleteResult{
		DeletedTaskID: deleted.ID,
		Message:       fmt.Sprintf("Task '%s' has been deleted successfully", deleted.Title),
	})
}

func (x Executor) taskOpFailure(op, taskID, fallback string, err error) Result {
	if errors.Is(err, repo.ErrNotFound) {
		msg := fmt.Sprintf("Task not found or access denied: task_id=%s", taskID)
		x.logf("%s failed: %s", op, msg)
		return fail(msg)
	}
	var vErr engine.ValidationError
	if errors.As(err, &vErr) {
		return fail(fmt.Sprintf("Validation error: %s", vErr.Msg))
	}
	x.logf("%s failed: %v", op, err)
	return fail(fmt.Sprintf("%s: %s", fallback, err))
}

func (x Executor) logf(format string, args ...any) {
	if x.Logger != nil {
		x.Logger.Printf(format, args...)
	}
}
