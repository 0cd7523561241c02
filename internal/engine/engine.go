package engine

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tasktalk/internal/domain"
	"tasktalk/internal/events"
	"tasktalk/internal/repo"
)

const (
	maxTitleLen       = 255
	maxDescriptionLen = 1000
)

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) timestamp() string {
	return e.now().UTC().Format(time.RFC3339Nano)
}

func normalizeTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", ValidationError{Msg: "Task title cannot be empty."}
	}
	if len(title) > maxTitleLen {
		return "", ValidationError{Msg: fmt.Sprintf("Task title cannot exceed %d characters.", maxTitleLen)}
	}
	return title, nil
}

func normalizeDescription(desc string) (string, error) {
	desc = strings.TrimSpace(desc)
	if len(desc) > maxDescriptionLen {
		return "", ValidationError{Msg: fmt.Sprintf("Task description cannot exceed %d characters.", maxDescriptionLen)}
	}
	return desc, nil
}

// CreateTask validates and persists a new task for the owner.
func (e Engine) CreateTask(ctx context.Context, ownerID, title, description string, completed bool) (domain.Task, error) {
	title, err := normalizeTitle(title)
	if err != nil {
		return domain.Task{}, err
	}
	description, err = normalizeDescription(description)
	if err != nil {
		return domain.Task{}, err
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	now := e.timestamp()
	t := domain.Task{
		ID:          uuid.NewString(),
		UserID:      ownerID,
		Title:       title,
		Description: description,
		Completed:   completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.TypeTaskCreated, ownerID, "task", t.ID, events.EventPayload{"title": t.Title}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// ListTasks returns the owner's tasks, newest first. completed is three-valued:
// nil for all, true/false to narrow.
func (e Engine) ListTasks(ctx context.Context, ownerID string, completed *bool) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, ownerID, completed)
}

// GetTask returns one of the owner's tasks. A foreign or missing task is
// repo.ErrNotFound either way.
func (e Engine) GetTask(ctx context.Context, ownerID, id string) (domain.Task, error) {
	return e.Repo.GetTask(ctx, ownerID, id)
}

// TaskPatch carries partial task updates; nil fields are left alone.
type TaskPatch struct {
	Title       *string
	Description *string
	Completed   *bool
}

// UpdateTask applies a partial patch to one of the owner's tasks and bumps
// updated_at.
func (e Engine) UpdateTask(ctx context.Context, ownerID, id string, patch TaskPatch) (domain.Task, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, ownerID, id)
	if err != nil {
		return domain.Task{}, err
	}

	evtType := events.TypeTaskUpdated
	if patch.Title != nil {
		title, err := normalizeTitle(*patch.Title)
		if err != nil {
			return domain.Task{}, err
		}
		t.Title = title
	}
	if patch.Description != nil {
		desc, err := normalizeDescription(*patch.Description)
		if err != nil {
			return domain.Task{}, err
		}
		t.Description = desc
	}
	if patch.Completed != nil {
		t.Completed = *patch.Completed
		if patch.Title == nil && patch.Description == nil {
			evtType = events.TypeTaskCompleted
		}
	}
	t.UpdatedAt = e.timestamp()

	if err := e.Repo.UpdateTaskTx(ctx, tx, t); err != nil {
		return domain.Task{}, err
	}
	if err := e.eventWriter().Append(ctx, tx, evtType, ownerID, "task", t.ID, events.EventPayload{"completed": t.Completed}); err != nil {
		return domain.Task{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// DeletedTask identifies a removed task for confirmation messages.
type DeletedTask struct {
	ID    string
	Title string
}

// DeleteTask removes one of the owner's tasks and returns its identity.
func (e Engine) DeleteTask(ctx context.Context, ownerID, id string) (DeletedTask, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return DeletedTask{}, err
	}
	defer tx.Rollback()

	t, err := e.Repo.GetTaskTx(ctx, tx, ownerID, id)
	if err != nil {
		return DeletedTask{}, err
	}
	if err := e.Repo.DeleteTaskTx(ctx, tx, ownerID, id); err != nil {
		return DeletedTask{}, err
	}
	if err := e.eventWriter().Append(ctx, tx, events.TypeTaskDeleted, ownerID, "task", id, events.EventPayload{"title": t.Title}); err != nil {
		return DeletedTask{}, err
	}
	if err := tx.Commit(); err != nil {
		return DeletedTask{}, err
	}
	return DeletedTask{ID: t.ID, Title: t.Title}, nil
}

// CreateUser persists a new account. A duplicate email is a ConflictError.
func (e Engine) CreateUser(ctx context.Context, email, passwordHash string) (domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, ValidationError{Msg: "A valid email address is required."}
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()

	u := domain.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    e.timestamp(),
	}
	if err := e.Repo.InsertUser(ctx, tx, u); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return domain.User{}, ConflictError{Msg: "Email already registered"}
		}
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	if err := e.eventWriter().Append(ctx, tx, events.TypeUserCreated, u.ID, "user", u.ID, events.EventPayload{"email": u.Email}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func (e Engine) eventWriter() events.Writer {
	w := e.Events
	if w.Now == nil {
		w.Now = e.Now
	}
	return w
}
