package engine_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tasktalk/internal/db"
	"tasktalk/internal/domain"
	"tasktalk/internal/engine"
	"tasktalk/internal/migrate"
	"tasktalk/internal/repo"
)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

// newTestEnv opens a temp sqlite workspace with a clock that advances one
// millisecond per reading, so consecutive writes never share a timestamp.
func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	eng := engine.New(conn)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var tick int
	eng.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Millisecond)
	}
	return testEnv{Engine: eng, Ctx: context.Background()}
}

func seedUser(t *testing.T, env testEnv, email string) domain.User {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, email, "hash")
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, "a@example.com")

	_, err := env.Engine.CreateTask(env.Ctx, owner.ID, "   ", "", false)
	var vErr engine.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("empty title: want ValidationError, got %v", err)
	}

	_, err = env.Engine.CreateTask(env.Ctx, owner.ID, strings.Repeat("x", 256), "", false)
	if !errors.As(err, &vErr) {
		t.Fatalf("overlong title: want ValidationError, got %v", err)
	}

	_, err = env.Engine.CreateTask(env.Ctx, owner.ID, "ok", strings.Repeat("d", 1001), false)
	if !errors.As(err, &vErr) {
		t.Fatalf("overlong description: want ValidationError, got %v", err)
	}

	// Rejected creates must leave no trace.
	tasks, err := env.Engine.ListTasks(env.Ctx, owner.ID, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("rejected creates wrote %d tasks", len(tasks))
	}

	created, err := env.Engine.CreateTask(env.Ctx, owner.ID, "  buy milk  ", " from the store ", false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Title != "buy milk" || created.Description != "from the store" {
		t.Fatalf("fields not trimmed: %+v", created)
	}
	if created.CreatedAt != created.UpdatedAt {
		t.Fatalf("new task timestamps differ: %s vs %s", created.CreatedAt, created.UpdatedAt)
	}
}

func TestListTasksThreeValuedFilter(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, "a@example.com")

	var pendingIDs, doneIDs []string
	for _, title := range []string{"p1", "p2"} {
		tk, err := env.Engine.CreateTask(env.Ctx, owner.ID, title, "", false)
		if err != nil {
			t.Fatal(err)
		}
		pendingIDs = append(pendingIDs, tk.ID)
	}
	for _, title := range []string{"d1", "d2", "d3"} {
		tk, err := env.Engine.CreateTask(env.Ctx, owner.ID, title, "", true)
		if err != nil {
			t.Fatal(err)
		}
		doneIDs = append(doneIDs, tk.ID)
	}

	all, err := env.Engine.ListTasks(env.Ctx, owner.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	tr, fa := true, false
	done, err := env.Engine.ListTasks(env.Ctx, owner.ID, &tr)
	if err != nil {
		t.Fatal(err)
	}
	pending, err := env.Engine.ListTasks(env.Ctx, owner.ID, &fa)
	if err != nil {
		t.Fatal(err)
	}
	if len(done) != len(doneIDs) || len(pending) != len(pendingIDs) {
		t.Fatalf("filtered sizes: done=%d pending=%d", len(done), len(pending))
	}
	// The two filtered lists partition the unfiltered one.
	if len(all) != len(done)+len(pending) {
		t.Fatalf("all=%d done+pending=%d", len(all), len(done)+len(pending))
	}

	// Newest-created-first.
	for i := 1; i < len(all); i++ {
		prev, err1 := time.Parse(time.RFC3339Nano, all[i-1].CreatedAt)
		cur, err2 := time.Parse(time.RFC3339Nano, all[i].CreatedAt)
		if err1 != nil || err2 != nil {
			t.Fatalf("bad timestamps: %v %v", err1, err2)
		}
		if cur.After(prev) {
			t.Fatalf("list not newest-first at %d", i)
		}
	}
}

func TestUpdateTaskPartialPatch(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, "a@example.com")
	created, err := env.Engine.CreateTask(env.Ctx, owner.ID, "title", "desc", false)
	if err != nil {
		t.Fatal(err)
	}

	newTitle := "new title"
	updated, err := env.Engine.UpdateTask(env.Ctx, owner.ID, created.ID, engine.TaskPatch{Title: &newTitle})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != "new title" {
		t.Fatalf("title = %q", updated.Title)
	}
	if updated.Description != "desc" || updated.Completed {
		t.Fatalf("unpatched fields changed: %+v", updated)
	}

	before, err := time.Parse(time.RFC3339Nano, created.UpdatedAt)
	if err != nil {
		t.Fatal(err)
	}
	after, err := time.Parse(time.RFC3339Nano, updated.UpdatedAt)
	if err != nil {
		t.Fatal(err)
	}
	if !after.After(before) {
		t.Fatalf("updated_at not strictly greater: %s -> %s", created.UpdatedAt, updated.UpdatedAt)
	}

	// Read-back matches the returned value.
	got, err := env.Engine.GetTask(env.Ctx, owner.ID, created.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got != updated {
		t.Fatalf("read-back mismatch:\n got %+v\nwant %+v", got, updated)
	}

	empty := "  "
	if _, err := env.Engine.UpdateTask(env.Ctx, owner.ID, created.ID, engine.TaskPatch{Title: &empty}); err == nil {
		t.Fatal("blank title patch should fail")
	}
}

func TestCompleteIdempotent(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, "a@example.com")
	created, err := env.Engine.CreateTask(env.Ctx, owner.ID, "t", "", false)
	if err != nil {
		t.Fatal(err)
	}

	tr := true
	first, err := env.Engine.UpdateTask(env.Ctx, owner.ID, created.ID, engine.TaskPatch{Completed: &tr})
	if err != nil || !first.Completed {
		t.Fatalf("first complete: %v", err)
	}
	second, err := env.Engine.UpdateTask(env.Ctx, owner.ID, created.ID, engine.TaskPatch{Completed: &tr})
	if err != nil || !second.Completed {
		t.Fatalf("second complete: %v", err)
	}
}

func TestOwnerIsolation(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "alice@example.com")
	bob := seedUser(t, env, "bob@example.com")

	task, err := env.Engine.CreateTask(env.Ctx, alice.ID, "alice's", "", false)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.Engine.GetTask(env.Ctx, bob.ID, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-owner get: want ErrNotFound, got %v", err)
	}
	title := "stolen"
	if _, err := env.Engine.UpdateTask(env.Ctx, bob.ID, task.ID, engine.TaskPatch{Title: &title}); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-owner update: want ErrNotFound, got %v", err)
	}
	if _, err := env.Engine.DeleteTask(env.Ctx, bob.ID, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("cross-owner delete: want ErrNotFound, got %v", err)
	}

	tasks, err := env.Engine.ListTasks(env.Ctx, bob.ID, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 0 {
		t.Fatalf("bob sees %d of alice's tasks", len(tasks))
	}

	// The failed operations must not have touched alice's task.
	got, err := env.Engine.GetTask(env.Ctx, alice.ID, task.ID)
	if err != nil || got.Title != "alice's" {
		t.Fatalf("alice's task changed: %+v %v", got, err)
	}
}

func TestDeleteReturnsIdentity(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, "a@example.com")
	task, err := env.Engine.CreateTask(env.Ctx, owner.ID, "doomed", "", false)
	if err != nil {
		t.Fatal(err)
	}
	deleted, err := env.Engine.DeleteTask(env.Ctx, owner.ID, task.ID)
	if err != nil {
		t.Fatal(err)
	}
	if deleted.ID != task.ID || deleted.Title != "doomed" {
		t.Fatalf("deleted identity: %+v", deleted)
	}
	if _, err := env.Engine.GetTask(env.Ctx, owner.ID, task.ID); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("task still readable after delete: %v", err)
	}
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	seedUser(t, env, "dup@example.com")
	_, err := env.Engine.CreateUser(env.Ctx, "dup@example.com", "other")
	var cErr engine.ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("want ConflictError, got %v", err)
	}
}

func TestConversationAppendBumpsUpdatedAt(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, "a@example.com")
	conv, err := env.Engine.CreateConversation(env.Ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := env.Engine.AppendMessage(env.Ctx, conv.ID, owner.ID, domain.RoleUser, "hello", nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	got, err := env.Engine.GetConversation(env.Ctx, owner.ID, conv.ID)
	if err != nil {
		t.Fatal(err)
	}
	before, _ := time.Parse(time.RFC3339Nano, conv.UpdatedAt)
	after, _ := time.Parse(time.RFC3339Nano, got.UpdatedAt)
	if !after.After(before) {
		t.Fatalf("conversation updated_at not bumped: %s -> %s", conv.UpdatedAt, got.UpdatedAt)
	}
}

func TestRecentMessagesOldestFirst(t *testing.T) {
	env := newTestEnv(t)
	owner := seedUser(t, env, "a@example.com")
	conv, err := env.Engine.CreateConversation(env.Ctx, owner.ID)
	if err != nil {
		t.Fatal(err)
	}
	contents := []string{"one", "two", "three", "four"}
	for _, c := range contents {
		if _, err := env.Engine.AppendMessage(env.Ctx, conv.ID, owner.ID, domain.RoleUser, c, nil); err != nil {
			t.Fatal(err)
		}
	}

	got, err := env.Engine.RecentMessages(env.Ctx, owner.ID, conv.ID, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("limit ignored: got %d", len(got))
	}
	// Newest three, oldest first.
	want := []string{"two", "three", "four"}
	for i, m := range got {
		if m.Content != want[i] {
			t.Fatalf("message %d = %q, want %q", i, m.Content, want[i])
		}
	}
}

func TestConversationOwnershipForbidden(t *testing.T) {
	env := newTestEnv(t)
	alice := seedUser(t, env, "alice@example.com")
	bob := seedUser(t, env, "bob@example.com")
	conv, err := env.Engine.CreateConversation(env.Ctx, alice.ID)
	if err != nil {
		t.Fatal(err)
	}

	var fErr engine.ForbiddenError
	if _, err := env.Engine.GetConversation(env.Ctx, bob.ID, conv.ID); !errors.As(err, &fErr) {
		t.Fatalf("want ForbiddenError, got %v", err)
	}
	if _, err := env.Engine.RecentMessages(env.Ctx, bob.ID, conv.ID, 10); !errors.As(err, &fErr) {
		t.Fatalf("history: want ForbiddenError, got %v", err)
	}
}
