package agent_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"tasktalk/internal/agent"
	"tasktalk/internal/db"
	"tasktalk/internal/domain"
	"tasktalk/internal/engine"
	"tasktalk/internal/migrate"
)

type fakeClassifier struct {
	intent domain.Intent
	err    error
	calls  int
}

func (f *fakeClassifier) Classify(ctx context.Context, message string) (domain.Intent, error) {
	f.calls++
	return f.intent, f.err
}

type fakeExtractor struct {
	ents  domain.Entities
	err   error
	calls int
}

func (f *fakeExtractor) Extract(ctx context.Context, message string, intent domain.Intent) (domain.Entities, error) {
	f.calls++
	return f.ents, f.err
}

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
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

func seedOwner(t *testing.T, env testEnv) string {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, "owner@example.com", "hash")
	if err != nil {
		t.Fatalf("seed owner: %v", err)
	}
	return u.ID
}

func newOrchestrator(env testEnv, c *fakeClassifier, x *fakeExtractor) *agent.Orchestrator {
	return &agent.Orchestrator{
		Classifier: c,
		Extractor:  x,
		Executor:   agent.Executor{Engine: env.Engine},
	}
}

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func TestAddTaskScenario(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentAdd},
		&fakeExtractor{ents: domain.Entities{Title: strPtr("buy milk")}},
	)

	out := o.ProcessMessage(env.Ctx, owner, "Remind me to buy milk")
	if !out.Success {
		t.Fatalf("outcome not successful: %+v", out)
	}
	if out.Reply != "I've added 'buy milk' to your task list." {
		t.Fatalf("reply = %q", out.Reply)
	}
	if len(out.ToolCalls) != 1 || out.ToolCalls[0].Tool != "add_task" {
		t.Fatalf("tool calls: %+v", out.ToolCalls)
	}

	tasks, err := env.Engine.ListTasks(env.Ctx, owner, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(tasks) != 1 || tasks[0].Title != "buy milk" || tasks[0].Completed {
		t.Fatalf("stored task: %+v", tasks)
	}
}

func TestAddTaskWithDescriptionReply(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentAdd},
		&fakeExtractor{ents: domain.Entities{Title: strPtr("buy milk"), Description: strPtr("2 liters")}},
	)

	out := o.ProcessMessage(env.Ctx, owner, "add milk, 2 liters")
	if out.Reply != "I've added 'buy milk' to your task list. (2 liters)" {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestAddWithoutTitleAsksForOne(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentAdd},
		&fakeExtractor{},
	)

	out := o.ProcessMessage(env.Ctx, owner, "add a task")
	if out.Success {
		t.Fatal("missing title should not be a success")
	}
	if !strings.HasPrefix(out.Reply, "I'd be happy to add a task!") {
		t.Fatalf("reply = %q", out.Reply)
	}
	if len(out.ToolCalls) != 0 {
		t.Fatalf("clarification must not execute tools: %+v", out.ToolCalls)
	}
}

func TestListEmptyVariants(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)

	cases := []struct {
		completed *bool
		want      string
	}{
		{nil, "You don't have any tasks yet. Add one to get started!"},
		{boolPtr(true), "You don't have any completed tasks."},
		{boolPtr(false), "You don't have any pending tasks. Great job!"},
	}
	for _, tc := range cases {
		o := newOrchestrator(env,
			&fakeClassifier{intent: domain.IntentList},
			&fakeExtractor{ents: domain.Entities{Completed: tc.completed}},
		)
		out := o.ProcessMessage(env.Ctx, owner, "show my tasks")
		if !out.Success {
			t.Fatalf("list failed: %+v", out)
		}
		if out.Reply != tc.want {
			t.Fatalf("reply = %q, want %q", out.Reply, tc.want)
		}
		// The empty list still records the executed tool call.
		if len(out.ToolCalls) != 1 || out.ToolCalls[0].Tool != "list_tasks" {
			t.Fatalf("tool calls: %+v", out.ToolCalls)
		}
	}
}

func TestListPartitionsPendingAndCompleted(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	if _, err := env.Engine.CreateTask(env.Ctx, owner, "walk dog", "", false); err != nil {
		t.Fatal(err)
	}
	done, err := env.Engine.CreateTask(env.Ctx, owner, "laundry", "", true)
	if err != nil {
		t.Fatal(err)
	}

	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentList},
		&fakeExtractor{},
	)
	out := o.ProcessMessage(env.Ctx, owner, "show my tasks")
	if !strings.Contains(out.Reply, "**Pending:**") || !strings.Contains(out.Reply, "**Completed:**") {
		t.Fatalf("reply missing partitions: %q", out.Reply)
	}
	if !strings.Contains(out.Reply, "Task #"+done.ID[:8]+": laundry") {
		t.Fatalf("reply missing short id line: %q", out.Reply)
	}
}

func TestInvalidTaskIDNeverReachesStore(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	task, err := env.Engine.CreateTask(env.Ctx, owner, "keep me", "", false)
	if err != nil {
		t.Fatal(err)
	}

	for _, intent := range []domain.Intent{domain.IntentUpdate, domain.IntentComplete, domain.IntentDelete} {
		x := &fakeExtractor{ents: domain.Entities{TaskID: strPtr("12"), Title: strPtr("new")}}
		o := newOrchestrator(env, &fakeClassifier{intent: intent}, x)
		out := o.ProcessMessage(env.Ctx, owner, "do something with task 12")
		if out.Success {
			t.Fatalf("%s with bad id succeeded", intent)
		}
		if out.Reply != "Invalid task ID format. Please check the task ID." {
			t.Fatalf("%s reply = %q", intent, out.Reply)
		}
		if len(out.ToolCalls) != 0 {
			t.Fatalf("%s executed tools for bad id", intent)
		}
	}

	// Nothing was mutated.
	got, err := env.Engine.GetTask(env.Ctx, owner, task.ID)
	if err != nil || got.Title != "keep me" || got.Completed {
		t.Fatalf("task changed: %+v %v", got, err)
	}
}

func TestUpdateWithoutFieldsAsksWhat(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	task, err := env.Engine.CreateTask(env.Ctx, owner, "t", "", false)
	if err != nil {
		t.Fatal(err)
	}

	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentUpdate},
		&fakeExtractor{ents: domain.Entities{TaskID: &task.ID}},
	)
	out := o.ProcessMessage(env.Ctx, owner, "update it")
	if out.Reply != "What would you like to update? Please provide a new title or description." {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestUpdateMissingIDAsksWhich(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentUpdate},
		&fakeExtractor{ents: domain.Entities{Title: strPtr("new")}},
	)
	out := o.ProcessMessage(env.Ctx, owner, "rename my task")
	if !strings.HasPrefix(out.Reply, "Which task would you like to update?") {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestCompleteDefaultsToDone(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	task, err := env.Engine.CreateTask(env.Ctx, owner, "t", "", false)
	if err != nil {
		t.Fatal(err)
	}

	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentComplete},
		&fakeExtractor{ents: domain.Entities{TaskID: &task.ID}},
	)
	out := o.ProcessMessage(env.Ctx, owner, "I finished it")
	if out.Reply != "I've marked task #"+task.ID[:8]+" as completed." {
		t.Fatalf("reply = %q", out.Reply)
	}
	got, err := env.Engine.GetTask(env.Ctx, owner, task.ID)
	if err != nil || !got.Completed {
		t.Fatalf("task not completed: %+v %v", got, err)
	}
}

func TestCompleteFalseReopens(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	task, err := env.Engine.CreateTask(env.Ctx, owner, "t", "", true)
	if err != nil {
		t.Fatal(err)
	}

	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentComplete},
		&fakeExtractor{ents: domain.Entities{TaskID: &task.ID, Completed: boolPtr(false)}},
	)
	out := o.ProcessMessage(env.Ctx, owner, "actually it's not done")
	if out.Reply != "I've marked task #"+task.ID[:8]+" as reopened." {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestDeleteReplyUsesTitle(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	task, err := env.Engine.CreateTask(env.Ctx, owner, "old meeting", "", false)
	if err != nil {
		t.Fatal(err)
	}

	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentDelete},
		&fakeExtractor{ents: domain.Entities{TaskID: &task.ID}},
	)
	out := o.ProcessMessage(env.Ctx, owner, "delete the old meeting task")
	if out.Reply != "Task 'old meeting' has been deleted successfully" {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestForeignTaskReportedAsNotFound(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	other, err := env.Engine.CreateUser(env.Ctx, "other@example.com", "hash")
	if err != nil {
		t.Fatal(err)
	}
	foreign, err := env.Engine.CreateTask(env.Ctx, other.ID, "theirs", "", false)
	if err != nil {
		t.Fatal(err)
	}

	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentDelete},
		&fakeExtractor{ents: domain.Entities{TaskID: &foreign.ID}},
	)
	out := o.ProcessMessage(env.Ctx, owner, "delete it")
	if out.Success {
		t.Fatal("cross-owner delete succeeded")
	}
	want := "I couldn't delete that task. Task not found or access denied: task_id=" + foreign.ID
	if out.Reply != want {
		t.Fatalf("reply = %q, want %q", out.Reply, want)
	}
}

func TestClassifierFailureDegradesToHelp(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	x := &fakeExtractor{}
	o := newOrchestrator(env, &fakeClassifier{err: errors.New("provider down")}, x)

	out := o.ProcessMessage(env.Ctx, owner, "whatever")
	if !out.Success {
		t.Fatalf("help outcome should be a success: %+v", out)
	}
	if !strings.HasPrefix(out.Reply, "I'm not sure what you'd like me to do.") {
		t.Fatalf("reply = %q", out.Reply)
	}
	if x.calls != 0 {
		t.Fatalf("extractor called %d times after classify failure", x.calls)
	}
}

func TestExtractorFailureDegradesToEmptyEntities(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	o := newOrchestrator(env,
		&fakeClassifier{intent: domain.IntentAdd},
		&fakeExtractor{err: errors.New("bad json")},
	)

	out := o.ProcessMessage(env.Ctx, owner, "add something")
	// Empty entities on an add means no title, so the clarify prompt.
	if !strings.HasPrefix(out.Reply, "I'd be happy to add a task!") {
		t.Fatalf("reply = %q", out.Reply)
	}
}

func TestClassifierCalledOnce(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	c := &fakeClassifier{err: errors.New("down")}
	o := newOrchestrator(env, c, &fakeExtractor{})
	o.ProcessMessage(env.Ctx, owner, "anything")
	if c.calls != 1 {
		t.Fatalf("classifier called %d times, want exactly 1", c.calls)
	}
}

func TestUnknownIntentHelp(t *testing.T) {
	env := newTestEnv(t)
	owner := seedOwner(t, env)
	x := &fakeExtractor{}
	o := newOrchestrator(env, &fakeClassifier{intent: domain.IntentUnknown}, x)

	out := o.ProcessMessage(env.Ctx, owner, "what's the weather")
	if !out.Success || len(out.ToolCalls) != 0 {
		t.Fatalf("unknown outcome: %+v", out)
	}
	if x.calls != 0 {
		t.Fatal("extraction should be skipped for unknown intent")
	}
}
