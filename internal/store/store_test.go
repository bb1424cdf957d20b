package store

import (
	"context"
	"flag"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/drsadivural/adele-sub000/internal/agent"
)

var testStore *Store

func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		os.Exit(m.Run())
	}

	ctx := context.Background()

	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("adele_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "start postgres: %v\n", err)
		os.Exit(1)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		fmt.Fprintf(os.Stderr, "pg connection string: %v\n", err)
		container.Terminate(ctx)
		os.Exit(1)
	}

	testStore, err = New(dsn, zap.NewNop())
	if err != nil {
		fmt.Fprintf(os.Stderr, "store: %v\n", err)
		container.Terminate(ctx)
		os.Exit(1)
	}

	if err := testStore.Migrate(ctx, "../../migrations"); err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		container.Terminate(ctx)
		os.Exit(1)
	}

	code := m.Run()
	testStore.Close()
	container.Terminate(ctx)
	os.Exit(code)
}

func skipShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
}

func TestSaveAndGetRun(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	run := &Run{
		ID:          uuid.NewString(),
		Source:      "api",
		Description: "build a login page",
		Input:       map[string]any{"framework": "React"},
		Summary:     "planned 2 subtasks",
		Success:     true,
		CreatedAt:   now,
		CompletedAt: now.Add(3 * time.Second),
	}
	msgs := []agent.Message{
		{Role: agent.RoleUser, Content: "build a login page", Timestamp: now},
		{Role: agent.RoleAssistant, AgentName: "coordinator", Content: `{"tasks":[]}`,
			Metadata: map[string]any{"task": "t1"}, Timestamp: now.Add(time.Second)},
	}
	arts := &agent.Artifacts{
		Files:   []agent.FileArtifact{{Path: "Login.tsx", Content: "export default ...", Type: "tsx"}},
		Schemas: []agent.SchemaArtifact{{Name: "users", Definition: "CREATE TABLE users ()"}},
		Docs:    []agent.DocArtifact{{Title: "Summary", Content: "done"}},
	}

	if err := testStore.SaveRun(ctx, run, msgs, arts); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, err := testStore.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if got.Description != "build a login page" {
		t.Errorf("got description %q", got.Description)
	}
	if !got.Success {
		t.Error("expected success to persist")
	}
	if got.Summary != "planned 2 subtasks" {
		t.Errorf("got summary %q", got.Summary)
	}
	if got.Input["framework"] != "React" {
		t.Errorf("got input %v, want the task input back", got.Input)
	}
	if !got.CompletedAt.After(got.CreatedAt) {
		t.Errorf("completed_at %v not after created_at %v", got.CompletedAt, got.CreatedAt)
	}

	gotMsgs, err := testStore.Messages(ctx, run.ID)
	if err != nil {
		t.Fatalf("get messages: %v", err)
	}
	if len(gotMsgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(gotMsgs))
	}
	if gotMsgs[0].Role != agent.RoleUser {
		t.Errorf("got first role %q, want user", gotMsgs[0].Role)
	}
	if gotMsgs[1].AgentName != "coordinator" {
		t.Errorf("got agent name %q, want coordinator", gotMsgs[1].AgentName)
	}
	if gotMsgs[1].Metadata["task"] != "t1" {
		t.Errorf("got metadata %v, want task t1", gotMsgs[1].Metadata)
	}

	gotArts, err := testStore.Artifacts(ctx, run.ID)
	if err != nil {
		t.Fatalf("get artifacts: %v", err)
	}
	if len(gotArts.Files) != 1 || gotArts.Files[0].Path != "Login.tsx" {
		t.Errorf("got files %+v, want Login.tsx", gotArts.Files)
	}
	if len(gotArts.Schemas) != 1 || gotArts.Schemas[0].Name != "users" {
		t.Errorf("got schemas %+v, want users", gotArts.Schemas)
	}
	if len(gotArts.Docs) != 1 || gotArts.Docs[0].Title != "Summary" {
		t.Errorf("got docs %+v, want Summary", gotArts.Docs)
	}
}

func TestDuplicateFilePathKeepsLastWrite(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	run := &Run{
		ID:          uuid.NewString(),
		Source:      "api",
		Description: "two writes to one path",
		CreatedAt:   time.Now().UTC(),
	}
	arts := &agent.Artifacts{
		Files: []agent.FileArtifact{
			{Path: "main.go", Content: "package main // v1", Type: "go"},
			{Path: "main.go", Content: "package main // v2", Type: "go"},
		},
	}

	if err := testStore.SaveRun(ctx, run, nil, arts); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, err := testStore.Artifacts(ctx, run.ID)
	if err != nil {
		t.Fatalf("get artifacts: %v", err)
	}
	if len(got.Files) != 1 {
		t.Fatalf("got %d files, want 1", len(got.Files))
	}
	if got.Files[0].Content != "package main // v2" {
		t.Errorf("got content %q, want the last write", got.Files[0].Content)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	skipShort(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(time.Hour)
	older := &Run{ID: uuid.NewString(), Source: "slack", Description: "older", CreatedAt: base}
	newer := &Run{ID: uuid.NewString(), Source: "slack", Description: "newer", CreatedAt: base.Add(time.Minute)}

	if err := testStore.SaveRun(ctx, older, nil, nil); err != nil {
		t.Fatalf("save older: %v", err)
	}
	if err := testStore.SaveRun(ctx, newer, nil, nil); err != nil {
		t.Fatalf("save newer: %v", err)
	}

	runs, err := testStore.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("got %d runs, want 2", len(runs))
	}
	if runs[0].ID != newer.ID {
		t.Errorf("got first run %q, want the newest", runs[0].Description)
	}
}

func TestGetRunNotFound(t *testing.T) {
	skipShort(t)

	_, err := testStore.GetRun(context.Background(), uuid.NewString())
	if err != ErrNotFound {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}
