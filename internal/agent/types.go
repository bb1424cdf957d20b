package agent

import (
	"time"

	"github.com/google/uuid"
)

// WorkerType identifies one of the closed set of worker variants.
type WorkerType string

const (
	TypeCoordinator WorkerType = "coordinator"
	TypeResearch    WorkerType = "research"
	TypeCoder       WorkerType = "coder"
	TypeDatabase    WorkerType = "database"
	TypeSecurity    WorkerType = "security"
	TypeReporter    WorkerType = "reporter"
	TypeBrowser     WorkerType = "browser"
)

// KnownTypes returns every worker type in roster order.
func KnownTypes() []WorkerType {
	return []WorkerType{
		TypeCoordinator, TypeResearch, TypeCoder,
		TypeDatabase, TypeSecurity, TypeReporter, TypeBrowser,
	}
}

// WorkerState tracks a worker across executions. It persists after a call
// finishes and only Reset returns it to idle.
type WorkerState string

const (
	StateIdle      WorkerState = "idle"
	StateRunning   WorkerState = "running"
	StateWaiting   WorkerState = "waiting"
	StateCompleted WorkerState = "completed"
	StateError     WorkerState = "error"
)

// Message roles. RoleAgent marks coordination trace entries that did not
// come from a model exchange.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleAgent     = "agent"
)

// Task is a unit of work addressed to a worker. It is treated as immutable
// once handed to Execute.
type Task struct {
	ID           string         `json:"id"`
	Type         WorkerType     `json:"type"`
	Description  string         `json:"description"`
	Input        map[string]any `json:"input,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Priority     int            `json:"priority"`
}

// NewTask builds a task with a fresh ID and priority 1.
func NewTask(typ WorkerType, description string, input map[string]any) *Task {
	return &Task{
		ID:          uuid.New().String(),
		Type:        typ,
		Description: description,
		Input:       input,
		Priority:    1,
	}
}

// Message is one entry in a worker's conversation log.
type Message struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	AgentName string         `json:"agent_name,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// FileArtifact is a produced source file.
type FileArtifact struct {
	Path    string `json:"path"`
	Content string `json:"content"`
	Type    string `json:"type"`
}

// SchemaArtifact is a produced database schema.
type SchemaArtifact struct {
	Name       string `json:"name"`
	Definition string `json:"definition"`
}

// DocArtifact is a produced document.
type DocArtifact struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Artifacts groups everything a run produced beyond its output map.
type Artifacts struct {
	Files   []FileArtifact   `json:"files,omitempty"`
	Schemas []SchemaArtifact `json:"schemas,omitempty"`
	Docs    []DocArtifact    `json:"docs,omitempty"`
}

// Empty reports whether no artifacts are present.
func (a *Artifacts) Empty() bool {
	return a == nil || len(a.Files)+len(a.Schemas)+len(a.Docs) == 0
}

// Result is the sole return value of a worker execution. Failures are
// carried in Error with Success false; Execute never returns an error.
type Result struct {
	Success   bool           `json:"success"`
	Output    map[string]any `json:"output"`
	Messages  []Message      `json:"messages,omitempty"`
	Artifacts *Artifacts     `json:"artifacts,omitempty"`
	Error     string         `json:"error,omitempty"`
}
