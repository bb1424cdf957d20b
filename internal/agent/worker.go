package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/drsadivural/adele-sub000/internal/provider"
	"go.uber.org/zap"
)

// Backend is the text-generation dependency shared by all workers.
// *provider.Router satisfies it.
type Backend interface {
	Route(ctx context.Context, callerID string, req *provider.ChatRequest) (*provider.ChatResponse, error)
}

// Worker is the uniform execution contract. Execute folds every internal
// failure into the returned Result and never returns an error itself.
type Worker interface {
	Type() WorkerType
	Name() string
	State() WorkerState
	Step() int
	Execute(ctx context.Context, task *Task) *Result
	Reset()
}

// Options tunes the backend calls shared by all workers.
type Options struct {
	Model     string
	MaxTokens int
}

const defaultMaxTokens = 4096

// base carries the state machine and think loop shared by every worker.
// The mutex guards state, step and memory against concurrent readers;
// executions themselves are not meant to overlap on one instance.
type base struct {
	typ     WorkerType
	name    string
	system  string
	backend Backend
	opts    Options
	logger  *zap.Logger

	mu     sync.Mutex
	state  WorkerState
	step   int
	memory []Message
}

func newBase(typ WorkerType, name, system string, backend Backend, opts Options, logger *zap.Logger) base {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = defaultMaxTokens
	}
	return base{
		typ:     typ,
		name:    name,
		system:  system,
		backend: backend,
		opts:    opts,
		logger:  logger,
		state:   StateIdle,
	}
}

func (b *base) Type() WorkerType { return b.typ }
func (b *base) Name() string     { return b.name }

func (b *base) State() WorkerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Step returns how many backend exchanges the worker has completed since
// its last reset.
func (b *base) Step() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.step
}

// Reset clears memory and the step counter and returns the worker to idle.
func (b *base) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateIdle
	b.step = 0
	b.memory = nil
}

func (b *base) setState(s WorkerState) {
	b.mu.Lock()
	b.state = s
	b.mu.Unlock()
}

func (b *base) memLen() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.memory)
}

// snapshot copies the memory entries appended at or after index from.
func (b *base) snapshot(from int) []Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	if from >= len(b.memory) {
		return nil
	}
	out := make([]Message, len(b.memory)-from)
	copy(out, b.memory[from:])
	return out
}

func (b *base) append(msgs ...Message) {
	if len(msgs) == 0 {
		return
	}
	b.mu.Lock()
	b.memory = append(b.memory, msgs...)
	b.mu.Unlock()
}

// think sends one exchange to the backend: the system instructions, the
// memory replay and the new user message. On success both sides of the
// exchange are appended to memory. Non-assistant memory entries replay as
// user turns so coordination trace entries survive in the conversation.
func (b *base) think(ctx context.Context, userMsg string) (string, error) {
	b.mu.Lock()
	msgs := make([]provider.Message, 0, len(b.memory)+2)
	msgs = append(msgs, provider.Message{Role: RoleSystem, Content: b.system})
	for _, m := range b.memory {
		role := RoleUser
		if m.Role == RoleAssistant {
			role = RoleAssistant
		}
		msgs = append(msgs, provider.Message{Role: role, Content: m.Content})
	}
	b.mu.Unlock()
	msgs = append(msgs, provider.Message{Role: RoleUser, Content: userMsg})

	resp, err := b.backend.Route(ctx, string(b.typ), &provider.ChatRequest{
		Model:     b.opts.Model,
		Messages:  msgs,
		MaxTokens: b.opts.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s think: %w", b.name, err)
	}

	b.mu.Lock()
	b.memory = append(b.memory,
		Message{Role: RoleUser, Content: userMsg, AgentName: b.name, Timestamp: time.Now()},
		Message{Role: RoleAssistant, Content: resp.Content, AgentName: b.name, Timestamp: time.Now()},
	)
	b.step++
	b.mu.Unlock()

	return resp.Content, nil
}

// run is the shared execute pipeline: one think turn, decode the reply,
// extract variant artifacts. Every failure path lands in the Result.
func (b *base) run(ctx context.Context, task *Task, extract func(map[string]any) *Artifacts) (res *Result) {
	b.setState(StateRunning)
	mark := b.memLen()

	defer func() {
		if r := recover(); r != nil {
			b.setState(StateError)
			b.logger.Error("worker panic",
				zap.String("worker", b.name), zap.Any("panic", r))
			res = &Result{
				Success:  false,
				Output:   map[string]any{},
				Messages: b.snapshot(mark),
				Error:    fmt.Sprintf("%s: panic: %v", b.name, r),
			}
		}
	}()

	reply, err := b.think(ctx, taskPrompt(task))
	if err != nil {
		b.setState(StateError)
		b.logger.Warn("worker execution failed",
			zap.String("worker", b.name), zap.String("task", task.ID), zap.Error(err))
		return &Result{
			Success:  false,
			Output:   map[string]any{},
			Messages: b.snapshot(mark),
			Error:    err.Error(),
		}
	}

	output := decodeOutput(reply)
	var arts *Artifacts
	if extract != nil {
		arts = extract(output)
	}

	b.setState(StateCompleted)
	return &Result{
		Success:   true,
		Output:    output,
		Messages:  b.snapshot(mark),
		Artifacts: arts,
	}
}

// taskPrompt renders a task as the user turn for think: the description
// plus the pretty-printed input bag.
func taskPrompt(task *Task) string {
	if len(task.Input) == 0 {
		return task.Description
	}
	var sb strings.Builder
	sb.WriteString(task.Description)
	sb.WriteString("\n\nInput:\n")
	sb.WriteString(prettyJSON(task.Input))
	return sb.String()
}

func prettyJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
