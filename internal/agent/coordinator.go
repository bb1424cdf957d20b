package agent

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Phase tracks where a coordinator execution currently is. It is reported
// through the API while a run is in flight.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhasePlanning    Phase = "planning"
	PhaseExecuting   Phase = "executing"
	PhaseAggregating Phase = "aggregating"
	PhaseCompleted   Phase = "completed"
	PhaseError       Phase = "error"
)

// PlannedTask is one subtask of a decomposition plan, as produced by the
// planning exchange.
type PlannedTask struct {
	ID           string         `json:"id"`
	Agent        string         `json:"agent"`
	Description  string         `json:"description"`
	Input        map[string]any `json:"input,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Priority     int            `json:"priority"`
}

// Plan is the decoded decomposition of a request. An empty task list is a
// valid plan; the summary then carries the whole answer.
type Plan struct {
	Tasks   []PlannedTask `json:"tasks"`
	Summary string        `json:"summary"`
}

const coordinatorSystem = `You are the coordinator of a team of specialized agents. Decompose the user's request into subtasks for the agents below, or return an empty task list when no delegation is needed.

Agents:
- research: gathers background information, compares options, cites sources
- coder: writes and modifies source code files
- database: designs schemas, writes SQL
- security: reviews for vulnerabilities and hardening steps
- reporter: writes reports and user-facing documents
- browser: navigates web pages and extracts live data

Respond with a single JSON object, no prose around it:
{"tasks":[{"id":"t1","agent":"coder","description":"...","input":{},"dependencies":[],"priority":1}],"summary":"one-line plan summary"}

Rules: ids must be unique, dependencies reference ids of tasks that must finish first, lower priority numbers run earlier.`

// Coordinator plans a request, dispatches the resulting subtasks across the
// registered workers and aggregates their artifacts. It is itself a Worker,
// registered under TypeCoordinator.
type Coordinator struct {
	base
	workers *Registry
	phase   Phase
}

// NewCoordinator builds a coordinator over an already-populated registry.
func NewCoordinator(workers *Registry, backend Backend, opts Options, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		base:    newBase(TypeCoordinator, "coordinator", coordinatorSystem, backend, opts, logger),
		workers: workers,
		phase:   PhaseIdle,
	}
}

// Registry exposes the worker registry backing this coordinator.
func (c *Coordinator) Registry() *Registry { return c.workers }

// Phase returns the current execution phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

func (c *Coordinator) setPhase(p Phase) {
	c.mu.Lock()
	c.phase = p
	c.mu.Unlock()
}

// Execute runs the full pipeline: plan, dispatch, aggregate. Subtask
// failures are recorded in their results and never fail the run; only a
// failure of the coordinator's own work does.
func (c *Coordinator) Execute(ctx context.Context, task *Task) (res *Result) {
	c.setState(StateRunning)
	c.setPhase(PhasePlanning)
	mark := c.memLen()

	defer func() {
		if r := recover(); r != nil {
			c.setPhase(PhaseError)
			c.setState(StateError)
			c.logger.Error("coordinator panic", zap.Any("panic", r))
			res = &Result{
				Success:  false,
				Output:   map[string]any{},
				Messages: c.snapshot(mark),
				Error:    fmt.Sprintf("coordinator: panic: %v", r),
			}
		}
	}()

	plan, err := c.plan(ctx, task)
	if err != nil {
		c.setPhase(PhaseError)
		c.setState(StateError)
		c.logger.Warn("planning failed", zap.String("task", task.ID), zap.Error(err))
		return &Result{
			Success:  false,
			Output:   map[string]any{},
			Messages: c.snapshot(mark),
			Error:    err.Error(),
		}
	}
	c.logger.Info("plan ready",
		zap.String("task", task.ID),
		zap.Int("subtasks", len(plan.Tasks)),
		zap.String("summary", truncate(plan.Summary, 120)))

	c.setPhase(PhaseExecuting)
	results, order := c.dispatch(ctx, plan)

	c.setPhase(PhaseAggregating)
	arts := c.aggregate(order, results)

	c.setPhase(PhaseCompleted)
	c.setState(StateCompleted)
	return &Result{
		Success: true,
		Output: map[string]any{
			"plan":    plan,
			"results": results,
		},
		Messages:  c.snapshot(mark),
		Artifacts: arts,
	}
}

// plan runs the planning exchange and decodes the reply.
func (c *Coordinator) plan(ctx context.Context, task *Task) (*Plan, error) {
	reply, err := c.think(ctx, taskPrompt(task))
	if err != nil {
		return nil, fmt.Errorf("plan: %w", err)
	}
	return decodePlan(reply), nil
}

// dispatch runs the plan's subtasks in one pass, in stable ascending
// priority order. A subtask runs only when every dependency id already has
// a result, success or not; subtasks with an unknown agent or an
// unsatisfied dependency are skipped for the pass. Each dispatched subtask
// sees all earlier results under the "previousResults" input key, which is
// why dispatch stays sequential.
func (c *Coordinator) dispatch(ctx context.Context, plan *Plan) (map[string]*Result, []string) {
	subtasks := make([]PlannedTask, len(plan.Tasks))
	copy(subtasks, plan.Tasks)
	sort.SliceStable(subtasks, func(i, j int) bool {
		return subtasks[i].Priority < subtasks[j].Priority
	})

	results := make(map[string]*Result, len(subtasks))
	completed := make(map[string]bool, len(subtasks))
	order := make([]string, 0, len(subtasks))

	for _, st := range subtasks {
		w, ok := c.workers.Lookup(WorkerType(st.Agent))
		if !ok {
			continue
		}
		if !depsResolved(st.Dependencies, completed) {
			continue
		}

		input := make(map[string]any, len(st.Input)+1)
		for k, v := range st.Input {
			input[k] = v
		}
		prev := make(map[string]any, len(results))
		for id, r := range results {
			prev[id] = r
		}
		input["previousResults"] = prev

		r := w.Execute(ctx, &Task{
			ID:           st.ID,
			Type:         WorkerType(st.Agent),
			Description:  st.Description,
			Input:        input,
			Dependencies: st.Dependencies,
			Priority:     st.Priority,
		})

		results[st.ID] = r
		completed[st.ID] = true
		order = append(order, st.ID)

		c.append(r.Messages...)
		outcome := "completed"
		if !r.Success {
			outcome = "failed: " + r.Error
		}
		c.append(Message{
			Role:      RoleAgent,
			AgentName: w.Name(),
			Content:   fmt.Sprintf("subtask %s (%s) %s", st.ID, st.Agent, outcome),
			Timestamp: time.Now(),
			Metadata:  map[string]any{"task": st.ID, "success": r.Success},
		})
		c.logger.Debug("subtask finished",
			zap.String("id", st.ID),
			zap.String("agent", st.Agent),
			zap.Bool("success", r.Success))
	}

	return results, order
}

func depsResolved(deps []string, completed map[string]bool) bool {
	for _, d := range deps {
		if !completed[d] {
			return false
		}
	}
	return true
}

// aggregate concatenates artifact lists in dispatch order. No
// de-duplication happens here; duplicate file paths are resolved by the
// persistence layer.
func (c *Coordinator) aggregate(order []string, results map[string]*Result) *Artifacts {
	arts := &Artifacts{}
	for _, id := range order {
		r := results[id]
		if r.Artifacts == nil {
			continue
		}
		arts.Files = append(arts.Files, r.Artifacts.Files...)
		arts.Schemas = append(arts.Schemas, r.Artifacts.Schemas...)
		arts.Docs = append(arts.Docs, r.Artifacts.Docs...)
	}
	if arts.Empty() {
		return nil
	}
	return arts
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
