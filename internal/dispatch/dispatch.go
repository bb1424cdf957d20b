package dispatch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drsadivural/adele-sub000/internal/agent"
	"github.com/drsadivural/adele-sub000/internal/bus"
	"github.com/drsadivural/adele-sub000/internal/gateway"
	"github.com/drsadivural/adele-sub000/internal/provider"
	"github.com/drsadivural/adele-sub000/internal/store"
)

// Dispatcher runs coordinator tasks and fans the outcome out to the event
// bus, the store and the chat gateways. Store, bus and gateway are all
// optional; a nil dependency just disables that output.
type Dispatcher struct {
	coord   *agent.Coordinator
	backend agent.Backend
	opts    agent.Options
	store   *store.Store
	bus     *bus.Bus
	gw      *gateway.Gateway
	logger  *zap.Logger
}

// New creates a Dispatcher.
func New(coord *agent.Coordinator, backend agent.Backend, opts agent.Options,
	st *store.Store, b *bus.Bus, gw *gateway.Gateway, logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		coord:   coord,
		backend: backend,
		opts:    opts,
		store:   st,
		bus:     b,
		gw:      gw,
		logger:  logger,
	}
}

// Run executes one task through the coordinator and returns the run ID
// together with the coordinator's result.
func (d *Dispatcher) Run(ctx context.Context, source, description string, input map[string]any) (string, *agent.Result) {
	runID := uuid.NewString()
	started := time.Now()

	d.logger.Info("run started",
		zap.String("run", runID),
		zap.String("source", source))

	d.publish(ctx, &bus.Event{RunID: runID, Type: bus.EventRunStarted, Content: description})

	task := agent.NewTask(agent.TypeCoordinator, description, input)
	res := d.coord.Execute(ctx, task)

	for _, m := range res.Messages {
		d.publish(ctx, &bus.Event{
			RunID:   runID,
			Type:    bus.EventAgentMessage,
			Agent:   m.AgentName,
			Content: m.Content,
		})
	}

	if res.Success {
		d.publish(ctx, &bus.Event{RunID: runID, Type: bus.EventRunCompleted, Content: planSummary(res)})
	} else {
		d.publish(ctx, &bus.Event{RunID: runID, Type: bus.EventRunFailed, Content: res.Error})
	}

	if d.store != nil {
		run := &store.Run{
			ID:          runID,
			Source:      source,
			Description: description,
			Input:       input,
			Summary:     planSummary(res),
			Success:     res.Success,
			Error:       res.Error,
			CreatedAt:   started,
			CompletedAt: time.Now(),
		}
		if err := d.store.SaveRun(ctx, run, res.Messages, res.Artifacts); err != nil {
			d.logger.Error("persist run failed", zap.String("run", runID), zap.Error(err))
		}
	}

	d.logger.Info("run finished",
		zap.String("run", runID),
		zap.Bool("success", res.Success),
		zap.Duration("duration", time.Since(started)))
	return runID, res
}

// Summarize turns a coordinator result into a short chat reply. Any failure
// along the way degrades to a fixed confirmation.
func (d *Dispatcher) Summarize(ctx context.Context, description string, res *agent.Result) string {
	plan, _ := res.Output["plan"].(*agent.Plan)
	results, _ := res.Output["results"].(map[string]*agent.Result)

	var parts []string
	if plan != nil {
		for _, t := range plan.Tasks {
			r, ok := results[t.ID]
			if !ok {
				continue
			}
			if r.Success {
				parts = append(parts, fmt.Sprintf("[%s]: %s", t.Agent, asString(r.Output["summary"])))
			} else {
				parts = append(parts, fmt.Sprintf("[%s]: failed: %s", t.Agent, r.Error))
			}
		}
	}

	// An empty plan means the coordinator answered directly; its summary
	// already is the reply.
	if len(parts) == 0 {
		if plan != nil && strings.TrimSpace(plan.Summary) != "" {
			return plan.Summary
		}
		return "Task completed"
	}

	prompt := fmt.Sprintf(`Summarize the outcome of this multi-agent run as a short chat reply.

Request: %s
Subtask results:
%s`, description, strings.Join(parts, "\n"))

	resp, err := d.backend.Route(ctx, "summarizer", &provider.ChatRequest{
		Model:     d.opts.Model,
		Messages:  []provider.Message{{Role: "user", Content: prompt}},
		MaxTokens: 1024,
	})
	if err != nil || strings.TrimSpace(resp.Content) == "" {
		return "Task completed"
	}
	return resp.Content
}

// HandleMessage routes an inbound chat message through a full run and
// replies on the originating channel.
// Signature matches gateway.MessageHandler.
func (d *Dispatcher) HandleMessage(msg *gateway.InboundMessage) {
	ctx := context.Background()
	d.logger.Info("routing message",
		zap.String("platform", msg.Platform),
		zap.String("channel", msg.ChannelID),
		zap.String("user", msg.UserName),
	)

	input := map[string]any{
		"platform": msg.Platform,
		"user":     msg.UserName,
	}
	runID, res := d.Run(ctx, msg.Platform, msg.Content, input)

	reply := d.Summarize(ctx, msg.Content, res)
	if res.Artifacts != nil && !res.Artifacts.Empty() {
		reply += fmt.Sprintf("\n\nProduced %d files, %d schemas, %d docs (run %s)",
			len(res.Artifacts.Files), len(res.Artifacts.Schemas), len(res.Artifacts.Docs), runID)
	}

	d.sendReply(ctx, msg, reply)
}

// sendReply sends a text reply back to the originating platform/channel.
func (d *Dispatcher) sendReply(ctx context.Context, orig *gateway.InboundMessage, text string) {
	if d.gw == nil {
		return
	}
	err := d.gw.Send(ctx, &gateway.OutboundMessage{
		Platform:  orig.Platform,
		ChannelID: orig.ChannelID,
		Content:   text,
		ReplyTo:   orig.ReplyTo,
	})
	if err != nil {
		d.logger.Error("send reply failed", zap.Error(err))
	}
}

func (d *Dispatcher) publish(ctx context.Context, ev *bus.Event) {
	if d.bus == nil {
		return
	}
	if err := d.bus.Publish(ctx, ev); err != nil {
		d.logger.Warn("event publish failed", zap.Error(err))
	}
}

func planSummary(res *agent.Result) string {
	if p, ok := res.Output["plan"].(*agent.Plan); ok {
		return p.Summary
	}
	return ""
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
