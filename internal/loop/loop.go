// Package loop implements the generic agentic tool loop: the engine
// alternates completion calls with sequential tool dispatch until a
// termination predicate fires or the iteration budget runs out.
//
// The loop never trusts the model to announce completion. Termination is
// an explicit predicate evaluated after every turn, and callers are
// expected to recover best-effort results when the loop stops for any
// reason other than the predicate.
package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"plgn/internal/llm"
	"plgn/internal/logging"
	"plgn/internal/tools"
)

// State is the engine's position in the conversation state machine.
type State string

const (
	StateRunning       State = "running"        // awaiting or processing a completion
	StateAwaitingTools State = "awaiting_tools" // dispatching the last turn's tool calls
	StateFinalizing    State = "finalizing"     // termination condition met
	StateDone          State = "done"
	StateFailed        State = "failed"
)

// Reason explains why a run stopped.
type Reason string

const (
	// ReasonFinalized: the predicate fired after a tool-call turn (the
	// mode's finalize tool ran).
	ReasonFinalized Reason = "finalized"
	// ReasonIdle: the predicate fired on a text-only turn after the idle
	// counter reached the threshold.
	ReasonIdle Reason = "idle"
	// ReasonText: the predicate fired on a text-only turn before the idle
	// threshold (the caller treats the text as a degraded result).
	ReasonText Reason = "text"
	// ReasonBudget: iterations or overall time ran out without the
	// predicate ever firing.
	ReasonBudget Reason = "budget"
)

// Options bound a single run.
type Options struct {
	Model             string
	Temperature       float64
	MaxIterations     int
	CompletionTimeout time.Duration
	ToolTimeout       time.Duration
	OverallTimeout    time.Duration
	IdleTurnThreshold int
}

// Snapshot is the loop state visible to a termination predicate.
type Snapshot struct {
	LastMessage         *llm.Message
	IdleTurns           int
	Iterations          int
	ToolCallsDispatched int
}

// TerminationPredicate reports whether the loop should stop. Evaluated
// after each assistant turn and its tool dispatches.
type TerminationPredicate func(Snapshot) bool

// RunResult is what a completed (not failed) run yields.
type RunResult struct {
	Messages   []llm.Message
	Iterations int
	Reason     Reason
	LastText   string
	State      State
}

// Engine drives one conversation against a completion client and a tool
// registry. Build one per invocation; it carries no cross-run state.
type Engine struct {
	client   llm.Client
	registry *tools.Registry
	opts     Options
	log      *zap.SugaredLogger
}

// New creates an engine. Zero option fields get conservative defaults.
func New(client llm.Client, registry *tools.Registry, opts Options) *Engine {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 25
	}
	if opts.CompletionTimeout <= 0 {
		opts.CompletionTimeout = 2 * time.Minute
	}
	if opts.ToolTimeout <= 0 {
		opts.ToolTimeout = 30 * time.Second
	}
	if opts.IdleTurnThreshold <= 0 {
		opts.IdleTurnThreshold = 2
	}
	return &Engine{
		client:   client,
		registry: registry,
		opts:     opts,
		log:      logging.Named("loop"),
	}
}

// Run executes the loop from the given initial messages until done
// terminates it or a budget runs out. Completion-service failures are
// fatal; tool failures are folded into the conversation as structured
// error results and the loop continues.
func (e *Engine) Run(ctx context.Context, initial []llm.Message, done TerminationPredicate) (*RunResult, error) {
	if e.opts.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.OverallTimeout)
		defer cancel()
	}

	messages := append([]llm.Message(nil), initial...)
	defs := e.registry.Definitions()

	snap := Snapshot{}
	state := StateRunning

	for snap.Iterations < e.opts.MaxIterations {
		snap.Iterations++

		reply, err := e.complete(ctx, messages, defs)
		if err != nil {
			if ctx.Err() != nil {
				// The overall budget expired mid-call, not the
				// completion service failing.
				e.log.Warnw("overall timeout during completion", "iteration", snap.Iterations)
				return e.result(messages, snap, ReasonBudget), nil
			}
			state = e.transition(state, StateFailed)
			return nil, fmt.Errorf("completion failed on iteration %d: %w", snap.Iterations, err)
		}
		messages = append(messages, *reply)
		snap.LastMessage = reply

		if reply.HasToolCalls() {
			state = e.transition(state, StateAwaitingTools)
			snap.IdleTurns = 0
			for _, call := range reply.ToolCalls {
				result := e.dispatch(ctx, call)
				messages = append(messages, result)
				snap.ToolCallsDispatched++
			}
			state = e.transition(state, StateRunning)
		} else {
			snap.IdleTurns++
			e.log.Debugw("text-only turn", "idleTurns", snap.IdleTurns, "iteration", snap.Iterations)
		}

		if done != nil && done(snap) {
			state = e.transition(state, StateFinalizing)
			reason := ReasonFinalized
			if !reply.HasToolCalls() {
				if snap.IdleTurns >= e.opts.IdleTurnThreshold {
					reason = ReasonIdle
				} else {
					reason = ReasonText
				}
			}
			e.transition(state, StateDone)
			e.log.Infow("loop terminated", "reason", reason, "iterations", snap.Iterations, "toolCalls", snap.ToolCallsDispatched)
			return e.result(messages, snap, reason), nil
		}

		if ctx.Err() != nil {
			e.log.Warnw("overall timeout", "iteration", snap.Iterations)
			return e.result(messages, snap, ReasonBudget), nil
		}
	}

	e.log.Warnw("iteration budget exhausted", "iterations", snap.Iterations)
	return e.result(messages, snap, ReasonBudget), nil
}

// transition logs a state change and returns the new state.
func (e *Engine) transition(from, to State) State {
	if from != to {
		e.log.Debugw("state", "from", from, "to", to)
	}
	return to
}

func (e *Engine) complete(ctx context.Context, messages []llm.Message, defs []llm.ToolDefinition) (*llm.Message, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.opts.CompletionTimeout)
	defer cancel()

	return e.client.Chat(callCtx, &llm.ChatRequest{
		Model:       e.opts.Model,
		Temperature: e.opts.Temperature,
		Messages:    messages,
		Tools:       defs,
	})
}

// dispatch runs one tool call and always produces a tool-role message.
// Every failure mode (unknown tool, bad arguments, handler error, handler
// timeout) becomes a structured error result the model can react to.
func (e *Engine) dispatch(ctx context.Context, call llm.ToolCall) llm.Message {
	id := call.ID
	if id == "" {
		// Some providers omit call ids; synthesize one so the tool
		// result still correlates.
		id = uuid.NewString()
	}

	msg := llm.Message{Role: llm.RoleTool, ToolCallID: id}

	if !e.registry.Has(call.Name) {
		e.log.Warnw("unknown tool requested", "name", call.Name)
		msg.Content = tools.ErrorResult("Unknown tool: " + call.Name)
		return msg
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			msg.Content = tools.ErrorResult(fmt.Sprintf("invalid arguments for %s: %v", call.Name, err))
			return msg
		}
	}

	toolCtx, cancel := context.WithTimeout(ctx, e.opts.ToolTimeout)
	defer cancel()

	result, err := e.registry.Execute(toolCtx, call.Name, args)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.log.Warnw("tool timed out", "name", call.Name, "timeout", e.opts.ToolTimeout)
			msg.Content = tools.ErrorResult(fmt.Sprintf("tool %s timed out", call.Name))
			return msg
		}
		msg.Content = tools.ErrorResult(err.Error())
		return msg
	}
	msg.Content = result
	return msg
}

func (e *Engine) result(messages []llm.Message, snap Snapshot, reason Reason) *RunResult {
	return &RunResult{
		Messages:   messages,
		Iterations: snap.Iterations,
		Reason:     reason,
		LastText:   lastAssistantText(messages),
		State:      StateDone,
	}
}

// lastAssistantText returns the content of the most recent assistant
// message that carried text.
func lastAssistantText(messages []llm.Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == llm.RoleAssistant && messages[i].Content != "" {
			return messages[i].Content
		}
	}
	return ""
}
