package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/safety"
)

// DefaultMaxSteps bounds model-call/tool-run cycles per turn.
const DefaultMaxSteps = 10

// errStreamHalted aborts provider consumption after a safety block. It never
// escapes RunTurn.
var errStreamHalted = errors.New("stream halted")

// Orchestrator drives the model-call / tool-run loop for chat turns. It holds
// only process-lifetime immutable collaborators and is safe for concurrent
// turns; all per-turn state lives in RunTurn locals.
type Orchestrator struct {
	provider    ModelProvider
	handlers    []ToolHandler
	schemas     []ToolSchema
	inferrer    *Inferrer
	guard       *safety.Guard
	messages    *i18n.Table
	usage       UsageSink
	logger      *slog.Logger
	model       string
	temperature float64
	maxSteps    int
}

type OrchestratorOptions struct {
	Provider    ModelProvider
	Handlers    []ToolHandler
	Schemas     []ToolSchema
	Inferrer    *Inferrer
	Guard       *safety.Guard
	Messages    *i18n.Table
	Usage       UsageSink
	Logger      *slog.Logger
	Model       string
	Temperature float64
	MaxSteps    int
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if opts.Provider == nil {
		return nil, errors.New("agent: provider is required")
	}
	if opts.Messages == nil {
		return nil, errors.New("agent: message table is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("agent: model is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxSteps := opts.MaxSteps
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Orchestrator{
		provider:    opts.Provider,
		handlers:    opts.Handlers,
		schemas:     opts.Schemas,
		inferrer:    opts.Inferrer,
		guard:       opts.Guard,
		messages:    opts.Messages,
		usage:       opts.Usage,
		logger:      logger,
		model:       opts.Model,
		temperature: opts.Temperature,
		maxSteps:    maxSteps,
	}, nil
}

// TurnOptions describes one user-to-answer cycle.
type TurnOptions struct {
	SystemPrompt string
	History      []ConversationMessage
	Language     string
	UserID       string
}

// TurnResult summarizes a finished turn.
type TurnResult struct {
	AssistantContent string
	ToolCallsMade    []string
	TotalTokens      int64
	SafetyBlocked    bool
	Steps            int
}

// RunTurn executes one chat turn, delivering multiplexed output events to
// emit in order. Only transport/model failures return an error; safety
// blocks, tool failures and step exhaustion all resolve to a well-formed
// terminal answer.
func (o *Orchestrator) RunTurn(ctx context.Context, opts TurnOptions, emit func(OutputEvent) error) (TurnResult, error) {
	lastUserText := lastUserMessage(opts.History)
	lang := i18n.NormalizeLang(opts.Language)
	if strings.TrimSpace(opts.Language) == "" {
		lang = i18n.DetectLanguage(lastUserText)
	}

	working := make([]ConversationMessage, 0, len(opts.History)+1)
	if strings.TrimSpace(opts.SystemPrompt) != "" {
		working = append(working, ConversationMessage{Role: RoleSystem, Content: opts.SystemPrompt})
	}
	working = append(working, sanitizeHistory(opts.History)...)

	forced := o.inferrer.ForcedToolChoice(lastUserText, lang)
	if forced != "" {
		o.logger.Info("forcing tool choice", "tool", forced, "lang", lang)
	}

	sp := NewStreamProcessor(o.guard, o.messages, lang, o.logger, emit)
	var result TurnResult

	for step := 0; step < o.maxSteps; step++ {
		result.Steps = step + 1
		sp.BeginStep()

		choice := ToolChoiceAuto
		if step == 0 && forced != "" {
			choice = forced
		}
		req := StreamRequest{
			Model:       o.model,
			Messages:    working,
			Tools:       o.schemas,
			ToolChoice:  choice,
			Temperature: o.temperature,
		}

		err := o.provider.StreamChat(ctx, req, func(chunk DeltaChunk) error {
			halt, perr := sp.ProcessChunk(chunk)
			if perr != nil {
				return perr
			}
			if halt {
				return errStreamHalted
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStreamHalted) {
			o.logger.Error("model stream failed", "step", step, "err", err)
			result.AssistantContent = sp.AssistantContent()
			result.TotalTokens = sp.TotalTokens()
			emitErr := emit(OutputEvent{Type: EventError, Error: fmt.Sprintf("model call failed: %v", err)})
			if emitErr != nil {
				return result, emitErr
			}
			return result, err
		}

		o.recordToolUsage(ctx, opts.UserID, sp.StepToolNames(), &result)

		calls, err := sp.FinishStep()
		if err != nil {
			return result, err
		}
		if sp.SafetyBlocked() {
			result.SafetyBlocked = true
			break
		}
		if len(calls) == 0 {
			break
		}

		runner := NewToolRunner(ToolRunnerOptions{
			Handlers:     o.handlers,
			Inferrer:     o.inferrer,
			Messages:     o.messages,
			Logger:       o.logger,
			LastUserText: lastUserText,
			Language:     lang,
			UserID:       opts.UserID,
		})
		if err := runner.Run(ctx, calls, emit); err != nil {
			return result, err
		}
		toolMessages := runner.ToolMessages()
		if len(toolMessages) == 0 {
			break
		}

		working = append(working, ConversationMessage{
			Role:      RoleAssistant,
			ToolCalls: calls,
		})
		working = append(working, toolMessages...)

		if step == o.maxSteps-1 {
			o.logger.Warn("step budget exhausted", "max_steps", o.maxSteps)
		}
	}

	result.AssistantContent = sp.AssistantContent()
	result.TotalTokens = sp.TotalTokens()
	if err := emit(OutputEvent{Type: EventDone}); err != nil {
		return result, err
	}
	return result, nil
}

func (o *Orchestrator) recordToolUsage(ctx context.Context, userID string, names []string, result *TurnResult) {
	for _, name := range names {
		result.ToolCallsMade = append(result.ToolCallsMade, name)
		if o.usage == nil || userID == "" {
			continue
		}
		if err := o.usage.RecordToolCall(ctx, userID, name); err != nil {
			o.logger.Warn("usage tracking failed", "tool", name, "err", err)
		}
	}
}

func lastUserMessage(history []ConversationMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// sanitizeHistory keeps only plain user/assistant exchanges: earlier turns'
// tool plumbing is internal state and never re-enters the model context.
func sanitizeHistory(history []ConversationMessage) []ConversationMessage {
	out := make([]ConversationMessage, 0, len(history))
	for _, msg := range history {
		if msg.Role != RoleUser && msg.Role != RoleAssistant {
			continue
		}
		if strings.TrimSpace(msg.Content) == "" {
			continue
		}
		out = append(out, ConversationMessage{Role: msg.Role, Content: msg.Content})
	}
	return out
}
