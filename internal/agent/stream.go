package agent

import (
	"log/slog"
	"strings"

	"github.com/medkiosk/pharma-agent/internal/i18n"
	"github.com/medkiosk/pharma-agent/internal/safety"
)

// StreamProcessor consumes one turn's model chunks step by step. Text ahead of
// any tool call is buffered and flushed as a single event only when the step
// ends with no tool call; once a tool call shows up, further text deltas are
// suppressed from the outward stream. The safety guard runs against the full
// cumulative transcript after every text delta because violating phrases can
// straddle chunk boundaries.
//
// One processor serves one turn. Not safe for concurrent use.
type StreamProcessor struct {
	guard    *safety.Guard
	messages *i18n.Table
	lang     string
	logger   *slog.Logger
	emit     func(OutputEvent) error

	acc          *Accumulator
	turnContent  strings.Builder
	stepContent  strings.Builder
	buffered     strings.Builder
	toolDetected bool
	blocked      bool
	totalTokens  int64
	usedNames    map[string]bool
	stepNames    []string
}

func NewStreamProcessor(guard *safety.Guard, messages *i18n.Table, lang string, logger *slog.Logger, emit func(OutputEvent) error) *StreamProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &StreamProcessor{
		guard:     guard,
		messages:  messages,
		lang:      lang,
		logger:    logger,
		emit:      emit,
		acc:       NewAccumulator(),
		usedNames: make(map[string]bool),
	}
}

// BeginStep resets per-step state. Turn-level state (full transcript, token
// count, per-turn tool-name dedupe) carries over.
func (p *StreamProcessor) BeginStep() {
	p.acc.Reset()
	p.stepContent.Reset()
	p.buffered.Reset()
	p.toolDetected = false
	p.stepNames = p.stepNames[:0]
}

// ProcessChunk folds one delta into the step. It returns halt=true when the
// caller must stop consuming the stream for this step (safety violation).
func (p *StreamProcessor) ProcessChunk(chunk DeltaChunk) (halt bool, err error) {
	if p.blocked {
		return true, nil
	}

	if chunk.HasUsage {
		// Providers report cumulative usage; the last value wins.
		p.totalTokens = chunk.TotalTokens
	}

	if chunk.Content != "" {
		p.turnContent.WriteString(chunk.Content)
		p.stepContent.WriteString(chunk.Content)
		if !p.toolDetected {
			p.buffered.WriteString(chunk.Content)
		}
		if v := p.guard.Evaluate(p.turnContent.String()); v.Violation {
			return true, p.block(v.Reason)
		}
	}

	if len(chunk.ToolCalls) > 0 {
		p.toolDetected = true
		for _, name := range p.acc.AddFragments(chunk.ToolCalls) {
			if p.usedNames[name] {
				continue
			}
			p.usedNames[name] = true
			p.stepNames = append(p.stepNames, name)
		}
	}
	return false, nil
}

func (p *StreamProcessor) block(reason string) error {
	p.logger.Warn("safety violation in assistant text", "reason", reason, "lang", p.lang)
	refusal := p.messages.Refusal(p.lang, reason)
	p.turnContent.Reset()
	p.turnContent.WriteString(refusal)
	p.stepContent.Reset()
	p.buffered.Reset()
	p.blocked = true
	return p.emit(OutputEvent{Type: EventText, Content: refusal})
}

// FinishStep flushes the buffered pre-tool text as one event when the step
// produced no tool calls. Returns the calls accumulated during the step.
func (p *StreamProcessor) FinishStep() ([]AccumulatedToolCall, error) {
	if p.blocked {
		return nil, nil
	}
	calls := p.acc.Build()
	if len(calls) == 0 && p.buffered.Len() > 0 {
		if err := p.emit(OutputEvent{Type: EventText, Content: p.buffered.String()}); err != nil {
			return nil, err
		}
		p.buffered.Reset()
	}
	return calls, nil
}

// StepToolNames lists tool names first observed this step, deduplicated
// across the whole turn.
func (p *StreamProcessor) StepToolNames() []string { return p.stepNames }

func (p *StreamProcessor) SafetyBlocked() bool { return p.blocked }

func (p *StreamProcessor) TotalTokens() int64 { return p.totalTokens }

// AssistantContent is the full turn transcript, or the refusal when blocked.
func (p *StreamProcessor) AssistantContent() string { return p.turnContent.String() }

// StepContent is the current step's text only.
func (p *StreamProcessor) StepContent() string { return p.stepContent.String() }
