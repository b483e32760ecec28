package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/medkiosk/pharma-agent/internal/i18n"
)

// missingParamKeys maps a tool to the localized prompt used when its
// required arguments are absent even after inference.
var missingParamKeys = map[string][2]string{
	ToolFindNearestPharmacy: {"pharmacy", "missing_location"},
	ToolGetMedicationInfo:   {"medication", "missing_query"},
	ToolCheckStock:          {"inventory", "missing_med_id"},
	ToolSearchByIngredient:  {"medication", "missing_ingredient"},
	ToolResolveMedicationID: {"medication", "missing_name"},
	ToolGetHandlingWarnings: {"handling", "missing_med_id"},
}

// ToolRunner executes one step's accumulated tool calls sequentially and
// collects the resulting tool messages. One runner serves one turn.
type ToolRunner struct {
	handlers map[string]ToolHandler
	inferrer *Inferrer
	messages *i18n.Table
	logger   *slog.Logger

	lastUserText string
	lang         string
	userID       string

	toolMessages []ConversationMessage
}

type ToolRunnerOptions struct {
	Handlers     []ToolHandler
	Inferrer     *Inferrer
	Messages     *i18n.Table
	Logger       *slog.Logger
	LastUserText string
	Language     string
	UserID       string
}

func NewToolRunner(opts ToolRunnerOptions) *ToolRunner {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	handlers := make(map[string]ToolHandler, len(opts.Handlers))
	for _, h := range opts.Handlers {
		handlers[h.Name()] = h
	}
	return &ToolRunner{
		handlers:     handlers,
		inferrer:     opts.Inferrer,
		messages:     opts.Messages,
		logger:       logger,
		lastUserText: opts.LastUserText,
		lang:         i18n.NormalizeLang(opts.Language),
		userID:       opts.UserID,
	}
}

// Run executes calls in accumulation order, emitting a tool_execution event
// before each real handler invocation. Expected failures (missing arguments,
// handler domain errors) become tool-result payloads; only context
// cancellation aborts the run.
func (r *ToolRunner) Run(ctx context.Context, calls []AccumulatedToolCall, emit func(OutputEvent) error) error {
	for _, call := range calls {
		if call.Name == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		args := r.resolveArguments(call)
		var result map[string]any
		if HasRequiredArguments(call.Name, args) {
			if err := emit(OutputEvent{Type: EventToolExecution, ToolName: call.Name, ToolArgs: args}); err != nil {
				return err
			}
			result = r.execute(ctx, call.Name, args)
		} else {
			r.logger.Warn("tool call missing required arguments", "tool", call.Name)
			result = r.missingParamsResult(call.Name)
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		payload, err := json.Marshal(result)
		if err != nil {
			payload = []byte(`{"success":false,"error":"internal_error"}`)
		}
		r.toolMessages = append(r.toolMessages, ConversationMessage{
			Role:       RoleTool,
			ToolCallID: call.ID,
			Content:    string(payload),
		})
	}
	return nil
}

// ToolMessages returns the tool-result messages produced by Run, in call
// order.
func (r *ToolRunner) ToolMessages() []ConversationMessage { return r.toolMessages }

// resolveArguments parses the call's raw argument JSON and patches it up:
// inference from the last user message when empty or invalid, user id for
// the prescription tool, the turn language for language-aware tools.
func (r *ToolRunner) resolveArguments(call AccumulatedToolCall) map[string]string {
	args := parseArguments(call.Arguments, call.Name, r.logger)

	if !HasRequiredArguments(call.Name, args) {
		if inferred := r.inferrer.Infer(call.Name, r.lastUserText, r.lang); inferred != nil {
			r.logger.Info("inferred tool arguments", "tool", call.Name, "args", inferred)
			// The model may send a required key with an empty value; that is
			// as unusable as an absent key, so inference fills both.
			for k, v := range inferred {
				if strings.TrimSpace(args[k]) == "" {
					args[k] = v
				}
			}
		}
	}

	if call.Name == ToolGetUserPrescriptions && args["user_id"] == "" && r.userID != "" {
		args["user_id"] = r.userID
	}
	if IsLanguageTool(call.Name) && HasRequiredArguments(call.Name, args) && args["lang"] == "" {
		args["lang"] = r.lang
	}
	return args
}

func (r *ToolRunner) execute(ctx context.Context, name string, args map[string]string) map[string]any {
	handler, ok := r.handlers[name]
	if !ok {
		r.logger.Error("unknown tool requested", "tool", name)
		return map[string]any{
			"success": false,
			"error":   fmt.Sprintf("unknown tool: %s", name),
			"message": r.messages.Get("general", "internal_error", r.lang, nil),
		}
	}
	result, err := handler.Execute(ctx, args)
	if err != nil {
		r.logger.Error("tool handler failed", "tool", name, "err", err)
		return map[string]any{
			"success": false,
			"error":   "internal_error",
			"message": r.messages.Get("general", "internal_error", r.lang, nil),
		}
	}
	return result
}

func (r *ToolRunner) missingParamsResult(name string) map[string]any {
	msg := r.messages.Get("general", "missing_parameters", r.lang, nil)
	if key, ok := missingParamKeys[name]; ok {
		msg = r.messages.Get(key[0], key[1], r.lang, nil)
	}
	return map[string]any{
		"success": false,
		"error":   "missing_parameters",
		"message": msg,
	}
}

// parseArguments decodes the accumulated argument JSON into string values.
// Malformed JSON is logged and treated as empty arguments, never as a fatal
// error; the model is expected to recover from the resulting tool failure.
func parseArguments(raw, toolName string, logger *slog.Logger) map[string]string {
	args := make(map[string]string)
	if raw == "" {
		return args
	}
	var decoded map[string]any
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		logger.Warn("malformed tool arguments", "tool", toolName, "raw", raw)
		return args
	}
	for k, v := range decoded {
		switch val := v.(type) {
		case string:
			args[k] = val
		case float64:
			args[k] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			args[k] = strconv.FormatBool(val)
		case nil:
		default:
			b, err := json.Marshal(val)
			if err == nil {
				args[k] = string(b)
			}
		}
	}
	return args
}
