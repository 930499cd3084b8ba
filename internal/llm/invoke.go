package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/vintera/labelforge/internal/fault"
)

// jsonOnlyInstruction is appended to every structured prompt.
const jsonOnlyInstruction = "Respond with a single JSON value only. " +
	"No prose, no markdown fences, no comments before or after the JSON."

// repairState tracks the bounded self-repair machine. Repair is capped
// at one attempt so latency and cost stay deterministic.
type repairState int

const (
	stateInitial repairState = iota
	stateRepairing
	stateDone
	stateFailed
)

// StructuredRequest describes one schema-validated model call.
type StructuredRequest struct {
	Step   string
	Prompt string
	Image  *ImageAttachment   // optional, for vision proposals
	Schema *jsonschema.Schema // required output schema
}

// Invoker performs structured model calls: format prompt, generate,
// extract JSON, validate against the output schema, self-repair once on
// validation failure. The whole call runs under the generic retry policy
// so transient transport failures retry independently of repair logic.
type Invoker struct {
	client   Client
	settings Settings
	retry    fault.RetryConfig
	logger   *slog.Logger
}

// NewInvoker wires an Invoker. logger may be nil.
func NewInvoker(client Client, settings Settings, retry fault.RetryConfig, logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{client: client, settings: settings, retry: retry, logger: logger}
}

// InvokeStructured runs the call and decodes the validated JSON into out.
// A response that still fails validation after the single repair round
// surfaces as a validation error: that is a systemic prompt/schema
// mismatch, not a transient fault, so the retry layer fails fast on it.
func (iv *Invoker) InvokeStructured(ctx context.Context, req StructuredRequest, out any) error {
	if req.Schema == nil {
		return fault.Validation("structured request requires an output schema").With("step", req.Step)
	}
	resolved, err := req.Schema.Resolve(nil)
	if err != nil {
		return fault.Wrap(fault.KindProcessing, false, "output schema failed to resolve", err).
			With("step", req.Step)
	}

	raw, err := fault.Retry(ctx, iv.logger, "llm."+req.Step, iv.retry,
		func(ctx context.Context) (json.RawMessage, error) {
			return iv.generateValidated(ctx, req, resolved)
		})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fault.Wrap(fault.KindValidation, false, "validated output failed to decode", err).
			With("step", req.Step)
	}
	return nil
}

// generateValidated is one retry attempt: initial generation plus at most
// one repair sub-call.
func (iv *Invoker) generateValidated(ctx context.Context, req StructuredRequest, resolved *jsonschema.Resolved) (json.RawMessage, error) {
	st := iv.settings.For(req.Step)
	basePrompt := req.Prompt + "\n\n" + jsonOnlyInstruction

	state := stateInitial
	var lastOutput string
	var lastErr error

	for {
		var prompt string
		switch state {
		case stateInitial:
			prompt = basePrompt
		case stateRepairing:
			prompt = repairPrompt(basePrompt, lastOutput, lastErr)
		}

		text, err := iv.client.Generate(ctx, GenerateRequest{
			Model:       st.Model,
			Temperature: st.Temperature,
			Prompt:      prompt,
			Image:       req.Image,
		})
		if err != nil {
			// Transport-level failure: let the retry layer classify it.
			return nil, err
		}

		raw, verr := extractValidated(text, resolved)
		if verr == nil {
			return raw, nil
		}

		lastOutput, lastErr = text, verr

		if state == stateInitial {
			iv.logger.Debug("structured output invalid, attempting self-repair",
				"step", req.Step,
				"model", st.Model,
				"error", verr)
			state = stateRepairing
			continue
		}

		// Repair also failed.
		return nil, fault.Wrap(fault.KindValidation, false,
			"model output failed schema validation after self-repair", verr).
			With("step", req.Step).
			With("model", st.Model)
	}
}

// extractValidated pulls JSON out of raw model text and validates it.
func extractValidated(text string, resolved *jsonschema.Resolved) (json.RawMessage, error) {
	raw, err := ExtractJSON(text)
	if err != nil {
		return nil, err
	}

	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return nil, fault.Wrap(fault.KindValidation, false, "extracted JSON failed to decode", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, fault.Wrap(fault.KindValidation, false, "output failed schema validation", err)
	}
	return raw, nil
}

// repairPrompt asks the same model to correct its previous reply given
// the validation error.
func repairPrompt(original, prior string, verr error) string {
	return fmt.Sprintf(
		"%s\n\nYour previous reply was rejected.\n\nPrevious reply:\n%s\n\nValidation error:\n%v\n\n"+
			"Return a corrected JSON value that fixes the validation error. JSON only.",
		original, prior, verr)
}
