package llm

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/vintera/labelforge/internal/fault"
	"github.com/vintera/labelforge/internal/log"
)

type mood struct {
	Mood  string `json:"mood"`
	Score int    `json:"score"`
}

func moodSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:     "object",
		Required: []string{"mood", "score"},
		Properties: map[string]*jsonschema.Schema{
			"mood":  {Type: "string"},
			"score": {Type: "integer"},
		},
	}
}

func testInvoker(client Client) *Invoker {
	retry := fault.RetryConfig{
		MaxAttempts:     3,
		BaseDelay:       time.Microsecond,
		MaxDelay:        time.Millisecond,
		ExponentialBase: 2,
	}
	return NewInvoker(client, DefaultSettings(), retry, log.NewNop())
}

func TestInvokeStructured_ValidFirstTry(t *testing.T) {
	mock := NewMockClient().QueueResponse(`{"mood": "warm", "score": 8}`)
	iv := testInvoker(mock)

	var out mood
	err := iv.InvokeStructured(context.Background(), StructuredRequest{
		Step:   StepDesignScheme,
		Prompt: "Describe the mood.",
		Schema: moodSchema(),
	}, &out)
	if err != nil {
		t.Fatalf("InvokeStructured() error = %v", err)
	}
	if out.Mood != "warm" || out.Score != 8 {
		t.Errorf("out = %+v", out)
	}
	if mock.Calls() != 1 {
		t.Errorf("Generate called %d times, want 1", mock.Calls())
	}
}

func TestInvokeStructured_PromptDemandsBareJSON(t *testing.T) {
	mock := NewMockClient().QueueResponse(`{"mood": "cool", "score": 3}`)
	iv := testInvoker(mock)

	var out mood
	if err := iv.InvokeStructured(context.Background(), StructuredRequest{
		Step:   StepDesignScheme,
		Prompt: "Describe the mood.",
		Schema: moodSchema(),
	}, &out); err != nil {
		t.Fatalf("InvokeStructured() error = %v", err)
	}

	prompt := mock.Prompts[0].Prompt
	if !strings.Contains(prompt, "JSON value only") {
		t.Errorf("prompt missing JSON-only instruction: %q", prompt)
	}
}

func TestInvokeStructured_SelfRepairRecovers(t *testing.T) {
	mock := NewMockClient().
		QueueResponse(`{"mood": "warm"}`). // missing required score
		QueueResponse(`{"mood": "warm", "score": 7}`)
	iv := testInvoker(mock)

	var out mood
	err := iv.InvokeStructured(context.Background(), StructuredRequest{
		Step:   StepDetailedLayout,
		Prompt: "Describe the mood.",
		Schema: moodSchema(),
	}, &out)
	if err != nil {
		t.Fatalf("InvokeStructured() error = %v", err)
	}
	if out.Score != 7 {
		t.Errorf("out = %+v", out)
	}
	if mock.Calls() != 2 {
		t.Errorf("Generate called %d times, want initial + one repair", mock.Calls())
	}

	repair := mock.Prompts[1].Prompt
	if !strings.Contains(repair, "previous reply was rejected") {
		t.Errorf("repair prompt missing correction instruction: %q", repair)
	}
	if !strings.Contains(repair, `{"mood": "warm"}`) {
		t.Errorf("repair prompt missing the prior output: %q", repair)
	}
}

func TestInvokeStructured_RepairFailureIsTerminalValidation(t *testing.T) {
	mock := NewMockClient().
		QueueResponse(`{"mood": "warm"}`).
		QueueResponse(`still not json`)
	iv := testInvoker(mock)

	var out mood
	err := iv.InvokeStructured(context.Background(), StructuredRequest{
		Step:   StepDetailedLayout,
		Prompt: "Describe the mood.",
		Schema: moodSchema(),
	}, &out)
	if err == nil {
		t.Fatal("InvokeStructured() error = nil, want validation failure")
	}

	classified := fault.Classify(err)
	if classified.Kind != fault.KindValidation {
		t.Errorf("error kind = %v, want validation", classified.Kind)
	}
	// Exactly one repair round, and the validation error is not retried.
	if mock.Calls() != 2 {
		t.Errorf("Generate called %d times, want exactly 2", mock.Calls())
	}
}

func TestInvokeStructured_TransientTransportErrorRetries(t *testing.T) {
	mock := NewMockClient().
		QueueError(errors.New("connection reset by peer")).
		QueueResponse(`{"mood": "neutral", "score": 5}`)
	iv := testInvoker(mock)

	var out mood
	err := iv.InvokeStructured(context.Background(), StructuredRequest{
		Step:   StepImagePrompts,
		Prompt: "Describe the mood.",
		Schema: moodSchema(),
	}, &out)
	if err != nil {
		t.Fatalf("InvokeStructured() error = %v", err)
	}
	if mock.Calls() != 2 {
		t.Errorf("Generate called %d times, want a retry after the transport error", mock.Calls())
	}
}

func TestSettingsFor_FallsBackToDefault(t *testing.T) {
	s := Settings{
		"default":    {Model: "base-model"},
		StepRefine:   {Model: "vision-model", Vision: true},
	}

	if got := s.For(StepRefine).Model; got != "vision-model" {
		t.Errorf("For(refine) = %q", got)
	}
	if got := s.For(StepDesignScheme).Model; got != "base-model" {
		t.Errorf("For(design-scheme) = %q, want the default", got)
	}
}
