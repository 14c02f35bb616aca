package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nsaga/internal/ir"
)

// Scenario drives a compiled spec through the engine and checks the outcome.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Spec is the path of the CUE spec to compile. LoadScenario resolves it
	// relative to the scenario file.
	Spec string `yaml:"spec,omitempty"`

	// Source is an inline CUE spec, used instead of Spec.
	Source string `yaml:"source,omitempty"`

	// Model is the initial accumulator.
	Model map[string]any `yaml:"model,omitempty"`

	// Steps are executed in order; the engine is drained after each one.
	Steps []Step `yaml:"steps"`

	// Assertions are evaluated once every step has run.
	Assertions []Assertion `yaml:"assertions"`
}

// Step injects one event. Exactly one field must be set.
type Step struct {
	Dispatch *DispatchStep `yaml:"dispatch,omitempty"`

	// Mount and Unmount are shorthands for the lifecycle markers of a namespace.
	Mount   *string `yaml:"mount,omitempty"`
	Unmount *string `yaml:"unmount,omitempty"`
}

// DispatchStep is an event to enqueue.
type DispatchStep struct {
	Type      string `yaml:"type"`
	Namespace string `yaml:"namespace,omitempty"`
	Arg       any    `yaml:"arg,omitempty"`
}

// Assertion validates the trace, the final model or the registry.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Event is the processed event type (trace_contains, trace_count).
	Event string `yaml:"event,omitempty"`

	// Events is the expected relative order (trace_order).
	Events []string `yaml:"events,omitempty"`

	// Namespace restricts trace assertions and selects the namespace for
	// namespace_state, task_running and notified.
	Namespace string `yaml:"namespace,omitempty"`

	// Arg is the expected event argument (trace_contains).
	Arg any `yaml:"arg,omitempty"`

	// Count is the expected number of matches (trace_count, notified).
	Count *int `yaml:"count,omitempty"`

	// Running is the expected task state (task_running).
	Running *bool `yaml:"running,omitempty"`

	// Expect holds the fields a model must contain (final_model,
	// namespace_state). Extra fields in the model are ignored.
	Expect map[string]any `yaml:"expect,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains  = "trace_contains"
	AssertTraceOrder     = "trace_order"
	AssertTraceCount     = "trace_count"
	AssertFinalModel     = "final_model"
	AssertNamespaceState = "namespace_state"
	AssertTaskRunning    = "task_running"
	AssertNotified       = "notified"
)

// LoadScenario reads and parses a scenario YAML file.
// Unknown fields are rejected and a relative spec path is resolved against
// the scenario's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	scenario, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if scenario.Spec != "" && !filepath.IsAbs(scenario.Spec) {
		scenario.Spec = filepath.Join(filepath.Dir(path), scenario.Spec)
	}
	return scenario, nil
}

// ParseScenario decodes and validates scenario YAML. A relative spec path is
// left as written.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	switch {
	case s.Spec == "" && s.Source == "":
		return fmt.Errorf("one of spec or source is required")
	case s.Spec != "" && s.Source != "":
		return fmt.Errorf("spec and source are mutually exclusive")
	}

	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("step[%d]: %w", i, err)
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(a); err != nil {
			return fmt.Errorf("assertion[%d]: %w", i, err)
		}
	}
	return nil
}

func validateStep(step Step) error {
	set := 0
	if step.Dispatch != nil {
		set++
		if step.Dispatch.Type == "" {
			return fmt.Errorf("dispatch requires type")
		}
	}
	if step.Mount != nil {
		set++
	}
	if step.Unmount != nil {
		set++
	}
	if set != 1 {
		return fmt.Errorf("exactly one of dispatch, mount or unmount is required")
	}
	return nil
}

func validateAssertion(a Assertion) error {
	switch a.Type {
	case AssertTraceContains:
		if a.Event == "" {
			return fmt.Errorf("%s requires event", a.Type)
		}
	case AssertTraceOrder:
		if len(a.Events) < 2 {
			return fmt.Errorf("%s requires at least two events", a.Type)
		}
	case AssertTraceCount:
		if a.Event == "" || a.Count == nil {
			return fmt.Errorf("%s requires event and count", a.Type)
		}
	case AssertFinalModel:
		if a.Expect == nil {
			return fmt.Errorf("%s requires expect", a.Type)
		}
	case AssertNamespaceState:
		if a.Expect == nil {
			return fmt.Errorf("%s requires expect", a.Type)
		}
	case AssertTaskRunning:
		if a.Running == nil {
			return fmt.Errorf("%s requires running", a.Type)
		}
	case AssertNotified:
		if a.Count == nil {
			return fmt.Errorf("%s requires count", a.Type)
		}
	case "":
		return fmt.Errorf("type is required")
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
	return nil
}

// event builds the event a step injects.
func (s Step) event() (ir.Event, error) {
	switch {
	case s.Mount != nil:
		return ir.Event{Type: ir.Mount, Namespace: *s.Mount}, nil
	case s.Unmount != nil:
		return ir.Event{Type: ir.Unmount, Namespace: *s.Unmount}, nil
	case s.Dispatch != nil:
		arg, err := normalize(s.Dispatch.Arg)
		if err != nil {
			return ir.Event{}, fmt.Errorf("arg: %w", err)
		}
		return ir.Event{Type: s.Dispatch.Type, Namespace: s.Dispatch.Namespace, Arg: arg}, nil
	default:
		return ir.Event{}, fmt.Errorf("empty step")
	}
}

// normalize converts decoded YAML values to the types compiled reducers
// produce: int64 integers, []any lists and ir.Model-compatible maps.
func normalize(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case uint64:
		return int64(val), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are not supported: %v", val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			n, err := normalize(item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = n
		}
		return out, nil
	case ir.Model:
		return normalizeMap(val)
	case map[string]any:
		return normalizeMap(val)
	default:
		return nil, fmt.Errorf("unsupported value type %T", v)
	}
}

func normalizeMap(m map[string]any) (map[string]any, error) {
	out := make(map[string]any, len(m))
	for k, item := range m {
		n, err := normalize(item)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = n
	}
	return out, nil
}
