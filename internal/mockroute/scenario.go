package mockroute

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kuitang/todo-e2e/internal/errs"
)

// Scenario is a rule table loaded from YAML, used by the mockserver command
// and by tests that prefer declarative fixtures.
type Scenario struct {
	BaseURL     string          `yaml:"base_url"`
	PassThrough bool            `yaml:"passthrough"`
	Routes      []ScenarioRoute `yaml:"routes"`
}

// ScenarioRoute is one static rule.
type ScenarioRoute struct {
	Name        string            `yaml:"name"`
	Pattern     string            `yaml:"pattern"`
	Methods     []string          `yaml:"methods"`
	Status      int               `yaml:"status"`
	Headers     map[string]string `yaml:"headers"`
	ContentType string            `yaml:"content_type"`
	JSON        any               `yaml:"json"`
	Body        *string           `yaml:"body"`
	DelayMS     int               `yaml:"delay_ms"`
}

// LoadScenario decodes and validates a scenario.
func LoadScenario(r io.Reader) (*Scenario, error) {
	var s Scenario
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errs.New(errs.Malformed, "scenario is empty")
		}
		return nil, errs.Wrap(errs.Malformed, "decode scenario", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScenarioFile reads a scenario from path.
func LoadScenarioFile(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errs.Wrapf(errs.Missing, err, "open scenario %s", path)
	}
	defer f.Close()

	s, err := LoadScenario(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Validate reports every problem in the scenario at once.
func (s *Scenario) Validate() error {
	var problems []string
	for i, route := range s.Routes {
		where := fmt.Sprintf("routes[%d]", i)
		if route.Name != "" {
			where += " (" + route.Name + ")"
		}
		if strings.TrimSpace(route.Pattern) == "" {
			problems = append(problems, where+": pattern is required")
		}
		if route.Status < 100 || route.Status > 599 {
			problems = append(problems, fmt.Sprintf("%s: status %d outside 100..599", where, route.Status))
		}
		if route.DelayMS < 0 {
			problems = append(problems, fmt.Sprintf("%s: delay_ms %d is negative", where, route.DelayMS))
		}
		if route.JSON != nil && route.Body != nil {
			problems = append(problems, where+": json and body are mutually exclusive")
		}
	}
	if len(problems) > 0 {
		return errs.New(errs.Malformed, "invalid scenario: "+strings.Join(problems, "; "))
	}
	return nil
}

// Options returns the router options the scenario implies.
func (s *Scenario) Options() []Option {
	var opts []Option
	if s.BaseURL != "" {
		opts = append(opts, WithBaseURL(s.BaseURL))
	}
	if s.PassThrough {
		opts = append(opts, WithPassThrough(true))
	}
	return opts
}

// Apply registers the scenario's routes on r in file order, so later routes
// shadow earlier ones with the same pattern.
func (s *Scenario) Apply(r *Router) []*Rule {
	rules := make([]*Rule, 0, len(s.Routes))
	for _, route := range s.Routes {
		var opts []RuleOption
		if len(route.Methods) > 0 {
			opts = append(opts, Methods(route.Methods...))
		}
		if route.Name != "" {
			opts = append(opts, Named(route.Name))
		}
		rules = append(rules, r.Register(route.Pattern, Respond(route.spec()), opts...))
	}
	return rules
}

func (route ScenarioRoute) spec() ResponseSpec {
	spec := ResponseSpec{
		Status:      route.Status,
		Headers:     route.Headers,
		ContentType: route.ContentType,
		JSON:        normalizeYAML(route.JSON),
		Delay:       time.Duration(route.DelayMS) * time.Millisecond,
	}
	if route.Body != nil {
		spec.Body = []byte(*route.Body)
	}
	return spec
}

// normalizeYAML turns yaml.v3's map[string]any / map[any]any nesting into
// values encoding/json style marshalers accept.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}
