package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/guardgate/api/pkg/domain/ratelimit"
)

// ruleFile is the on-disk shape of the rule set.
//
//	default_limits: {limit: 100, window: 60s}
//	endpoint_limits:
//	  "/api/login": {limit: 5, window: 60s}
//	  "/api/videos*": {limit: 30, window: 60s, burst: 10}
type ruleFile struct {
	DefaultLimits  ruleSpec `yaml:"default_limits"`
	EndpointLimits yaml.Node `yaml:"endpoint_limits"`
}

type ruleSpec struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
	Burst  int           `yaml:"burst"`
}

// DefaultRuleSet returns the built-in rule set used when no rules file is
// configured: 100 requests per minute for everything.
func DefaultRuleSet() *ratelimit.RuleSet {
	rs, err := ratelimit.NewRuleSet(ratelimit.Rule{Limit: 100, Window: time.Minute}, nil)
	if err != nil {
		panic(fmt.Sprintf("built-in rule set invalid: %v", err))
	}
	return rs
}

// LoadRuleSet reads and validates the rule-set file. Declaration order of
// endpoint rules is preserved for precedence tie breaking, which is why the
// mapping is decoded through yaml.Node rather than a Go map.
func LoadRuleSet(path string) (*ratelimit.RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRuleSet(data)
}

// ParseRuleSet parses a YAML rule set document.
func ParseRuleSet(data []byte) (*ratelimit.RuleSet, error) {
	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	def := ratelimit.Rule{
		Limit:  file.DefaultLimits.Limit,
		Window: file.DefaultLimits.Window,
		Burst:  file.DefaultLimits.Burst,
	}

	var endpoints []ratelimit.Rule
	if file.EndpointLimits.Kind != 0 {
		if file.EndpointLimits.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("parse rules file: endpoint_limits must be a mapping")
		}
		// Mapping nodes store key/value pairs flattened in order.
		content := file.EndpointLimits.Content
		for i := 0; i+1 < len(content); i += 2 {
			var pattern string
			if err := content[i].Decode(&pattern); err != nil {
				return nil, fmt.Errorf("parse rules file: %w", err)
			}
			var spec ruleSpec
			if err := content[i+1].Decode(&spec); err != nil {
				return nil, fmt.Errorf("parse rules file: rule %q: %w", pattern, err)
			}
			endpoints = append(endpoints, ratelimit.Rule{
				Pattern: pattern,
				Limit:   spec.Limit,
				Window:  spec.Window,
				Burst:   spec.Burst,
			})
		}
	}

	rs, err := ratelimit.NewRuleSet(def, endpoints)
	if err != nil {
		return nil, fmt.Errorf("invalid rule set: %w", err)
	}
	return rs, nil
}
