package policy

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule binds a path prefix to a cache policy.
type Rule struct {
	PathPrefix string `yaml:"pathPrefix"`
	Policy     Policy `yaml:"policy"`
}

// Rules resolves the cache policy for a request path. The first rule whose
// prefix matches wins; without a match the default policy applies.
type Rules struct {
	rules      []Rule
	defaultPol Policy
}

// NewRules creates a Rules set with the given default policy.
func NewRules(defaultPolicy Policy, rules ...Rule) *Rules {
	return &Rules{
		rules:      rules,
		defaultPol: defaultPolicy,
	}
}

// rulesFile is the YAML layout of a rules configuration file:
//
//	default:
//	  duration: 60s
//	  refreshLead: 10s
//	rules:
//	  - pathPrefix: /products/
//	    policy:
//	      duration: 10m
//	      refreshLead: 1m
//	      varyByParams: [page, sort]
//	  - pathPrefix: /admin/
//	    policy:
//	      cacheability: none
type rulesFile struct {
	Default *Policy `yaml:"default"`
	Rules   []Rule  `yaml:"rules"`
}

// LoadRules reads a rules configuration file. Omitting the default block
// falls back to Default().
func LoadRules(filename string) (*Rules, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}

	var file rulesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}

	defaultPol := Default()
	if file.Default != nil {
		defaultPol = *file.Default
	}

	for i, rule := range file.Rules {
		if rule.PathPrefix == "" {
			return nil, fmt.Errorf("rule %d: pathPrefix is required", i)
		}
	}

	return NewRules(defaultPol, file.Rules...), nil
}

// Resolve returns the policy in force for the given request path.
func (r *Rules) Resolve(path string) Policy {
	for _, rule := range r.rules {
		if strings.HasPrefix(path, rule.PathPrefix) {
			return rule.Policy
		}
	}
	return r.defaultPol
}
