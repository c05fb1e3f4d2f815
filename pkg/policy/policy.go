// Package policy defines the cache policy an output-cache entry is stored
// under: TTL, refresh lead, vary-by configuration and cacheability.
package policy

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Cacheability controls where a response may be cached.
type Cacheability string

const (
	// CacheabilityNone disables output caching for the response.
	CacheabilityNone Cacheability = "none"

	// CacheabilityServer caches the response on the server only.
	CacheabilityServer Cacheability = "server"

	// CacheabilityServerAndClient caches the response on the server and
	// allows client caching.
	CacheabilityServerAndClient Cacheability = "server_and_client"
)

// Policy is the resolved cache configuration for an entry. It is captured
// once at store time and remembered by the entry's cache state, so later
// validations re-evaluate eligibility against the policy that was in force
// when the entry was produced.
type Policy struct {
	// Duration is the configured TTL. Zero disables caching.
	Duration time.Duration

	// RefreshLead is subtracted from the effective expiry to obtain the
	// refresh-after instant. A lead >= Duration disables background
	// refresh: the entry simply expires.
	RefreshLead time.Duration

	// VaryByParams names the query parameters that take part in the
	// cache key.
	VaryByParams []string

	// VaryByCustom is an application-defined vary token name, resolved
	// per request by the caller.
	VaryByCustom string

	// Cacheability controls where the response may be cached.
	Cacheability Cacheability
}

// Default returns the fallback policy: one minute server-side caching
// with a ten second refresh lead.
func Default() Policy {
	return Policy{
		Duration:     60 * time.Second,
		RefreshLead:  10 * time.Second,
		Cacheability: CacheabilityServer,
	}
}

// IsCacheable reports whether responses under this policy may be stored
// in the server-side output cache.
func (p Policy) IsCacheable() bool {
	return p.Duration != 0 && p.Cacheability != CacheabilityNone && p.Cacheability != ""
}

// UnmarshalYAML decodes a policy from a rules file. Durations are given
// as Go duration strings ("90s", "5m"). Cacheability defaults to server.
func (p *Policy) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Duration     string   `yaml:"duration"`
		RefreshLead  string   `yaml:"refreshLead"`
		VaryByParams []string `yaml:"varyByParams"`
		VaryByCustom string   `yaml:"varyByCustom"`
		Cacheability string   `yaml:"cacheability"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	if raw.Duration != "" {
		duration, err := time.ParseDuration(raw.Duration)
		if err != nil {
			return fmt.Errorf("parse duration: %w", err)
		}
		p.Duration = duration
	}

	if raw.RefreshLead != "" {
		lead, err := time.ParseDuration(raw.RefreshLead)
		if err != nil {
			return fmt.Errorf("parse refreshLead: %w", err)
		}
		p.RefreshLead = lead
	}

	p.VaryByParams = raw.VaryByParams
	p.VaryByCustom = raw.VaryByCustom

	switch Cacheability(raw.Cacheability) {
	case CacheabilityNone, CacheabilityServer, CacheabilityServerAndClient:
		p.Cacheability = Cacheability(raw.Cacheability)
	case "":
		p.Cacheability = CacheabilityServer
	default:
		return fmt.Errorf("unknown cacheability %q", raw.Cacheability)
	}

	return nil
}
