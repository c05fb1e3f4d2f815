package store

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/episerver/burstcache/pkg/policy"
)

// Key identifies a cached response: the request path plus the vary-by
// dimensions the entry's policy names.
type Key struct {
	// Path is the request path.
	Path string

	// VaryParams holds the query parameters selected by the policy's
	// vary-by configuration, in request form.
	VaryParams map[string]string

	// VaryCustom is the resolved value of the policy's custom vary token
	// (e.g. the visitor's market), empty when the policy names none.
	VaryCustom string
}

// NewKey builds the cache key for a request under the given policy,
// selecting only the query parameters the policy varies on. varyCustom is
// the caller-resolved value of the policy's custom vary token.
func NewKey(r *http.Request, pol policy.Policy, varyCustom string) Key {
	key := Key{
		Path:       r.URL.Path,
		VaryCustom: varyCustom,
	}

	if len(pol.VaryByParams) > 0 {
		query := r.URL.Query()
		params := make(map[string]string, len(pol.VaryByParams))
		for _, name := range pol.VaryByParams {
			if query.Has(name) {
				params[name] = query.Get(name)
			}
		}
		key.VaryParams = params
	}

	return key
}

// String generates a deterministic cache key string.
// Format: burst:<path>:param1=val1:param2=val2:vary=<token>
//
// Example:
//
//	burst:/products/123:page=2:sort=price:vary=en-GB
func (k Key) String() string {
	parts := []string{"burst"}

	path := strings.Trim(k.Path, "/")
	if path != "" {
		parts = append(parts, path)
	}

	// Vary params sorted for determinism.
	if len(k.VaryParams) > 0 {
		names := make([]string, 0, len(k.VaryParams))
		for name := range k.VaryParams {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			parts = append(parts, fmt.Sprintf("%s=%s", name, k.VaryParams[name]))
		}
	}

	if k.VaryCustom != "" {
		parts = append(parts, fmt.Sprintf("vary=%s", k.VaryCustom))
	}

	return strings.Join(parts, ":")
}
