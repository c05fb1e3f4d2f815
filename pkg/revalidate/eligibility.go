package revalidate

import (
	"net/http"
	"strings"
	"time"
)

// IsEligible reports whether a request/response pair may participate in
// output caching at all: anonymous, a configured non-zero duration, and a
// GET request.
//
// The predicate is pure. It is evaluated both when a response is first
// stored and on every validation hit, and the same inputs must always
// yield the same result: a cached body must never be served to a request
// that would not have been cacheable in the first place.
func IsEligible(isAuthenticated bool, method string, configuredDuration time.Duration) bool {
	if isAuthenticated {
		return false
	}
	if configuredDuration == 0 {
		return false
	}
	return strings.EqualFold(method, http.MethodGet)
}
