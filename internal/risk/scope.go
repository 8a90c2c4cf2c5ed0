package risk

import "regexp"

// AllURLs is the match pattern that grants access to every origin.
const AllURLs = "<all_urls>"

// Scope weights returned by HostScopeMultiplier.
const (
	ScopeNoHosts           = 0.25
	ScopeAllURLs           = 1.0
	ScopeFullWildcard      = 1.0
	ScopeWildcardSubdomain = 0.75
	ScopeOther             = 0.5
	ScopeHostPathWildcard  = 0.4
)

// scopeClass pairs a host-pattern shape with the multiplier it implies.
type scopeClass struct {
	name   string
	re     *regexp.Regexp
	weight float64
}

// scopeClasses are checked in order; the first matching class classifies a
// pattern. Anything that matches none of them falls into ScopeOther.
var scopeClasses = []scopeClass{
	{
		// *://*/*, https://*/*, wss://*/* ...
		name:   "full_wildcard",
		re:     regexp.MustCompile(`^(\*|https?|wss?)://\*/\*$`),
		weight: ScopeFullWildcard,
	},
	{
		// *://*.example.com/*, https://*.example.com/api/...
		name:   "wildcard_subdomain",
		re:     regexp.MustCompile(`^(\*|https?|wss?)://\*\.[^/*]+/.*$`),
		weight: ScopeWildcardSubdomain,
	},
	{
		// https://example.com/*, http://example.com/path/*
		name:   "host_path_wildcard",
		re:     regexp.MustCompile(`^https?://[^/*]+/.*\*$`),
		weight: ScopeHostPathWildcard,
	},
}

// classifyHost returns the scope class name and weight for one pattern.
func classifyHost(pattern string) (string, float64) {
	for _, c := range scopeClasses {
		if c.re.MatchString(pattern) {
			return c.name, c.weight
		}
	}
	return "other", ScopeOther
}

// HostScopeMultiplier reduces a list of host-match patterns to a single factor
// describing how broadly an extension can reach into pages.
//
// The broadest pattern wins: the result is the maximum over all patterns, so
// adding a pattern can never lower it. Unrecognised or malformed patterns are
// never rejected; they count as ScopeOther.
func HostScopeMultiplier(hosts []string) float64 {
	if len(hosts) == 0 {
		return ScopeNoHosts
	}

	highest := 0.0
	for _, h := range hosts {
		if h == AllURLs {
			return ScopeAllURLs
		}
		if _, w := classifyHost(h); w > highest {
			highest = w
		}
	}

	// Unreachable with the current classes.
	if highest == 0 {
		return 1.0
	}
	return highest
}
