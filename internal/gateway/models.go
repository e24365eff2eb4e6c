package gateway

import (
	"strings"
	"time"

	"nimbus/internal/config"
	"nimbus/internal/constants"
)

// RouteRule maps a path prefix to a backend service. Rules are evaluated in
// declaration order and the first matching prefix wins; overlapping prefixes
// must therefore list the more specific one first.
type RouteRule struct {
	Prefix  string
	Service string
	Rewrite string
	Timeout time.Duration
}

// RewritePath strips the matched prefix and prepends the rewrite replacement
// (usually empty, so /auth/login becomes /login).
func (r RouteRule) RewritePath(path string) string {
	rest := strings.TrimPrefix(path, r.Prefix)
	rewritten := r.Rewrite + rest
	if rewritten == "" || !strings.HasPrefix(rewritten, "/") {
		rewritten = "/" + rewritten
	}
	return rewritten
}

type RouteTable struct {
	rules []RouteRule
}

func NewRouteTable(routes []config.RouteConfig) *RouteTable {
	rules := make([]RouteRule, 0, len(routes))
	for _, rc := range routes {
		timeout := constants.DefaultForwardTimeout
		if rc.TimeoutSeconds > 0 {
			timeout = time.Duration(rc.TimeoutSeconds) * time.Second
		}
		rules = append(rules, RouteRule{
			Prefix:  rc.Prefix,
			Service: rc.Service,
			Rewrite: rc.Rewrite,
			Timeout: timeout,
		})
	}
	return &RouteTable{rules: rules}
}

// Match returns the first rule whose prefix matches the path. A prefix
// matches the exact path or any path below it, so /auth matches /auth and
// /auth/login but not /authx.
func (t *RouteTable) Match(path string) (RouteRule, bool) {
	for _, rule := range t.rules {
		if path == rule.Prefix || strings.HasPrefix(path, rule.Prefix+"/") {
			return rule, true
		}
	}
	return RouteRule{}, false
}

func (t *RouteTable) Rules() []RouteRule {
	rules := make([]RouteRule, len(t.rules))
	copy(rules, t.rules)
	return rules
}
