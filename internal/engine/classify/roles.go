package classify

import (
	"path"
	"strings"
)

// roleInput is everything a role predicate may inspect.
type roleInput struct {
	path     string // slash-normalized, lowercased
	base     string // filename without extension, lowercased
	hookFile bool   // original-case filename matches the use[A-Z] pattern
	facts    *fileFacts
}

type roleRule struct {
	name string
	when func(roleInput) bool
	role Role
}

// roleRules is evaluated in fixed order; the first matching predicate wins.
// Order encodes precedence: path-based framework conventions outrank
// content-based patterns, which outrank the reusable-unit default.
var roleRules = []roleRule{
	{"route-handler", func(in roleInput) bool {
		return in.base == "route"
	}, RoleUtility},

	{"page-by-path", func(in roleInput) bool {
		if in.base == "page" {
			return true
		}
		return underDir(in.path, "pages") && !strings.HasPrefix(in.base, "_")
	}, RolePage},

	{"layout-by-path", func(in roleInput) bool {
		switch in.base {
		case "layout", "_app", "_document":
			return true
		}
		return false
	}, RoleLayout},

	{"special-page-state", func(in roleInput) bool {
		switch in.base {
		case "loading", "error", "not-found", "global-error", "template":
			return true
		}
		return false
	}, RolePage},

	{"hook-by-pattern", func(in roleInput) bool {
		if in.hookFile || len(in.facts.hooks) > 0 {
			return true
		}
		return underDir(in.path, "hooks")
	}, RoleStatefulHook},

	{"context-by-pattern", func(in roleInput) bool {
		if strings.Contains(in.base, "context") || strings.Contains(in.base, "provider") {
			return true
		}
		for _, c := range in.facts.calls {
			if c == "createContext" {
				return true
			}
		}
		return underDir(in.path, "context") || underDir(in.path, "contexts")
	}, RoleSharedCtx},

	{"utility-by-path-or-pattern", func(in roleInput) bool {
		for _, dir := range []string{"lib", "utils", "util", "helpers"} {
			if underDir(in.path, dir) {
				return true
			}
		}
		return strings.HasSuffix(in.base, ".util") || strings.HasSuffix(in.base, ".utils") ||
			strings.HasSuffix(in.base, ".helpers")
	}, RoleUtility},
}

// determineRole runs the rule table; reusable-unit is the fallthrough.
func determineRole(in roleInput) Role {
	for _, rule := range roleRules {
		if rule.when(in) {
			return rule.role
		}
	}
	return RoleReusableUnit
}

// underDir reports whether any path segment equals dir.
func underDir(p, dir string) bool {
	for _, seg := range strings.Split(path.Dir(p), "/") {
		if seg == dir {
			return true
		}
	}
	return false
}
