// Package guard decides, from one ordered rule table, what each role may
// reach. Portal pages and the JSON API share the table.
package guard

import (
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"

	"artwink/internal/auth"
)

// Outcome is the result of evaluating a path.
type Outcome string

const (
	Allow        Outcome = "allow"
	Redirect     Outcome = "redirect"
	Unauthorized Outcome = "unauthorized"
	Forbidden    Outcome = "forbidden"
	NotFound     Outcome = "not_found"
)

// Decision is what happens when a role requests a path.
type Decision struct {
	Outcome  Outcome `json:"outcome"`
	Location string  `json:"location,omitempty"`
	Rule     string  `json:"rule,omitempty"`
}

// Rule pairs a path predicate with a per-role decision.
type Rule struct {
	Name   string
	Match  func(p string) bool
	Decide func(role auth.Role) Decision
}

// Home is the landing page of each role.
func Home(role auth.Role) string {
	switch role {
	case auth.RoleAdmin:
		return "/admin"
	case auth.RoleParent:
		return "/home"
	default:
		return "/login"
	}
}

func exact(want string) func(string) bool {
	return func(p string) bool { return p == want }
}

func under(prefix string) func(string) bool {
	return func(p string) bool { return p == prefix || strings.HasPrefix(p, prefix+"/") }
}

func oneOf(ps ...string) func(string) bool {
	return func(p string) bool {
		for _, want := range ps {
			if p == want {
				return true
			}
		}
		return false
	}
}

func allow(auth.Role) Decision { return Decision{Outcome: Allow} }

// page admits only role; others are sent to their own landing page.
func page(role auth.Role) func(auth.Role) Decision {
	return func(r auth.Role) Decision {
		if r == role {
			return Decision{Outcome: Allow}
		}
		return Decision{Outcome: Redirect, Location: Home(r)}
	}
}

// api admits only the listed roles; anonymous callers get 401, others 403.
func api(roles ...auth.Role) func(auth.Role) Decision {
	return func(r auth.Role) Decision {
		for _, want := range roles {
			if r == want {
				return Decision{Outcome: Allow}
			}
		}
		if r == auth.RoleAnonymous {
			return Decision{Outcome: Unauthorized}
		}
		return Decision{Outcome: Forbidden}
	}
}

// Rules is the route table. First match wins.
var Rules = []Rule{
	{Name: "login", Match: exact("/login"), Decide: func(r auth.Role) Decision {
		if r == auth.RoleAnonymous {
			return Decision{Outcome: Allow}
		}
		return Decision{Outcome: Redirect, Location: Home(r)}
	}},
	{Name: "root", Match: exact("/"), Decide: func(r auth.Role) Decision {
		return Decision{Outcome: Redirect, Location: Home(r)}
	}},
	{Name: "parent-pages", Match: under("/home"), Decide: page(auth.RoleParent)},
	{Name: "admin-pages", Match: under("/admin"), Decide: page(auth.RoleAdmin)},
	{Name: "parent-api", Match: under("/v1/parent"), Decide: api(auth.RoleParent)},
	{Name: "admin-api", Match: under("/v1/admin"), Decide: api(auth.RoleAdmin)},
	{Name: "session-api", Match: oneOf("/v1/auth/me", "/v1/auth/logout"), Decide: api(auth.RoleParent, auth.RoleAdmin)},
	{Name: "public-api", Match: under("/v1"), Decide: allow},
	{Name: "ops", Match: oneOf("/healthz", "/metrics"), Decide: allow},
}

// Pages are the portal views. Allowed page paths not listed here are NotFound.
var Pages = map[string]bool{
	"/login":            true,
	"/home":             true,
	"/home/attendance":  true,
	"/home/portfolio":   true,
	"/admin":            true,
	"/admin/students":   true,
	"/admin/parents":    true,
	"/admin/attendance": true,
	"/admin/artworks":   true,
}

// Clean normalizes a request path.
func Clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

// Evaluate applies rules to p. A path no rule matches is NotFound.
func Evaluate(rules []Rule, p string, role auth.Role) Decision {
	p = Clean(p)
	for _, r := range rules {
		if r.Match(p) {
			d := r.Decide(role)
			d.Rule = r.Name
			return d
		}
	}
	return Decision{Outcome: NotFound}
}

// Navigate resolves a page navigation: allowed paths must also be known pages.
func Navigate(p string, role auth.Role) Decision {
	p = Clean(p)
	d := Evaluate(Rules, p, role)
	if d.Outcome == Allow && !strings.HasPrefix(p, "/v1/") && !Pages[p] {
		return Decision{Outcome: NotFound, Rule: d.Rule}
	}
	return d
}

// Middleware enforces Rules on every request using the session set by auth.Bearer.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		role := auth.SessionOf(c).EffectiveRole()
		d := Evaluate(Rules, c.Request.URL.Path, role)
		switch d.Outcome {
		case Allow, NotFound:
			c.Next()
		case Redirect:
			c.Redirect(http.StatusFound, d.Location)
			c.Abort()
		case Unauthorized:
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "sign in required"})
		case Forbidden:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "not allowed for " + string(role)})
		}
	}
}
