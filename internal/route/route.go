// Package route names the application's screens and decides what a
// protected screen may show for a given auth state.
package route

import (
	"strings"

	"github.com/datealchemy/alchemy/internal/auth"
)

// Path identifies a screen.
type Path string

const (
	Home      Path = "/"
	Auth      Path = "/auth"
	Socials   Path = "/socials"
	Questions Path = "/questions"
	Dashboard Path = "/dashboard"
	NotFound  Path = "*"
)

// Route describes one screen.
type Route struct {
	Path      Path
	Title     string
	Protected bool
}

var table = []Route{
	{Path: Home, Title: "Date Alchemy"},
	{Path: Auth, Title: "Sign in"},
	{Path: Socials, Title: "Socials"},
	{Path: Questions, Title: "Ice Breaking Questions"},
	{Path: Dashboard, Title: "Dashboard", Protected: true},
}

// All returns every known route in display order.
func All() []Route {
	out := make([]Route, len(table))
	copy(out, table)
	return out
}

// Match resolves raw to a route. Unknown paths resolve to NotFound with ok
// false. A trailing slash and surrounding space are ignored.
func Match(raw string) (Route, bool) {
	p := strings.TrimSpace(raw)
	if p == "" {
		p = string(Home)
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
		if p == "" {
			p = string(Home)
		}
	}
	for _, r := range table {
		if string(r.Path) == p {
			return r, true
		}
	}
	return Route{Path: NotFound, Title: "Not found"}, false
}

// Decision is what a guarded screen renders.
type Decision int

const (
	// Wait renders a loading indicator; auth state is not settled.
	Wait Decision = iota
	// RedirectToAuth sends the user to the sign-in screen.
	RedirectToAuth
	// ApprovalPending renders the interstitial with only a way home.
	ApprovalPending
	// Allow renders the protected content.
	Allow
)

func (d Decision) String() string {
	switch d {
	case Wait:
		return "wait"
	case RedirectToAuth:
		return "redirect"
	case ApprovalPending:
		return "pending"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Guard decides what a protected screen shows for s.
func Guard(s auth.State) Decision {
	switch {
	case s.Loading:
		return Wait
	case s.User == nil:
		return RedirectToAuth
	case !s.Approved():
		return ApprovalPending
	default:
		return Allow
	}
}

// Resolve combines Match and Guard: unprotected routes always render.
func Resolve(raw string, s auth.State) (Route, Decision) {
	r, _ := Match(raw)
	if !r.Protected {
		return r, Allow
	}
	return r, Guard(s)
}

// History is a back stack of visited paths. The zero value starts at Home.
type History struct {
	stack []Path
}

// Current returns the top of the stack.
func (h *History) Current() Path {
	if len(h.stack) == 0 {
		return Home
	}
	return h.stack[len(h.stack)-1]
}

// Push navigates to p. Pushing the current path is a no-op.
func (h *History) Push(p Path) {
	if len(h.stack) == 0 {
		h.stack = append(h.stack, Home)
	}
	if h.Current() == p {
		return
	}
	h.stack = append(h.stack, p)
}

// Replace swaps the current path for p, as a redirect does.
func (h *History) Replace(p Path) {
	if len(h.stack) == 0 {
		h.stack = append(h.stack, p)
		return
	}
	h.stack[len(h.stack)-1] = p
}

// Back pops one entry and reports whether there was one to pop.
func (h *History) Back() bool {
	if len(h.stack) <= 1 {
		return false
	}
	h.stack = h.stack[:len(h.stack)-1]
	return true
}

// Reset returns to p with an empty back stack.
func (h *History) Reset(p Path) {
	h.stack = append(h.stack[:0], p)
}

// Depth returns the number of entries on the stack.
func (h *History) Depth() int {
	if len(h.stack) == 0 {
		return 1
	}
	return len(h.stack)
}
