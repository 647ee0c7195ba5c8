package offlinecache

import (
	"net/http"
	"path"
	"strings"
)

// A rule routes a classified request to one strategy executor.
// Rules are evaluated top to bottom, first match wins. The order is part of
// the engine's observable behavior: moving a rule changes what gets cached
// where, so the order is covered by tests.
type rule struct {
	name    string
	role    string
	match   func(e *Engine, r *http.Request) bool
	execute func(e *Engine, r *http.Request, role string) (*http.Response, error)
}

func engineRules() []rule {
	return []rule{
		{
			// requests for other origins are none of our business
			name: "passthrough",
			match: func(e *Engine, r *http.Request) bool {
				return r.URL.Host != "" && e.originURL.Host != "" &&
					!strings.EqualFold(r.URL.Host, e.originURL.Host)
			},
		},
		{
			name:    "network-first",
			role:    RoleDynamic,
			match:   func(e *Engine, r *http.Request) bool { return strings.HasPrefix(r.URL.Path, e.apiPrefix) },
			execute: (*Engine).networkFirst,
		},
		{
			name:    "stale-while-revalidate",
			role:    RoleImages,
			match:   func(e *Engine, r *http.Request) bool { return destination(r) == "image" },
			execute: (*Engine).staleWhileRevalidate,
		},
		{
			name:    "cache-first",
			role:    RoleStatic,
			match:   func(e *Engine, r *http.Request) bool { return isStaticDestination(destination(r)) },
			execute: (*Engine).cacheFirst,
		},
		{
			name:    "network-first",
			role:    RoleDynamic,
			match:   func(e *Engine, r *http.Request) bool { return true },
			execute: (*Engine).networkFirst,
		},
	}
}

func (e *Engine) classify(r *http.Request) rule {
	for _, ru := range e.rules {
		if ru.match(e, r) {
			return ru
		}
	}
	// unreachable, the last rule matches everything
	return e.rules[len(e.rules)-1]
}

// destination returns the resource type the request is for, modeled after
// the Fetch standard's request destinations. The Sec-Fetch-Dest header wins
// when present; otherwise the path extension decides, and an extensionless
// path counts as a document only when the request accepts HTML the way a
// navigation does.
func destination(r *http.Request) string {
	if dest := r.Header.Get("Sec-Fetch-Dest"); dest != "" {
		return dest
	}
	switch strings.ToLower(path.Ext(r.URL.Path)) {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".ico", ".avif":
		return "image"
	case ".js", ".mjs":
		return "script"
	case ".css":
		return "style"
	case ".woff", ".woff2", ".ttf", ".otf", ".eot":
		return "font"
	case ".html", ".htm":
		return "document"
	case "":
		if strings.Contains(r.Header.Get("Accept"), "text/html") {
			return "document"
		}
	}
	return ""
}

func isStaticDestination(dest string) bool {
	switch dest {
	case "script", "style", "font", "document":
		return true
	}
	return false
}
