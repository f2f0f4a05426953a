package handlers

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// RouteClass is the access class a request path falls into at the boundary.
type RouteClass int

const (
	RouteSession RouteClass = iota
	RoutePublic
	RouteDevice
)

func (c RouteClass) String() string {
	switch c {
	case RoutePublic:
		return "public"
	case RouteDevice:
		return "device"
	default:
		return "session"
	}
}

var (
	publicRoutes = []string{"/", "/login", "/api/webhook", "/api/ping", "/api/auth/validate-key", "/static", "/favicon.ico"}
	deviceRoutes = []string{"/api/create_payment", "/api/status"}
	assetExts    = map[string]bool{".svg": true, ".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true}
)

// Classify maps a request path to its route class. Public wins over device,
// device over session.
func Classify(p string) RouteClass {
	switch {
	case matchesAny(p, publicRoutes), assetExts[strings.ToLower(path.Ext(p))]:
		return RoutePublic
	case matchesAny(p, deviceRoutes):
		return RouteDevice
	default:
		return RouteSession
	}
}

// matchesAny reports whether p equals a route or sits below it. The root
// route only matches exactly.
func matchesAny(p string, routes []string) bool {
	for _, route := range routes {
		if p == route || (route != "/" && strings.HasPrefix(p, route+"/")) {
			return true
		}
	}
	return false
}

// Boundary runs before routing. Session routes only need the cookie to be
// present here; RequireSession validates it later.
func Boundary(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Classify(r.URL.Path) != RouteSession {
			next.ServeHTTP(w, r)
			return
		}
		if _, err := r.Cookie(SessionCookieName); err != nil {
			target := "/login?" + url.Values{"callbackUrl": {r.URL.Path}}.Encode()
			http.Redirect(w, r, target, http.StatusTemporaryRedirect)
			return
		}
		next.ServeHTTP(w, r)
	})
}
