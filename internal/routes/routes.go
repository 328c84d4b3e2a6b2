// Package routes maps the application's address surface to screens.
package routes

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/mux"
)

// Screen identifies a top-level view.
type Screen string

const (
	ScreenRegister Screen = "register"
	ScreenSuccess  Screen = "success"
	ScreenApproval Screen = "approval"
)

// Target is a resolved route.
type Target struct {
	Screen Screen
	Token  string
}

var router = newRouter()

func newRouter() *mux.Router {
	r := mux.NewRouter()
	noop := func(http.ResponseWriter, *http.Request) {}
	r.HandleFunc("/", noop).Name(string(ScreenRegister))
	r.HandleFunc("/success", noop).Name(string(ScreenSuccess))
	r.HandleFunc("/approval/{token}", noop).Name(string(ScreenApproval))
	return r
}

// Resolve accepts a path ("/approval/abc") or a full link
// ("https://host/approval/abc") and returns the screen it addresses.
func Resolve(location string) (Target, error) {
	location = strings.TrimSpace(location)
	if location == "" {
		location = "/"
	}
	parsed, err := url.Parse(location)
	if err != nil {
		return Target{}, fmt.Errorf("routes: parse %q: %w", location, err)
	}
	if parsed.Path == "" {
		parsed.Path = "/"
	}
	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: parsed.Path, RawPath: parsed.RawPath}}
	var match mux.RouteMatch
	if !router.Match(req, &match) || match.Route == nil {
		return Target{}, fmt.Errorf("routes: no screen for %s", parsed.Path)
	}
	target := Target{Screen: Screen(match.Route.GetName())}
	if target.Screen == ScreenApproval {
		target.Token = match.Vars["token"]
		if strings.TrimSpace(target.Token) == "" {
			return Target{}, fmt.Errorf("routes: approval link has no token")
		}
	}
	return target, nil
}

// Path builds the address of a screen. Token is only used for approvals.
func Path(screen Screen, token string) (string, error) {
	route := router.Get(string(screen))
	if route == nil {
		return "", fmt.Errorf("routes: unknown screen %s", screen)
	}
	var pairs []string
	if screen == ScreenApproval {
		pairs = []string{"token", token}
	}
	u, err := route.URLPath(pairs...)
	if err != nil {
		return "", fmt.Errorf("routes: build %s: %w", screen, err)
	}
	return u.String(), nil
}
