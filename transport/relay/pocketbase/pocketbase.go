// Package pocketbase mounts a relay endpoint inside a PocketBase app.
package pocketbase

import (
	"strings"

	"github.com/pocketbase/pocketbase/core"

	"github.com/mark3labs/walletbridge-go/transport/relay"
)

// Route returns the session handler for a route with a {token} path value.
func Route(s *relay.Server) func(*core.RequestEvent) error {
	return func(e *core.RequestEvent) error {
		s.ServeSession(e.Response, e.Request, e.Request.PathValue("token"))
		return nil
	}
}

// Bind registers GET <prefix>/session/{token} when app starts serving.
//
// Example:
//
//	app := pocketbase.New()
//	s, _ := relay.New(secret, relay.WithBaseURL("https://app.example.com/relay"))
//	pbrelay.Bind(app, "/relay", s)
func Bind(app core.App, prefix string, s *relay.Server) {
	path := strings.TrimRight(prefix, "/") + "/session/{token}"
	app.OnServe().BindFunc(func(se *core.ServeEvent) error {
		se.Router.GET(path, Route(s))
		return se.Next()
	})
}
