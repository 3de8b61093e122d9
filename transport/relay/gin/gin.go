// Package gin mounts a relay endpoint on a gin router.
// This package is a thin adapter: the handshake itself lives in relay.Server.
package gin

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mark3labs/walletbridge-go/transport/relay"
)

// Register adds GET <prefix>/session/:token to r. The relay's base URL must
// point at prefix.
//
// Example:
//
//	r := gin.Default()
//	s, _ := relay.New(secret, relay.WithBaseURL("https://app.example.com/relay"))
//	relaygin.Register(r, "/relay", s)
func Register(r gin.IRoutes, prefix string, s *relay.Server) {
	r.GET(strings.TrimRight(prefix, "/")+"/session/:token", Handler(s))
}

// Handler returns the session handler for a route with a :token parameter.
func Handler(s *relay.Server) gin.HandlerFunc {
	return func(c *gin.Context) {
		s.ServeSession(c.Writer, c.Request, c.Param("token"))
		c.Abort()
	}
}
