package cors

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	allowHeaders = "Authorization, Content-Type, X-Requested-With, X-Request-ID"
	allowMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	maxAge       = "600"
)

// New builds a CORS middleware from an origin allowlist. An empty list
// allows every origin, which is the expected setup for local development.
func New(origins []string) gin.HandlerFunc {
	allowlist := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		allowlist[normalize(o)] = struct{}{}
	}
	open := len(allowlist) == 0

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")

		switch {
		case origin != "" && open:
			h.Set("Access-Control-Allow-Origin", origin)
		case origin != "":
			if _, ok := allowlist[normalize(origin)]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
			}
		case open:
			h.Set("Access-Control-Allow-Origin", "*")
		}

		h.Set("Vary", "Origin")
		h.Set("Access-Control-Allow-Credentials", "true")
		h.Set("Access-Control-Allow-Headers", allowHeaders)
		h.Set("Access-Control-Allow-Methods", allowMethods)
		h.Set("Access-Control-Max-Age", maxAge)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func normalize(origin string) string {
	return strings.ToLower(strings.TrimRight(origin, "/"))
}
