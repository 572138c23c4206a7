package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const ContextUserIDKey = "user_id"

// anonymousUserID scopes requests that carry no identity at all; every
// document row is still owned by some user id.
const anonymousUserID = "anonymous"

// Principal resolves the caller identity used to scope document ownership.
// A bearer token is decoded without signature verification; identity
// enforcement lives at the gateway in front of this service, the claim is
// only used as a partition key. Falls back to the X-User-Id header, then
// to the anonymous principal.
func Principal() gin.HandlerFunc {
	parser := jwt.NewParser()
	return func(c *gin.Context) {
		if uid := bearerSubject(parser, c.GetHeader("Authorization")); uid != "" {
			c.Set(ContextUserIDKey, uid)
			c.Next()
			return
		}
		if uid := strings.TrimSpace(c.GetHeader("X-User-Id")); uid != "" {
			c.Set(ContextUserIDKey, uid)
			c.Next()
			return
		}
		c.Set(ContextUserIDKey, anonymousUserID)
		c.Next()
	}
}

func bearerSubject(parser *jwt.Parser, header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(strings.TrimSpace(parts[1]), claims); err != nil {
		return ""
	}
	for _, key := range []string{"sub", "user_id", "id"} {
		if v, ok := claims[key].(string); ok && v != "" {
			return v
		}
	}
	return ""
}
