package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/orgnest/orgnest/internal/auth"
	"github.com/orgnest/orgnest/internal/storage"
)

const userContextKey = "orgnest.user"

// CurrentUser returns the user resolved by Guard for this request.
func CurrentUser(c *gin.Context) (*storage.User, bool) {
	v, ok := c.Get(userContextKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*storage.User)
	return user, ok
}

// Guard protects a route group with bearer-token authentication. Missing
// header, bad token and unknown subject all produce the same 401 body so
// the response never reveals which check failed.
func Guard(engine *auth.Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthenticated(c)
			return
		}

		user, err := engine.Authenticate(c.Request.Context(), tok)
		if err != nil {
			abortUnauthenticated(c)
			return
		}

		c.Set(userContextKey, user)
		c.Next()
	}
}

func abortUnauthenticated(c *gin.Context) {
	c.Header("WWW-Authenticate", "Bearer")
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Could not validate credentials"})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	tok := value[len(bearer):]
	if tok == "" {
		return "", false
	}
	return tok, true
}
