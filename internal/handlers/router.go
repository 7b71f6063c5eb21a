// Package handlers wires the HTTP surface: request binding, status-code
// mapping and route registration on top of the auth core and the stores.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orgnest/orgnest/internal/metrics"
	"github.com/orgnest/orgnest/internal/middleware"
)

// NewRouter assembles the gin engine with recovery, request IDs, request
// counting, the operational endpoints and all API routes.
func NewRouter(env string, m *metrics.Metrics, guard gin.HandlerFunc, users *UserHandler, orgs *OrganizationHandler) *gin.Engine {
	if env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestID(), countRequests(m))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	users.Register(r, guard)
	orgs.Register(r, guard)

	return r
}

func countRequests(m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := fmt.Sprintf("%dxx", c.Writer.Status()/100)
		m.HTTPRequests.WithLabelValues(route, status).Inc()
	}
}
