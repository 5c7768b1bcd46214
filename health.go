package main

import (
	"strings"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"go.uber.org/atomic"
)

const (
	healthyState       = "NodeUpload gateway is "
	defaultContentType = "text/plain; charset=utf-8"
)

// attachHealthy registers readiness and health routes. The gateway is
// unhealthy while any of errs holds an error.
func attachHealthy(r *router.Router, ready func() bool, errs ...*atomic.Error) {
	r.GET("/-/ready/", func(c *fasthttp.RequestCtx) {
		c.SetContentType(defaultContentType)

		if !ready() {
			c.SetStatusCode(fasthttp.StatusServiceUnavailable)
			c.SetBodyString(healthyState + "starting")
			return
		}

		c.SetStatusCode(fasthttp.StatusOK)
		c.SetBodyString(healthyState + "ready")
	})

	r.GET("/-/healthy/", func(c *fasthttp.RequestCtx) {
		code := fasthttp.StatusOK
		msg := "healthy"

		var causes []string
		for _, e := range errs {
			if err := e.Load(); err != nil {
				causes = append(causes, err.Error())
			}
		}

		if len(causes) > 0 {
			msg = "unhealthy: " + strings.Join(causes, "; ")
			code = fasthttp.StatusBadRequest
		}

		c.Response.Reset()
		c.SetStatusCode(code)
		c.SetContentType(defaultContentType)
		c.SetBodyString(healthyState + msg)
	})
}
