package main

import (
	"net/http/pprof"
	rtp "runtime/pprof"
	"sort"

	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

const pprofRoute = "/debug/pprof/"

// profiler serves net/http/pprof handlers through fasthttp.
type profiler map[string]fasthttp.RequestHandler

func newProfiler() profiler {
	p := profiler{
		"":        fasthttpadaptor.NewFastHTTPHandlerFunc(pprof.Index),
		"cmdline": fasthttpadaptor.NewFastHTTPHandlerFunc(pprof.Cmdline),
		"profile": fasthttpadaptor.NewFastHTTPHandlerFunc(pprof.Profile),
		"symbol":  fasthttpadaptor.NewFastHTTPHandlerFunc(pprof.Symbol),
		"trace":   fasthttpadaptor.NewFastHTTPHandlerFunc(pprof.Trace),
	}

	for _, prof := range rtp.Profiles() {
		p[prof.Name()] = fasthttpadaptor.NewFastHTTPHandler(pprof.Handler(prof.Name()))
	}

	return p
}

// names lists the served profiles in order.
func (p profiler) names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		if name != "" {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return names
}

func (p profiler) serve(c *fasthttp.RequestCtx) {
	name, _ := c.UserValue("name").(string)

	if handler, ok := p[name]; ok {
		handler(c)
		return
	}

	c.Error("Not found", fasthttp.StatusNotFound)
}

func attachProfiler(r *router.Router, l *zap.Logger) {
	p := newProfiler()

	r.GET(pprofRoute, p.serve)
	r.GET(pprofRoute+"{name}", p.serve)

	l.Info("enabled "+pprofRoute, zap.Strings("profiles", p.names()))
}
