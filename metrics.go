package main

import (
	"github.com/fasthttp/router"
	"github.com/nodeupload/nodeupload-gw/response"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

func attachMetrics(r *router.Router, l *zap.Logger) {
	r.GET("/metrics/", metricsHandler(prometheus.DefaultGatherer, l))
}

func metricsHandler(reg prometheus.Gatherer, logger *zap.Logger) fasthttp.RequestHandler {
	errCnt := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promhttp_metric_handler_errors_total",
			Help: "Total number of internal errors encountered by the promhttp metric handler.",
		},
		[]string{"cause"},
	)

	return func(c *fasthttp.RequestCtx) {
		mfs, err := reg.Gather()
		if err != nil {
			logger.Error("could not gather metrics", zap.Error(err))
			errCnt.WithLabelValues("gathering").Inc()
			response.Error(c, err.Error(), fasthttp.StatusServiceUnavailable)
			return
		}

		contentType := expfmt.FmtText
		c.SetContentType(string(contentType))
		enc := expfmt.NewEncoder(c, contentType)

		// handleError returns true when the response must be aborted.
		handleError := func(err error) bool {
			if err == nil {
				return false
			}
			logger.Error("encoding and sending metric family", zap.Error(err))
			errCnt.WithLabelValues("encoding").Inc()
			response.Error(c, err.Error(), fasthttp.StatusServiceUnavailable)
			return true
		}

		for _, mf := range mfs {
			if handleError(enc.Encode(mf)) {
				return
			}
		}

		if closer, ok := enc.(expfmt.Closer); ok {
			handleError(closer.Close())
		}
	}
}
