package logger

import (
	"github.com/aws/smithy-go/logging"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type (
	fastHTTPLogger struct {
		log *zap.SugaredLogger
	}

	awsLogger struct {
		log *zap.SugaredLogger
	}
)

// FastHTTP adapts zap.Logger to the logger used by fasthttp.Server.
func FastHTTP(l *zap.Logger) fasthttp.Logger {
	return &fastHTTPLogger{
		// skip fastHTTPLogger in caller
		log: l.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

func (z *fastHTTPLogger) Printf(format string, args ...interface{}) { z.log.Warnf(format, args...) }

// AWS adapts zap.Logger to the logger used by the AWS SDK clients.
func AWS(l *zap.Logger) logging.Logger {
	return &awsLogger{
		log: l.WithOptions(zap.AddCallerSkip(1)).Sugar(),
	}
}

func (z *awsLogger) Logf(classification logging.Classification, format string, args ...interface{}) {
	switch classification {
	case logging.Warn:
		z.log.Warnf(format, args...)
	default:
		z.log.Debugf(format, args...)
	}
}
