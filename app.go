package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fasthttp/router"
	"github.com/nodeupload/nodeupload-gw/credentials"
	"github.com/nodeupload/nodeupload-gw/index"
	"github.com/nodeupload/nodeupload-gw/logger"
	"github.com/nodeupload/nodeupload-gw/metrics"
	"github.com/nodeupload/nodeupload-gw/naming"
	"github.com/nodeupload/nodeupload-gw/ratelimit"
	"github.com/nodeupload/nodeupload-gw/storage"
	"github.com/nodeupload/nodeupload-gw/tokens"
	"github.com/nodeupload/nodeupload-gw/uploader"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/viper"
	"github.com/valyala/fasthttp"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

type (
	app struct {
		log *zap.Logger
		cfg *viper.Viper
		web *fasthttp.Server

		index   *index.Index
		limiter *ratelimit.Limiter
		creds   *credentials.SQLStore
		store   *storage.Client
		metrics *metrics.GateMetrics
		upload  *uploader.Uploader

		credsReady *atomic.Bool
		credsErr   *atomic.Error
		indexErr   *atomic.Error

		indexForm       bool
		disabledMessage string

		jobDone chan struct{}
		webDone chan struct{}
	}

	App interface {
		Wait()
		Worker(context.Context)
		Serve(context.Context)
	}

	Option func(a *app)
)

var (
	errCredsStarting = errors.New("credential store is not verified yet")
	errIndexStarting = errors.New("remote index is loading")
)

func WithLogger(l *zap.Logger) Option {
	return func(a *app) {
		if l == nil {
			return
		}
		a.log = l
	}
}

func WithConfig(c *viper.Viper) Option {
	return func(a *app) {
		if c == nil {
			return
		}
		a.cfg = c
	}
}

func newApp(ctx context.Context, opt ...Option) App {
	a := &app{
		log: zap.L(),
		cfg: viper.GetViper(),
		web: new(fasthttp.Server),

		credsReady: atomic.NewBool(false),
		credsErr:   atomic.NewError(errCredsStarting),
		indexErr:   atomic.NewError(errIndexStarting),

		jobDone: make(chan struct{}),
		webDone: make(chan struct{}),
	}

	for i := range opt {
		opt[i](a)
	}

	a.indexForm = a.cfg.GetBool(cfgIndexFormEnabled)
	a.disabledMessage = a.cfg.GetString(cfgIndexFormDisabledMessage)

	// -- setup FastHTTP server: --
	a.web.Name = "nodeupload-gw"
	a.web.ReadBufferSize = a.cfg.GetInt(cfgWebReadBufferSize)
	a.web.WriteBufferSize = a.cfg.GetInt(cfgWebWriteBufferSize)
	a.web.ReadTimeout = a.cfg.GetDuration(cfgWebReadTimeout)
	a.web.WriteTimeout = a.cfg.GetDuration(cfgWebWriteTimeout)
	a.web.MaxRequestBodySize = a.cfg.GetInt(cfgMaxBodySize)
	a.web.NoDefaultServerHeader = true
	a.web.NoDefaultContentType = true
	a.web.Logger = logger.FastHTTP(a.log)
	// -- -- -- -- -- -- -- -- -- --

	tmpDir := a.cfg.GetString(cfgTempDir)
	if err := os.MkdirAll(tmpDir, 0o700); err != nil {
		a.log.Fatal("could not create temporary directory", zap.String("path", tmpDir), zap.Error(err))
	}

	var err error
	if a.creds, err = credentials.Open(a.cfg.GetString(cfgDBDriver), a.cfg.GetString(cfgDBDSN), credentials.MustExist()); err != nil {
		a.log.Fatal("could not open credential store", zap.Error(err))
	}

	a.store, err = storage.New(ctx, a.log, storage.Config{
		Bucket:          a.cfg.GetString(cfgS3Bucket),
		Prefix:          a.cfg.GetString(cfgS3Prefix),
		Endpoint:        a.cfg.GetString(cfgS3Endpoint),
		Region:          a.cfg.GetString(cfgS3Region),
		AccessKeyID:     a.cfg.GetString(cfgS3AccessKeyID),
		SecretAccessKey: a.cfg.GetString(cfgS3SecretAccessKey),
		ACL:             a.cfg.GetString(cfgS3ACL),
		PathStyle:       a.cfg.GetBool(cfgS3PathStyle),
		MaxAttempts:     a.cfg.GetInt(cfgS3MaxAttempts),
		MaxBackoff:      a.cfg.GetDuration(cfgS3MaxBackoff),
		UploadTimeout:   a.cfg.GetDuration(cfgS3UploadTimeout),
		ListTimeout:     a.cfg.GetDuration(cfgS3ListTimeout),
	})
	if err != nil {
		a.log.Fatal("could not create object store client", zap.Error(err))
	}

	a.index = index.New(
		index.WithLogger(a.log),
		index.WithNotify(a.indexErr.Store),
		index.WithBackoff(time.Second, a.cfg.GetDuration(cfgBootstrapMaxInterval)))

	a.limiter = ratelimit.New(
		a.cfg.GetDuration(cfgRateLimitWindow),
		a.cfg.GetInt(cfgRateLimitMax))

	a.metrics = metrics.NewGateMetrics(prometheus.DefaultRegisterer)

	a.upload = uploader.New(uploader.Params{
		Logger:   a.log,
		Limiter:  a.limiter,
		Ready:    a,
		Auth:     tokens.NewAuthenticator(a.creds),
		Names:    naming.New(a.index),
		Index:    a.index,
		Store:    a.store,
		Observer: a.metrics,
	}, uploader.Config{
		FilenameLength: a.cfg.GetInt(cfgFilenameLength),
		ExtBlacklist:   a.cfg.GetStringSlice(cfgExtBlacklist),
		TempDir:        tmpDir,
		RedirectURL:    a.cfg.GetString(cfgRedirectURL),
		TrustedProxies: a.cfg.GetStringSlice(cfgWebTrustedProxies),
	})

	return a
}

// IsReady reports whether uploads can be admitted: the remote index is
// loaded and the credential store answered.
func (a *app) IsReady() bool {
	return a.index.IsReady() && a.credsReady.Load()
}

func (a *app) Wait() {
	a.log.Info("application started")

	select {
	case <-a.jobDone: // wait for job is stopped
		<-a.webDone
	case <-a.webDone: // wait for web-server is stopped
		<-a.jobDone
	}
}

func (a *app) Worker(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(2)
	go func() {
		defer wg.Done()
		a.verifyCredentials(ctx)
	}()
	go func() {
		defer wg.Done()
		a.bootstrapIndex(ctx)
	}()

	dur := a.cfg.GetDuration(cfgRateLimitSweep)
	if dur <= 0 {
		dur = defaultRateLimitSweep
	}
	tick := time.NewTimer(dur)

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-tick.C:
			a.updateState()
			tick.Reset(dur)
		}
	}

	tick.Stop()
	wg.Wait()

	if err := a.creds.Close(); err != nil {
		a.log.Warn("could not close credential store", zap.Error(err))
	}

	a.log.Info("background worker stopped")

	close(a.jobDone)
}

// verifyCredentials waits for the credential store to answer. A store
// that is absent or has no tokens table is a misconfiguration and stops the
// process.
func (a *app) verifyCredentials(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = a.cfg.GetDuration(cfgBootstrapMaxInterval)
	b.MaxElapsedTime = 0

	verify := func() error {
		err := a.creds.Verify(ctx)
		if err != nil && (isMisconfigured(err) || ctx.Err() != nil) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, wait time.Duration) {
		a.credsErr.Store(err)
		a.log.Error("credential store is unavailable, retrying",
			zap.Duration("retry_in", wait),
			zap.Error(err))
	}

	switch err := backoff.RetryNotify(verify, backoff.WithContext(b, ctx), notify); {
	case err == nil:
		a.credsReady.Store(true)
		a.credsErr.Store(nil)
		a.log.Info("credential store is ready")
		a.updateState()
	case isMisconfigured(err):
		a.log.Fatal("credential store is missing or has no tokens table, run `nodeupload-token migrate` first", zap.Error(err))
	default:
		a.log.Info("credential store verification stopped", zap.Error(err))
	}
}

func isMisconfigured(err error) bool {
	return errors.Is(err, credentials.ErrAbsent) || errors.Is(err, credentials.ErrNotInitialized)
}

func (a *app) bootstrapIndex(ctx context.Context) {
	if err := a.index.Bootstrap(ctx, a.store); err != nil {
		a.log.Info("remote index bootstrap stopped", zap.Error(err))
		return
	}

	a.updateState()
}

func (a *app) updateState() {
	if removed := a.limiter.Sweep(); removed > 0 {
		a.log.Debug("expired rate limit windows removed", zap.Int("count", removed))
	}

	a.metrics.SetLimitedClients(a.limiter.Len())
	a.metrics.SetIndexSize(a.index.Len())

	if a.IsReady() {
		a.metrics.SetHealth(1)
	} else {
		a.metrics.SetHealth(0)
	}
}

func (a *app) Serve(ctx context.Context) {
	go func() {
		<-ctx.Done()
		a.shutdown(a.cfg.GetDuration(cfgWebShutdownTimeout))
		close(a.webDone)
	}()

	r := router.New()
	r.RedirectTrailingSlash = true

	a.log.Info("enabled /upload")
	r.POST("/upload", a.upload.Upload)
	r.GET("/", a.home)

	// attaching /-/(ready,healthy)
	attachHealthy(r, a.IsReady, a.credsErr, a.indexErr)

	// enable metrics
	if a.cfg.GetBool(cfgMetrics) {
		a.log.Info("enabled /metrics/")
		attachMetrics(r, a.log)
	}

	// enable pprof
	if a.cfg.GetBool(cfgPprof) {
		attachProfiler(r, a.log)
	}

	bind := a.cfg.GetString(cfgListenAddress)
	a.log.Info("run gateway server",
		zap.String("address", bind))

	a.web.Handler = r.Handler
	if err := a.web.ListenAndServe(bind); err != nil {
		a.log.Fatal("could not start server", zap.Error(err))
	}
}

// shutdown stops the web-server, giving in-flight uploads at most timeout
// to finish.
func (a *app) shutdown(timeout time.Duration) {
	done := make(chan error, 1)
	go func() { done <- a.web.Shutdown() }()

	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case err := <-done:
		a.log.Info("stop web-server", zap.Error(err))
	case <-t.C:
		a.log.Warn("web-server shutdown timed out", zap.Duration("timeout", timeout))
	}
}
