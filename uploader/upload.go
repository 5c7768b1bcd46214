package uploader

import (
	"context"
	"errors"
	"math"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"time"

	"github.com/nodeupload/nodeupload-gw/response"
	"github.com/nodeupload/nodeupload-gw/storage"
	"github.com/nodeupload/nodeupload-gw/tokens"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const defaultContentType = "application/octet-stream"

type (
	Limiter interface {
		Admit(key string) (bool, time.Duration)
	}

	Readiness interface {
		IsReady() bool
	}

	Authenticator interface {
		Authenticate(ctx context.Context, token string) (string, error)
	}

	Allocator interface {
		Allocate(length int, ext string) (string, error)
	}

	Recorder interface {
		Record(name string)
	}

	ObjectStore interface {
		Upload(ctx context.Context, obj storage.Object) error
	}

	// Observer receives the result label of every handled request.
	Observer interface {
		Observe(result string)
	}

	// Config holds upload policy settings.
	Config struct {
		FilenameLength int
		ExtBlacklist   []string
		TempDir        string
		// RedirectURL, when set, turns successful responses into a redirect
		// to RedirectURL + object name.
		RedirectURL string
		// TrustedProxies lists peers whose X-Forwarded-For header is used
		// to find the client address.
		TrustedProxies []string
	}

	// Params are the collaborators of Uploader.
	Params struct {
		Logger   *zap.Logger
		Limiter  Limiter
		Ready    Readiness
		Auth     Authenticator
		Names    Allocator
		Index    Recorder
		Store    ObjectStore
		Observer Observer
	}

	// Uploader handles POST /upload.
	Uploader struct {
		Params

		cfg       Config
		blacklist map[string]struct{}
		proxies   proxies
	}

	nopObserver struct{}
)

func (nopObserver) Observe(string) {}

// New creates an Uploader.
func New(p Params, cfg Config) *Uploader {
	if p.Logger == nil {
		p.Logger = zap.NewNop()
	}
	if p.Observer == nil {
		p.Observer = nopObserver{}
	}

	blacklist := make(map[string]struct{}, len(cfg.ExtBlacklist))
	for _, ext := range cfg.ExtBlacklist {
		blacklist[ext] = struct{}{}
	}

	return &Uploader{
		Params:    p,
		cfg:       cfg,
		blacklist: blacklist,
		proxies:   parseProxies(p.Logger, cfg.TrustedProxies),
	}
}

// Upload relays a multipart file to the object store under a freshly
// allocated name.
func (u *Uploader) Upload(c *fasthttp.RequestCtx) {
	var (
		err  error
		form *multipart.Form
		file *job
		ip   = u.proxies.clientAddr(c)
		log  = u.Logger.With(zap.String("ip", ip))
	)

	if ok, wait := u.Limiter.Admit(ip); !ok {
		log.Warn("request rejected", zap.Error(ErrRateLimited), zap.Duration("retry_after", wait))
		c.Response.Header.Set("Access-Control-Allow-Origin", "*")
		c.Response.Header.Set(fasthttp.HeaderRetryAfter, strconv.Itoa(retryAfterSeconds(wait)))
		u.fail(c, ResultRateLimited, fasthttp.StatusTooManyRequests, msgRateLimited)
		return
	}

	if !u.Ready.IsReady() {
		log.Error("upload rejected", zap.Error(ErrServiceNotReady))
		u.fail(c, ResultNotReady, fasthttp.StatusOK, msgNotReady)
		return
	}

	switch form, err = c.MultipartForm(); {
	case errors.Is(err, fasthttp.ErrNoMultipartForm):
		// token may still come in a header, the missing file is reported later
		form = nil
	case err != nil:
		log.Error("could not receive multipart form", zap.Error(err))
		u.fail(c, ResultBadRequest, fasthttp.StatusBadRequest, msgBadForm)
		return
	}

	if file, err = receiveFile(log, form, u.cfg.TempDir); err != nil {
		log.Error("could not store uploaded file into temporary", zap.Error(err))
		u.fail(c, ResultTempFileFailed, fasthttp.StatusInternalServerError, msgTempFile)
		return
	}

	defer func() {
		if err := file.cleanup(); err != nil {
			log.Warn("remove temporary file", zap.String("path", file.path), zap.Error(err))
			u.Observer.Observe(ResultCleanupFailed)
		}
	}()

	id, err := u.Auth.Authenticate(c, tokens.FromRequest(c, form))
	switch {
	case tokens.IsAuthError(err):
		log.Warn("invalid token", zap.String("reason", err.Error()))
		u.fail(c, ResultInvalidToken, fasthttp.StatusOK, msgInvalidToken)
		return
	case err != nil:
		log.Error("could not authenticate token", zap.Error(err))
		u.fail(c, ResultAuthUnavailable, fasthttp.StatusOK, msgNotReady)
		return
	}

	log = log.With(zap.String("token", id))

	if file == nil || file.filename == "" || file.size == 0 {
		log.Warn("upload rejected", zap.Error(ErrNoFileSupplied))
		u.fail(c, ResultNoFile, fasthttp.StatusOK, msgNoFile)
		return
	}

	ext := filepath.Ext(file.filename)
	if _, blocked := u.blacklist[ext]; blocked {
		log.Warn("upload rejected", zap.Error(ErrBlockedExtension), zap.String("ext", ext))
		u.fail(c, ResultBlockedExtension, fasthttp.StatusOK, msgBlocked)
		return
	}

	contentType := mime.TypeByExtension(ext)
	if contentType == "" {
		contentType = defaultContentType
	}

	name, err := u.Names.Allocate(u.cfg.FilenameLength, ext)
	if err != nil {
		log.Error("could not allocate object name", zap.Error(err))
		u.fail(c, ResultNameExhausted, fasthttp.StatusOK, msgNoName)
		return
	}

	log = log.With(zap.String("object", name))

	// the write is not cancelled if the client goes away mid-upload
	err = u.Store.Upload(context.WithoutCancel(c), storage.Object{
		Name:        name,
		Path:        file.path,
		ContentType: contentType,
		Metadata:    filterHeaders(log, &c.Request.Header),
	})
	if err != nil {
		log.Error("upload rejected", zap.Error(ErrRemoteWriteFailed), zap.NamedError("cause", err))
		u.fail(c, ResultRemoteWriteFailed, fasthttp.StatusOK, msgRemoteWrite)
		return
	}

	u.Index.Record(name)
	u.Observer.Observe(ResultSuccess)

	log.Info("file uploaded",
		zap.String("filename", file.filename),
		zap.String("content_type", contentType),
		zap.Int64("size", file.size))

	if u.cfg.RedirectURL != "" {
		c.Redirect(u.cfg.RedirectURL+name, fasthttp.StatusFound)
		return
	}

	response.JSON(c, fasthttp.StatusOK, true, name)
}

func (u *Uploader) fail(c *fasthttp.RequestCtx, result string, code int, msg string) {
	u.Observer.Observe(result)
	response.Fail(c, code, msg)
}

func retryAfterSeconds(wait time.Duration) int {
	if sec := int(math.Ceil(wait.Seconds())); sec > 0 {
		return sec
	}
	return 1
}
