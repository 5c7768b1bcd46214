package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type empty int

const (
	devNull = empty(0)

	defaultRateLimitWindow   = 7500 * time.Millisecond
	defaultRateLimitMax      = 5
	defaultRateLimitSweep    = time.Minute
	defaultFilenameLength    = 10
	defaultMaxBodySize       = 100 << 20
	defaultBootstrapInterval = time.Minute

	defaultS3MaxAttempts   = 4
	defaultS3MaxBackoff    = time.Second
	defaultS3UploadTimeout = 5 * time.Minute
	defaultS3ListTimeout   = time.Minute

	defaultShutdownTimeout = 15 * time.Second
)

const (
	cfgApplicationName    = "app.name"
	cfgApplicationVersion = "app.version"

	cfgListenAddress = "listen_address"
	cfgConfigFile    = "config"
	cfgMetrics       = "metrics"
	cfgPprof         = "pprof"

	// Logger.
	cfgLoggerLevel              = "logger.level"
	cfgLoggerFormat             = "logger.format"
	cfgLoggerTraceLevel         = "logger.trace_level"
	cfgLoggerNoCaller           = "logger.no_caller"
	cfgLoggerNoDisclaimer       = "logger.no_disclaimer"
	cfgLoggerSamplingInitial    = "logger.sampling.initial"
	cfgLoggerSamplingThereafter = "logger.sampling.thereafter"
	cfgLoggerOutputPaths        = "logger.output_paths"

	// Web server.
	cfgWebReadBufferSize  = "web.read_buffer_size"
	cfgWebWriteBufferSize = "web.write_buffer_size"
	cfgWebReadTimeout     = "web.read_timeout"
	cfgWebWriteTimeout    = "web.write_timeout"
	cfgWebShutdownTimeout = "web.shutdown_timeout"
	cfgWebTrustedProxies  = "web.trusted_proxies"

	// Rate limiting.
	cfgRateLimitWindow = "ratelimit.window"
	cfgRateLimitMax    = "ratelimit.max"
	cfgRateLimitSweep  = "ratelimit.sweep_interval"

	// Upload policy.
	cfgFilenameLength = "upload.filename_length"
	cfgExtBlacklist   = "upload.ext_blacklist"
	cfgTempDir        = "upload.tmp_dir"
	cfgRedirectURL    = "upload.redirect_url"
	cfgMaxBodySize    = "upload.max_body_size"

	// Index form.
	cfgIndexFormEnabled         = "index_form.enabled"
	cfgIndexFormDisabledMessage = "index_form.disabled_message"

	// Object store.
	cfgS3Bucket          = "s3.bucket"
	cfgS3Prefix          = "s3.prefix"
	cfgS3Endpoint        = "s3.endpoint"
	cfgS3Region          = "s3.region"
	cfgS3AccessKeyID     = "s3.access_key_id"
	cfgS3SecretAccessKey = "s3.secret_access_key"
	cfgS3ACL             = "s3.acl"
	cfgS3PathStyle       = "s3.path_style"
	cfgS3MaxAttempts     = "s3.max_attempts"
	cfgS3MaxBackoff      = "s3.max_backoff"
	cfgS3UploadTimeout   = "s3.upload_timeout"
	cfgS3ListTimeout     = "s3.list_timeout"

	cfgBootstrapMaxInterval = "bootstrap.max_interval"

	// Credential store.
	cfgDBDriver = "db.driver"
	cfgDBDSN    = "db.dsn"
)

func (empty) Read([]byte) (int, error) { return 0, io.EOF }

func settings() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvPrefix(Prefix)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// flags setup:
	flags := pflag.NewFlagSet("commandline", pflag.ExitOnError)
	flags.SortFlags = false

	flags.Bool(cfgPprof, false, "enable pprof")
	flags.Bool(cfgMetrics, false, "enable prometheus")

	help := flags.BoolP("help", "h", false, "show help")
	version := flags.BoolP("version", "v", false, "show version")
	config := flags.StringP(cfgConfigFile, "c", "", "path to YAML config file")

	flags.String(cfgListenAddress, "0.0.0.0:8080", "HTTP gateway listen address")
	flags.String("bucket", "", "S3 bucket uploads are relayed to")
	flags.String("endpoint", "", "S3 endpoint, empty for AWS")
	flags.String("db", "./db/database.db", "credential store DSN")

	// set prefers:
	v.Set(cfgApplicationName, "nodeupload-gw")
	v.Set(cfgApplicationVersion, Version)

	setDefaults(v)

	if err := v.BindPFlags(flags); err != nil {
		panic(err)
	}

	for key, flag := range map[string]string{
		cfgS3Bucket:   "bucket",
		cfgS3Endpoint: "endpoint",
		cfgDBDSN:      "db",
	} {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			panic(err)
		}
	}

	if err := flags.Parse(os.Args); err != nil {
		panic(err)
	}

	switch {
	case help != nil && *help:
		fmt.Printf("NodeUpload gateway %s\n", Version)
		flags.PrintDefaults()
		os.Exit(0)
	case version != nil && *version:
		fmt.Printf("NodeUpload gateway %s\n", Version)
		os.Exit(0)
	}

	if config != nil && *config != "" {
		v.SetConfigFile(*config)
		if err := v.ReadInConfig(); err != nil {
			panic(err)
		}
	} else if err := v.ReadConfig(devNull); err != nil {
		panic(err)
	}

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(cfgListenAddress, "0.0.0.0:8080")

	// logger:
	v.SetDefault(cfgLoggerLevel, "info")
	v.SetDefault(cfgLoggerFormat, "console")
	v.SetDefault(cfgLoggerTraceLevel, "fatal")
	v.SetDefault(cfgLoggerNoCaller, false)
	v.SetDefault(cfgLoggerNoDisclaimer, true)
	v.SetDefault(cfgLoggerSamplingInitial, 1000)
	v.SetDefault(cfgLoggerSamplingThereafter, 1000)
	v.SetDefault(cfgLoggerOutputPaths, []string{"stdout"})

	// web-server:
	v.SetDefault(cfgWebReadBufferSize, 4096)
	v.SetDefault(cfgWebWriteBufferSize, 4096)
	v.SetDefault(cfgWebReadTimeout, time.Minute)
	v.SetDefault(cfgWebWriteTimeout, 10*time.Minute)
	v.SetDefault(cfgWebShutdownTimeout, defaultShutdownTimeout)
	v.SetDefault(cfgWebTrustedProxies, []string{"127.0.0.1"})

	// rate limit:
	v.SetDefault(cfgRateLimitWindow, defaultRateLimitWindow)
	v.SetDefault(cfgRateLimitMax, defaultRateLimitMax)
	v.SetDefault(cfgRateLimitSweep, defaultRateLimitSweep)

	// upload:
	v.SetDefault(cfgFilenameLength, defaultFilenameLength)
	v.SetDefault(cfgExtBlacklist, []string{".exe", ".bat", ".cmd", ".sh", ".php", ".js"})
	v.SetDefault(cfgTempDir, filepath.Join(os.TempDir(), "nodeupload_tmp"))
	v.SetDefault(cfgMaxBodySize, defaultMaxBodySize)

	// index form:
	v.SetDefault(cfgIndexFormEnabled, true)
	v.SetDefault(cfgIndexFormDisabledMessage, "Upload form disabled")

	// object store:
	v.SetDefault(cfgS3Region, "us-east-1")
	v.SetDefault(cfgS3ACL, "public-read")
	v.SetDefault(cfgS3MaxAttempts, defaultS3MaxAttempts)
	v.SetDefault(cfgS3MaxBackoff, defaultS3MaxBackoff)
	v.SetDefault(cfgS3UploadTimeout, defaultS3UploadTimeout)
	v.SetDefault(cfgS3ListTimeout, defaultS3ListTimeout)
	v.SetDefault(cfgBootstrapMaxInterval, defaultBootstrapInterval)

	// credential store:
	v.SetDefault(cfgDBDriver, "sqlite3")
	v.SetDefault(cfgDBDSN, "./db/database.db")
}
