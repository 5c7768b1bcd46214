package storage

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/nodeupload/nodeupload-gw/logger"
	"go.uber.org/zap"
)

type (
	// Config describes the bucket uploads are relayed to.
	Config struct {
		Bucket          string
		Prefix          string
		Endpoint        string
		Region          string
		AccessKeyID     string
		SecretAccessKey string
		ACL             string
		PathStyle       bool

		MaxAttempts   int
		MaxBackoff    time.Duration
		UploadTimeout time.Duration
		ListTimeout   time.Duration
	}

	// Object is a local file to be stored under Name.
	Object struct {
		Name        string
		Path        string
		ContentType string
		Metadata    map[string]string
	}

	// Client relays files to an S3 compatible bucket. Transient errors are
	// retried by the SDK retryer up to Config.MaxAttempts.
	Client struct {
		log *zap.Logger
		cfg Config
		s3  *s3.Client
	}
)

// New creates an S3 client. Static credentials are used when configured,
// the default AWS credential chain otherwise.
func New(ctx context.Context, log *zap.Logger, cfg Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket is not set")
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithLogger(logger.AWS(log)),
		config.WithClientLogMode(aws.LogRetries),
	}

	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("could not load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
		o.Retryer = retry.NewStandard(func(so *retry.StandardOptions) {
			if cfg.MaxAttempts > 0 {
				so.MaxAttempts = cfg.MaxAttempts
			}
			if cfg.MaxBackoff > 0 {
				so.MaxBackoff = cfg.MaxBackoff
			}
		})
	})

	return &Client{log: log, cfg: cfg, s3: client}, nil
}

// Key returns the bucket key of the object name.
func (c *Client) Key(name string) string { return c.cfg.Prefix + name }

// ListKeys walks the whole bucket listing under the configured prefix and
// calls fn with each object name relative to the prefix.
func (c *Client) ListKeys(ctx context.Context, fn func(name string)) error {
	if c.cfg.ListTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.ListTimeout)
		defer cancel()
	}

	input := &s3.ListObjectsV2Input{Bucket: aws.String(c.cfg.Bucket)}
	if c.cfg.Prefix != "" {
		input.Prefix = aws.String(c.cfg.Prefix)
	}

	var pages int
	paginator := s3.NewListObjectsV2Paginator(c.s3, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("list bucket %q: %w", c.cfg.Bucket, err)
		}
		pages++

		for _, obj := range page.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), c.cfg.Prefix)
			if name == "" {
				continue
			}
			fn(name)
		}
	}

	c.log.Debug("bucket listed",
		zap.String("bucket", c.cfg.Bucket),
		zap.Int("pages", pages))

	return nil
}

// Upload stores the local file under its name. It returns once the write is
// acknowledged or retries are exhausted.
func (c *Client) Upload(ctx context.Context, obj Object) error {
	file, err := os.Open(obj.Path)
	if err != nil {
		return fmt.Errorf("open %s: %w", obj.Path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat %s: %w", obj.Path, err)
	}

	if c.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.UploadTimeout)
		defer cancel()
	}

	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.cfg.Bucket),
		Key:           aws.String(c.Key(obj.Name)),
		Body:          file,
		ContentLength: aws.Int64(info.Size()),
		Metadata:      obj.Metadata,
	}
	if obj.ContentType != "" {
		input.ContentType = aws.String(obj.ContentType)
	}
	if c.cfg.ACL != "" {
		input.ACL = types.ObjectCannedACL(c.cfg.ACL)
	}

	if _, err = c.s3.PutObject(ctx, input); err != nil {
		return fmt.Errorf("put object %q: %w", c.Key(obj.Name), err)
	}

	return nil
}
