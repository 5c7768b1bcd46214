//go:build integration

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	tokenstore "github.com/nodeupload/nodeupload-gw/credentials"
	"github.com/nodeupload/nodeupload-gw/response"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

const (
	testBucket    = "uploads"
	testAccessKey = "minioadmin"
	testSecretKey = "minioadmin"
	testAddress   = "127.0.0.1:8083"
	testToken     = "integration.secret"
)

func TestIntegration(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	minio, endpoint := createDockerContainer(ctx, t, "minio/minio:latest")
	defer func() { require.NoError(t, minio.Terminate(context.Background())) }()

	client := s3Client(endpoint)
	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(testBucket)})
	require.NoError(t, err)

	// already stored objects must be seen by the name allocator
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(testBucket),
		Key:    aws.String("files/existing.txt"),
		Body:   bytes.NewReader([]byte("old")),
	})
	require.NoError(t, err)

	dsn := prepareStore(ctx, t)

	stop := runServer(getDefaultConfig(t, endpoint, dsn))
	defer stop()

	waitReady(t)

	t.Run("simple put", func(t *testing.T) { simplePut(ctx, t, client) })
	t.Run("invalid token", func(t *testing.T) { invalidToken(t) })
	t.Run("blocked extension", func(t *testing.T) { blockedExtension(t) })
}

func runServer(v *viper.Viper) context.CancelFunc {
	cancelCtx, cancel := context.WithCancel(context.Background())

	l := newLogger(v)
	application := newApp(cancelCtx, WithConfig(v), WithLogger(l))
	go application.Worker(cancelCtx)
	go application.Serve(cancelCtx)

	return cancel
}

func simplePut(ctx context.Context, t *testing.T, client *s3.Client) {
	content := "content of file"

	resp := postFile(t, testToken, "newFile.txt", content, map[string]string{"X-Attribute-Owner": "tester"})
	require.True(t, resp.Success, resp.Message)
	require.Len(t, resp.Message, 10+len(".txt"))
	require.Equal(t, ".txt", filepath.Ext(resp.Message))

	obj, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(testBucket),
		Key:    aws.String("files/" + resp.Message),
	})
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	require.Equal(t, content, string(data))
	require.Equal(t, "text/plain; charset=utf-8", aws.ToString(obj.ContentType))
	require.Equal(t, "tester", obj.Metadata["owner"])
}

func invalidToken(t *testing.T) {
	resp := postFile(t, "integration.wrong", "file.txt", "data", nil)
	require.False(t, resp.Success)
	require.Equal(t, "Invalid token.", resp.Message)
}

func blockedExtension(t *testing.T) {
	resp := postFile(t, testToken, "script.sh", "echo", nil)
	require.False(t, resp.Success)
	require.Equal(t, "This file type is not allowed.", resp.Message)
}

func postFile(t *testing.T, token, filename, content string, headers map[string]string) response.Result {
	var buff bytes.Buffer
	w := multipart.NewWriter(&buff)
	require.NoError(t, w.WriteField("token", token))
	fw, err := w.CreateFormFile("upload", filename)
	require.NoError(t, err)
	_, err = io.Copy(fw, bytes.NewBufferString(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	request, err := http.NewRequest(http.MethodPost, "http://"+testAddress+"/upload", &buff)
	require.NoError(t, err)
	request.Header.Set("Content-Type", w.FormDataContentType())
	for k, v := range headers {
		request.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(request)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result response.Result
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))

	return result
}

func waitReady(t *testing.T) {
	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + testAddress + "/-/ready/")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 30*time.Second, 100*time.Millisecond)
}

func createDockerContainer(ctx context.Context, t *testing.T, image string) (testcontainers.Container, string) {
	req := testcontainers.ContainerRequest{
		Image:        image,
		Cmd:          []string{"server", "/data"},
		ExposedPorts: []string{"9000/tcp"},
		Env: map[string]string{
			"MINIO_ROOT_USER":     testAccessKey,
			"MINIO_ROOT_PASSWORD": testSecretKey,
		},
		WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(30 * time.Second),
	}
	minioC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := minioC.Host(ctx)
	require.NoError(t, err)
	port, err := minioC.MappedPort(ctx, "9000")
	require.NoError(t, err)

	return minioC, fmt.Sprintf("http://%s:%s", host, port.Port())
}

func s3Client(endpoint string) *s3.Client {
	return s3.New(s3.Options{
		Region:       "us-east-1",
		BaseEndpoint: aws.String(endpoint),
		UsePathStyle: true,
		Credentials:  credentials.NewStaticCredentialsProvider(testAccessKey, testSecretKey, ""),
	})
}

func prepareStore(ctx context.Context, t *testing.T) string {
	dsn := filepath.Join(t.TempDir(), "tokens.db")

	store, err := tokenstore.Open(tokenstore.DriverSQLite, dsn)
	require.NoError(t, err)
	defer store.Close()

	require.NoError(t, store.Migrate(ctx))

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	require.NoError(t, err)

	require.NoError(t, store.Create(ctx, &tokenstore.Token{
		ID:         "integration",
		Email:      "it@example.com",
		SecretHash: string(hash),
		Enabled:    true,
	}))

	return dsn
}

func getDefaultConfig(t *testing.T, endpoint, dsn string) *viper.Viper {
	v := viper.New()
	setDefaults(v)

	v.Set(cfgApplicationName, "nodeupload-gw")
	v.Set(cfgApplicationVersion, Version)
	v.Set(cfgListenAddress, testAddress)
	v.Set(cfgTempDir, t.TempDir())

	v.Set(cfgS3Bucket, testBucket)
	v.Set(cfgS3Prefix, "files/")
	v.Set(cfgS3Endpoint, endpoint)
	v.Set(cfgS3PathStyle, true)
	v.Set(cfgS3AccessKeyID, testAccessKey)
	v.Set(cfgS3SecretAccessKey, testSecretKey)
	v.Set(cfgS3ACL, "")

	v.Set(cfgDBDriver, tokenstore.DriverSQLite)
	v.Set(cfgDBDSN, dsn)

	return v
}
