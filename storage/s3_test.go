package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const listPage = `<?xml version="1.0" encoding="UTF-8"?>
<ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/">
<Name>files</Name><Prefix>%s</Prefix><KeyCount>%d</KeyCount><MaxKeys>1000</MaxKeys>
<IsTruncated>%t</IsTruncated>%s%s
</ListBucketResult>`

const internalError = `<?xml version="1.0" encoding="UTF-8"?>
<Error><Code>InternalError</Code><Message>try again</Message></Error>`

type fakeS3 struct {
	sync.Mutex

	// pages of keys returned by consecutive list calls
	pages [][]string
	// put requests failing before the first success
	putFailures int

	puts    int
	headers http.Header
	path    string
	body    string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.Lock()
	defer f.Unlock()

	switch r.Method {
	case http.MethodGet:
		page := 0
		if tkn := r.URL.Query().Get("continuation-token"); tkn != "" {
			_, _ = fmt.Sscanf(tkn, "page-%d", &page)
		}

		var contents strings.Builder
		for _, key := range f.pages[page] {
			contents.WriteString("<Contents><Key>" + key + "</Key><Size>1</Size></Contents>")
		}

		next := ""
		truncated := page+1 < len(f.pages)
		if truncated {
			next = fmt.Sprintf("<NextContinuationToken>page-%d</NextContinuationToken>", page+1)
		}

		w.Header().Set("Content-Type", "application/xml")
		_, _ = fmt.Fprintf(w, listPage, r.URL.Query().Get("prefix"), len(f.pages[page]), truncated, next, contents.String())

	case http.MethodPut:
		f.puts++
		body, _ := io.ReadAll(r.Body)

		if f.puts <= f.putFailures {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, internalError)
			return
		}

		f.headers = r.Header.Clone()
		f.path = r.URL.Path
		f.body = string(body)
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)

	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newTestClient(t *testing.T, srv *httptest.Server, prefix string, attempts int) *Client {
	c, err := New(context.Background(), zap.NewNop(), Config{
		Bucket:          "files",
		Prefix:          prefix,
		Endpoint:        srv.URL,
		Region:          "us-east-1",
		AccessKeyID:     "access",
		SecretAccessKey: "secret",
		ACL:             "public-read",
		PathStyle:       true,
		MaxAttempts:     attempts,
		MaxBackoff:      time.Millisecond,
		UploadTimeout:   10 * time.Second,
		ListTimeout:     10 * time.Second,
	})
	require.NoError(t, err)

	return c
}

func TestListKeys(t *testing.T) {
	fake := &fakeS3{pages: [][]string{
		{"uploads/abc123.png", "uploads/def456.txt"},
		{"uploads/", "uploads/0a0a0a.gif"},
	}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	var names []string
	c := newTestClient(t, srv, "uploads/", 1)
	require.NoError(t, c.ListKeys(context.Background(), func(name string) {
		names = append(names, name)
	}))

	require.Equal(t, []string{"abc123.png", "def456.txt", "0a0a0a.gif"}, names)
}

func writeTemp(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "upload")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv, "uploads/", 1)
	err := c.Upload(context.Background(), Object{
		Name:        "abc123.png",
		Path:        writeTemp(t, "image bytes"),
		ContentType: "image/png",
		Metadata:    map[string]string{"Author": "tester"},
	})
	require.NoError(t, err)

	require.Equal(t, 1, fake.puts)
	require.Equal(t, "/files/uploads/abc123.png", fake.path)
	require.Equal(t, "image/png", fake.headers.Get("Content-Type"))
	require.Equal(t, "public-read", fake.headers.Get("X-Amz-Acl"))
	require.Equal(t, "tester", fake.headers.Get("X-Amz-Meta-Author"))
	require.Contains(t, fake.body, "image bytes")
}

func TestUploadRetries(t *testing.T) {
	fake := &fakeS3{putFailures: 2}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv, "", 3)
	require.NoError(t, c.Upload(context.Background(), Object{Name: "a.txt", Path: writeTemp(t, "data")}))
	require.Equal(t, 3, fake.puts)
}

func TestUploadFailure(t *testing.T) {
	fake := &fakeS3{putFailures: 10}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	c := newTestClient(t, srv, "", 2)
	err := c.Upload(context.Background(), Object{Name: "a.txt", Path: writeTemp(t, "data")})
	require.Error(t, err)
	require.Equal(t, 2, fake.puts)

	err = c.Upload(context.Background(), Object{Name: "b.txt", Path: filepath.Join(t.TempDir(), "missing")})
	require.Error(t, err)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), zap.NewNop(), Config{Region: "us-east-1"})
	require.Error(t, err)
}
