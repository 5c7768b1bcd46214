package uploader

import (
	"fmt"
	"mime/multipart"
	"os"
	"sync"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// FileField is the multipart form field carrying the uploaded file.
const FileField = "upload"

// job tracks one received file from the temporary copy to the remote write.
type job struct {
	path     string
	filename string
	size     int64

	once sync.Once
}

// receiveFile copies the uploaded part into a new temporary file in dir. It
// returns nil when the form carries no file.
func receiveFile(l *zap.Logger, form *multipart.Form, dir string) (*job, error) {
	if form == nil {
		return nil, nil
	}

	files := form.File[FileField]
	if len(files) == 0 {
		return nil, nil
	} else if ln := len(files); ln > 1 {
		l.Debug("received more than one file, using the first one", zap.Int("count", ln))
	}

	tmp, err := os.CreateTemp(dir, "upload-*")
	if err != nil {
		return nil, err
	}

	j := &job{
		path:     tmp.Name(),
		filename: files[0].Filename,
		size:     files[0].Size,
	}

	if err = tmp.Close(); err == nil {
		err = fasthttp.SaveMultipartFile(files[0], j.path)
	}

	if err != nil {
		_ = os.Remove(j.path)
		return nil, err
	}

	return j, nil
}

// cleanup removes the temporary file, only the first call does the work.
func (j *job) cleanup() (err error) {
	if j == nil {
		return nil
	}

	j.once.Do(func() {
		if rmErr := os.Remove(j.path); rmErr != nil && !os.IsNotExist(rmErr) {
			err = fmt.Errorf("%w: %w", ErrCleanupFailed, rmErr)
		}
	})

	return err
}
