package uploader

import (
	"bytes"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const userAttributeHeaderPrefix = "X-Attribute-"

// filterHeaders collects X-Attribute-* headers, they are stored as object
// metadata.
func filterHeaders(l *zap.Logger, header *fasthttp.RequestHeader) map[string]string {
	result := make(map[string]string)
	prefix := []byte(userAttributeHeaderPrefix)

	header.VisitAll(func(key, val []byte) {
		// checks that key and val not empty
		if len(key) == 0 || len(val) == 0 {
			return
		}

		// checks that key has attribute prefix
		if !bytes.HasPrefix(key, prefix) {
			return
		}

		// removing attribute prefix
		key = bytes.TrimPrefix(key, prefix)

		// checks that attribute key not empty
		if len(key) == 0 {
			return
		}

		// make string representation of key / val
		k, v := string(key), string(val)

		result[k] = v

		l.Debug("add attribute to object metadata",
			zap.String("key", k),
			zap.String("val", v))
	})

	return result
}
