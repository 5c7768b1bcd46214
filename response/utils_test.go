package response

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
)

func TestJSON(t *testing.T) {
	c := new(fasthttp.RequestCtx)
	c.Response.SetBodyString("stale")

	Fail(c, fasthttp.StatusTooManyRequests, "slow down")

	require.Equal(t, fasthttp.StatusTooManyRequests, c.Response.StatusCode())
	require.Equal(t, jsonHeader, string(c.Response.Header.ContentType()))

	var res Result
	require.NoError(t, json.Unmarshal(c.Response.Body(), &res))
	require.Equal(t, Result{Success: false, Message: "slow down"}, res)
}
