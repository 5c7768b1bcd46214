package response

import (
	"encoding/json"

	"github.com/valyala/fasthttp"
)

const jsonHeader = "application/json; charset=UTF-8"

// Result is the JSON body of every upload response.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Error add new line to msg and invoke r.Error.
func Error(r *fasthttp.RequestCtx, msg string, code int) {
	r.Error(msg+"\n", code)
}

// JSON writes {success, message} with the status code given.
func JSON(r *fasthttp.RequestCtx, code int, success bool, msg string) {
	r.Response.SetStatusCode(code)
	r.Response.Header.SetContentType(jsonHeader)
	r.Response.ResetBody()

	enc := json.NewEncoder(r)
	enc.SetIndent("", "\t")
	// Encode into the response body never fails
	_ = enc.Encode(Result{Success: success, Message: msg})
}

// Fail writes a failed Result.
func Fail(r *fasthttp.RequestCtx, code int, msg string) { JSON(r, code, false, msg) }
