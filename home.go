package main

import (
	"github.com/nodeupload/nodeupload-gw/response"
	"github.com/nodeupload/nodeupload-gw/tokens"
	"github.com/nodeupload/nodeupload-gw/uploader"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

const msgHomeUnavailable = "System unavailable, please try again later. If this issue does not resolve itself in a few minutes, please contact your system administrator."

var uploadForm = `<form action="/upload" enctype="multipart/form-data" method="post">` +
	`Token: <input type="text" name="` + tokens.TokenField + `"><br>` +
	`<input type="file" name="` + uploader.FileField + `"><br>` +
	`<input type="submit" value="Upload">` +
	`</form>`

func (a *app) home(c *fasthttp.RequestCtx) {
	if !a.IsReady() {
		response.Fail(c, fasthttp.StatusOK, msgHomeUnavailable)
		return
	}

	log := a.log.With(zap.Stringer("remote", c.RemoteAddr()))

	if !a.indexForm {
		log.Debug("index form requested while disabled")
		c.SetContentType(defaultContentType)
		c.SetBodyString(a.disabledMessage)
		return
	}

	log.Debug("index form requested")
	c.SetContentType("text/html; charset=utf-8")
	c.SetBodyString(uploadForm)
}
