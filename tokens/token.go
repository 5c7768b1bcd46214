package tokens

import (
	"bytes"
	"mime/multipart"
	"strings"

	"github.com/valyala/fasthttp"
)

const (
	// TokenField is the multipart form field and request header carrying the
	// client token.
	TokenField = "token"

	bearerTokenHdr = "Bearer"
	separator      = "."
)

type fromHandler = func(c *fasthttp.RequestCtx, form *multipart.Form) []byte

// TokenFromForm extracts the token from the multipart form field.
func TokenFromForm(_ *fasthttp.RequestCtx, form *multipart.Form) []byte {
	if form == nil {
		return nil
	}

	if vals := form.Value[TokenField]; len(vals) > 0 && vals[0] != "" {
		return []byte(vals[0])
	}

	return nil
}

// TokenFromHeader extracts the token from the token request header.
func TokenFromHeader(c *fasthttp.RequestCtx, _ *multipart.Form) []byte {
	if tkn := c.Request.Header.Peek(TokenField); len(tkn) != 0 {
		return tkn
	}

	return nil
}

// TokenFromAuthorization extracts a bearer token from Authorization request
// header.
func TokenFromAuthorization(c *fasthttp.RequestCtx, _ *multipart.Form) []byte {
	auth := c.Request.Header.Peek(fasthttp.HeaderAuthorization)
	if auth == nil || !bytes.HasPrefix(auth, []byte(bearerTokenHdr)) {
		return nil
	}
	if auth = bytes.TrimPrefix(auth, []byte(bearerTokenHdr+" ")); len(auth) == 0 {
		return nil
	}
	return auth
}

// FromRequest returns the client token, looking at the form field first and
// the request headers after it. Empty string means no token was sent.
func FromRequest(c *fasthttp.RequestCtx, form *multipart.Form) string {
	for _, fetch := range []fromHandler{TokenFromForm, TokenFromHeader, TokenFromAuthorization} {
		if buf := fetch(c, form); buf != nil {
			return string(buf)
		}
	}

	return ""
}

// Parse splits a composite "id.secret" token.
func Parse(token string) (id, secret string, err error) {
	if token == "" || strings.Count(token, separator) != 1 {
		return "", "", ErrMalformedCredential
	}

	id, secret, _ = strings.Cut(token, separator)
	if id == "" || secret == "" {
		return "", "", ErrMalformedCredential
	}

	return id, secret, nil
}
