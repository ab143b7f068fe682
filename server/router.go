package server

import (
	"bytes"
	"net/http"
	"strings"
	"time"

	"github.com/esm-dev/esmd/web"
	"github.com/ije/gox/set"
	"github.com/ije/rex"
)

const (
	ccMustRevalidate = "max-age=0, must-revalidate"
	ctText           = "text/plain; charset=utf-8"
)

func router(dispatcher *web.Dispatcher) rex.Handle {
	return func(ctx *rex.Context) any {
		pathname := ctx.R.URL.Path

		// ban hidden files and some common probes
		if strings.Contains(pathname, "/.") || strings.HasSuffix(pathname, ".php") {
			return rex.Status(404, "not found")
		}

		switch ctx.R.Method {
		case "HEAD", "GET":
			// continue
		default:
			return rex.Status(http.StatusMethodNotAllowed, "Method Not Allowed")
		}

		res := dispatcher.Dispatch(ctx.R.Context(), pathname)
		if res.Status != http.StatusOK {
			if res.Status == web.StatusClientClosedRequest {
				// nobody is listening
				return rex.NoContent()
			}
			ctx.SetHeader("Content-Type", ctText)
			ctx.SetHeader("Cache-Control", "no-cache")
			return rex.Status(res.Status, string(res.Body))
		}

		if setResponseHeaders(ctx.W.Header(), res, ctx.R.Header.Get("If-None-Match")) {
			if res.File != nil {
				res.File.Close()
			}
			return rex.Status(http.StatusNotModified, nil)
		}
		if res.File != nil {
			return rex.Content(res.File.Name(), res.ModTime, res.File) // auto closed
		}
		if ctx.R.Method == http.MethodHead {
			return []byte{}
		}
		// transformed content has no stable mtime, freshness is checked by the etag
		return rex.Content(pathname, time.Time{}, bytes.NewReader(res.Body))
	}
}

// setResponseHeaders sets the headers of a successful dispatch, it returns
// true if the client copy is still fresh.
func setResponseHeaders(h http.Header, res *web.Response, ifNoneMatch string) (notModified bool) {
	if res.ETag != "" {
		h.Set("Etag", res.ETag)
		if ifNoneMatch != "" && matchETag(ifNoneMatch, res.ETag) {
			return true
		}
	}
	h.Set("Content-Type", res.ContentType)
	h.Set("Cache-Control", ccMustRevalidate)
	return false
}

func matchETag(ifNoneMatch string, etag string) bool {
	if ifNoneMatch == "*" {
		return true
	}
	tags := set.New[string]()
	for _, tag := range strings.Split(ifNoneMatch, ",") {
		tags.Add(strings.TrimPrefix(strings.TrimSpace(tag), "W/"))
	}
	return tags.Has(strings.TrimPrefix(etag, "W/"))
}

func cors(allowOrigins []string) rex.Handle {
	allowList := set.NewReadOnly(allowOrigins...)
	return func(ctx *rex.Context) any {
		origin := ctx.R.Header.Get("Origin")
		isOptionsMethod := ctx.R.Method == "OPTIONS"
		h := ctx.W.Header()
		if allowList.Len() > 0 {
			if origin != "" {
				if !allowList.Has(origin) {
					return rex.Status(403, "forbidden")
				}
				setCorsHeaders(h, isOptionsMethod, origin)
			} else if isOptionsMethod {
				// not a preflight request
				return rex.Status(405, "method not allowed")
			}
			appendVaryHeader(h, "Origin")
		} else {
			setCorsHeaders(h, isOptionsMethod, "*")
		}
		if isOptionsMethod {
			return rex.NoContent()
		}
		return ctx.Next()
	}
}

func setCorsHeaders(h http.Header, isOptionsMethod bool, origin string) {
	h.Set("Access-Control-Allow-Origin", origin)
	if isOptionsMethod {
		h.Set("Access-Control-Allow-Headers", "*")
		h.Set("Access-Control-Max-Age", "86400")
	}
}

func appendVaryHeader(h http.Header, key string) {
	vary := h.Get("Vary")
	if vary == "" {
		h.Set("Vary", key)
		return
	}
	for _, v := range strings.Split(vary, ",") {
		if strings.EqualFold(strings.TrimSpace(v), key) {
			return
		}
	}
	h.Set("Vary", vary+", "+key)
}
