package server

import (
	"net/http"
	"testing"

	"github.com/esm-dev/esmd/web"
)

func TestMatchETag(t *testing.T) {
	etag := `W/"1a2b-20"`
	tests := []struct {
		ifNoneMatch string
		want        bool
	}{
		{`W/"1a2b-20"`, true},
		{`"1a2b-20"`, true},
		{`W/"ffff-1", W/"1a2b-20"`, true},
		{`*`, true},
		{`W/"1a2b-21"`, false},
		{`1a2b-20`, false},
	}
	for _, tt := range tests {
		if got := matchETag(tt.ifNoneMatch, etag); got != tt.want {
			t.Fatalf("matchETag(%q) = %v, want %v", tt.ifNoneMatch, got, tt.want)
		}
	}
}

func TestSetResponseHeaders(t *testing.T) {
	res := &web.Response{
		Kind:        web.KindJS,
		Status:      http.StatusOK,
		ContentType: "application/javascript; charset=utf-8",
		Body:        []byte("export default 1"),
		ETag:        `W/"abc-10"`,
	}

	h := http.Header{}
	if setResponseHeaders(h, res, "") {
		t.Fatal("response without If-None-Match should not be fresh")
	}
	if h.Get("Content-Type") != res.ContentType {
		t.Fatalf("invalid content type: %s", h.Get("Content-Type"))
	}
	if h.Get("Etag") != res.ETag {
		t.Fatalf("invalid etag: %s", h.Get("Etag"))
	}
	if h.Get("Cache-Control") != ccMustRevalidate {
		t.Fatalf("invalid cache control: %s", h.Get("Cache-Control"))
	}

	h = http.Header{}
	if !setResponseHeaders(h, res, `W/"abc-10"`) {
		t.Fatal("response should be fresh")
	}
	if h.Get("Content-Type") != "" {
		t.Fatal("not modified response should not have a content type")
	}
}

func TestAppendVaryHeader(t *testing.T) {
	h := http.Header{}
	appendVaryHeader(h, "Origin")
	if h.Get("Vary") != "Origin" {
		t.Fatalf("invalid vary: %s", h.Get("Vary"))
	}
	appendVaryHeader(h, "Accept-Encoding")
	appendVaryHeader(h, "origin")
	if h.Get("Vary") != "Origin, Accept-Encoding" {
		t.Fatalf("invalid vary: %s", h.Get("Vary"))
	}
}

func TestSetCorsHeaders(t *testing.T) {
	h := http.Header{}
	setCorsHeaders(h, false, "https://example.com")
	if h.Get("Access-Control-Allow-Origin") != "https://example.com" {
		t.Fatalf("invalid allow origin: %s", h.Get("Access-Control-Allow-Origin"))
	}
	if h.Get("Access-Control-Max-Age") != "" {
		t.Fatal("max age should only be set for preflight requests")
	}
	setCorsHeaders(h, true, "*")
	if h.Get("Access-Control-Allow-Headers") != "*" || h.Get("Access-Control-Max-Age") != "86400" {
		t.Fatalf("invalid preflight headers: %v", h)
	}
}
