package web

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/esm-dev/esmd/internal/logx"
	"github.com/esm-dev/esmd/internal/mime"
	"github.com/esm-dev/esmd/internal/npm"
	"github.com/esm-dev/esmd/internal/prebundle"
	"github.com/esm-dev/esmd/internal/sfc"
	"github.com/esm-dev/esmd/internal/specifier"
	esbuild "github.com/evanw/esbuild/pkg/api"
	"github.com/ije/esbuild-internal/xxhash"
	"github.com/ije/gox/utils"
	"github.com/spf13/afero"
)

// StatusClientClosedRequest is returned when the client goes away before the
// response is ready.
const StatusClientClosedRequest = 499

// ErrNotFound is returned when the requested file doesn't exist.
var ErrNotFound = errors.New("not found")

// ContentKind is the kind of a dispatched response.
type ContentKind string

const (
	KindHTML     ContentKind = "html"
	KindJS       ContentKind = "js"
	KindCSS      ContentKind = "css"
	KindRaw      ContentKind = "raw"
	KindNotFound ContentKind = "notfound"
	KindError    ContentKind = "error"
)

// Response is the result of a dispatch. Either Body or File is set, the
// caller must close the File.
type Response struct {
	Kind        ContentKind
	Status      int
	ContentType string
	Body        []byte
	File        afero.File
	Size        int64
	ModTime     time.Time
	ETag        string
}

// Options configures a Dispatcher.
type Options struct {
	RootDir string
	// Fs is the file system of the root directory, default is the os file system
	Fs       afero.Fs
	Cache    *prebundle.Cache
	Splitter *sfc.Splitter
	// Target of typescript/jsx transforms, default is es2020
	Target          esbuild.Target
	JSXImportSource string
	Logger          logx.Logger
}

// Dispatcher maps request paths to module source text.
type Dispatcher struct {
	rootDir         string
	fs              afero.Fs
	cache           *prebundle.Cache
	splitter        *sfc.Splitter
	rewriter        *specifier.Rewriter
	target          esbuild.Target
	jsxImportSource string
	logger          logx.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(options Options) *Dispatcher {
	d := &Dispatcher{
		rootDir:         options.RootDir,
		fs:              options.Fs,
		cache:           options.Cache,
		splitter:        options.Splitter,
		rewriter:        &specifier.Rewriter{RootDir: options.RootDir},
		target:          options.Target,
		jsxImportSource: options.JSXImportSource,
		logger:          options.Logger,
	}
	if d.fs == nil {
		d.fs = afero.NewOsFs()
	}
	if d.splitter == nil {
		d.splitter = &sfc.Splitter{}
	}
	if d.target == 0 {
		d.target = esbuild.ES2020
	}
	if d.jsxImportSource == "" {
		d.jsxImportSource = "react"
	}
	if d.logger == nil {
		d.logger = logx.Discard
	}
	return d
}

// Dispatch serves the request path. Failures are converted into error
// responses, a module is either fully transformed or not returned at all.
func (d *Dispatcher) Dispatch(ctx context.Context, pathname string) *Response {
	pathname = utils.NormalizePathname(pathname)
	var res *Response
	var err error
	switch kind := ClassifyPath(pathname); kind {
	case RouteVirtualModule:
		res, err = d.serveBareModule(ctx, strings.TrimPrefix(pathname, specifier.ModulesPrefix))
	case RouteHTML:
		if pathname == "" || strings.HasSuffix(pathname, "/") {
			pathname += "index.html"
		}
		res, err = d.serveHTML(pathname)
	case RouteJS:
		res, err = d.serveModule(pathname)
	case RouteVueComponent:
		res, err = d.serveComponent(pathname)
	case RouteCSS, RouteRaw:
		res, err = d.serveFile(pathname, kind)
	default:
		err = fmt.Errorf("unknown route kind %v", kind)
	}
	if err != nil {
		return d.errorResponse(pathname, err)
	}
	return res
}

func (d *Dispatcher) filename(pathname string) string {
	return filepath.Join(d.rootDir, filepath.FromSlash(path.Clean("/"+pathname)))
}

func (d *Dispatcher) readFile(pathname string) (filename string, source string, err error) {
	filename = d.filename(pathname)
	fi, err := d.fs.Stat(filename)
	if err != nil {
		return
	}
	if fi.IsDir() {
		err = ErrNotFound
		return
	}
	data, err := afero.ReadFile(d.fs, filename)
	if err != nil {
		return
	}
	return filename, string(data), nil
}

func (d *Dispatcher) serveBareModule(ctx context.Context, specifierName string) (*Response, error) {
	if specifierName == "" {
		return nil, ErrNotFound
	}
	code, err := d.cache.Get(ctx, specifierName)
	if err != nil {
		return nil, err
	}
	return jsResponse(code), nil
}

func (d *Dispatcher) serveHTML(pathname string) (*Response, error) {
	filename, source, err := d.readFile(pathname)
	if err != nil {
		return nil, err
	}
	page, err := rewriteHTML(d.rewriter, filename, source)
	if err != nil {
		return nil, err
	}
	return bodyResponse(KindHTML, mime.HTML, []byte(page)), nil
}

func (d *Dispatcher) serveModule(pathname string) (*Response, error) {
	filename, source, err := d.readFile(pathname)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(path.Ext(pathname)) {
	case ".ts", ".mts":
		source, err = d.transform(filename, source, esbuild.LoaderTS)
	case ".tsx":
		source, err = d.transform(filename, source, esbuild.LoaderTSX)
	case ".jsx":
		source, err = d.transform(filename, source, esbuild.LoaderJSX)
	}
	if err != nil {
		return nil, err
	}
	code, err := d.rewriter.RewriteModule(filename, source)
	if err != nil {
		return nil, err
	}
	return jsResponse([]byte(code)), nil
}

func (d *Dispatcher) serveComponent(pathname string) (*Response, error) {
	filename, source, err := d.readFile(pathname)
	if err != nil {
		return nil, err
	}
	desc, err := d.splitter.Parse(filename, source)
	if err != nil {
		return nil, err
	}
	code, err := d.splitter.Synthesize(desc)
	if err != nil {
		return nil, err
	}
	if block := desc.ScriptBlock(); block != nil {
		switch block.Lang {
		case "ts":
			code, err = d.transform(filename, code, esbuild.LoaderTS)
		case "tsx":
			code, err = d.transform(filename, code, esbuild.LoaderTSX)
		case "jsx":
			code, err = d.transform(filename, code, esbuild.LoaderJSX)
		}
		if err != nil {
			return nil, err
		}
	}
	code, err = d.rewriter.RewriteModule(filename, code)
	if err != nil {
		return nil, err
	}
	return jsResponse([]byte(code)), nil
}

func (d *Dispatcher) serveFile(pathname string, kind RouteKind) (*Response, error) {
	filename := d.filename(pathname)
	fi, err := d.fs.Stat(filename)
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return d.serveHTML(strings.TrimSuffix(pathname, "/") + "/index.html")
	}
	file, err := d.fs.Open(filename)
	if err != nil {
		return nil, err
	}
	res := &Response{
		Kind:        KindRaw,
		Status:      http.StatusOK,
		ContentType: mime.GetContentType(filename),
		File:        file,
		Size:        fi.Size(),
		ModTime:     fi.ModTime(),
		ETag:        fmt.Sprintf(`W/"%x-%x"`, fi.ModTime().UnixMilli(), fi.Size()),
	}
	if kind == RouteCSS {
		res.Kind = KindCSS
		res.ContentType = mime.CSS
	}
	if res.ContentType == "" {
		res.ContentType = mime.Binary
	}
	return res, nil
}

// transform strips types and compiles jsx with esbuild.
func (d *Dispatcher) transform(filename string, source string, loader esbuild.Loader) (string, error) {
	ret := esbuild.Transform(source, esbuild.TransformOptions{
		Loader:          loader,
		Sourcefile:      filename,
		Target:          d.target,
		Charset:         esbuild.CharsetUTF8,
		JSX:             esbuild.JSXAutomatic,
		JSXImportSource: d.jsxImportSource,
		LogLevel:        esbuild.LogLevelSilent,
	})
	if len(ret.Errors) > 0 {
		msg := ret.Errors[0]
		message := msg.Text
		if msg.Location != nil {
			message = fmt.Sprintf("%d:%d: %s", msg.Location.Line, msg.Location.Column, msg.Text)
		}
		return "", &specifier.SyntaxError{Filename: filename, Message: message}
	}
	return string(ret.Code), nil
}

func (d *Dispatcher) errorResponse(pathname string, err error) *Response {
	var notFound *npm.ModuleNotFoundError
	var prebundleErr *prebundle.Error
	var parseErr *sfc.ParseError
	var syntaxErr *specifier.SyntaxError
	switch {
	case errors.As(err, &notFound):
		d.logger.Warnf("module '%s' not found: %v", notFound.Specifier, notFound.Err)
		return errResponse(KindNotFound, http.StatusNotFound, err.Error())
	case errors.Is(err, ErrNotFound), errors.Is(err, fs.ErrNotExist), os.IsNotExist(err):
		return errResponse(KindNotFound, http.StatusNotFound, "Not Found: "+pathname)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.logger.Debugf("%s: %v", pathname, err)
		return errResponse(KindError, StatusClientClosedRequest, "Client Closed Request")
	case errors.As(err, &prebundleErr):
		return errResponse(KindError, http.StatusInternalServerError, err.Error())
	case errors.As(err, &parseErr), errors.As(err, &syntaxErr):
		d.logger.Errorf("%v", err)
		return errResponse(KindError, http.StatusInternalServerError, err.Error())
	default:
		d.logger.Errorf("%s: %v", pathname, err)
		return errResponse(KindError, http.StatusInternalServerError, "Internal Server Error")
	}
}

func errResponse(kind ContentKind, status int, message string) *Response {
	return &Response{
		Kind:        kind,
		Status:      status,
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(message),
		Size:        int64(len(message)),
	}
}

func jsResponse(code []byte) *Response {
	return bodyResponse(KindJS, mime.JavaScript, code)
}

func bodyResponse(kind ContentKind, contentType string, body []byte) *Response {
	xx := xxhash.New()
	xx.Write(body)
	return &Response{
		Kind:        kind,
		Status:      http.StatusOK,
		ContentType: contentType,
		Body:        body,
		Size:        int64(len(body)),
		ETag:        fmt.Sprintf(`W/"%x-%x"`, xx.Sum64(), len(body)),
	}
}
