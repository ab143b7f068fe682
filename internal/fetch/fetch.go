package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"
)

var clientPool = sync.Pool{
	New: func() any {
		return &Client{Client: &http.Client{}}
	},
}

// Client is a http client that downloads release artifacts.
type Client struct {
	*http.Client
	userAgent string
}

// NewClient returns a pooled client, call recycle when done.
func NewClient(userAgent string, timeout time.Duration) (client *Client, recycle func()) {
	client = clientPool.Get().(*Client)
	client.userAgent = userAgent
	client.Timeout = timeout
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		// github release assets are served behind a couple of redirects
		if len(via) >= 5 {
			return errors.New("stopped after 5 redirects")
		}
		return nil
	}
	return client, func() { clientPool.Put(client) }
}

// Get sends a GET request, non-2xx responses are returned as errors.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	res, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		res.Body.Close()
		return nil, fmt.Errorf("fetch %s: %s", url, res.Status)
	}
	return res, nil
}

// Download saves the response body of the url into a temporary file matching
// the pattern, the caller should remove the file.
func (c *Client) Download(ctx context.Context, url string, pattern string) (filename string, err error) {
	res, err := c.Get(ctx, url)
	if err != nil {
		return
	}
	defer res.Body.Close()

	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return
	}
	_, err = io.Copy(f, res.Body)
	f.Close()
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
