package whttp

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
)

const userAgent = "quartermaster/1.0 (+https://github.com/regiment-logi/quartermaster)"

type WHTTPHeader struct {
	Name  string
	Value string
}

type WHTTPReq struct {
	URL     string
	Method  string
	Body    string
	Headers []WHTTPHeader
}

type WHTTPRes struct {
	StatusCode     int
	ResponseLength int
	BodyString     string
}

var (
	mu            sync.Mutex
	defaultClient = NewClient("", 10*time.Second)
)

// NewClient returns a retrying client. An empty proxy means a direct connection.
func NewClient(proxy string, timeout time.Duration) *retryablehttp.Client {
	c := retryablehttp.NewClient()
	c.Logger = log.New(io.Discard, "", 0)
	c.RetryMax = 3
	c.RetryWaitMin = 200 * time.Millisecond
	c.RetryWaitMax = 2 * time.Second
	if timeout > 0 {
		c.HTTPClient.Timeout = timeout
	}
	if proxy != "" {
		if proxyURL, err := url.Parse(proxy); err == nil {
			c.HTTPClient.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
		}
	}
	return c
}

// SetupProxy routes requests made with the default client through proxy.
func SetupProxy(proxy string) error {
	if _, err := url.Parse(proxy); err != nil {
		return fmt.Errorf("invalid proxy URL: %v", err)
	}
	c := NewClient(proxy, defaultTimeout())
	mu.Lock()
	defaultClient = c
	mu.Unlock()
	return nil
}

func defaultTimeout() time.Duration {
	mu.Lock()
	defer mu.Unlock()
	return defaultClient.HTTPClient.Timeout
}

// DefaultClient returns the client used when SendHTTPRequest gets a nil one.
func DefaultClient() *retryablehttp.Client {
	mu.Lock()
	defer mu.Unlock()
	return defaultClient
}

// SendHTTPRequest performs wReq with client, or with the default client when
// client is nil. Non-2xx answers are returned, not turned into errors.
func SendHTTPRequest(ctx context.Context, wReq *WHTTPReq, client *retryablehttp.Client) (*WHTTPRes, error) {
	if client == nil {
		client = DefaultClient()
	}
	method := wReq.Method
	if method == "" {
		method = http.MethodGet
	}

	var body interface{}
	if wReq.Body != "" {
		body = strings.NewReader(wReq.Body)
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, method, wReq.URL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	for _, h := range wReq.Headers {
		req.Header.Set(h.Name, h.Value)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return &WHTTPRes{
		StatusCode:     resp.StatusCode,
		ResponseLength: len(bodyBytes),
		BodyString:     string(bodyBytes),
	}, nil
}
