// 包 fetch 封装 HTTP 客户端（代理/超时/指数退避重试），用于抓取网页与调用 API。
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/cenkalti/backoff/v5"

	"go-devfolio/internal/logx"
)

// DefaultUserAgent 为常见浏览器 UA，减少 403/反爬误判；可用 DEVFOLIO_UA 覆盖。
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// Client 为带重试的 HTTP 客户端。
type Client struct {
	http      *http.Client
	retry     int
	baseDelay time.Duration
}

// Options 为客户端构造参数。
type Options struct {
	ProxyHTTP  string
	ProxyHTTPS string
	// Timeout 为单次尝试的上限（包含读取响应头）
	Timeout time.Duration
	// Retry 为失败后的额外尝试次数，0 表示不重试
	Retry int
	// BaseDelay 为首次退避间隔，之后按 2 倍增长
	BaseDelay time.Duration
}

// New 创建客户端，支持 http/https 代理与基础超时配置。
func New(opts Options) (*Client, error) {
	var proxyHTTP, proxyHTTPS *url.URL
	var err error
	if opts.ProxyHTTP != "" {
		if proxyHTTP, err = url.Parse(opts.ProxyHTTP); err != nil {
			return nil, fmt.Errorf("parse http proxy: %w", err)
		}
	}
	if opts.ProxyHTTPS != "" {
		if proxyHTTPS, err = url.Parse(opts.ProxyHTTPS); err != nil {
			return nil, fmt.Errorf("parse https proxy: %w", err)
		}
	}
	transport := &http.Transport{
		Proxy: func(req *http.Request) (*url.URL, error) {
			if req.URL.Scheme == "https" && proxyHTTPS != nil {
				return proxyHTTPS, nil
			}
			if req.URL.Scheme == "http" && proxyHTTP != nil {
				return proxyHTTP, nil
			}
			return http.ProxyFromEnvironment(req)
		},
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.Retry < 0 {
		opts.Retry = 0
	}
	return &Client{
		http:      &http.Client{Transport: transport, Timeout: opts.Timeout},
		retry:     opts.Retry,
		baseDelay: opts.BaseDelay,
	}, nil
}

// HTTPClient 返回底层 *http.Client（共享代理与超时设置），供 SDK 复用。
func (c *Client) HTTPClient() *http.Client { return c.http }

// Get 发起 GET 请求；非 2xx 或网络错误按指数退避重试，4xx（除 429）不重试。
// 调用方负责关闭返回的 Body。
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	op := func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(fmt.Errorf("new request: %w", err))
		}
		ua := os.Getenv("DEVFOLIO_UA")
		if ua == "" {
			ua = DefaultUserAgent
		}
		req.Header.Set("User-Agent", ua)
		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(err)
			}
			return nil, err
		}
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, nil
		}
		resp.Body.Close()
		statusErr := &StatusError{Code: resp.StatusCode, Status: resp.Status, URL: rawURL}
		if !Retryable(resp.StatusCode) {
			return nil, backoff.Permanent(statusErr)
		}
		return nil, statusErr
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(NewBackOff(c.baseDelay)),
		backoff.WithMaxTries(uint(c.retry+1)),
		backoff.WithNotify(func(err error, d time.Duration) {
			logx.Debugf("请求失败，%v 后重试：%s 错误=%v", d, rawURL, err)
		}),
	)
}

// StatusError 表示非 2xx 响应。
type StatusError struct {
	Code   int
	Status string
	URL    string
}

func (e *StatusError) Error() string { return fmt.Sprintf("GET %s: http status %s", e.URL, e.Status) }

// IsStatus 判断 err 是否为指定状态码的 StatusError。
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

// Retryable 判断状态码是否值得重试（429 与 5xx）。
func Retryable(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// NewBackOff 返回无抖动的指数退避：base, 2*base, 4*base...
func NewBackOff(base time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = base
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = 64 * base
	return b
}
