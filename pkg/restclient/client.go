package restclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/sparkswap/sparkbot/pkg/ratelimit"
)

// Config 客户端配置
type Config struct {
	BaseURL   string
	Timeout   time.Duration // 单次请求上限，调用方的 ctx deadline 优先
	Username  string        // 为空则不使用 basic auth
	Password  string
	RootCAs   *x509.CertPool // 非空时只信任这些证书
	UserAgent string
	Limiter   ratelimit.RateLimiter
}

// Client resty 的薄封装。不做重试：失败直接返回给调用方
type Client struct {
	client  *resty.Client
	limiter ratelimit.RateLimiter
	ua      string
}

// StatusError 非 2xx 响应
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: http %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// RequestOptions 单次请求选项
type RequestOptions struct {
	Headers map[string]string
	Params  map[string]string
	Data    any // string / []byte 原样发送，其它值编码为 JSON
}

func New(cfg Config) *Client {
	base := strings.TrimSuffix(cfg.BaseURL, "/")
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(base).
		SetTimeout(timeout).
		SetRetryCount(0)
	if cfg.Username != "" || cfg.Password != "" {
		client.SetBasicAuth(cfg.Username, cfg.Password)
	}
	if cfg.RootCAs != nil {
		client.SetTLSClientConfig(&tls.Config{RootCAs: cfg.RootCAs, MinVersion: tls.VersionTLS12})
	}

	ua := cfg.UserAgent
	if ua == "" {
		ua = "sparkbot"
	}
	return &Client{client: client, limiter: cfg.Limiter, ua: ua}
}

// BaseURL 返回客户端的基础地址
func (c *Client) BaseURL() string {
	return c.client.BaseURL
}

func (c *Client) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "application/json")
	r.SetHeader("User-Agent", c.ua)
	return r
}

// Do 发送请求；out 非空时把 2xx 响应体解码进去
func (c *Client) Do(ctx context.Context, method, path string, opt *RequestOptions, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return errors.Wrap(err, "rate limit wait")
		}
	}

	rc := c.newRequest(ctx)
	if opt != nil {
		for k, v := range opt.Headers {
			rc.SetHeader(k, v)
		}
		if len(opt.Params) > 0 {
			rc.SetQueryParams(opt.Params)
		}
		if opt.Data != nil {
			rc.SetHeader("Content-Type", "application/json")
			rc.SetBody(opt.Data)
		}
	}

	var resp *resty.Response
	var err error
	switch strings.ToUpper(method) {
	case http.MethodGet:
		resp, err = rc.Get(path)
	case http.MethodPost:
		resp, err = rc.Post(path)
	case http.MethodDelete:
		resp, err = rc.Delete(path)
	case http.MethodPut:
		resp, err = rc.Put(path)
	default:
		return errors.Errorf("unsupported method: %s", method)
	}
	if err != nil {
		return errors.Wrapf(err, "%s %s", strings.ToUpper(method), path)
	}
	if !resp.IsSuccess() {
		return &StatusError{
			Method:     strings.ToUpper(method),
			Path:       path,
			StatusCode: resp.StatusCode(),
			Body:       strings.TrimSpace(string(resp.Body())),
		}
	}
	if out != nil && len(resp.Body()) > 0 {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return errors.Wrapf(err, "decode %s %s response", strings.ToUpper(method), path)
		}
	}
	return nil
}

// IsStatus 判断 err 是否为指定状态码的 StatusError
func IsStatus(err error, code int) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode == code
	}
	return false
}
