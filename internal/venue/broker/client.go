package broker

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/pkg/ratelimit"
	"github.com/sparkswap/sparkbot/pkg/restclient"
)

const venue = "broker"

// Config broker 守护进程连接参数
type Config struct {
	Address     string // host:port
	CertPath    string // 守护进程的自签名证书，DisableAuth 时忽略
	DisableAuth bool   // 明文 HTTP，不带 basic auth
	User        string
	Pass        string
	RateLimit   float64 // 每秒请求数，0 = 不限
	Timeout     time.Duration
}

// Client talks to the broker daemon's HTTP gateway. It implements ports.OrderGateway and
// ports.CapacitySource.
type Client struct {
	rest   *restclient.Client
	wsBase string
	dialer *websocket.Dialer
	header http.Header
}

// New builds a client. A missing or unreadable certificate is a configuration error.
func New(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, domain.ConfigError("broker address is required")
	}

	scheme, wsScheme := "https", "wss"
	var pool *x509.CertPool
	if cfg.DisableAuth {
		scheme, wsScheme = "http", "ws"
	} else {
		if cfg.User == "" || cfg.Pass == "" {
			return nil, domain.ConfigError("broker rpc user and password are required when auth is enabled")
		}
		pem, err := os.ReadFile(cfg.CertPath)
		if err != nil {
			return nil, errors.Wrapf(domain.ErrConfiguration, "read broker cert %s: %v", cfg.CertPath, err)
		}
		pool = x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, domain.ConfigError("broker cert %s contains no PEM certificate", cfg.CertPath)
		}
	}

	address := strings.TrimSuffix(cfg.Address, "/")
	rcfg := restclient.Config{
		BaseURL:   scheme + "://" + address,
		Timeout:   cfg.Timeout,
		RootCAs:   pool,
		UserAgent: "sparkbot",
	}
	if limiter := ratelimit.PerSecond(cfg.RateLimit); limiter != nil {
		rcfg.Limiter = limiter
	}

	header := http.Header{}
	if !cfg.DisableAuth {
		rcfg.Username, rcfg.Password = cfg.User, cfg.Pass
		token := base64.StdEncoding.EncodeToString([]byte(cfg.User + ":" + cfg.Pass))
		header.Set("Authorization", "Basic "+token)
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
		Proxy:            http.ProxyFromEnvironment,
	}
	if pool != nil {
		dialer.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	}

	return &Client{
		rest:   restclient.New(rcfg),
		wsBase: wsScheme + "://" + address,
		dialer: dialer,
		header: header,
	}, nil
}

func gatewayErr(op string, err error) error {
	return domain.NewGatewayError(venue, op, err)
}
