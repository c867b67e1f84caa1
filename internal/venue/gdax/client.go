package gdax

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sparkswap/sparkbot/internal/domain"
	"github.com/sparkswap/sparkbot/pkg/ratelimit"
	"github.com/sparkswap/sparkbot/pkg/restclient"
)

const venue = "gdax"

// Product 交易所产品。Inverted 表示产品的基础资产是市场的计价资产（BTC/LTC 对应 LTC-BTC）
type Product struct {
	ID       string
	Inverted bool
}

type Config struct {
	APIURL     string
	APIKey     string
	APISecret  string // base64，与交易所控制台给出的一致
	Passphrase string
	RateLimit  float64 // 每秒请求数，0 = 不限
	Timeout    time.Duration
	Products   map[string]Product // 键为 BASE/COUNTER
}

// Client reads the public order book and places fill-or-kill orders on a Coinbase Pro style
// exchange. It implements ports.QuoteSource and ports.HedgeGateway.
type Client struct {
	rest       *restclient.Client
	products   map[string]Product
	apiKey     string
	secret     []byte
	passphrase string

	now   func() time.Time
	newID func() string
}

// New builds a client. Credentials are optional; without them only quotes are available.
func New(cfg Config) (*Client, error) {
	if cfg.APIURL == "" {
		return nil, domain.ConfigError("exchange api url is required")
	}
	if len(cfg.Products) == 0 {
		return nil, domain.ConfigError("exchange product map is empty")
	}

	products := make(map[string]Product, len(cfg.Products))
	for name, p := range cfg.Products {
		m, err := domain.ParseMarket(name)
		if err != nil {
			return nil, domain.ConfigError("exchange product %q: %v", name, err)
		}
		if p.ID == "" {
			return nil, domain.ConfigError("exchange product for %s has no id", m)
		}
		products[m.String()] = p
	}

	var secret []byte
	if cfg.APISecret != "" {
		var err error
		secret, err = base64.StdEncoding.DecodeString(strings.TrimSpace(cfg.APISecret))
		if err != nil {
			return nil, domain.ConfigError("exchange api secret is not base64: %v", err)
		}
	}

	rcfg := restclient.Config{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.Timeout,
		UserAgent: "sparkbot",
	}
	if limiter := ratelimit.PerSecond(cfg.RateLimit); limiter != nil {
		rcfg.Limiter = limiter
	}

	return &Client{
		rest:       restclient.New(rcfg),
		products:   products,
		apiKey:     cfg.APIKey,
		secret:     secret,
		passphrase: cfg.Passphrase,
		now:        time.Now,
		newID:      func() string { return uuid.New().String() },
	}, nil
}

func (c *Client) product(market domain.Market) (Product, error) {
	p, ok := c.products[market.String()]
	if !ok {
		return Product{}, domain.NewGatewayError(venue, "product", errUnsupportedMarket(market, c.products))
	}
	return p, nil
}

func (c *Client) hasCredentials() bool {
	return c.apiKey != "" && len(c.secret) > 0 && c.passphrase != ""
}
