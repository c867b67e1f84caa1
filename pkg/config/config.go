package config

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/sparkswap/sparkbot/internal/domain"
)

const (
	envPrefix = "SPARKBOT_"

	DefaultBrokerPort = "27492"
	DefaultExchangeURL = "https://api.pro.coinbase.com"
)

// ProductConfig 交易所产品映射。Inverted 表示产品的基础资产是市场的计价资产
type ProductConfig struct {
	ProductID string `yaml:"product_id" json:"product_id"`
	Inverted  bool   `yaml:"inverted" json:"inverted"`
}

// DefaultProducts 市场到交易所产品的默认映射
func DefaultProducts() map[string]ProductConfig {
	return map[string]ProductConfig{
		"BTC/LTC": {ProductID: "LTC-BTC", Inverted: true},
	}
}

// BrokerConfig broker 守护进程连接配置
type BrokerConfig struct {
	RPCAddress  string  // host:port
	CertPath    string  // TLS 证书，DisableAuth 时不使用
	DisableAuth bool    // 明文 HTTP，不做 basic auth
	User        string
	Pass        string
	RateLimit   float64 // 每秒请求数，0 = 不限
}

// ExchangeConfig 对冲交易所配置
type ExchangeConfig struct {
	APIURL     string
	APIKey     string
	APISecret  string
	Passphrase string
	RateLimit  float64
	Products   map[string]ProductConfig
}

// Config 应用配置，启动时加载一次，之后只读
type Config struct {
	Markets         []domain.Market
	PlacementMargin decimal.Decimal
	FillMargin      decimal.Decimal
	MaxOrderSize    decimal.Decimal
	MinOrderSize    decimal.Decimal
	Interval        time.Duration
	CallTimeout     time.Duration
	DryRun          bool   // 纸交易模式：下单和对冲只记录日志
	LogLevel        string // 日志级别
	LogFile         string // 日志文件路径（可选）
	StatusAddr      string // 状态服务监听地址，空则不启动
	Broker          BrokerConfig
	Exchange        ExchangeConfig
}

// Product 返回市场对应的交易所产品
func (c *Config) Product(m domain.Market) (ProductConfig, bool) {
	p, ok := c.Exchange.Products[m.String()]
	return p, ok
}

// value 配置文件中的标量，YAML/JSON 的数字和字符串都接受
type value string

func (v *value) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*v = value(str)
		return nil
	}
	*v = value(s)
	return nil
}

// ConfigFile 配置文件结构（用于 YAML/JSON 解析）
type ConfigFile struct {
	Markets         []string `yaml:"markets" json:"markets"`
	PlacementMargin value    `yaml:"placement_margin" json:"placement_margin"`
	FillMargin      value    `yaml:"fill_margin" json:"fill_margin"`
	MaxOrderSize    value    `yaml:"max_order_size" json:"max_order_size"`
	MinOrderSize    value    `yaml:"min_order_size" json:"min_order_size"`
	Interval        value    `yaml:"interval" json:"interval"`
	CallTimeout     value    `yaml:"call_timeout" json:"call_timeout"`
	DryRun          *bool    `yaml:"dry_run" json:"dry_run"`
	LogLevel        string   `yaml:"log_level" json:"log_level"`
	LogFile         string   `yaml:"log_file" json:"log_file"`
	StatusAddr      string   `yaml:"status_addr" json:"status_addr"`
	Broker          struct {
		RPCAddress  string `yaml:"rpc_address" json:"rpc_address"`
		RPCCertPath string `yaml:"rpc_cert_path" json:"rpc_cert_path"`
		DisableAuth *bool  `yaml:"disable_auth" json:"disable_auth"`
		RPCUser     string `yaml:"rpc_user" json:"rpc_user"`
		RPCPass     string `yaml:"rpc_pass" json:"rpc_pass"`
		RateLimit   value  `yaml:"rate_limit" json:"rate_limit"`
	} `yaml:"broker" json:"broker"`
	Exchange struct {
		APIURL     string                   `yaml:"api_url" json:"api_url"`
		APIKey     string                   `yaml:"api_key" json:"api_key"`
		APISecret  string                   `yaml:"api_secret" json:"api_secret"`
		Passphrase string                   `yaml:"passphrase" json:"passphrase"`
		RateLimit  value                    `yaml:"rate_limit" json:"rate_limit"`
		Products   map[string]ProductConfig `yaml:"products" json:"products"`
	} `yaml:"exchange" json:"exchange"`
}

// Load 从文件加载配置；filePath 为空时只使用环境变量和默认值。
// 优先级：配置文件 > 环境变量 > 默认值。返回的错误都包裹 domain.ErrConfiguration
func Load(filePath string) (*Config, error) {
	cf := &ConfigFile{}
	if filePath != "" {
		loaded, err := loadConfigFile(ExpandTilde(filePath))
		if err != nil {
			return nil, errors.Wrap(domain.ErrConfiguration, err.Error())
		}
		cf = loaded
	}

	c, err := build(cf)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadConfigFile 加载配置文件（支持 YAML 和 JSON）
func loadConfigFile(filePath string) (*ConfigFile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var configFile ConfigFile
	ext := strings.ToLower(filepath.Ext(filePath))

	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &configFile); err != nil {
			return nil, fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s (want .yaml, .yml, .json)", ext)
	}

	return &configFile, nil
}

func build(cf *ConfigFile) (*Config, error) {
	c := &Config{}
	var err error

	marketList := cf.Markets
	if len(marketList) == 0 {
		marketList = parseList(os.Getenv(envPrefix + "MARKETS"))
	}
	for _, s := range marketList {
		m, perr := domain.ParseMarket(s)
		if perr != nil {
			return nil, domain.ConfigError("markets: %v", perr)
		}
		c.Markets = append(c.Markets, m)
	}

	if c.PlacementMargin, err = getDecimal("placement_margin", string(cf.PlacementMargin), "PLACEMENT_MARGIN", "0.05"); err != nil {
		return nil, err
	}
	if c.FillMargin, err = getDecimal("fill_margin", string(cf.FillMargin), "FILL_MARGIN", "0.01"); err != nil {
		return nil, err
	}
	if c.MaxOrderSize, err = getDecimal("max_order_size", string(cf.MaxOrderSize), "MAX_ORDER_SIZE", "0"); err != nil {
		return nil, err
	}
	if c.MinOrderSize, err = getDecimal("min_order_size", string(cf.MinOrderSize), "MIN_ORDER_SIZE", "0"); err != nil {
		return nil, err
	}
	if c.Interval, err = getDuration("interval", string(cf.Interval), "INTERVAL", 30*time.Second); err != nil {
		return nil, err
	}
	if c.CallTimeout, err = getDuration("call_timeout", string(cf.CallTimeout), "CALL_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}

	if c.DryRun, err = getBool("dry_run", cf.DryRun, "DRY_RUN", false); err != nil {
		return nil, err
	}
	c.LogLevel = getValueFromSources(cf.LogLevel, "LOG_LEVEL", "info")
	c.LogFile = getValueFromSources(cf.LogFile, "LOG_FILE", "logs/sparkbot.log")
	c.StatusAddr = getValueFromSources(cf.StatusAddr, "STATUS_ADDR", "")

	c.Broker = BrokerConfig{
		RPCAddress:  withDefaultPort(getValueFromSources(cf.Broker.RPCAddress, "RPC_ADDRESS", "localhost:"+DefaultBrokerPort), DefaultBrokerPort),
		CertPath:    ExpandTilde(getValueFromSources(cf.Broker.RPCCertPath, "RPC_CERT_PATH", "~/.sparkswap/certs/broker-rpc-tls.cert")),
		User:        getValueFromSources(cf.Broker.RPCUser, "RPC_USER", "sparkswap"),
		Pass:        getValueFromSources(cf.Broker.RPCPass, "RPC_PASS", "sparkswap"),
	}
	if c.Broker.DisableAuth, err = getBool("broker.disable_auth", cf.Broker.DisableAuth, "DISABLE_AUTH", false); err != nil {
		return nil, err
	}
	if c.Broker.RateLimit, err = getFloat("broker.rate_limit", string(cf.Broker.RateLimit), "RPC_RATE_LIMIT", 0); err != nil {
		return nil, err
	}

	c.Exchange = ExchangeConfig{
		APIURL:     strings.TrimSuffix(getValueFromSources(cf.Exchange.APIURL, "GDAX_API_URL", DefaultExchangeURL), "/"),
		APIKey:     getValueFromSources(cf.Exchange.APIKey, "GDAX_API_KEY", ""),
		APISecret:  getValueFromSources(cf.Exchange.APISecret, "GDAX_API_SECRET", ""),
		Passphrase: getValueFromSources(cf.Exchange.Passphrase, "GDAX_API_PASSPHRASE", ""),
		Products:   DefaultProducts(),
	}
	if c.Exchange.RateLimit, err = getFloat("exchange.rate_limit", string(cf.Exchange.RateLimit), "GDAX_RATE_LIMIT", 3); err != nil {
		return nil, err
	}
	for name, p := range cf.Exchange.Products {
		m, perr := domain.ParseMarket(name)
		if perr != nil {
			return nil, domain.ConfigError("exchange.products: %v", perr)
		}
		c.Exchange.Products[m.String()] = p
	}

	return c, nil
}

// Validate 验证配置
func (c *Config) Validate() error {
	if len(c.Markets) == 0 {
		return domain.ConfigError("at least one market is required (markets or %sMARKETS)", envPrefix)
	}
	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if !m.IsValid() {
			return domain.ConfigError("invalid market %q", m.String())
		}
		if seen[m.String()] {
			return domain.ConfigError("market %s configured twice", m)
		}
		seen[m.String()] = true
		p, ok := c.Product(m)
		if !ok || p.ProductID == "" {
			return domain.ConfigError("no exchange product for market %s", m)
		}
	}

	one := decimal.NewFromInt(1)
	if c.PlacementMargin.IsNegative() || c.PlacementMargin.GreaterThanOrEqual(one) {
		return domain.ConfigError("placement_margin must be in [0, 1), got %s", c.PlacementMargin)
	}
	if c.FillMargin.IsNegative() || c.FillMargin.GreaterThanOrEqual(one) {
		return domain.ConfigError("fill_margin must be in [0, 1), got %s", c.FillMargin)
	}
	if !c.MaxOrderSize.IsPositive() {
		return domain.ConfigError("max_order_size must be greater than 0")
	}
	if c.MinOrderSize.IsNegative() {
		return domain.ConfigError("min_order_size must not be negative")
	}
	if c.MinOrderSize.GreaterThanOrEqual(c.MaxOrderSize) {
		return domain.ConfigError("min_order_size %s must be less than max_order_size %s", c.MinOrderSize, c.MaxOrderSize)
	}
	if c.Interval <= 0 {
		return domain.ConfigError("interval must be positive")
	}
	if c.CallTimeout <= 0 {
		return domain.ConfigError("call_timeout must be positive")
	}
	if c.Broker.RPCAddress == "" {
		return domain.ConfigError("broker.rpc_address is required")
	}
	if !c.Broker.DisableAuth {
		if c.Broker.User == "" || c.Broker.Pass == "" {
			return domain.ConfigError("broker.rpc_user and broker.rpc_pass are required unless disable_auth is set")
		}
		if c.Broker.CertPath == "" {
			return domain.ConfigError("broker.rpc_cert_path is required unless disable_auth is set")
		}
	}
	if c.Broker.RateLimit < 0 || c.Exchange.RateLimit < 0 {
		return domain.ConfigError("rate_limit must not be negative")
	}
	if !c.DryRun {
		var missing []string
		if c.Exchange.APIKey == "" {
			missing = append(missing, "api_key")
		}
		if c.Exchange.APISecret == "" {
			missing = append(missing, "api_secret")
		}
		if c.Exchange.Passphrase == "" {
			missing = append(missing, "passphrase")
		}
		if len(missing) > 0 {
			return domain.ConfigError("exchange credentials missing: %s", strings.Join(missing, ", "))
		}
	}
	return nil
}

// MarketNames 返回排序后的市场名称，用于日志
func (c *Config) MarketNames() []string {
	names := make([]string, 0, len(c.Markets))
	for _, m := range c.Markets {
		names = append(names, m.String())
	}
	sort.Strings(names)
	return names
}

// withDefaultPort 地址没有端口时追加默认端口
func withDefaultPort(addr, port string) string {
	if addr == "" {
		return addr
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(strings.Trim(addr, "[]"), port)
}

// parseList 解析空格或逗号分隔的列表
func parseList(str string) []string {
	fields := strings.FieldsFunc(str, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n'
	})
	result := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			result = append(result, f)
		}
	}
	return result
}

// getValueFromSources 按优先级返回第一个非空值：配置文件 > 环境变量 > 默认值
func getValueFromSources(configValue, envKey, defaultValue string) string {
	if configValue != "" {
		return configValue
	}
	if v := os.Getenv(envPrefix + envKey); v != "" {
		return v
	}
	return defaultValue
}

func getBool(name string, configValue *bool, envKey string, defaultValue bool) (bool, error) {
	if configValue != nil {
		return *configValue, nil
	}
	v := strings.TrimSpace(os.Getenv(envPrefix + envKey))
	if v == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return false, domain.ConfigError("%s: %q is not a boolean", name, v)
	}
	return parsed, nil
}

func getDecimal(name, configValue, envKey, defaultValue string) (decimal.Decimal, error) {
	raw := getValueFromSources(strings.TrimSpace(configValue), envKey, defaultValue)
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.ConfigError("%s: %q is not a decimal", name, raw)
	}
	return d, nil
}

func getFloat(name, configValue, envKey string, defaultValue float64) (float64, error) {
	raw := getValueFromSources(strings.TrimSpace(configValue), envKey, "")
	if raw == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, domain.ConfigError("%s: %q is not a number", name, raw)
	}
	return f, nil
}

// getDuration 接受 Go duration（30s, 1m）或者纯数字秒数
func getDuration(name, configValue, envKey string, defaultValue time.Duration) (time.Duration, error) {
	raw := getValueFromSources(strings.TrimSpace(configValue), envKey, "")
	if raw == "" {
		return defaultValue, nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, domain.ConfigError("%s: %q is not a duration", name, raw)
	}
	return d, nil
}
