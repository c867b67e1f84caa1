package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Market 交易市场，形如 BASE/COUNTER（例如 BTC/LTC）
type Market struct {
	Base    string // 基础资产
	Counter string // 计价资产
}

// ParseMarket parses "BASE/COUNTER". Symbols are upper-cased; anything else is rejected.
func ParseMarket(s string) (Market, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 2 {
		return Market{}, errors.Wrapf(ErrInvalidArgument, "market %q: want BASE/COUNTER", s)
	}
	base := strings.ToUpper(strings.TrimSpace(parts[0]))
	counter := strings.ToUpper(strings.TrimSpace(parts[1]))
	if base == "" || counter == "" {
		return Market{}, errors.Wrapf(ErrInvalidArgument, "market %q: empty symbol", s)
	}
	if base == counter {
		return Market{}, errors.Wrapf(ErrInvalidArgument, "market %q: base and counter are the same", s)
	}
	return Market{Base: base, Counter: counter}, nil
}

// MustParseMarket is ParseMarket for literals known to be valid.
func MustParseMarket(s string) Market {
	m, err := ParseMarket(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Market) String() string {
	return m.Base + "/" + m.Counter
}

// IsValid 验证市场是否有效
func (m Market) IsValid() bool {
	return m.Base != "" && m.Counter != "" && m.Base != m.Counter
}
