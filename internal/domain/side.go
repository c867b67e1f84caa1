package domain

import (
	"strings"

	"github.com/pkg/errors"
)

// Side 订单方向
type Side string

const (
	SideBid Side = "BID" // 买入 base
	SideAsk Side = "ASK" // 卖出 base
)

// Sides returns the fixed BID, ASK evaluation order of a cycle. Each call returns a fresh copy.
func Sides() [2]Side {
	return [2]Side{SideBid, SideAsk}
}

// ParseSide accepts BID or ASK in any case.
func ParseSide(s string) (Side, error) {
	side := Side(strings.ToUpper(strings.TrimSpace(s)))
	if !side.IsValid() {
		return "", errors.Wrapf(ErrInvalidArgument, "side %q", s)
	}
	return side, nil
}

func (s Side) IsValid() bool {
	return s == SideBid || s == SideAsk
}

// Inverse returns the opposite side. Unknown sides are returned unchanged.
func (s Side) Inverse() Side {
	switch s {
	case SideBid:
		return SideAsk
	case SideAsk:
		return SideBid
	default:
		return s
	}
}

func (s Side) String() string {
	return string(s)
}
